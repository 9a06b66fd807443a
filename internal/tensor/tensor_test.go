package tensor

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
)

// #region helpers

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

// #endregion helpers

// #region construction-tests

func TestNewRejectsWrongSize(t *testing.T) {
	if _, err := New(shape.Of(2, 3), []float64{1, 2, 3}); err == nil {
		t.Fatal("expected size error")
	}
	if _, err := New(shape.Of(shape.Batch, 3), []float64{1, 2, 3}); err == nil {
		t.Fatal("expected error for symbolic dimension")
	}
}

func TestAtSet(t *testing.T) {
	x := Zeros(2, 3, 4)
	x.Set(7, 1, 2, 3)
	if x.At(1, 2, 3) != 7 {
		t.Fatalf("expected 7, got %f", x.At(1, 2, 3))
	}
	if x.Data()[23] != 7 {
		t.Fatalf("expected row-major offset 23 to hold 7")
	}
}

// #endregion construction-tests

// #region op-tests

func TestConcatMiddleAxis(t *testing.T) {
	mem := Must(shape.Of(2, 1, 2), []float64{1, 2, 3, 4})
	bg := Must(shape.Of(2, 2, 2), []float64{5, 6, 7, 8, 9, 10, 11, 12})
	got, err := Concat(1, mem, bg)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if !got.Shape().Equal(shape.Of(2, 3, 2)) {
		t.Fatalf("expected (2, 3, 2), got %s", got.Shape())
	}
	want := []float64{1, 2, 5, 6, 7, 8, 3, 4, 9, 10, 11, 12}
	if !floatsEqual(got.Data(), want) {
		t.Fatalf("got %v, want %v", got.Data(), want)
	}
}

func TestExpandDims(t *testing.T) {
	x := Zeros(2, 3)
	got, err := ExpandDims(x, 1)
	if err != nil {
		t.Fatalf("ExpandDims: %v", err)
	}
	if !got.Shape().Equal(shape.Of(2, 1, 3)) {
		t.Fatalf("expected (2, 1, 3), got %s", got.Shape())
	}
	got, _ = ExpandDims(x, -1)
	if !got.Shape().Equal(shape.Of(2, 3, 1)) {
		t.Fatalf("expected (2, 3, 1), got %s", got.Shape())
	}
}

func TestWeightedSum(t *testing.T) {
	data := Must(shape.Of(1, 3, 2), []float64{1, 2, 3, 4, 5, 6})
	weights := Must(shape.Of(1, 3), []float64{0.5, 0.25, 0.25})
	got, err := WeightedSum(data, weights, 1)
	if err != nil {
		t.Fatalf("WeightedSum: %v", err)
	}
	want := []float64{0.5 + 0.75 + 1.25, 1 + 1 + 1.5}
	if !floatsEqual(got.Data(), want) {
		t.Fatalf("got %v, want %v", got.Data(), want)
	}

	if _, err := WeightedSum(data, Zeros(1, 4), 1); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestMatMulTrailingAxis(t *testing.T) {
	x := Must(shape.Of(2, 1, 2), []float64{1, 2, 3, 4})
	w := Must(shape.Of(2, 3), []float64{1, 0, 1, 0, 1, 1})
	got, err := MatMul(x, w)
	if err != nil {
		t.Fatalf("MatMul: %v", err)
	}
	if !got.Shape().Equal(shape.Of(2, 1, 3)) {
		t.Fatalf("expected (2, 1, 3), got %s", got.Shape())
	}
	if !floatsEqual(got.Data(), []float64{1, 2, 3, 3, 4, 7}) {
		t.Fatalf("unexpected product %v", got.Data())
	}
	if _, err := MatMul(x, Zeros(3, 3)); err == nil {
		t.Fatal("expected dimension mismatch")
	}
}

func TestSliceLast(t *testing.T) {
	x := Must(shape.Of(2, 4), []float64{1, 2, 3, 4, 5, 6, 7, 8})
	got, err := SliceLast(x, 1, 3)
	if err != nil {
		t.Fatalf("SliceLast: %v", err)
	}
	if !floatsEqual(got.Data(), []float64{2, 3, 6, 7}) {
		t.Fatalf("unexpected slice %v", got.Data())
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	x := Must(shape.Of(3, 4), []float64{1, 2, 3, 4, -1, 0, 1, 1000, 0, 0, 0, 0})
	got := Softmax(x)
	for r := 0; r < 3; r++ {
		var sum float64
		for _, v := range got.Row(r) {
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d sums to %f", r, sum)
		}
	}
	if math.Abs(got.At(2, 0)-0.25) > 1e-9 {
		t.Fatalf("uniform row expected 0.25, got %f", got.At(2, 0))
	}
}

func TestOneHotArgmax(t *testing.T) {
	x := Must(shape.Of(2, 3), []float64{0.1, 0.7, 0.2, 0.5, 0.5, 0.1})
	got := OneHotArgmax(x)
	want := []float64{0, 1, 0, 1, 0, 0}
	if !floatsEqual(got.Data(), want) {
		t.Fatalf("got %v, want %v", got.Data(), want)
	}
}

// #endregion op-tests

// #region kernel-tests

func TestSelectMatMul(t *testing.T) {
	if name, _ := selectMatMul(true); name != KernelGemm {
		t.Fatalf("wide SIMD host: expected %s, got %s", KernelGemm, name)
	}
	if name, _ := selectMatMul(false); name != KernelAxpy {
		t.Fatalf("narrow host: expected %s, got %s", KernelAxpy, name)
	}
	if k := Kernel(); k != KernelGemm && k != KernelAxpy {
		t.Fatalf("unknown host kernel %q", k)
	}
}

func TestMatMulKernelsAgree(t *testing.T) {
	x := []float64{1, 0, -2, 3, 0.5, 4} // (2, 3)
	w := []float64{1, 2, 0, -1, 3, 1}   // (3, 2)
	want := []float64{1*1 + 0*0 + -2*3, 1*2 + 0*-1 + -2*1, 3*1 + 0.5*0 + 4*3, 3*2 + 0.5*-1 + 4*1}

	for _, wide := range []bool{true, false} {
		name, kernel := selectMatMul(wide)
		dst := make([]float64, 4)
		kernel(x, w, 2, 3, 2, dst)
		if !floatsEqual(dst, want) {
			t.Errorf("%s: got %v, want %v", name, dst, want)
		}
	}
}

func TestNormAndDot(t *testing.T) {
	x := Must(shape.Of(2), []float64{3, 4})
	if math.Abs(x.Norm()-5) > 1e-12 {
		t.Fatalf("expected norm 5, got %f", x.Norm())
	}
	if Zeros(0).Norm() != 0 {
		t.Fatal("empty tensor should have norm 0")
	}
	if Dot([]float64{1, 2, 3}, []float64{4, 5, 6}) != 32 {
		t.Fatal("expected dot 32")
	}
}

// #endregion kernel-tests
