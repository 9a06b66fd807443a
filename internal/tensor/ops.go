package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
)

// #region layout

// split returns the element counts before, at and after axis.
func split(s shape.Shape, axis int) (outer, dim, inner int) {
	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= s[i]
	}
	for i := axis + 1; i < len(s); i++ {
		inner *= s[i]
	}
	return outer, s[axis], inner
}

func normAxis(axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, fmt.Errorf("axis out of range for rank %d", rank)
	}
	return axis, nil
}

// #endregion layout

// #region structural

// Concat joins tensors along axis.
func Concat(axis int, ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat: no inputs")
	}
	shapes := make([]shape.Shape, len(ts))
	for i, t := range ts {
		shapes[i] = t.shape
	}
	outShape, err := shape.Concat(axis, shapes...)
	if err != nil {
		return nil, err
	}
	axis, _ = normAxis(axis, ts[0].Rank())

	out := Zeros(outShape...)
	outer, _, _ := split(ts[0].shape, axis)
	pos := 0
	for o := 0; o < outer; o++ {
		for _, t := range ts {
			_, dim, inner := split(t.shape, axis)
			block := dim * inner
			copy(out.data[pos:pos+block], t.data[o*block:(o+1)*block])
			pos += block
		}
	}
	return out, nil
}

// ExpandDims inserts a length-1 axis at position axis.
func ExpandDims(t *Tensor, axis int) (*Tensor, error) {
	if axis < 0 {
		axis += t.Rank() + 1
	}
	if axis < 0 || axis > t.Rank() {
		return nil, fmt.Errorf("expand dims: axis %d out of range for %s", axis, t.shape)
	}
	s := make(shape.Shape, 0, t.Rank()+1)
	s = append(s, t.shape[:axis]...)
	s = append(s, 1)
	s = append(s, t.shape[axis:]...)
	return New(s, t.data)
}

// SliceLast keeps elements [start, end) of the trailing axis.
func SliceLast(t *Tensor, start, end int) (*Tensor, error) {
	last := t.Dim(-1)
	if start < 0 || end > last || start > end {
		return nil, fmt.Errorf("slice [%d:%d] out of range for trailing dim %d", start, end, last)
	}
	rows := len(t.data) / last
	width := end - start
	out := Zeros(t.shape.WithLast(width)...)
	for r := 0; r < rows; r++ {
		copy(out.data[r*width:(r+1)*width], t.data[r*last+start:r*last+end])
	}
	return out, nil
}

// #endregion structural

// #region reductions

// Sum reduces over axis.
func Sum(t *Tensor, axis int) (*Tensor, error) {
	axis, err := normAxis(axis, t.Rank())
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}
	outer, dim, inner := split(t.shape, axis)
	s := make(shape.Shape, 0, t.Rank()-1)
	s = append(s, t.shape[:axis]...)
	s = append(s, t.shape[axis+1:]...)
	out := Zeros(s...)
	for o := 0; o < outer; o++ {
		for d := 0; d < dim; d++ {
			base := (o*dim + d) * inner
			for i := 0; i < inner; i++ {
				out.data[o*inner+i] += t.data[base+i]
			}
		}
	}
	return out, nil
}

// WeightedSum computes sum(data * expand(weights, -1), axis). The weights
// carry every dimension of data except the trailing feature axis.
func WeightedSum(data, weights *Tensor, axis int) (*Tensor, error) {
	want := data.shape[:data.Rank()-1]
	if !want.Equal(weights.shape) {
		return nil, shape.Mismatch("weighted_sum", "weights must match data without its feature axis", want, weights.shape)
	}
	feat := data.Dim(-1)
	scaled := Zeros(data.shape...)
	for i, w := range weights.data {
		for f := 0; f < feat; f++ {
			scaled.data[i*feat+f] = data.data[i*feat+f] * w
		}
	}
	return Sum(scaled, axis)
}

// #endregion reductions

// #region linear

// MatMul multiplies the trailing axis of x by w of shape (in, out).
func MatMul(x, w *Tensor) (*Tensor, error) {
	if w.Rank() != 2 {
		return nil, fmt.Errorf("matmul: weights must be rank 2, got %s", w.shape)
	}
	in, outDim := w.shape[0], w.shape[1]
	if x.Dim(-1) != in {
		return nil, fmt.Errorf("shape mismatch in MatMul: %s x %s", x.shape, w.shape)
	}
	out := Zeros(x.shape.WithLast(outDim)...)
	if in == 0 || outDim == 0 || len(x.data) == 0 {
		return out, nil
	}
	rows := len(x.data) / in
	matmul(x.data, w.data, rows, in, outDim, out.data)
	return out, nil
}

// AddBias adds b to every trailing-axis row of x in place and returns x.
func AddBias(x, b *Tensor) (*Tensor, error) {
	n := len(b.data)
	if x.Dim(-1) != n {
		return nil, fmt.Errorf("shape mismatch in AddBias: %s + %s", x.shape, b.shape)
	}
	for i := range x.data {
		x.data[i] += b.data[i%n]
	}
	return x, nil
}

// Dot is the inner product of two equal-length vectors.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// #endregion linear

// #region elementwise

// Map applies fn to every element.
func Map(t *Tensor, fn func(float64) float64) *Tensor {
	out := Zeros(t.shape...)
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// Add returns a + b for equal shapes.
func Add(a, b *Tensor) (*Tensor, error) {
	return zip("Add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub returns a - b for equal shapes.
func Sub(a, b *Tensor) (*Tensor, error) {
	return zip("Sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul returns the element-wise product for equal shapes.
func Mul(a, b *Tensor) (*Tensor, error) {
	return zip("Mul", a, b, func(x, y float64) float64 { return x * y })
}

func zip(op string, a, b *Tensor, fn func(x, y float64) float64) (*Tensor, error) {
	if !a.shape.Equal(b.shape) {
		return nil, fmt.Errorf("shape mismatch in %s: %s vs %s", op, a.shape, b.shape)
	}
	out := Zeros(a.shape...)
	for i := range a.data {
		out.data[i] = fn(a.data[i], b.data[i])
	}
	return out, nil
}

// #endregion elementwise

// #region distributions

// Softmax normalises each trailing-axis row into a distribution.
func Softmax(t *Tensor) *Tensor {
	out := Zeros(t.shape...)
	n := t.Dim(-1)
	if n == 0 {
		return out
	}
	for r := 0; r < len(t.data)/n; r++ {
		row := t.data[r*n : (r+1)*n]
		dst := out.data[r*n : (r+1)*n]
		maxVal := floats.Max(row)
		for i, v := range row {
			dst[i] = math.Exp(v - maxVal)
		}
		floats.Scale(1/floats.Sum(dst), dst)
	}
	return out
}

// OneHotArgmax replaces each trailing-axis row with a one-hot vector at its
// maximum. Ties resolve to the lowest index.
func OneHotArgmax(t *Tensor) *Tensor {
	out := Zeros(t.shape...)
	n := t.Dim(-1)
	if n == 0 {
		return out
	}
	for r := 0; r < len(t.data)/n; r++ {
		out.data[r*n+floats.MaxIdx(t.data[r*n:(r+1)*n])] = 1
	}
	return out
}

// #endregion distributions
