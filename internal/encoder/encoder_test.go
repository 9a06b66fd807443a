package encoder

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region helpers

type fakeClient struct {
	calls     int
	sentences int
	dim       int
	err       error
}

func (f *fakeClient) EncodeSentences(_ context.Context, sentences [][][]float64) ([][]float64, error) {
	f.calls++
	f.sentences += len(sentences)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(sentences))
	for i, words := range sentences {
		out[i] = make([]float64, f.dim)
		for _, w := range words {
			out[i][0] += w[0]
		}
	}
	return out, nil
}

// #endregion helpers

// #region bow-tests

func TestBOWAveragesNonPadding(t *testing.T) {
	b := NewBOW(2)
	x := tensor.Must(shape.Of(1, 3, 2), []float64{0, 0, 1, 3, 3, 5})
	out, err := b.Forward(context.Background(), []*tensor.Tensor{x}, graph.ModeInfer)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.At(0, 0) != 2 || out.At(0, 1) != 4 {
		t.Fatalf("expected [2 4], got %v", out.Data())
	}
}

func TestBOWShapeContract(t *testing.T) {
	b := NewBOW(4)
	got, err := b.OutputShape([]shape.Shape{shape.Of(shape.Batch, 5, 4)})
	if err != nil {
		t.Fatalf("OutputShape: %v", err)
	}
	if !got.Equal(shape.Of(shape.Batch, 4)) {
		t.Fatalf("expected (batch, 4), got %s", got)
	}
	if _, err := b.OutputShape([]shape.Shape{shape.Of(shape.Batch, 5, 3)}); !errors.Is(err, shape.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestBOWMasksPaddingByIndex(t *testing.T) {
	b := NewBOW(2)
	// word 4 is real but its vector is all zeros
	x := tensor.Must(shape.Of(1, 3, 2), []float64{0, 0, 0, 0, 3, 3})
	idx := tensor.Must(shape.Of(1, 3), []float64{0, 4, 7})
	out, err := b.Forward(context.Background(), []*tensor.Tensor{x, idx}, graph.ModeInfer)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.At(0, 0) != 1.5 || out.At(0, 1) != 1.5 {
		t.Fatalf("expected [1.5 1.5], got %v", out.Data())
	}

	if _, err := b.OutputShape([]shape.Shape{shape.Of(shape.Batch, 3, 2), shape.Of(shape.Batch, 4)}); !errors.Is(err, shape.ErrShape) {
		t.Fatalf("expected ErrShape for misaligned indices, got %v", err)
	}
}

// #endregion bow-tests

// #region time-distributed-tests

func TestTimeDistributedSharesEncoder(t *testing.T) {
	td := NewTimeDistributed(NewBOW(2))
	got, err := td.OutputShape([]shape.Shape{shape.Of(shape.Batch, 3, 5, 2)})
	if err != nil {
		t.Fatalf("OutputShape: %v", err)
	}
	if !got.Equal(shape.Of(shape.Batch, 3, 2)) {
		t.Fatalf("expected (batch, 3, 2), got %s", got)
	}

	// two knowledge slices of two words each
	x := tensor.Must(shape.Of(1, 2, 2, 2), []float64{
		2, 2, 0, 0,
		1, 1, 3, 3,
	})
	out, err := td.Forward(context.Background(), []*tensor.Tensor{x}, graph.ModeInfer)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !out.Shape().Equal(shape.Of(1, 2, 2)) {
		t.Fatalf("expected (1, 2, 2), got %s", out.Shape())
	}
	if out.At(0, 0, 0) != 2 || out.At(0, 1, 0) != 2 {
		t.Fatalf("unexpected encodings %v", out.Data())
	}
}

func TestTimeDistributedFoldsIndices(t *testing.T) {
	td := NewTimeDistributed(NewBOW(1))
	got, err := td.OutputShape([]shape.Shape{shape.Of(shape.Batch, 2, 2, 1), shape.Of(shape.Batch, 2, 2)})
	if err != nil {
		t.Fatalf("OutputShape: %v", err)
	}
	if !got.Equal(shape.Of(shape.Batch, 2, 1)) {
		t.Fatalf("expected (batch, 2, 1), got %s", got)
	}

	// slice 0: padding then a zero-vector word; slice 1: two words
	x := tensor.Must(shape.Of(1, 2, 2, 1), []float64{0, 0, 2, 4})
	idx := tensor.Must(shape.Of(1, 2, 2), []float64{0, 3, 5, 6})
	out, err := td.Forward(context.Background(), []*tensor.Tensor{x, idx}, graph.ModeInfer)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.At(0, 0, 0) != 0 || out.At(0, 1, 0) != 3 {
		t.Fatalf("unexpected encodings %v", out.Data())
	}
}

// #endregion time-distributed-tests

// #region remote-tests

func TestRemoteBatchesOneCall(t *testing.T) {
	client := &fakeClient{dim: 3}
	td := NewTimeDistributed(NewRemote(client, 2, 3))
	x := tensor.Must(shape.Of(2, 2, 1, 2), []float64{1, 0, 2, 0, 3, 0, 4, 0})
	out, err := td.Forward(context.Background(), []*tensor.Tensor{x}, graph.ModeInfer)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if client.calls != 1 || client.sentences != 4 {
		t.Fatalf("expected one call with 4 sentences, got %d calls / %d sentences", client.calls, client.sentences)
	}
	if !out.Shape().Equal(shape.Of(2, 2, 3)) || out.At(1, 1, 0) != 4 {
		t.Fatalf("unexpected output %s %v", out.Shape(), out.Data())
	}
}

func TestRemotePropagatesErrors(t *testing.T) {
	want := errors.New("unavailable")
	r := NewRemote(&fakeClient{err: want}, 2, 3)
	x := tensor.Zeros(1, 1, 2)
	if _, err := r.Forward(context.Background(), []*tensor.Tensor{x}, graph.ModeInfer); !errors.Is(err, want) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestRemoteRejectsWrongWidth(t *testing.T) {
	r := NewRemote(&fakeClient{dim: 5}, 2, 3)
	x := tensor.Zeros(1, 1, 2)
	if _, err := r.Forward(context.Background(), []*tensor.Tensor{x}, graph.ModeInfer); !errors.Is(err, shape.ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

// #endregion remote-tests
