// Package tensor is the dense float64 substrate the computation graph runs
// on. Tensors are row-major and immutable by convention: every operation
// returns a fresh tensor.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
)

// #region tensor

// Tensor is a dense row-major array of float64 values.
type Tensor struct {
	shape shape.Shape
	data  []float64
}

// New wraps data in a tensor of the given shape. The data slice is not copied.
func New(s shape.Shape, data []float64) (*Tensor, error) {
	for _, d := range s {
		if d < 0 {
			return nil, fmt.Errorf("tensor dimensions must be concrete, got %s", s)
		}
	}
	if s.Size() != len(data) {
		return nil, fmt.Errorf("tensor shape %s needs %d values, got %d", s, s.Size(), len(data))
	}
	return &Tensor{shape: s.Clone(), data: data}, nil
}

// Must is New for literals in tests and constant tables.
func Must(s shape.Shape, data []float64) *Tensor {
	t, err := New(s, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Zeros allocates a zero-filled tensor.
func Zeros(dims ...int) *Tensor {
	s := shape.Of(dims...)
	return &Tensor{shape: s, data: make([]float64, s.Size())}
}

// FromRows builds a rank-2 tensor from equal-length rows.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return Zeros(0, 0), nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return New(shape.Of(len(rows), cols), data)
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() shape.Shape {
	return t.shape.Clone()
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of axis i. Negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Data exposes the backing slice.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Clone deep-copies the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// At reads the element at the given index.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set writes the element at the given index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Row returns row i of the tensor viewed as (dim0, rest). The slice aliases
// the tensor's storage.
func (t *Tensor) Row(i int) []float64 {
	n := len(t.data) / t.shape[0]
	return t.data[i*n : (i+1)*n]
}

// Reshape returns a view with a new shape of the same size.
func (t *Tensor) Reshape(dims ...int) (*Tensor, error) {
	return New(shape.Of(dims...), t.data)
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("index rank %d does not match tensor rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		off = off*t.shape[i] + v
	}
	return off
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%s", t.shape)
}

// #endregion tensor

// #region norms

// Norm returns the L2 norm of all elements.
func (t *Tensor) Norm() float64 {
	if len(t.data) == 0 {
		return 0
	}
	return floats.Norm(t.data, 2)
}

// #endregion norms
