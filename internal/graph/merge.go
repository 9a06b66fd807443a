package graph

import (
	"context"

	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region merge

// MergeFunc combines several tensors into one.
type MergeFunc func(inputs []*tensor.Tensor) (*tensor.Tensor, error)

// ShapeFunc computes the output shape of a MergeFunc from its input shapes.
type ShapeFunc func(inputs []shape.Shape) (shape.Shape, error)

// Merge is a custom combination of inputs whose output shape cannot be
// inferred generically. A Merge without a ShapeFunc is rejected when it is
// added to a graph.
type Merge struct {
	Label string
	Fn    MergeFunc
	Shape ShapeFunc
}

// Kind implements Op.
func (m *Merge) Kind() string {
	if m.Label == "" {
		return "merge"
	}
	return m.Label
}

// OutputShape implements Op.
func (m *Merge) OutputShape(inputs []shape.Shape) (shape.Shape, error) {
	if m.Shape == nil {
		return nil, shape.Errorf(m.Kind(), "custom merge requires an explicit shape function")
	}
	if m.Fn == nil {
		return nil, shape.Errorf(m.Kind(), "custom merge has no merge function")
	}
	return m.Shape(inputs)
}

// Forward implements Op.
func (m *Merge) Forward(_ context.Context, inputs []*tensor.Tensor, _ Mode) (*tensor.Tensor, error) {
	return m.Fn(inputs)
}

// #endregion merge

// #region concat

// Concat joins equal-rank inputs along Axis.
type Concat struct {
	Axis int
}

// Kind implements Op.
func (c Concat) Kind() string { return "concat" }

// OutputShape implements Op.
func (c Concat) OutputShape(inputs []shape.Shape) (shape.Shape, error) {
	return shape.Concat(c.Axis, inputs...)
}

// Forward implements Op.
func (c Concat) Forward(_ context.Context, inputs []*tensor.Tensor, _ Mode) (*tensor.Tensor, error) {
	return tensor.Concat(c.Axis, inputs...)
}

// #endregion concat
