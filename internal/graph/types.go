package graph

import (
	"context"

	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region mode

// Mode selects execution-time behaviour such as dropout.
type Mode int

const (
	// ModeInfer disables stochastic regularisation.
	ModeInfer Mode = iota
	// ModeTrain enables it.
	ModeTrain
)

// #endregion mode

// #region op

// Op is one computation in the graph. OutputShape is called once at
// construction time; Forward on every run.
type Op interface {
	Kind() string
	OutputShape(inputs []shape.Shape) (shape.Shape, error)
	Forward(ctx context.Context, inputs []*tensor.Tensor, mode Mode) (*tensor.Tensor, error)
}

// Param is a named learned weight.
type Param struct {
	Name  string
	Value *tensor.Tensor
}

// Parameterized is implemented by ops that own learned weights.
type Parameterized interface {
	Params() []*Param
}

// #endregion op

// #region node

// InputSpec declares a graph input.
type InputSpec struct {
	Name  string
	Shape shape.Shape
}

// Node is a named value in the graph: either an input or the result of an op.
type Node struct {
	Name   string
	Op     Op
	Inputs []*Node
	Shape  shape.Shape
}

// IsInput reports whether the node is fed from outside the graph.
func (n *Node) IsInput() bool {
	return n.Op == nil
}

// #endregion node
