// Package update implements the memory updaters run at the end of every hop.
package update

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/layers"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region shape
func inputShape(name string, dim int, in []shape.Shape) (shape.Shape, error) {
	if len(in) != 1 {
		return nil, shape.Errorf(name, "updater takes 1 input, got %d", len(in))
	}
	if in[0].Rank() != 2 || in[0].Last() != 2*dim {
		return nil, shape.Mismatch(name, "updater input must be [memory; attended]",
			shape.Of(shape.Batch, 2*dim), in[0])
	}
	return shape.Of(in[0][0], dim), nil
}
// #endregion shape

// #region dense-concat
// DenseConcat is tanh([memory; attended]·W + b).
type DenseConcat struct {
	name  string
	dense *layers.Dense
}

// NewDenseConcat creates a dense updater with Glorot-initialised weights.
func NewDenseConcat(opts Options) (*DenseConcat, error) {
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("updater %s: dim must be positive, got %d", opts.Name, opts.Dim)
	}
	dense, err := layers.NewDense(opts.Name+".dense", 2*opts.Dim, opts.Dim, layers.ActivationTanh, layers.NewRand(opts.Seed))
	if err != nil {
		return nil, err
	}
	return &DenseConcat{name: opts.Name, dense: dense}, nil
}

func (d *DenseConcat) Dim() int     { return d.dense.OutputDim() }
func (d *DenseConcat) Kind() string { return string(KindDenseConcat) }

func (d *DenseConcat) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return inputShape(d.name, d.Dim(), in)
}

func (d *DenseConcat) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	return d.dense.Apply(in[0])
}

// Params implements graph.Parameterized.
func (d *DenseConcat) Params() []*graph.Param {
	return d.dense.Params()
}
// #endregion dense-concat

// #region sum
// Sum adds the attended knowledge to the memory, as in end-to-end memory
// networks. It has no weights.
type Sum struct {
	name string
	dim  int
}

func NewSum(opts Options) (*Sum, error) {
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("updater %s: dim must be positive, got %d", opts.Name, opts.Dim)
	}
	return &Sum{name: opts.Name, dim: opts.Dim}, nil
}

func (s *Sum) Dim() int     { return s.dim }
func (s *Sum) Kind() string { return string(KindSum) }

func (s *Sum) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return inputShape(s.name, s.dim, in)
}

func (s *Sum) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	memory, err := tensor.SliceLast(in[0], 0, s.dim)
	if err != nil {
		return nil, err
	}
	attended, err := tensor.SliceLast(in[0], s.dim, 2*s.dim)
	if err != nil {
		return nil, err
	}
	return tensor.Add(memory, attended)
}
// #endregion sum
