// Package selector implements the knowledge selectors that turn the current
// memory and the background encodings into an attention distribution.
package selector

import (
	"context"
	"fmt"
	"math"

	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/layers"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region base

type base struct {
	name string
	dim  int
	hard bool
}

func (b base) Dim() int   { return b.dim }
func (b base) Hard() bool { return b.hard }

func (b base) outputShape(in []shape.Shape) (shape.Shape, error) {
	if len(in) != 1 {
		return nil, shape.Errorf(b.name, "selector takes 1 input, got %d", len(in))
	}
	s := in[0]
	if s.Rank() != 3 || s.Last() != b.dim || s[1] < 2 {
		return nil, shape.Mismatch(b.name, "selector input must be (batch, K+1, dim) with K >= 1",
			shape.Of(shape.Batch, shape.Batch, b.dim), s)
	}
	return shape.Of(s[0], s[1]-1), nil
}

// normalize turns raw scores into the configured distribution.
func (b base) normalize(scores *tensor.Tensor) *tensor.Tensor {
	if b.hard {
		return tensor.OneHotArgmax(scores)
	}
	return tensor.Softmax(scores)
}

// #endregion base

// #region dot-product

// DotProduct scores each background slice by its dot product with the
// memory. It has no learned parameters.
type DotProduct struct {
	base
}

// NewDotProduct creates a dot-product selector.
func NewDotProduct(opts Options) *DotProduct {
	return &DotProduct{base: base{name: opts.Name, dim: opts.Dim, hard: opts.Hard}}
}

// Kind implements graph.Op.
func (d *DotProduct) Kind() string { return string(KindDotProduct) }

// OutputShape implements graph.Op.
func (d *DotProduct) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return d.outputShape(in)
}

// Forward implements graph.Op.
func (d *DotProduct) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	x := in[0]
	batch, slices := x.Dim(0), x.Dim(1)
	k := slices - 1
	scores := tensor.Zeros(batch, k)
	data := x.Data()
	for b := 0; b < batch; b++ {
		row := data[b*slices*d.dim : (b+1)*slices*d.dim]
		memory := row[:d.dim]
		for i := 0; i < k; i++ {
			bg := row[(i+1)*d.dim : (i+2)*d.dim]
			scores.Set(tensor.Dot(memory, bg), b, i)
		}
	}
	return d.normalize(scores), nil
}

// #endregion dot-product

// #region parameterized

// Parameterized scores each background slice with a learned projection of
// the memory and the slice: score_k = v · tanh([memory; bg_k]·W + b).
type Parameterized struct {
	base
	hidden *layers.Dense
	vector *graph.Param
}

// NewParameterized creates a selector with Glorot-initialised weights.
func NewParameterized(opts Options) (*Parameterized, error) {
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("selector %s: dim must be positive, got %d", opts.Name, opts.Dim)
	}
	rng := layers.NewRand(opts.Seed)
	hidden, err := layers.NewDense(opts.Name+".dense", 2*opts.Dim, opts.Dim, layers.ActivationTanh, rng)
	if err != nil {
		return nil, err
	}
	v := tensor.Zeros(opts.Dim)
	limit := math.Sqrt(3 / float64(opts.Dim))
	for i := range v.Data() {
		v.Data()[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Parameterized{
		base:   base{name: opts.Name, dim: opts.Dim, hard: opts.Hard},
		hidden: hidden,
		vector: &graph.Param{Name: opts.Name + ".v", Value: v},
	}, nil
}

// Kind implements graph.Op.
func (p *Parameterized) Kind() string { return string(KindParameterized) }

// OutputShape implements graph.Op.
func (p *Parameterized) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return p.outputShape(in)
}

// Forward implements graph.Op.
func (p *Parameterized) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	x := in[0]
	batch, slices := x.Dim(0), x.Dim(1)
	k := slices - 1
	dim := p.dim

	// pairs holds [memory; bg_k] for every (batch, k)
	pairs := tensor.Zeros(batch, k, 2*dim)
	data := x.Data()
	dst := pairs.Data()
	for b := 0; b < batch; b++ {
		row := data[b*slices*dim : (b+1)*slices*dim]
		for i := 0; i < k; i++ {
			off := (b*k + i) * 2 * dim
			copy(dst[off:off+dim], row[:dim])
			copy(dst[off+dim:off+2*dim], row[(i+1)*dim:(i+2)*dim])
		}
	}
	hidden, err := p.hidden.Apply(pairs)
	if err != nil {
		return nil, err
	}
	scores := tensor.Zeros(batch, k)
	hd := hidden.Data()
	v := p.vector.Value.Data()
	for j := 0; j < batch*k; j++ {
		scores.Data()[j] = tensor.Dot(hd[j*dim:(j+1)*dim], v)
	}
	return p.normalize(scores), nil
}

// Params implements graph.Parameterized.
func (p *Parameterized) Params() []*graph.Param {
	return append(p.hidden.Params(), p.vector)
}

// #endregion parameterized
