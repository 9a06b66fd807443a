// Package layers implements the learned building blocks shared by every
// component family: dense projections, word embeddings and dropout. Each
// layer is a graph.Op; reusing one value in several nodes shares its weights.
package layers

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region init

// NewRand returns a deterministic generator for weight initialisation.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// GlorotUniform fills a (fanIn, fanOut) matrix from U(-l, l), l = sqrt(6/(fanIn+fanOut)).
func GlorotUniform(rng *rand.Rand, fanIn, fanOut int) *tensor.Tensor {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	w := tensor.Zeros(fanIn, fanOut)
	data := w.Data()
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return w
}

// #endregion init

// #region dense

// Dense is y = activation(x·W + b) over the trailing axis.
type Dense struct {
	name       string
	in, out    int
	activation Activation
	weights    *graph.Param
	bias       *graph.Param
}

// NewDense creates a dense layer with Glorot-initialised weights.
func NewDense(name string, in, out int, activation Activation, rng *rand.Rand) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("dense %s: dimensions must be positive, got %d -> %d", name, in, out)
	}
	return &Dense{
		name:       name,
		in:         in,
		out:        out,
		activation: activation,
		weights:    &graph.Param{Name: name + ".W", Value: GlorotUniform(rng, in, out)},
		bias:       &graph.Param{Name: name + ".b", Value: tensor.Zeros(out)},
	}, nil
}

// OutputDim returns the trailing output dimension.
func (d *Dense) OutputDim() int { return d.out }

// Kind implements graph.Op.
func (d *Dense) Kind() string { return "dense" }

// OutputShape implements graph.Op.
func (d *Dense) OutputShape(in []shape.Shape) (shape.Shape, error) {
	if len(in) != 1 {
		return nil, shape.Errorf(d.name, "dense takes 1 input, got %d", len(in))
	}
	if in[0].Rank() < 2 || in[0].Last() != d.in {
		return nil, shape.Mismatch(d.name, "dense input", shape.Of(shape.Batch, d.in), in[0])
	}
	return in[0].WithLast(d.out), nil
}

// Forward implements graph.Op.
func (d *Dense) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	return d.Apply(in[0])
}

// Apply runs the layer on a tensor directly, for ops that embed a Dense.
func (d *Dense) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := tensor.MatMul(x, d.weights.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.name, err)
	}
	if _, err := tensor.AddBias(y, d.bias.Value); err != nil {
		return nil, fmt.Errorf("%s: %w", d.name, err)
	}
	return d.activation.Apply(y), nil
}

// Params implements graph.Parameterized.
func (d *Dense) Params() []*graph.Param {
	return []*graph.Param{d.weights, d.bias}
}

// #endregion dense

// #region embedding

// Embedding maps word indices to vectors. Index 0 is padding and always
// maps to the zero vector.
type Embedding struct {
	name    string
	vocab   int
	dim     int
	weights *graph.Param
}

// NewEmbedding creates a (vocab, dim) embedding table.
func NewEmbedding(name string, vocab, dim int, rng *rand.Rand) (*Embedding, error) {
	if vocab <= 1 || dim <= 0 {
		return nil, fmt.Errorf("embedding %s: need vocab > 1 and dim > 0, got %d x %d", name, vocab, dim)
	}
	w := GlorotUniform(rng, vocab, dim)
	for j := 0; j < dim; j++ {
		w.Set(0, 0, j)
	}
	return &Embedding{
		name:    name,
		vocab:   vocab,
		dim:     dim,
		weights: &graph.Param{Name: name + ".E", Value: w},
	}, nil
}

// Dim returns the embedding width.
func (e *Embedding) Dim() int { return e.dim }

// Kind implements graph.Op.
func (e *Embedding) Kind() string { return "embedding" }

// OutputShape implements graph.Op.
func (e *Embedding) OutputShape(in []shape.Shape) (shape.Shape, error) {
	if len(in) != 1 || in[0].Rank() < 2 {
		return nil, shape.Errorf(e.name, "embedding takes one index tensor of rank >= 2")
	}
	out := in[0].Clone()
	return append(out, e.dim), nil
}

// Forward implements graph.Op.
func (e *Embedding) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	idx := in[0]
	out := tensor.Zeros(append(idx.Shape(), e.dim)...)
	table := e.weights.Value.Data()
	dst := out.Data()
	for i, v := range idx.Data() {
		word := int(v)
		if word < 0 || word >= e.vocab {
			return nil, fmt.Errorf("%s: word index %d outside vocabulary of %d", e.name, word, e.vocab)
		}
		if word == 0 {
			continue
		}
		copy(dst[i*e.dim:(i+1)*e.dim], table[word*e.dim:(word+1)*e.dim])
	}
	return out, nil
}

// Params implements graph.Parameterized.
func (e *Embedding) Params() []*graph.Param {
	return []*graph.Param{e.weights}
}

// #endregion embedding

// #region dropout

// Dropout zeroes a fraction of activations in ModeTrain and scales the rest
// by 1/(1-rate). It is the identity in ModeInfer.
type Dropout struct {
	rate float64
	rng  *rand.Rand
}

// NewDropout creates a dropout op. rate must lie in [0, 1).
func NewDropout(rate float64, rng *rand.Rand) (*Dropout, error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("dropout rate must be in [0, 1), got %g", rate)
	}
	return &Dropout{rate: rate, rng: rng}, nil
}

// Kind implements graph.Op.
func (d *Dropout) Kind() string { return "dropout" }

// OutputShape implements graph.Op.
func (d *Dropout) OutputShape(in []shape.Shape) (shape.Shape, error) {
	if len(in) != 1 {
		return nil, shape.Errorf("dropout", "dropout takes 1 input, got %d", len(in))
	}
	return in[0].Clone(), nil
}

// Forward implements graph.Op.
func (d *Dropout) Forward(_ context.Context, in []*tensor.Tensor, mode graph.Mode) (*tensor.Tensor, error) {
	if mode != graph.ModeTrain || d.rate == 0 {
		return in[0], nil
	}
	keep := 1 - d.rate
	return tensor.Map(in[0], func(v float64) float64 {
		if d.rng.Float64() < d.rate {
			return 0
		}
		return v / keep
	}), nil
}

// #endregion dropout
