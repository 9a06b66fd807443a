// Package encoder turns embedded word sequences into sentence vectors.
package encoder

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/memnet/go-solver/internal/dataset"
	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region kinds

// Kind identifies a sentence encoder in configuration.
type Kind string

const (
	KindBOW    Kind = "bow"
	KindRemote Kind = "remote"
)

// #endregion kinds

// #region interface

// Encoder maps (batch, words, dim) to (batch, OutputDim()). An optional
// second input holds the (batch, words) word indices the vectors were
// embedded from, so padding can be told apart from real words.
type Encoder interface {
	graph.Op
	OutputDim() int
}

// SentenceClient is the transport used by the remote encoder.
type SentenceClient interface {
	EncodeSentences(ctx context.Context, sentences [][][]float64) ([][]float64, error)
}

// #endregion interface

// #region bow

// BOW averages the non-padding word vectors of each sentence. With word
// indices as a second input, padding is index 0; without them, all-zero
// vectors count as padding.
type BOW struct {
	dim int
}

// NewBOW creates a bag-of-words encoder for dim-wide word vectors.
func NewBOW(dim int) *BOW {
	return &BOW{dim: dim}
}

// OutputDim implements Encoder.
func (b *BOW) OutputDim() int { return b.dim }

// Kind implements graph.Op.
func (b *BOW) Kind() string { return string(KindBOW) }

// OutputShape implements graph.Op.
func (b *BOW) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return sentenceShape("bow", in, b.dim, b.dim)
}

// Forward implements graph.Op.
func (b *BOW) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	x := in[0]
	batch, words := x.Dim(0), x.Dim(1)
	var indices []float64
	if len(in) == 2 {
		indices = in[1].Data()
	}
	out := tensor.Zeros(batch, b.dim)
	src := x.Data()
	dst := out.Data()
	for s := 0; s < batch; s++ {
		count := 0
		row := dst[s*b.dim : (s+1)*b.dim]
		for w := 0; w < words; w++ {
			vec := src[(s*words+w)*b.dim : (s*words+w+1)*b.dim]
			if indices != nil {
				if int(indices[s*words+w]) == dataset.PaddingIndex {
					continue
				}
			} else if isZero(vec) {
				continue
			}
			count++
			floats.Add(row, vec)
		}
		if count > 1 {
			floats.Scale(1/float64(count), row)
		}
	}
	return out, nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// #endregion bow

// #region remote

// Remote delegates sentence encoding to an external service.
type Remote struct {
	client SentenceClient
	inDim  int
	outDim int
}

// NewRemote creates an encoder that sends inDim-wide word vectors to client
// and expects outDim-wide encodings back.
func NewRemote(client SentenceClient, inDim, outDim int) *Remote {
	return &Remote{client: client, inDim: inDim, outDim: outDim}
}

// OutputDim implements Encoder.
func (r *Remote) OutputDim() int { return r.outDim }

// Kind implements graph.Op.
func (r *Remote) Kind() string { return string(KindRemote) }

// OutputShape implements graph.Op.
func (r *Remote) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return sentenceShape("remote", in, r.inDim, r.outDim)
}

// Forward implements graph.Op.
func (r *Remote) Forward(ctx context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	x := in[0]
	batch, words := x.Dim(0), x.Dim(1)
	sentences := make([][][]float64, batch)
	for s := range sentences {
		sentences[s] = make([][]float64, words)
		for w := range sentences[s] {
			off := (s*words + w) * r.inDim
			sentences[s][w] = x.Data()[off : off+r.inDim]
		}
	}
	enc, err := r.client.EncodeSentences(ctx, sentences)
	if err != nil {
		return nil, err
	}
	out, err := tensor.FromRows(enc)
	if err != nil {
		return nil, fmt.Errorf("remote encodings: %w", err)
	}
	if out.Dim(0) != batch || (batch > 0 && out.Dim(1) != r.outDim) {
		return nil, shape.Mismatch("remote", "encoder service returned wrong shape", shape.Of(batch, r.outDim), out.Shape())
	}
	return out, nil
}

// #endregion remote

// #region time-distributed

// TimeDistributed applies one encoder to every slice along axis 1, so
// (batch, knowledge, words, dim) becomes (batch, knowledge, out). The inner
// encoder, and with it its weights, is shared across slices.
type TimeDistributed struct {
	inner Encoder
}

// NewTimeDistributed wraps inner.
func NewTimeDistributed(inner Encoder) *TimeDistributed {
	return &TimeDistributed{inner: inner}
}

// Kind implements graph.Op.
func (t *TimeDistributed) Kind() string { return "time_distributed(" + t.inner.Kind() + ")" }

// OutputShape implements graph.Op.
func (t *TimeDistributed) OutputShape(in []shape.Shape) (shape.Shape, error) {
	if len(in) < 1 || len(in) > 2 || in[0].Rank() < 3 {
		return nil, shape.Errorf(t.Kind(), "expects an input of rank >= 3 and optional word indices")
	}
	s := in[0]
	inner := []shape.Shape{append(shape.Of(shape.Batch), s[2:]...)}
	if len(in) == 2 {
		if in[1].Rank() != 3 || !in[1].Compatible(s[:3]) {
			return nil, shape.Mismatch(t.Kind(), "word indices must match the embedded input", s[:3], in[1])
		}
		inner = append(inner, append(shape.Of(shape.Batch), in[1][2:]...))
	}
	enc, err := t.inner.OutputShape(inner)
	if err != nil {
		return nil, err
	}
	out := shape.Of(s[0], s[1])
	return append(out, enc[1:]...), nil
}

// Forward implements graph.Op.
func (t *TimeDistributed) Forward(ctx context.Context, in []*tensor.Tensor, mode graph.Mode) (*tensor.Tensor, error) {
	s := in[0].Shape()
	folded := make([]*tensor.Tensor, len(in))
	for i, x := range in {
		xs := x.Shape()
		f, err := x.Reshape(append(shape.Of(xs[0]*xs[1]), xs[2:]...)...)
		if err != nil {
			return nil, err
		}
		folded[i] = f
	}
	enc, err := t.inner.Forward(ctx, folded, mode)
	if err != nil {
		return nil, err
	}
	es := enc.Shape()
	return enc.Reshape(append(shape.Of(s[0], s[1]), es[1:]...)...)
}

// Params forwards the inner encoder's weights, if any.
func (t *TimeDistributed) Params() []*graph.Param {
	if p, ok := t.inner.(graph.Parameterized); ok {
		return p.Params()
	}
	return nil
}

// #endregion time-distributed

// #region helpers

func sentenceShape(op string, in []shape.Shape, inDim, outDim int) (shape.Shape, error) {
	if len(in) != 1 && len(in) != 2 {
		return nil, shape.Errorf(op, "encoder takes vectors and optional word indices, got %d inputs", len(in))
	}
	want := shape.Of(shape.Batch, shape.Batch, inDim)
	if in[0].Rank() != 3 || in[0].Last() != inDim {
		return nil, shape.Mismatch(op, "encoder input must be (batch, words, dim)", want, in[0])
	}
	if len(in) == 2 && !in[1].Compatible(in[0][:2]) {
		return nil, shape.Mismatch(op, "word indices must be (batch, words)", in[0][:2], in[1])
	}
	return shape.Of(in[0][0], outDim), nil
}

// #endregion helpers
