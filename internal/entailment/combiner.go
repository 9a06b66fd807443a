// Package entailment holds the final stage of the network: combiners that
// build a feature vector from question, memory and attended knowledge, and
// classifiers that score it.
package entailment

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region split
// split cuts a (batch, 3*dim) tensor into question, memory and attended.
func split(x *tensor.Tensor, dim int) (q, m, a *tensor.Tensor, err error) {
	if q, err = tensor.SliceLast(x, 0, dim); err != nil {
		return
	}
	if m, err = tensor.SliceLast(x, dim, 2*dim); err != nil {
		return
	}
	a, err = tensor.SliceLast(x, 2*dim, 3*dim)
	return
}

func combinedShape(op string, dim, outDim int, in []shape.Shape) (shape.Shape, error) {
	if len(in) != 1 {
		return nil, shape.Errorf(op, "combiner takes 1 input, got %d", len(in))
	}
	if in[0].Rank() != 2 || in[0].Last() != 3*dim {
		return nil, shape.Mismatch(op, "combiner input must be [question; memory; attended]",
			shape.Of(shape.Batch, 3*dim), in[0])
	}
	return shape.Of(in[0][0], outDim), nil
}
// #endregion split

// #region heuristic-matching
// HeuristicMatching emits [q; m; q-m; q*m], the matching features used for
// sentence-pair inference.
type HeuristicMatching struct {
	dim int
}

func NewHeuristicMatching(dim int) (*HeuristicMatching, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("heuristic_matching: dim must be positive, got %d", dim)
	}
	return &HeuristicMatching{dim: dim}, nil
}

func (h *HeuristicMatching) OutputDim() int { return 4 * h.dim }
func (h *HeuristicMatching) Kind() string   { return string(CombinerHeuristicMatching) }

func (h *HeuristicMatching) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return combinedShape(h.Kind(), h.dim, h.OutputDim(), in)
}

func (h *HeuristicMatching) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	q, m, _, err := split(in[0], h.dim)
	if err != nil {
		return nil, err
	}
	diff, err := tensor.Sub(q, m)
	if err != nil {
		return nil, err
	}
	prod, err := tensor.Mul(q, m)
	if err != nil {
		return nil, err
	}
	return tensor.Concat(-1, q, m, diff, prod)
}
// #endregion heuristic-matching

// #region memory-only
// MemoryOnly passes the final memory through and ignores the rest.
type MemoryOnly struct {
	dim int
}

func NewMemoryOnly(dim int) (*MemoryOnly, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("memory_only: dim must be positive, got %d", dim)
	}
	return &MemoryOnly{dim: dim}, nil
}

func (m *MemoryOnly) OutputDim() int { return m.dim }
func (m *MemoryOnly) Kind() string   { return string(CombinerMemoryOnly) }

func (m *MemoryOnly) OutputShape(in []shape.Shape) (shape.Shape, error) {
	return combinedShape(m.Kind(), m.dim, m.dim, in)
}

func (m *MemoryOnly) Forward(_ context.Context, in []*tensor.Tensor, _ graph.Mode) (*tensor.Tensor, error) {
	_, memory, _, err := split(in[0], m.dim)
	return memory, err
}
// #endregion memory-only
