package selector

import "github.com/danielpatrickdp/memnet/go-solver/internal/graph"

// #region kind

// Kind identifies a knowledge selector in configuration.
type Kind string

const (
	KindDotProduct    Kind = "dot_product"
	KindParameterized Kind = "parameterized"
)

// #endregion kind

// #region options

// Options configures a selector instance.
type Options struct {
	// Name prefixes the selector's weights, e.g. "knowledge_selector_0".
	Name string
	// Dim is the encoding width of memory and background slices.
	Dim int
	// Hard replaces the softmax with a one-hot arg-max of the same shape.
	Hard bool
	// Seed initialises learned weights.
	Seed uint64
}

// #endregion options

// #region interface

// Selector computes attention over background knowledge.
//
// Input is the merged tensor (batch, K+1, Dim) whose slice 0 along axis 1 is
// the current memory and slices 1..K are the background encodings. Output is
// (batch, K): one weight per background slice. Soft selectors produce rows
// that sum to 1; hard selectors produce one-hot rows.
type Selector interface {
	graph.Op
	Dim() int
	Hard() bool
}

// #endregion interface
