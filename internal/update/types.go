package update

import "github.com/danielpatrickdp/memnet/go-solver/internal/graph"

// #region kind
// Kind identifies a memory updater in configuration.
type Kind string

const (
	KindDenseConcat Kind = "dense_concat"
	KindSum         Kind = "sum"
)
// #endregion kind

// #region options
// Options configures an updater instance.
type Options struct {
	Name string // weight prefix, e.g. "memory_updater_0"
	Dim  int
	Seed uint64
}
// #endregion options

// #region interface
// Updater maps [memory; attended] of shape (batch, 2*Dim) to the next memory
// of shape (batch, Dim). Instances hold no per-batch state, so one value can
// serve a single hop or every hop.
type Updater interface {
	graph.Op
	Dim() int
}
// #endregion interface
