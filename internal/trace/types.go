package trace

import (
	"context"

	"github.com/danielpatrickdp/memnet/go-solver/internal/dataset"
	"github.com/danielpatrickdp/memnet/go-solver/internal/orchestrator"
)

// #region record
// Row is one background sentence with its weight at every hop.
type Row struct {
	Weights    []float64
	Background string
}

// Record is the trace of one instance.
type Record struct {
	Sentence string
	Label    bool
	Score    float64 // p(true|x), the second score column
	Rows     []Row
}
// #endregion record

// #region debugger
// Debugger runs a model and surfaces each hop's attention.
// *orchestrator.Model implements it.
type Debugger interface {
	Debug(ctx context.Context, in dataset.IndexedInputs) (orchestrator.DebugOutput, error)
}
// #endregion debugger
