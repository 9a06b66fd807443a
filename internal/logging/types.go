package logging

import "time"

// #region trace-entry
// TraceEntry records one attention-trace run.
type TraceEntry struct {
	RunID       string
	ModelID     string // "" when the model was never stored
	ModelPrefix string
	Epoch       int
	Path        string
	Instances   int
	Rows        int
	Error       string
	CreatedAt   time.Time
}
// #endregion trace-entry
