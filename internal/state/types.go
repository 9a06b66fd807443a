package state

import "time"

// #region param-record
// ParamRecord is one named weight tensor.
type ParamRecord struct {
	Name  string
	Shape []int
	Data  []float64
}
// #endregion param-record

// #region model-record
// ModelRecord is one stored model version: the configuration it was built
// from, the vocabulary its indexer was fitted on, and its weights.
type ModelRecord struct {
	ModelID    string
	ParentID   string // model this one was derived from, "" for a fresh build
	ConfigJSON string
	Vocabulary []string
	Params     []ParamRecord
	ParamCount int // filled by ListModels, which does not load Params
	CreatedAt  time.Time
}
// #endregion model-record
