package dataset

import "github.com/danielpatrickdp/memnet/go-solver/internal/tensor"

// #region instance
// Instance is one labeled question with its background sentences. Treat it
// as immutable once read.
type Instance struct {
	Index      int
	Text       string
	Background []string
	Label      bool
}
// #endregion instance

// #region indexed
// IndexedInputs is a batch of instances as word-index tensors.
// Question is (batch, max_sentence_length); Background is
// (batch, max_knowledge_length, max_sentence_length). Extra holds any
// classifier-specific inputs, keyed by graph input name.
type IndexedInputs struct {
	Question   *tensor.Tensor
	Background *tensor.Tensor
	Extra      map[string]*tensor.Tensor
}

// Len returns the batch size.
func (in IndexedInputs) Len() int {
	if in.Question == nil {
		return 0
	}
	return in.Question.Dim(0)
}
// #endregion indexed

// Reserved word indices.
const (
	PaddingIndex = 0
	UnknownIndex = 1
	UnknownToken = "@@UNKNOWN@@"
)
