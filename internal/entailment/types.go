package entailment

import (
	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/layers"
)

// #region kinds
// CombinerKind identifies an entailment input combiner in configuration.
type CombinerKind string

const (
	CombinerHeuristicMatching CombinerKind = "heuristic_matching"
	CombinerMemoryOnly        CombinerKind = "memory_only"
)

// ModelKind identifies an entailment classifier in configuration.
type ModelKind string

const (
	ModelTrueFalseMLP      ModelKind = "true_false_mlp"
	ModelQuestionAnswerMLP ModelKind = "question_answer_mlp"
)
// #endregion kinds

// #region combiner
// Combiner turns the concatenated [question; memory; attended] vector of
// shape (batch, 3*dim) into the classifier's feature vector.
type Combiner interface {
	graph.Op
	OutputDim() int
}
// #endregion combiner

// #region classifier
// ModelOptions holds the classifier sub-options.
type ModelOptions struct {
	HiddenLayers int
	HiddenWidth  int
	Activation   layers.Activation
	// AnswerDim and NumOptions are only read by question_answer_mlp.
	AnswerDim  int
	NumOptions int
	Seed       uint64
}

// Output is what a classifier adds to the graph. AdditionalInputs lists any
// graph inputs the classifier declared beyond the combined features; the
// caller must feed them on every run.
type Output struct {
	AdditionalInputs []graph.InputSpec
	Score            *graph.Node
}

// Classifier appends the scoring head to g, consuming combined.
type Classifier interface {
	Kind() string
	Classify(g *graph.Graph, combined *graph.Node) (Output, error)
}
// #endregion classifier

// Node names used by the classifiers.
const (
	ScoreNode         = "entailment_score"
	AnswerOptionsNode = "answer_options"
)
