package entailment

import (
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/layers"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region mlp
// hiddenStack appends opts.HiddenLayers dense layers to x.
func hiddenStack(g *graph.Graph, x *graph.Node, opts ModelOptions, rng *rand.Rand) (*graph.Node, error) {
	for i := 0; i < opts.HiddenLayers; i++ {
		name := fmt.Sprintf("entailment_hidden_%d", i)
		dense, err := layers.NewDense(name, x.Shape.Last(), opts.HiddenWidth, opts.Activation, rng)
		if err != nil {
			return nil, err
		}
		if x, err = g.Apply(name, dense, x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func checkHidden(kind ModelKind, opts ModelOptions) error {
	if opts.HiddenLayers < 0 {
		return fmt.Errorf("%s: hidden layer count must not be negative, got %d", kind, opts.HiddenLayers)
	}
	if opts.HiddenLayers > 0 && opts.HiddenWidth <= 0 {
		return fmt.Errorf("%s: hidden layer width must be positive, got %d", kind, opts.HiddenWidth)
	}
	return nil
}
// #endregion mlp

// #region true-false
// TrueFalseMLP scores the combined features with an MLP ending in a
// two-unit softmax: index 0 is false, index 1 is true.
type TrueFalseMLP struct {
	opts ModelOptions
}

func NewTrueFalseMLP(opts ModelOptions) (*TrueFalseMLP, error) {
	if err := checkHidden(ModelTrueFalseMLP, opts); err != nil {
		return nil, err
	}
	return &TrueFalseMLP{opts: opts}, nil
}

func (m *TrueFalseMLP) Kind() string { return string(ModelTrueFalseMLP) }

// Classify implements Classifier. It declares no extra inputs.
func (m *TrueFalseMLP) Classify(g *graph.Graph, combined *graph.Node) (Output, error) {
	rng := layers.NewRand(m.opts.Seed)
	x, err := hiddenStack(g, combined, m.opts, rng)
	if err != nil {
		return Output{}, err
	}
	scorer, err := layers.NewDense("entailment_scorer", x.Shape.Last(), 2, layers.ActivationSoftmax, rng)
	if err != nil {
		return Output{}, err
	}
	score, err := g.Apply(ScoreNode, scorer, x)
	if err != nil {
		return Output{}, err
	}
	return Output{Score: score}, nil
}
// #endregion true-false

// #region question-answer
// QuestionAnswerMLP projects the combined features into answer space and
// scores each answer option by dot product, softmaxed over the options. The
// options arrive through an extra graph input.
type QuestionAnswerMLP struct {
	opts ModelOptions
}

func NewQuestionAnswerMLP(opts ModelOptions) (*QuestionAnswerMLP, error) {
	if err := checkHidden(ModelQuestionAnswerMLP, opts); err != nil {
		return nil, err
	}
	if opts.AnswerDim <= 0 || opts.NumOptions < 2 {
		return nil, fmt.Errorf("%s: need answer_dim > 0 and num_options >= 2, got %d and %d",
			ModelQuestionAnswerMLP, opts.AnswerDim, opts.NumOptions)
	}
	return &QuestionAnswerMLP{opts: opts}, nil
}

func (m *QuestionAnswerMLP) Kind() string { return string(ModelQuestionAnswerMLP) }

// AnswerOptions is the extra input this classifier declares.
func (m *QuestionAnswerMLP) AnswerOptions() graph.InputSpec {
	return graph.InputSpec{
		Name:  AnswerOptionsNode,
		Shape: shape.Of(shape.Batch, m.opts.NumOptions, m.opts.AnswerDim),
	}
}

// Classify implements Classifier.
func (m *QuestionAnswerMLP) Classify(g *graph.Graph, combined *graph.Node) (Output, error) {
	rng := layers.NewRand(m.opts.Seed)
	x, err := hiddenStack(g, combined, m.opts, rng)
	if err != nil {
		return Output{}, err
	}
	proj, err := layers.NewDense("entailment_projection", x.Shape.Last(), m.opts.AnswerDim, layers.ActivationTanh, rng)
	if err != nil {
		return Output{}, err
	}
	projected, err := g.Apply("entailment_projection", proj, x)
	if err != nil {
		return Output{}, err
	}
	spec := m.AnswerOptions()
	options, err := g.Input(spec)
	if err != nil {
		return Output{}, err
	}
	match := &graph.Merge{Label: "answer_match", Fn: matchAnswers, Shape: answerMatchShape}
	score, err := g.Apply(ScoreNode, match, projected, options)
	if err != nil {
		return Output{}, err
	}
	return Output{AdditionalInputs: []graph.InputSpec{spec}, Score: score}, nil
}

func answerMatchShape(in []shape.Shape) (shape.Shape, error) {
	const op = "answer_match"
	if len(in) != 2 {
		return nil, shape.Errorf(op, "expects projection and options, got %d inputs", len(in))
	}
	proj, opts := in[0], in[1]
	if proj.Rank() != 2 || opts.Rank() != 3 || proj.Last() != opts.Last() {
		return nil, shape.Mismatch(op, "options must be (batch, options, answer_dim)",
			shape.Of(shape.Batch, shape.Batch, proj.Last()), opts)
	}
	return shape.Of(proj[0], opts[1]), nil
}

func matchAnswers(in []*tensor.Tensor) (*tensor.Tensor, error) {
	proj, opts := in[0], in[1]
	batch, n, dim := opts.Dim(0), opts.Dim(1), opts.Dim(2)
	if proj.Dim(0) != batch {
		return nil, shape.Mismatch("answer_match", "batch sizes differ", shape.Of(batch, dim), proj.Shape())
	}
	scores := tensor.Zeros(batch, n)
	od := opts.Data()
	for b := 0; b < batch; b++ {
		p := proj.Row(b)
		for i := 0; i < n; i++ {
			off := (b*n + i) * dim
			scores.Set(tensor.Dot(p, od[off:off+dim]), b, i)
		}
	}
	return tensor.Softmax(scores), nil
}
// #endregion question-answer
