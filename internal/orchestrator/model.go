package orchestrator

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/memnet/go-solver/internal/config"
	"github.com/danielpatrickdp/memnet/go-solver/internal/dataset"
	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region model
// Model is a built memory network: the graph plus the names of the nodes
// callers need to feed and fetch.
type Model struct {
	cfg       *config.Config
	graph     *graph.Graph
	inputs    []graph.InputSpec
	extra     []graph.InputSpec
	attention []string
	output    string
}

// Config returns the configuration the model was built from.
func (m *Model) Config() *config.Config { return m.cfg }

// Graph returns the underlying graph.
func (m *Model) Graph() *graph.Graph { return m.graph }

// Inputs lists every graph input, classifier extras included.
func (m *Model) Inputs() []graph.InputSpec { return m.inputs }

// AdditionalInputs lists the inputs declared by the classifier.
func (m *Model) AdditionalInputs() []graph.InputSpec { return m.extra }

// AttentionNodes names the selector output of every hop, in hop order.
func (m *Model) AttentionNodes() []string { return m.attention }

// Output names the score node.
func (m *Model) Output() string { return m.output }

// Params returns every learned weight once.
func (m *Model) Params() []*graph.Param { return m.graph.Params() }
// #endregion model

// #region run
// DebugOutput holds the scores and each hop's attention, in hop order.
type DebugOutput struct {
	Scores    *tensor.Tensor
	Attention []*tensor.Tensor
}

func (m *Model) feeds(in dataset.IndexedInputs) (map[string]*tensor.Tensor, error) {
	if in.Question == nil || in.Background == nil {
		return nil, fmt.Errorf("indexed inputs need both question and background")
	}
	feeds := map[string]*tensor.Tensor{
		SentenceInput:   in.Question,
		BackgroundInput: in.Background,
	}
	for _, spec := range m.extra {
		t, ok := in.Extra[spec.Name]
		if !ok {
			return nil, fmt.Errorf("classifier input %q not provided", spec.Name)
		}
		feeds[spec.Name] = t
	}
	return feeds, nil
}

// Score runs the network in inference mode and returns (batch, num_classes).
func (m *Model) Score(ctx context.Context, in dataset.IndexedInputs) (*tensor.Tensor, error) {
	feeds, err := m.feeds(in)
	if err != nil {
		return nil, err
	}
	out, err := m.graph.Run(ctx, feeds, graph.ModeInfer, m.output)
	if err != nil {
		return nil, err
	}
	return out[m.output], nil
}

// Debug is Score that also returns every hop's attention weights.
func (m *Model) Debug(ctx context.Context, in dataset.IndexedInputs) (DebugOutput, error) {
	feeds, err := m.feeds(in)
	if err != nil {
		return DebugOutput{}, err
	}
	fetch := append([]string{m.output}, m.attention...)
	out, err := m.graph.Run(ctx, feeds, graph.ModeInfer, fetch...)
	if err != nil {
		return DebugOutput{}, err
	}
	res := DebugOutput{Scores: out[m.output]}
	for _, name := range m.attention {
		res.Attention = append(res.Attention, out[name])
	}
	return res, nil
}
// #endregion run
