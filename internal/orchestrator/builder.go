// Package orchestrator assembles the memory network: it resolves components
// through the registry, owns the per-hop component cache, and wires the
// encode, attend, update and classify stages into one graph.
package orchestrator

import (
	"fmt"
	"log"

	"github.com/danielpatrickdp/memnet/go-solver/internal/config"
	"github.com/danielpatrickdp/memnet/go-solver/internal/encoder"
	"github.com/danielpatrickdp/memnet/go-solver/internal/entailment"
	"github.com/danielpatrickdp/memnet/go-solver/internal/graph"
	"github.com/danielpatrickdp/memnet/go-solver/internal/layers"
	"github.com/danielpatrickdp/memnet/go-solver/internal/selector"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
	"github.com/danielpatrickdp/memnet/go-solver/internal/update"
)

// #region node-names
const (
	SentenceInput   = "sentence_input"
	BackgroundInput = "background_input"

	nodeSentenceEmbedding   = "sentence_embedding"
	nodeBackgroundEmbedding = "background_embedding"
	nodeEncodedQuestion     = "encoded_question"
	nodeEncodedKnowledge    = "encoded_knowledge"
	nodeEntailmentInputs    = "concat_entailment_inputs"
	nodeEntailmentCombiner  = "entailment_combiner"

	// knowledgeAxis is the background axis enumerating sentences.
	knowledgeAxis = 1
)

func selectorName(hop int) string { return fmt.Sprintf("knowledge_selector_%d", hop) }
func updaterName(hop int) string  { return fmt.Sprintf("memory_updater_%d", hop) }
// #endregion node-names

// #region builder
// Builder turns a validated configuration into a Model. It owns the layer
// cache: the selector and updater for a hop are created on first request
// and returned unchanged afterwards.
type Builder struct {
	cfg    *config.Config
	reg    *Registry
	calc   shape.Calculator
	client encoder.SentenceClient

	embedding  *layers.Embedding
	encoder    encoder.Encoder
	combiner   entailment.Combiner
	classifier entailment.Classifier

	selectors map[int]selector.Selector
	updaters  map[int]update.Updater
}

// Option configures a Builder.
type Option func(*Builder)

// WithEncoderClient supplies the transport for the remote encoder.
func WithEncoderClient(c encoder.SentenceClient) Option {
	return func(b *Builder) { b.client = c }
}

// NewBuilder validates cfg against reg and constructs the hop-independent
// components. Unknown names, out-of-range values and dimension mismatches
// are reported here, before any graph exists.
func NewBuilder(cfg *config.Config, reg *Registry, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := reg.Validate(cfg); err != nil {
		return nil, err
	}
	b := &Builder{
		cfg:       cfg,
		reg:       reg,
		calc:      shape.NewCalculator(knowledgeAxis),
		selectors: make(map[int]selector.Selector),
		updaters:  make(map[int]update.Updater),
	}
	for _, opt := range opts {
		opt(b)
	}

	var err error
	b.embedding, err = layers.NewEmbedding("word_embedding", cfg.VocabSize, cfg.EmbeddingDim, layers.NewRand(b.seed(1)))
	if err != nil {
		return nil, err
	}

	encFactory, _ := lookup(reg.encoders, "encoder", cfg.Encoder.Kind)
	if b.encoder, err = encFactory(cfg, b.client); err != nil {
		return nil, fmt.Errorf("encoder %s: %w", cfg.Encoder.Kind, err)
	}
	if b.encoder.OutputDim() != cfg.EmbeddingDim {
		return nil, config.DimensionMismatch("encoder", config.NoHop, cfg.EmbeddingDim, b.encoder.OutputDim())
	}

	combFactory, _ := lookup(reg.combiners, "entailment_input_combiner", cfg.EntailmentInputCombiner)
	if b.combiner, err = combFactory(cfg.EmbeddingDim); err != nil {
		return nil, fmt.Errorf("entailment_input_combiner %s: %w", cfg.EntailmentInputCombiner, err)
	}

	modelFactory, _ := lookup(reg.models, "entailment_model", cfg.EntailmentModel)
	b.classifier, err = modelFactory(entailment.ModelOptions{
		HiddenLayers: cfg.Entailment.NumHiddenLayers,
		HiddenWidth:  cfg.Entailment.HiddenLayerWidth,
		Activation:   cfg.Activation(),
		AnswerDim:    cfg.AnswerDim(),
		NumOptions:   cfg.Entailment.NumOptions,
		Seed:         b.seed(2),
	})
	if err != nil {
		return nil, fmt.Errorf("entailment_model %s: %w", cfg.EntailmentModel, err)
	}

	// Hop 0 always exists, so its dimensions are checked now.
	if _, err := b.KnowledgeSelector(0); err != nil {
		return nil, err
	}
	if _, err := b.MemoryUpdater(0); err != nil {
		return nil, err
	}
	return b, nil
}

// seed derives a per-component seed from the configured one.
func (b *Builder) seed(salt uint64) uint64 {
	return b.cfg.Seed ^ (salt * 0x9e3779b97f4a7c15)
}

// cacheHop maps a hop onto the hop whose instance it uses.
func (b *Builder) cacheHop(hop int) int {
	if b.cfg.ShareHopWeights {
		return 0
	}
	return hop
}
// #endregion builder

// #region layer-cache
// KnowledgeSelector returns the selector for hop, creating it on first use.
func (b *Builder) KnowledgeSelector(hop int) (selector.Selector, error) {
	hop = b.cacheHop(hop)
	if s, ok := b.selectors[hop]; ok {
		return s, nil
	}
	factory, err := lookup(b.reg.selectors, "knowledge_selector", b.cfg.KnowledgeSelector)
	if err != nil {
		return nil, err
	}
	s, err := factory(selector.Options{
		Name: selectorName(hop),
		Dim:  b.cfg.EmbeddingDim,
		Hard: b.cfg.HardMemorySelection,
		Seed: b.seed(uint64(100 + hop)),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", selectorName(hop), err)
	}
	if s.Dim() != b.cfg.EmbeddingDim {
		return nil, config.DimensionMismatch("knowledge_selector", hop, b.cfg.EmbeddingDim, s.Dim())
	}
	b.selectors[hop] = s
	return s, nil
}

// MemoryUpdater returns the updater for hop, creating it on first use.
func (b *Builder) MemoryUpdater(hop int) (update.Updater, error) {
	hop = b.cacheHop(hop)
	if u, ok := b.updaters[hop]; ok {
		return u, nil
	}
	factory, err := lookup(b.reg.updaters, "memory_updater", b.cfg.MemoryUpdater)
	if err != nil {
		return nil, err
	}
	u, err := factory(update.Options{
		Name: updaterName(hop),
		Dim:  b.cfg.EmbeddingDim,
		Seed: b.seed(uint64(200 + hop)),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", updaterName(hop), err)
	}
	if u.Dim() != b.cfg.EmbeddingDim {
		return nil, config.DimensionMismatch("memory_updater", hop, b.cfg.EmbeddingDim, u.Dim())
	}
	b.updaters[hop] = u
	return u, nil
}
// #endregion layer-cache

// #region build
// Build assembles the graph:
//
//	encode question and background
//	memory = question
//	repeat num_memory_layers times:
//	    merged    = [memory; background] along the knowledge axis
//	    attention = selector(dropout(merged))
//	    attended  = sum(background * attention) over the knowledge axis
//	    memory    = updater([memory; attended])
//	score = classify(combine([question; memory; attended]))
//
// The classifier sees only the last hop's attended knowledge.
func (b *Builder) Build() (*Model, error) {
	cfg := b.cfg
	g := graph.New()

	question, err := g.Input(graph.InputSpec{
		Name:  SentenceInput,
		Shape: shape.Of(shape.Batch, cfg.MaxSentenceLength),
	})
	if err != nil {
		return nil, err
	}
	background, err := g.Input(graph.InputSpec{
		Name:  BackgroundInput,
		Shape: shape.Of(shape.Batch, cfg.MaxKnowledgeLength, cfg.MaxSentenceLength),
	})
	if err != nil {
		return nil, err
	}

	// One embedding and one encoder for both inputs: the weights are shared.
	// The encoder also sees the word indices to mask padding.
	embQ, err := g.Apply(nodeSentenceEmbedding, b.embedding, question)
	if err != nil {
		return nil, err
	}
	embBg, err := g.Apply(nodeBackgroundEmbedding, b.embedding, background)
	if err != nil {
		return nil, err
	}
	encQ, err := g.Apply(nodeEncodedQuestion, b.encoder, embQ, question)
	if err != nil {
		return nil, err
	}
	encBg, err := g.Apply(nodeEncodedKnowledge, encoder.NewTimeDistributed(b.encoder), embBg, background)
	if err != nil {
		return nil, err
	}

	memory := encQ
	var attended *graph.Node
	attention := make([]string, 0, cfg.NumMemoryLayers)
	for hop := 0; hop < cfg.NumMemoryLayers; hop++ {
		var att *graph.Node
		memory, att, attended, err = b.hop(g, hop, memory, encBg)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", hop, err)
		}
		attention = append(attention, att.Name)
	}

	entIn, err := g.Apply(nodeEntailmentInputs, graph.Concat{Axis: -1}, encQ, memory, attended)
	if err != nil {
		return nil, err
	}
	combined, err := g.Apply(nodeEntailmentCombiner, b.combiner, entIn)
	if err != nil {
		return nil, err
	}
	out, err := b.classifier.Classify(g, combined)
	if err != nil {
		return nil, fmt.Errorf("entailment_model %s: %w", cfg.EntailmentModel, err)
	}

	m := &Model{
		cfg:       cfg,
		graph:     g,
		inputs:    g.Inputs(),
		extra:     out.AdditionalInputs,
		attention: attention,
		output:    out.Score.Name,
	}
	log.Printf("[BUILD] memory network: hops=%d selector=%s hard=%v updater=%s combiner=%s model=%s nodes=%d params=%d",
		cfg.NumMemoryLayers, cfg.KnowledgeSelector, cfg.HardMemorySelection, cfg.MemoryUpdater,
		cfg.EntailmentInputCombiner, cfg.EntailmentModel, len(g.Nodes()), len(g.Params()))
	return m, nil
}

// hop wires one select, weight, update step and returns the new memory, the
// attention node and the attended knowledge node.
func (b *Builder) hop(g *graph.Graph, hop int, memory, background *graph.Node) (next, attention, attended *graph.Node, err error) {
	merge := &graph.Merge{
		Label: "merge_memory_with_background",
		Fn:    b.mergeMemory,
		Shape: func(in []shape.Shape) (shape.Shape, error) {
			return b.calc.MergedBackground(in[0], in[1])
		},
	}
	merged, err := g.Apply(fmt.Sprintf("concat_question_with_background_%d", hop), merge, memory, background)
	if err != nil {
		return nil, nil, nil, err
	}

	dropout, err := layers.NewDropout(b.cfg.Dropout, layers.NewRand(b.seed(uint64(300+hop))))
	if err != nil {
		return nil, nil, nil, err
	}
	dropped, err := g.Apply(fmt.Sprintf("dropout_%d", hop), dropout, merged)
	if err != nil {
		return nil, nil, nil, err
	}

	sel, err := b.KnowledgeSelector(hop)
	if err != nil {
		return nil, nil, nil, err
	}
	if attention, err = g.Apply(selectorName(hop), sel, dropped); err != nil {
		return nil, nil, nil, err
	}

	average := &graph.Merge{
		Label: "weighted_average",
		Fn: func(in []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.WeightedSum(in[0], in[1], knowledgeAxis)
		},
		Shape: b.weightedAverageShape,
	}
	if attended, err = g.Apply(fmt.Sprintf("background_weighted_average_%d", hop), average, background, attention); err != nil {
		return nil, nil, nil, err
	}

	updIn, err := g.Apply(fmt.Sprintf("concat_current_memory_with_background_%d", hop), graph.Concat{Axis: -1}, memory, attended)
	if err != nil {
		return nil, nil, nil, err
	}
	upd, err := b.MemoryUpdater(hop)
	if err != nil {
		return nil, nil, nil, err
	}
	if next, err = g.Apply(updaterName(hop), upd, updIn); err != nil {
		return nil, nil, nil, err
	}
	return next, attention, attended, nil
}

// mergeMemory inserts memory as slice 0 of background along the knowledge axis.
func (b *Builder) mergeMemory(in []*tensor.Tensor) (*tensor.Tensor, error) {
	memory, err := tensor.ExpandDims(in[0], knowledgeAxis)
	if err != nil {
		return nil, err
	}
	return tensor.Concat(knowledgeAxis, memory, in[1])
}

// weightedAverageShape checks that the attention covers every background
// slice, then drops the knowledge axis.
func (b *Builder) weightedAverageShape(in []shape.Shape) (shape.Shape, error) {
	bg, att := in[0], in[1]
	out, err := b.calc.WeightedAverage(bg)
	if err != nil {
		return nil, err
	}
	want := bg[:bg.Rank()-1]
	if !want.Compatible(att) {
		return nil, shape.Mismatch("weighted_average", "attention must have one weight per background slice", want, att)
	}
	return out, nil
}
// #endregion build
