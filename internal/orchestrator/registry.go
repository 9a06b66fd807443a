package orchestrator

import (
	"fmt"
	"maps"
	"slices"

	"github.com/danielpatrickdp/memnet/go-solver/internal/config"
	"github.com/danielpatrickdp/memnet/go-solver/internal/encoder"
	"github.com/danielpatrickdp/memnet/go-solver/internal/entailment"
	"github.com/danielpatrickdp/memnet/go-solver/internal/selector"
	"github.com/danielpatrickdp/memnet/go-solver/internal/update"
)

// #region factories
// EncoderFactory builds a sentence encoder for embedded words of width
// cfg.EmbeddingDim. client is nil unless the caller supplied one.
type EncoderFactory func(cfg *config.Config, client encoder.SentenceClient) (encoder.Encoder, error)

type (
	SelectorFactory func(opts selector.Options) (selector.Selector, error)
	UpdaterFactory  func(opts update.Options) (update.Updater, error)
	CombinerFactory func(dim int) (entailment.Combiner, error)
	ModelFactory    func(opts entailment.ModelOptions) (entailment.Classifier, error)
)
// #endregion factories

// #region registry
// Registry maps configuration names to component factories, one namespace
// per family. Every name in a config must resolve before anything is built.
type Registry struct {
	encoders  map[encoder.Kind]EncoderFactory
	selectors map[selector.Kind]SelectorFactory
	updaters  map[update.Kind]UpdaterFactory
	combiners map[entailment.CombinerKind]CombinerFactory
	models    map[entailment.ModelKind]ModelFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders:  make(map[encoder.Kind]EncoderFactory),
		selectors: make(map[selector.Kind]SelectorFactory),
		updaters:  make(map[update.Kind]UpdaterFactory),
		combiners: make(map[entailment.CombinerKind]CombinerFactory),
		models:    make(map[entailment.ModelKind]ModelFactory),
	}
}

// DefaultRegistry returns a registry holding every built-in component.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterEncoder(encoder.KindBOW, func(cfg *config.Config, _ encoder.SentenceClient) (encoder.Encoder, error) {
		return encoder.NewBOW(cfg.EmbeddingDim), nil
	})
	r.RegisterEncoder(encoder.KindRemote, func(cfg *config.Config, client encoder.SentenceClient) (encoder.Encoder, error) {
		if client == nil {
			return nil, fmt.Errorf("remote encoder needs a client (encoder.addr is %q)", cfg.Encoder.Addr)
		}
		out := cfg.Encoder.OutputDim
		if out == 0 {
			out = cfg.EmbeddingDim
		}
		return encoder.NewRemote(client, cfg.EmbeddingDim, out), nil
	})

	r.RegisterSelector(selector.KindDotProduct, func(opts selector.Options) (selector.Selector, error) {
		return selector.NewDotProduct(opts), nil
	})
	r.RegisterSelector(selector.KindParameterized, func(opts selector.Options) (selector.Selector, error) {
		return selector.NewParameterized(opts)
	})

	r.RegisterUpdater(update.KindDenseConcat, func(opts update.Options) (update.Updater, error) {
		return update.NewDenseConcat(opts)
	})
	r.RegisterUpdater(update.KindSum, func(opts update.Options) (update.Updater, error) {
		return update.NewSum(opts)
	})

	r.RegisterCombiner(entailment.CombinerHeuristicMatching, func(dim int) (entailment.Combiner, error) {
		return entailment.NewHeuristicMatching(dim)
	})
	r.RegisterCombiner(entailment.CombinerMemoryOnly, func(dim int) (entailment.Combiner, error) {
		return entailment.NewMemoryOnly(dim)
	})

	r.RegisterModel(entailment.ModelTrueFalseMLP, func(opts entailment.ModelOptions) (entailment.Classifier, error) {
		return entailment.NewTrueFalseMLP(opts)
	})
	r.RegisterModel(entailment.ModelQuestionAnswerMLP, func(opts entailment.ModelOptions) (entailment.Classifier, error) {
		return entailment.NewQuestionAnswerMLP(opts)
	})
	return r
}

// RegisterEncoder adds or replaces a factory. Components registered through
// the Register methods resolve by name like the built-in ones, including on
// Restore.
func (r *Registry) RegisterEncoder(kind encoder.Kind, f EncoderFactory) {
	r.encoders[kind] = f
}

func (r *Registry) RegisterSelector(kind selector.Kind, f SelectorFactory) {
	r.selectors[kind] = f
}

func (r *Registry) RegisterUpdater(kind update.Kind, f UpdaterFactory) {
	r.updaters[kind] = f
}

func (r *Registry) RegisterCombiner(kind entailment.CombinerKind, f CombinerFactory) {
	r.combiners[kind] = f
}

func (r *Registry) RegisterModel(kind entailment.ModelKind, f ModelFactory) {
	r.models[kind] = f
}
// #endregion registry

// #region lookup
func lookup[K ~string, V any](m map[K]V, component, name string) (V, error) {
	if f, ok := m[K(name)]; ok {
		return f, nil
	}
	known := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		known = append(known, string(k))
	}
	var zero V
	return zero, config.UnknownComponent(component, name, known)
}

// Validate resolves every component name in cfg.
func (r *Registry) Validate(cfg *config.Config) error {
	if _, err := lookup(r.encoders, "encoder", cfg.Encoder.Kind); err != nil {
		return err
	}
	if _, err := lookup(r.selectors, "knowledge_selector", cfg.KnowledgeSelector); err != nil {
		return err
	}
	if _, err := lookup(r.updaters, "memory_updater", cfg.MemoryUpdater); err != nil {
		return err
	}
	if _, err := lookup(r.combiners, "entailment_input_combiner", cfg.EntailmentInputCombiner); err != nil {
		return err
	}
	if _, err := lookup(r.models, "entailment_model", cfg.EntailmentModel); err != nil {
		return err
	}
	return nil
}
// #endregion lookup
