// Package config holds the solver configuration: which components to
// compose, their dimensions, and where the data lives.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/memnet/go-solver/internal/layers"
)

// #region types
// EntailmentConfig holds classifier sub-options.
type EntailmentConfig struct {
	NumHiddenLayers       int    `yaml:"num_hidden_layers" json:"num_hidden_layers"`
	HiddenLayerWidth      int    `yaml:"hidden_layer_width" json:"hidden_layer_width"`
	HiddenLayerActivation string `yaml:"hidden_layer_activation" json:"hidden_layer_activation"`
	// AnswerDim defaults to the embedding dim when zero.
	AnswerDim  int `yaml:"answer_dim,omitempty" json:"answer_dim,omitempty"`
	NumOptions int `yaml:"num_options,omitempty" json:"num_options,omitempty"`
}

// EncoderConfig selects the sentence encoder.
type EncoderConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	// Addr and OutputDim apply to the remote encoder.
	Addr      string `yaml:"addr,omitempty" json:"addr,omitempty"`
	OutputDim int    `yaml:"output_dim,omitempty" json:"output_dim,omitempty"`
}

// DataConfig lists question and background files.
type DataConfig struct {
	TrainFile               string `yaml:"train_file,omitempty" json:"train_file,omitempty"`
	PositiveTrainFile       string `yaml:"positive_train_file,omitempty" json:"positive_train_file,omitempty"`
	NegativeTrainFile       string `yaml:"negative_train_file,omitempty" json:"negative_train_file,omitempty"`
	TrainBackground         string `yaml:"train_background,omitempty" json:"train_background,omitempty"`
	PositiveTrainBackground string `yaml:"positive_train_background,omitempty" json:"positive_train_background,omitempty"`
	NegativeTrainBackground string `yaml:"negative_train_background,omitempty" json:"negative_train_background,omitempty"`
	ValidationFile          string `yaml:"validation_file,omitempty" json:"validation_file,omitempty"`
	ValidationBackground    string `yaml:"validation_background,omitempty" json:"validation_background,omitempty"`
	TestFile                string `yaml:"test_file,omitempty" json:"test_file,omitempty"`
	TestBackground          string `yaml:"test_background,omitempty" json:"test_background,omitempty"`
	DebugFile               string `yaml:"debug_file,omitempty" json:"debug_file,omitempty"`
	DebugBackground         string `yaml:"debug_background,omitempty" json:"debug_background,omitempty"`
}

// Config is the full solver configuration.
type Config struct {
	NumMemoryLayers         int              `yaml:"num_memory_layers" json:"num_memory_layers"`
	KnowledgeSelector       string           `yaml:"knowledge_selector" json:"knowledge_selector"`
	HardMemorySelection     bool             `yaml:"hard_memory_selection" json:"hard_memory_selection"`
	MemoryUpdater           string           `yaml:"memory_updater" json:"memory_updater"`
	EntailmentInputCombiner string           `yaml:"entailment_input_combiner" json:"entailment_input_combiner"`
	EntailmentModel         string           `yaml:"entailment_model" json:"entailment_model"`
	Entailment              EntailmentConfig `yaml:"entailment" json:"entailment"`
	Encoder                 EncoderConfig    `yaml:"encoder" json:"encoder"`

	EmbeddingDim       int     `yaml:"embedding_dim" json:"embedding_dim"`
	VocabSize          int     `yaml:"vocab_size" json:"vocab_size"`
	MaxSentenceLength  int     `yaml:"max_sentence_length" json:"max_sentence_length"`
	MaxKnowledgeLength int     `yaml:"max_knowledge_length" json:"max_knowledge_length"`
	Dropout            float64 `yaml:"dropout" json:"dropout"`
	Seed               uint64  `yaml:"seed" json:"seed"`
	// ShareHopWeights makes every hop reuse the hop-0 selector and updater.
	ShareHopWeights bool `yaml:"share_hop_weights" json:"share_hop_weights"`

	Data        DataConfig `yaml:"data" json:"data"`
	ModelPrefix string     `yaml:"model_prefix" json:"model_prefix"`
}
// #endregion types

// #region defaults
// Default returns the configuration of a single-hop parameterized memory
// network with a bag-of-words encoder.
func Default() *Config {
	return &Config{
		NumMemoryLayers:         1,
		KnowledgeSelector:       "parameterized",
		MemoryUpdater:           "dense_concat",
		EntailmentInputCombiner: "heuristic_matching",
		EntailmentModel:         "true_false_mlp",
		Entailment: EntailmentConfig{
			NumHiddenLayers:       1,
			HiddenLayerWidth:      50,
			HiddenLayerActivation: "relu",
		},
		Encoder:            EncoderConfig{Kind: "bow"},
		EmbeddingDim:       50,
		VocabSize:          10000,
		MaxSentenceLength:  30,
		MaxKnowledgeLength: 10,
		Dropout:            0.2,
		ModelPrefix:        "models/memnet",
	}
}
// #endregion defaults

// #region io
// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
// #endregion io

// #region validation
// Validate checks field ranges. Component names are checked against the
// registry by the builder.
func (c *Config) Validate() error {
	switch {
	case c.NumMemoryLayers < 1:
		return Invalid("num_memory_layers", "must be >= 1, got %d", c.NumMemoryLayers)
	case c.EmbeddingDim <= 0:
		return Invalid("embedding_dim", "must be positive, got %d", c.EmbeddingDim)
	case c.VocabSize <= 1:
		return Invalid("vocab_size", "must be > 1 (index 0 is padding), got %d", c.VocabSize)
	case c.MaxSentenceLength <= 0:
		return Invalid("max_sentence_length", "must be positive, got %d", c.MaxSentenceLength)
	case c.MaxKnowledgeLength <= 0:
		return Invalid("max_knowledge_length", "must be positive, got %d", c.MaxKnowledgeLength)
	case c.Dropout < 0 || c.Dropout >= 1:
		return Invalid("dropout", "must be in [0, 1), got %g", c.Dropout)
	case c.Entailment.NumHiddenLayers < 0:
		return Invalid("entailment.num_hidden_layers", "must not be negative, got %d", c.Entailment.NumHiddenLayers)
	}
	if _, err := layers.ParseActivation(c.Entailment.HiddenLayerActivation); err != nil {
		return Invalid("entailment.hidden_layer_activation", "%v", err)
	}
	return nil
}

// RequireTraining fails unless training data with background is configured:
// a train file (or a positive and a negative one), either a combined train
// background or both positive and negative backgrounds, and a validation
// background.
func (c *Config) RequireTraining() error {
	d := c.Data
	if d.TrainFile == "" && (d.PositiveTrainFile == "" || d.NegativeTrainFile == "") {
		return &Error{Code: CodeMissingBackground, Component: "data.train_file", Hop: NoHop,
			Reason: "training requires train_file or both positive and negative train files"}
	}
	hasTrain := d.TrainBackground != "" || (d.PositiveTrainBackground != "" && d.NegativeTrainBackground != "")
	if !hasTrain {
		return &Error{Code: CodeMissingBackground, Component: "data.train_background", Hop: NoHop,
			Reason: "training requires train_background or both positive and negative train backgrounds"}
	}
	if d.ValidationBackground == "" {
		return &Error{Code: CodeMissingBackground, Component: "data.validation_background", Hop: NoHop,
			Reason: "training requires a validation background"}
	}
	return nil
}

// RequireTesting fails unless a test file and its background are configured.
func (c *Config) RequireTesting() error {
	if c.Data.TestFile == "" {
		return &Error{Code: CodeMissingBackground, Component: "data.test_file", Hop: NoHop, Reason: "testing requires a test file"}
	}
	if c.Data.TestBackground == "" {
		return &Error{Code: CodeMissingBackground, Component: "data.test_background", Hop: NoHop, Reason: "testing requires a test background"}
	}
	return nil
}

// Activation returns the parsed hidden-layer activation. Call after Validate.
func (c *Config) Activation() layers.Activation {
	a, _ := layers.ParseActivation(c.Entailment.HiddenLayerActivation)
	return a
}

// AnswerDim is the configured answer dim, or the embedding dim.
func (c *Config) AnswerDim() int {
	if c.Entailment.AnswerDim > 0 {
		return c.Entailment.AnswerDim
	}
	return c.EmbeddingDim
}
// #endregion validation
