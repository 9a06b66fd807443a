package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/klauspost/cpuid/v2"

	"github.com/danielpatrickdp/memnet/go-solver/internal/codec"
	"github.com/danielpatrickdp/memnet/go-solver/internal/config"
	"github.com/danielpatrickdp/memnet/go-solver/internal/dataset"
	"github.com/danielpatrickdp/memnet/go-solver/internal/encoder"
	"github.com/danielpatrickdp/memnet/go-solver/internal/eval"
	"github.com/danielpatrickdp/memnet/go-solver/internal/orchestrator"
	"github.com/danielpatrickdp/memnet/go-solver/internal/state"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
	"github.com/danielpatrickdp/memnet/go-solver/internal/trace"
)

const usage = `usage: memnet <build|score|debug> [flags]

  build   construct a network from the config and store it as the active model
  score   score the test file with a stored model
  debug   write the attention trace for the debug file

environment:
  MEMNET_DB            sqlite store (default memnet.db)
  MEMNET_ENCODER_ADDR  overrides encoder.addr for the remote encoder
`

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #region main
func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "memnet.yaml", "path to the YAML config")
	modelID := fs.String("model", "", "stored model ID (default: active model)")
	epoch := fs.Int("epoch", 0, "epoch number for the debug file name")
	timeout := fs.Duration("timeout", 5*time.Minute, "deadline for a forward pass")
	fs.Parse(args)

	log.Printf("[BUILD] host: %s cores=%d matmul=%s",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, tensor.Kernel())

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbPath := envOr("MEMNET_DB", "memnet.db")
	store, err := state.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	var opts []orchestrator.Option
	if cfg.Encoder.Kind == string(encoder.KindRemote) {
		addr := envOr("MEMNET_ENCODER_ADDR", cfg.Encoder.Addr)
		client, err := codec.NewClient(addr)
		if err != nil {
			log.Fatalf("failed to connect to encoder service at %s: %v", addr, err)
		}
		defer client.Close()
		opts = append(opts, orchestrator.WithEncoderClient(client))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reg := orchestrator.DefaultRegistry()
	switch cmd {
	case "build":
		err = runBuild(cfg, reg, store, opts)
	case "score":
		err = runScore(ctx, cfg, reg, store, *modelID, opts)
	case "debug":
		err = runDebug(ctx, cfg, reg, store, *modelID, *epoch, opts)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
// #endregion main

// #region build
func runBuild(cfg *config.Config, reg *orchestrator.Registry, store *state.Store, opts []orchestrator.Option) error {
	if err := cfg.RequireTraining(); err != nil {
		return err
	}
	instances, err := trainingInstances(cfg)
	if err != nil {
		return err
	}
	indexer := dataset.NewIndexer(cfg.VocabSize)
	indexer.Fit(instances)

	b, err := orchestrator.NewBuilder(cfg, reg, opts...)
	if err != nil {
		return err
	}
	model, err := b.Build()
	if err != nil {
		return err
	}

	parent := ""
	if active, err := store.GetActive(); err == nil {
		parent = active.ModelID
	}
	rec, err := orchestrator.Save(store, model, indexer.Vocabulary(), parent)
	if err != nil {
		return err
	}
	fmt.Printf("model %s: %d params, vocab %d, %d training instances\n",
		rec.ModelID, rec.ParamCount, indexer.VocabSize(), len(instances))
	return nil
}

// trainingInstances reads either the combined train file or the
// positive/negative pair, whose labels come from the file they are in.
func trainingInstances(cfg *config.Config) ([]dataset.Instance, error) {
	d := cfg.Data
	if d.TrainFile != "" {
		return dataset.LoadFiles(d.TrainFile, d.TrainBackground)
	}
	posBG, negBG := d.PositiveTrainBackground, d.NegativeTrainBackground
	if posBG == "" {
		posBG, negBG = d.TrainBackground, d.TrainBackground
	}
	pos, err := dataset.LoadFiles(d.PositiveTrainFile, posBG)
	if err != nil {
		return nil, err
	}
	neg, err := dataset.LoadFiles(d.NegativeTrainFile, negBG)
	if err != nil {
		return nil, err
	}
	for i := range pos {
		pos[i].Label = true
	}
	for i := range neg {
		neg[i].Label = false
	}
	return append(pos, neg...), nil
}
// #endregion build

// #region score
func restore(cfg *config.Config, reg *orchestrator.Registry, store *state.Store, id string, opts []orchestrator.Option) (*orchestrator.Model, *dataset.Indexer, string, error) {
	if id == "" {
		active, err := store.GetActive()
		if err != nil {
			return nil, nil, "", err
		}
		id = active.ModelID
	}
	model, vocab, err := orchestrator.Restore(store, reg, id, opts...)
	if err != nil {
		return nil, nil, "", err
	}
	if len(model.AdditionalInputs()) > 0 {
		return nil, nil, "", fmt.Errorf("model %s needs classifier inputs that files cannot provide", id)
	}
	return model, dataset.IndexerFromVocabulary(vocab), id, nil
}

func runScore(ctx context.Context, cfg *config.Config, reg *orchestrator.Registry, store *state.Store, id string, opts []orchestrator.Option) error {
	if err := cfg.RequireTesting(); err != nil {
		return err
	}
	model, indexer, id, err := restore(cfg, reg, store, id, opts)
	if err != nil {
		return err
	}
	mcfg := model.Config()
	instances, err := dataset.LoadFiles(cfg.Data.TestFile, cfg.Data.TestBackground)
	if err != nil {
		return err
	}
	inputs := indexer.Index(instances, mcfg.MaxSentenceLength, mcfg.MaxKnowledgeLength)
	out, err := model.Debug(ctx, inputs)
	if err != nil {
		return err
	}

	labels := make([]bool, len(instances))
	for i, inst := range instances {
		labels[i] = inst.Label
	}
	res := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(eval.Input{
		Scores:    out.Scores,
		Labels:    labels,
		Attention: out.Attention,
		Hard:      mcfg.HardMemorySelection,
		Params:    model.Params(),
	})

	fmt.Printf("model %s on %s (%d instances)\n", id, cfg.Data.TestFile, len(instances))
	for _, m := range res.Metrics {
		status := "ok"
		if !m.Pass {
			status = "FAIL"
		}
		fmt.Printf("  %-30s %10.4f  %s\n", m.Name, m.Value, status)
	}
	if !res.Passed {
		return fmt.Errorf("eval failed: %s", res.Reason)
	}
	return nil
}
// #endregion score

// #region debug
func runDebug(ctx context.Context, cfg *config.Config, reg *orchestrator.Registry, store *state.Store, id string, epoch int, opts []orchestrator.Option) error {
	if cfg.Data.DebugFile == "" || cfg.Data.DebugBackground == "" {
		return &config.Error{Code: config.CodeMissingBackground, Component: "data.debug_file", Hop: config.NoHop,
			Reason: "debugging needs debug_file and debug_background"}
	}
	model, indexer, id, err := restore(cfg, reg, store, id, opts)
	if err != nil {
		return err
	}
	mcfg := model.Config()
	instances, err := dataset.LoadFiles(cfg.Data.DebugFile, cfg.Data.DebugBackground)
	if err != nil {
		return err
	}
	inputs := indexer.Index(instances, mcfg.MaxSentenceLength, mcfg.MaxKnowledgeLength)

	tracer := &trace.Tracer{ModelPrefix: cfg.ModelPrefix, ModelID: id, DB: store.DB()}
	path, err := tracer.Run(ctx, model, instances, inputs, epoch)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
// #endregion debug
