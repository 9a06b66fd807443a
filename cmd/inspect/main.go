package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/danielpatrickdp/memnet/go-solver/internal/config"
	"github.com/danielpatrickdp/memnet/go-solver/internal/logging"
	"github.com/danielpatrickdp/memnet/go-solver/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to memnet.db")
	last := flag.Int("last", 20, "show N most recent models or trace runs")
	model := flag.String("model", "", "show single model detail")
	traces := flag.Bool("traces", false, "list debug trace runs instead of models")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/memnet.db [--last N] [--model id] [--traces] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *model != "":
		err = runDetailMode(store, *model, *jsonOut)
	case *traces:
		err = runTraceMode(store, *last, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	ModelID   string `json:"model_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Hops      int    `json:"hops"`
	Selector  string `json:"knowledge_selector"`
	Updater   string `json:"memory_updater"`
	Tensors   int    `json:"param_tensors"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func runListMode(store *state.Store, last int, jsonOut bool) error {
	models, err := store.ListModels(last)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Fprintln(os.Stderr, "no models found")
		return nil
	}
	activeID := ""
	if active, err := store.GetActive(); err == nil {
		activeID = active.ModelID
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(models))
	for i, rec := range models {
		cfg := parseConfig(rec.ConfigJSON)
		rows[len(models)-1-i] = listRow{
			ModelID:   rec.ModelID,
			ParentID:  rec.ParentID,
			Hops:      cfg.NumMemoryLayers,
			Selector:  cfg.KnowledgeSelector,
			Updater:   cfg.MemoryUpdater,
			Tensors:   rec.ParamCount,
			Active:    rec.ModelID == activeID,
			CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-10s  %4s  %-14s  %-12s  %7s  %s\n",
		"Model", "Parent", "Hops", "Selector", "Updater", "Tensors", "Time")
	fmt.Printf("%-10s+-%-10s+-%4s+-%-14s+-%-12s+-%7s+-%s\n",
		"----------", "----------", "----", "--------------", "------------", "-------", "--------------------")
	for _, r := range rows {
		id := shortID(r.ModelID)
		if r.Active {
			id += " *"
		}
		parent := "-"
		if r.ParentID != "" {
			parent = shortID(r.ParentID)
		}
		fmt.Printf("%-10s  %-10s  %4d  %-14s  %-12s  %7d  %s\n",
			id, parent, r.Hops, r.Selector, r.Updater, r.Tensors, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type paramRow struct {
	Name  string  `json:"name"`
	Shape []int   `json:"shape"`
	Size  int     `json:"size"`
	Norm  float64 `json:"norm"`
}

type detailOutput struct {
	ModelID    string         `json:"model_id"`
	ParentID   string         `json:"parent_id"`
	CreatedAt  string         `json:"created_at"`
	VocabSize  int            `json:"vocab_size"`
	TotalSize  int            `json:"total_size"`
	Config     *config.Config `json:"config"`
	Parameters []paramRow     `json:"parameters"`
}

func runDetailMode(store *state.Store, modelID string, jsonOut bool) error {
	rec, err := store.GetModel(modelID)
	if err != nil {
		return err
	}
	out := detailOutput{
		ModelID:   rec.ModelID,
		ParentID:  rec.ParentID,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		VocabSize: len(rec.Vocabulary),
		Config:    parseConfig(rec.ConfigJSON),
	}
	for _, p := range rec.Params {
		out.Parameters = append(out.Parameters, paramRow{
			Name:  p.Name,
			Shape: p.Shape,
			Size:  len(p.Data),
			Norm:  l2Norm(p.Data),
		})
		out.TotalSize += len(p.Data)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Model:     %s\n", out.ModelID)
	fmt.Printf("Parent:    %s\n", out.ParentID)
	fmt.Printf("Created:   %s\n", out.CreatedAt)
	fmt.Printf("Vocab:     %d\n", out.VocabSize)
	fmt.Printf("Hops:      %d (shared weights: %v)\n", out.Config.NumMemoryLayers, out.Config.ShareHopWeights)
	fmt.Printf("Encoder:   %s\n", out.Config.Encoder.Kind)
	fmt.Printf("Selector:  %s (hard: %v)\n", out.Config.KnowledgeSelector, out.Config.HardMemorySelection)
	fmt.Printf("Updater:   %s\n", out.Config.MemoryUpdater)
	fmt.Printf("Combiner:  %s\n", out.Config.EntailmentInputCombiner)
	fmt.Printf("Entail:    %s\n", out.Config.EntailmentModel)
	fmt.Printf("Weights:   %d values\n", out.TotalSize)

	fmt.Printf("\nParameters:\n")
	for _, p := range out.Parameters {
		fmt.Printf("  %-40s %-12s %10.4f\n", p.Name, fmt.Sprint(p.Shape), p.Norm)
	}
	return nil
}

// #endregion detail-mode

// #region trace-mode

func runTraceMode(store *state.Store, last int, jsonOut bool) error {
	entries, err := logging.ListTraces(store.DB(), last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no trace runs found")
		return nil
	}
	if jsonOut {
		return printJSON(entries)
	}
	fmt.Printf("%-10s  %-10s  %5s  %9s  %6s  %-30s  %s\n",
		"Run", "Model", "Epoch", "Instances", "Rows", "Path", "Error")
	fmt.Printf("%-10s+-%-10s+-%5s+-%9s+-%6s+-%-30s+-%s\n",
		"----------", "----------", "-----", "---------", "------", "------------------------------", "-----")
	for _, e := range entries {
		errText := "-"
		if e.Error != "" {
			errText = e.Error
		}
		fmt.Printf("%-10s  %-10s  %5d  %9d  %6d  %-30s  %s\n",
			shortID(e.RunID), shortID(e.ModelID), e.Epoch, e.Instances, e.Rows, e.Path, errText)
	}
	return nil
}

// #endregion trace-mode

// #region output

func parseConfig(raw string) *config.Config {
	cfg := config.Default()
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), cfg)
	}
	return cfg
}

func l2Norm(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
