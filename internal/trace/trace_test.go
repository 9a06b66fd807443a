package trace

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/memnet/go-solver/internal/config"
	"github.com/danielpatrickdp/memnet/go-solver/internal/dataset"
	"github.com/danielpatrickdp/memnet/go-solver/internal/logging"
	"github.com/danielpatrickdp/memnet/go-solver/internal/orchestrator"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/state"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region helpers
type fakeDebugger struct {
	out   orchestrator.DebugOutput
	err   error
	calls int
}

func (f *fakeDebugger) Debug(context.Context, dataset.IndexedInputs) (orchestrator.DebugOutput, error) {
	f.calls++
	return f.out, f.err
}

func instance(label bool, bg ...string) dataset.Instance {
	return dataset.Instance{Text: "Plants need light", Background: bg, Label: label}
}
// #endregion helpers

// #region record-tests
func TestBuildRecordsDropsPadding(t *testing.T) {
	scores := tensor.Must(shape.Of(1, 2), []float64{0.3, 0.7})
	// K=4, two real sentences in the trailing slots
	hop0 := tensor.Must(shape.Of(1, 4), []float64{0.1, 0.1, 0.5, 0.3})
	hop1 := tensor.Must(shape.Of(1, 4), []float64{0, 0, 0.25, 0.75})

	recs, err := BuildRecords([]dataset.Instance{instance(true, "a", "b")}, scores, []*tensor.Tensor{hop0, hop1})
	if err != nil {
		t.Fatalf("BuildRecords: %v", err)
	}
	rows := recs[0].Rows
	if len(rows) != 2 || recs[0].Score != 0.7 {
		t.Fatalf("unexpected record %+v", recs[0])
	}
	if rows[0].Weights[0] != 0.5 || rows[0].Weights[1] != 0.25 || rows[1].Weights[1] != 0.75 {
		t.Fatalf("weights misaligned: %+v", rows)
	}
}

func TestBuildRecordsTruncatesWithoutError(t *testing.T) {
	scores := tensor.Must(shape.Of(1, 2), []float64{0.5, 0.5})
	att := tensor.Must(shape.Of(1, 3), []float64{0.2, 0.3, 0.5})
	recs, err := BuildRecords([]dataset.Instance{instance(false, "s1", "s2", "s3", "s4", "s5")}, scores, []*tensor.Tensor{att})
	if err != nil {
		t.Fatalf("BuildRecords: %v", err)
	}
	if len(recs[0].Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(recs[0].Rows))
	}
	if recs[0].Rows[2].Background != "s3" || recs[0].Rows[2].Weights[0] != 0.5 {
		t.Fatalf("unexpected last row %+v", recs[0].Rows[2])
	}
}

func TestBuildRecordsRejectsMisalignedBatch(t *testing.T) {
	scores := tensor.Zeros(2, 2)
	att := tensor.Zeros(1, 3)
	if _, err := BuildRecords([]dataset.Instance{instance(true), instance(false)}, scores, []*tensor.Tensor{att}); err == nil {
		t.Fatal("expected batch mismatch error")
	}
}
// #endregion record-tests

// #region write-tests
func TestWriteFormat(t *testing.T) {
	recs := []Record{
		{
			Sentence: "Plants need light",
			Label:    true,
			Score:    0.71234,
			Rows: []Row{
				{Weights: []float64{0.5, 0.25}, Background: "Light feeds plants"},
				{Weights: []float64{0.5, 0.75}, Background: "Plants are green"},
			},
		},
		{Sentence: "Rocks eat", Label: false, Score: 0.1},
	}
	var buf bytes.Buffer
	rows, err := Write(&buf, recs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "Sentence: Plants need light\n" +
		"Label: true\n" +
		"Assigned score: 0.7123\n" +
		"Weights on background:\n" +
		"\t0.5000 0.2500\tLight feeds plants\n" +
		"\t0.5000 0.7500\tPlants are green\n" +
		"\n" +
		"Sentence: Rocks eat\n" +
		"Label: false\n" +
		"Assigned score: 0.1000\n" +
		"Weights on background:\n" +
		"\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
	if rows != 2 {
		t.Fatalf("expected 2 rows, got %d", rows)
	}
}
// #endregion write-tests

// #region tracer-tests
func TestTracerOverwritesPerEpoch(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "memnet")
	tr := &Tracer{ModelPrefix: prefix}
	d := &fakeDebugger{out: orchestrator.DebugOutput{
		Scores:    tensor.Must(shape.Of(1, 2), []float64{0.4, 0.6}),
		Attention: []*tensor.Tensor{tensor.Must(shape.Of(1, 2), []float64{0.9, 0.1})},
	}}

	first := []dataset.Instance{{Text: "first", Background: []string{"x", "y"}}}
	path, err := tr.Run(context.Background(), d, first, dataset.IndexedInputs{}, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if path != prefix+"_debug_2.txt" {
		t.Fatalf("unexpected path %s", path)
	}

	second := []dataset.Instance{{Text: "second", Background: []string{"x", "y"}}}
	if _, err := tr.Run(context.Background(), d, second, dataset.IndexedInputs{}, 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "first") || strings.Count(string(data), "Sentence:") != 1 {
		t.Fatalf("expected file to be replaced, got:\n%s", data)
	}
}

func TestTracerPropagatesDebugError(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "memnet")
	want := errors.New("boom")
	tr := &Tracer{ModelPrefix: prefix}
	if _, err := tr.Run(context.Background(), &fakeDebugger{err: want}, nil, dataset.IndexedInputs{}, 0); !errors.Is(err, want) {
		t.Fatalf("expected wrapped debug error, got %v", err)
	}
	if _, err := os.Stat(tr.Path(0)); !os.IsNotExist(err) {
		t.Fatalf("no file should be created on debug failure, stat err=%v", err)
	}
}

func TestTracerWithModelAndTraceLog(t *testing.T) {
	dir := t.TempDir()
	store, err := state.NewStore(filepath.Join(dir, "memnet.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	cfg := config.Default()
	cfg.NumMemoryLayers = 2
	cfg.EmbeddingDim = 4
	cfg.VocabSize = 50
	cfg.MaxSentenceLength = 5
	cfg.MaxKnowledgeLength = 3
	b, err := orchestrator.NewBuilder(cfg, orchestrator.DefaultRegistry())
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	insts := []dataset.Instance{
		{Text: "plants need light", Label: true, Background: []string{"light feeds plants", "plants are green"}},
		{Text: "rocks eat food", Label: false, Background: []string{"a", "b", "c", "d", "e"}},
	}
	idx := dataset.NewIndexer(cfg.VocabSize)
	idx.Fit(insts)
	inputs := idx.Index(insts, cfg.MaxSentenceLength, cfg.MaxKnowledgeLength)

	tr := &Tracer{ModelPrefix: filepath.Join(dir, "memnet"), DB: store.DB()}
	path, err := tr.Run(context.Background(), m, insts, inputs, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// 2 rows for the first instance, 3 for the truncated second
	if got := strings.Count(string(data), "\n\t"); got != 5 {
		t.Fatalf("expected 5 background rows, got %d:\n%s", got, data)
	}

	runs, err := logging.ListTraces(store.DB(), 10)
	if err != nil {
		t.Fatalf("ListTraces: %v", err)
	}
	if len(runs) != 1 || runs[0].Rows != 5 || runs[0].Instances != 2 || runs[0].Epoch != 1 {
		t.Fatalf("unexpected trace log %+v", runs)
	}
}
// #endregion tracer-tests
