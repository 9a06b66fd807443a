// Package trace renders per-hop attention over background sentences into a
// readable debug file.
package trace

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/memnet/go-solver/internal/dataset"
	"github.com/danielpatrickdp/memnet/go-solver/internal/logging"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region build-records
// BuildRecords pairs every instance with its score and attention. Padding
// precedes real sentences along the knowledge axis, so each hop keeps its
// trailing len(background) values. When fewer values remain than sentences
// (trailing sentences were dropped at indexing time) the rows stop early.
func BuildRecords(instances []dataset.Instance, scores *tensor.Tensor, attention []*tensor.Tensor) ([]Record, error) {
	if len(attention) == 0 {
		return nil, fmt.Errorf("trace: no attention tensors")
	}
	if scores.Rank() != 2 || scores.Dim(0) != len(instances) || scores.Dim(1) < 2 {
		return nil, fmt.Errorf("trace: scores %s do not cover %d instances with a true column", scores.Shape(), len(instances))
	}
	for hop, att := range attention {
		if att.Rank() != 2 || att.Dim(0) != len(instances) {
			return nil, fmt.Errorf("trace: hop %d attention %s does not cover %d instances", hop, att.Shape(), len(instances))
		}
	}

	records := make([]Record, len(instances))
	for b, inst := range instances {
		values := make([][]float64, len(attention))
		for hop, att := range attention {
			row := att.Row(b)
			if n := len(inst.Background); n > 0 && n < len(row) {
				row = row[len(row)-n:]
			}
			values[hop] = row
		}

		rec := Record{Sentence: inst.Text, Label: inst.Label, Score: scores.At(b, 1)}
		for i, sentence := range inst.Background {
			if i >= len(values[0]) {
				break
			}
			weights := make([]float64, len(values))
			for hop := range values {
				weights[hop] = values[hop][i]
			}
			rec.Rows = append(rec.Rows, Row{Weights: weights, Background: sentence})
		}
		records[b] = rec
	}
	return records, nil
}
// #endregion build-records

// #region write
// Write renders records and returns the number of background rows written.
func Write(w io.Writer, records []Record) (int, error) {
	rows := 0
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, "Sentence: %s\nLabel: %t\nAssigned score: %.4f\nWeights on background:\n",
			rec.Sentence, rec.Label, rec.Score); err != nil {
			return rows, err
		}
		for _, row := range rec.Rows {
			hops := make([]string, len(row.Weights))
			for i, v := range row.Weights {
				hops[i] = fmt.Sprintf("%.4f", v)
			}
			if _, err := fmt.Fprintf(w, "\t%s\t%s\n", strings.Join(hops, " "), row.Background); err != nil {
				return rows, err
			}
			rows++
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return rows, err
		}
	}
	return rows, nil
}
// #endregion write

// #region tracer
// Tracer writes one debug file per epoch and records each run in trace_log
// when DB is set.
type Tracer struct {
	ModelPrefix string
	ModelID     string
	DB          *sql.DB
}

// Path is the debug file for epoch.
func (t *Tracer) Path(epoch int) string {
	return fmt.Sprintf("%s_debug_%d.txt", t.ModelPrefix, epoch)
}

// Run debugs the model on inputs and writes the trace, replacing any earlier
// file for the same epoch. The file is closed on every path.
func (t *Tracer) Run(ctx context.Context, d Debugger, instances []dataset.Instance, inputs dataset.IndexedInputs, epoch int) (path string, err error) {
	out, err := d.Debug(ctx, inputs)
	if err != nil {
		return "", fmt.Errorf("debug run: %w", err)
	}
	records, err := BuildRecords(instances, out.Scores, out.Attention)
	if err != nil {
		return "", err
	}

	path = t.Path(epoch)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create trace file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close trace file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	rows, werr := Write(bw, records)
	if werr == nil {
		werr = bw.Flush()
	}
	t.record(epoch, path, len(records), rows, werr)
	if werr != nil {
		return path, fmt.Errorf("write trace: %w", werr)
	}
	log.Printf("[TRACE] epoch=%d instances=%d rows=%d → %s", epoch, len(records), rows, path)
	return path, nil
}

func (t *Tracer) record(epoch int, path string, instances, rows int, werr error) {
	if t.DB == nil {
		return
	}
	entry := logging.TraceEntry{
		RunID:       uuid.New().String(),
		ModelID:     t.ModelID,
		ModelPrefix: t.ModelPrefix,
		Epoch:       epoch,
		Path:        path,
		Instances:   instances,
		Rows:        rows,
	}
	if werr != nil {
		entry.Error = werr.Error()
	}
	if err := logging.LogTrace(t.DB, entry); err != nil {
		log.Printf("[TRACE] failed to record run: %v", err)
	}
}
// #endregion tracer
