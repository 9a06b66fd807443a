// Package logging writes run records to the trace_log table.
package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-trace
// LogTrace writes a trace run entry to the trace_log table.
func LogTrace(db *sql.DB, entry TraceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO trace_log (run_id, model_id, model_prefix, epoch, path, instances, rows_written, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		nullIfEmpty(entry.ModelID),
		entry.ModelPrefix,
		entry.Epoch,
		entry.Path,
		entry.Instances,
		entry.Rows,
		nullIfEmpty(entry.Error),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log trace: %w", err)
	}
	return nil
}
// #endregion log-trace

// #region list-traces
// ListTraces returns the most recent trace runs, newest first.
func ListTraces(db *sql.DB, limit int) ([]TraceEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, model_id, model_prefix, epoch, path, instances, rows_written, error, created_at
		 FROM trace_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var out []TraceEntry
	for rows.Next() {
		var e TraceEntry
		var modelID, errText sql.NullString
		var createdAt string
		if err := rows.Scan(&e.RunID, &modelID, &e.ModelPrefix, &e.Epoch, &e.Path, &e.Instances, &e.Rows, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		e.ModelID = modelID.String
		e.Error = errText.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-traces

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
