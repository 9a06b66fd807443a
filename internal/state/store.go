// Package state persists built models in SQLite.
package state

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS models (
	model_id      TEXT PRIMARY KEY,
	parent_id     TEXT,
	config_json   TEXT NOT NULL,
	vocab_json    TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES models(model_id)
);

CREATE TABLE IF NOT EXISTS model_params (
	model_id      TEXT NOT NULL,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	shape_json    TEXT NOT NULL,
	data          BLOB NOT NULL,
	PRIMARY KEY (model_id, name),
	FOREIGN KEY (model_id) REFERENCES models(model_id)
);

CREATE TABLE IF NOT EXISTS active_model (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	model_id      TEXT NOT NULL,
	FOREIGN KEY (model_id) REFERENCES models(model_id)
);

CREATE TABLE IF NOT EXISTS trace_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	model_id      TEXT,
	model_prefix  TEXT NOT NULL,
	epoch         INTEGER NOT NULL,
	path          TEXT NOT NULL,
	instances     INTEGER NOT NULL,
	rows_written  INTEGER NOT NULL,
	error         TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (model_id) REFERENCES models(model_id)
);
`
// #endregion schema

// #region store-struct
// Store manages versioned models in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region save-model
// SaveModel stores rec under a fresh id and makes it the active model.
// ModelID and CreatedAt are assigned here.
func (s *Store) SaveModel(rec ModelRecord) (ModelRecord, error) {
	rec.ModelID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	vocabJSON, err := json.Marshal(rec.Vocabulary)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("marshal vocabulary: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return ModelRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent interface{}
	if rec.ParentID != "" {
		parent = rec.ParentID
	}
	_, err = tx.Exec(
		`INSERT INTO models (model_id, parent_id, config_json, vocab_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ModelID, parent, rec.ConfigJSON, string(vocabJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("insert model: %w", err)
	}

	for i, p := range rec.Params {
		size := 1
		for _, d := range p.Shape {
			size *= d
		}
		if size != len(p.Data) {
			return ModelRecord{}, fmt.Errorf("param %s: shape %v holds %d values, got %d", p.Name, p.Shape, size, len(p.Data))
		}
		shapeJSON, err := json.Marshal(p.Shape)
		if err != nil {
			return ModelRecord{}, fmt.Errorf("marshal shape: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO model_params (model_id, position, name, shape_json, data) VALUES (?, ?, ?, ?, ?)`,
			rec.ModelID, i, p.Name, string(shapeJSON), encodeVector(p.Data),
		)
		if err != nil {
			return ModelRecord{}, fmt.Errorf("insert param %s: %w", p.Name, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_model (id, model_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id`,
		rec.ModelID,
	)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ModelRecord{}, fmt.Errorf("commit: %w", err)
	}
	rec.ParamCount = len(rec.Params)
	return rec, nil
}
// #endregion save-model

// #region get-model
// GetActive reads the active model with its weights.
func (s *Store) GetActive() (ModelRecord, error) {
	var id string
	err := s.db.QueryRow(`SELECT model_id FROM active_model WHERE id = 1`).Scan(&id)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetModel(id)
}

// GetModel reads a model and its weights in saved order.
func (s *Store) GetModel(id string) (ModelRecord, error) {
	var rec ModelRecord
	var parentID sql.NullString
	var vocabJSON, createdAt string

	err := s.db.QueryRow(
		`SELECT model_id, parent_id, config_json, vocab_json, created_at FROM models WHERE model_id = ?`, id,
	).Scan(&rec.ModelID, &parentID, &rec.ConfigJSON, &vocabJSON, &createdAt)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("get model %s: %w", id, err)
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	if err := json.Unmarshal([]byte(vocabJSON), &rec.Vocabulary); err != nil {
		return ModelRecord{}, fmt.Errorf("unmarshal vocabulary: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := s.db.Query(
		`SELECT name, shape_json, data FROM model_params WHERE model_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return ModelRecord{}, fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p ParamRecord
		var shapeJSON string
		var blob []byte
		if err := rows.Scan(&p.Name, &shapeJSON, &blob); err != nil {
			return ModelRecord{}, fmt.Errorf("scan param: %w", err)
		}
		if err := json.Unmarshal([]byte(shapeJSON), &p.Shape); err != nil {
			return ModelRecord{}, fmt.Errorf("unmarshal shape of %s: %w", p.Name, err)
		}
		p.Data = decodeVector(blob)
		rec.Params = append(rec.Params, p)
	}
	if err := rows.Err(); err != nil {
		return ModelRecord{}, err
	}
	rec.ParamCount = len(rec.Params)
	return rec, nil
}
// #endregion get-model

// #region set-active
// SetActive points the active model at an existing model.
func (s *Store) SetActive(id string) error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM models WHERE model_id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check model: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("model %s not found", id)
	}
	_, err = s.db.Exec(
		`INSERT INTO active_model (id, model_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id`,
		id,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}
// #endregion set-active

// #region list-models
// ListModels returns the most recent models, newest first, without weights.
func (s *Store) ListModels(limit int) ([]ModelRecord, error) {
	rows, err := s.db.Query(
		`SELECT m.model_id, m.parent_id, m.config_json, m.created_at,
		        (SELECT COUNT(*) FROM model_params p WHERE p.model_id = m.model_id)
		 FROM models m ORDER BY m.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	var out []ModelRecord
	for rows.Next() {
		var rec ModelRecord
		var parentID sql.NullString
		var createdAt string
		if err := rows.Scan(&rec.ModelID, &parentID, &rec.ConfigJSON, &createdAt, &rec.ParamCount); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		if parentID.Valid {
			rec.ParentID = parentID.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
// #endregion list-models

// #region encoding
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
// #endregion encoding
