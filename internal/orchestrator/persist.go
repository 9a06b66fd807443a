package orchestrator

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/danielpatrickdp/memnet/go-solver/internal/config"
	"github.com/danielpatrickdp/memnet/go-solver/internal/shape"
	"github.com/danielpatrickdp/memnet/go-solver/internal/state"
	"github.com/danielpatrickdp/memnet/go-solver/internal/tensor"
)

// #region store
// ModelStore is the subset of state.Store used for persistence.
type ModelStore interface {
	SaveModel(rec state.ModelRecord) (state.ModelRecord, error)
	GetModel(id string) (state.ModelRecord, error)
}
// #endregion store

// #region save
// Save stores m's configuration, the indexer vocabulary and every weight.
// parentID links the record to the model it was derived from, if any.
func Save(store ModelStore, m *Model, vocabulary []string, parentID string) (state.ModelRecord, error) {
	cfgJSON, err := json.Marshal(m.cfg)
	if err != nil {
		return state.ModelRecord{}, fmt.Errorf("marshal config: %w", err)
	}
	rec := state.ModelRecord{
		ParentID:   parentID,
		ConfigJSON: string(cfgJSON),
		Vocabulary: vocabulary,
	}
	for _, p := range m.Params() {
		data := make([]float64, len(p.Value.Data()))
		copy(data, p.Value.Data())
		rec.Params = append(rec.Params, state.ParamRecord{
			Name:  p.Name,
			Shape: p.Value.Shape().Clone(),
			Data:  data,
		})
	}
	saved, err := store.SaveModel(rec)
	if err != nil {
		return state.ModelRecord{}, err
	}
	log.Printf("[STORE] saved model %s (%d params)", saved.ModelID, len(saved.Params))
	return saved, nil
}
// #endregion save

// #region restore
// Restore rebuilds a stored model. Component names resolve through reg, so
// custom components must be registered before calling it. Every stored
// weight must match a weight of the rebuilt graph by name and shape.
func Restore(store ModelStore, reg *Registry, id string, opts ...Option) (*Model, []string, error) {
	rec, err := store.GetModel(id)
	if err != nil {
		return nil, nil, err
	}
	cfg := config.Default()
	if err := json.Unmarshal([]byte(rec.ConfigJSON), cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config of %s: %w", id, err)
	}
	b, err := NewBuilder(cfg, reg, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild %s: %w", id, err)
	}
	m, err := b.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild %s: %w", id, err)
	}

	stored := make(map[string]state.ParamRecord, len(rec.Params))
	for _, p := range rec.Params {
		stored[p.Name] = p
	}
	params := m.Params()
	if len(params) != len(stored) {
		return nil, nil, fmt.Errorf("restore %s: model has %d params, store has %d", id, len(params), len(stored))
	}
	for _, p := range params {
		sp, ok := stored[p.Name]
		if !ok {
			return nil, nil, fmt.Errorf("restore %s: param %s missing from store", id, p.Name)
		}
		value, err := tensor.New(shape.Of(sp.Shape...), sp.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("restore %s: param %s: %w", id, p.Name, err)
		}
		if !value.Shape().Equal(p.Value.Shape()) {
			return nil, nil, shape.Mismatch(p.Name, "stored weight does not fit the rebuilt graph", p.Value.Shape(), value.Shape())
		}
		copy(p.Value.Data(), value.Data())
	}
	log.Printf("[STORE] restored model %s (%d params)", id, len(params))
	return m, rec.Vocabulary, nil
}
// #endregion restore
