package nn

import (
	"fmt"
	"time"

	"FinCast/internal/domain/models"
)

// Snapshot copies the weights into a serialisable form. Optimiser moments are
// not kept; a restored model starts a fresh Adam schedule.
func (m *SequenceModel) Snapshot(ticker string, trainedThrough time.Time) *models.ModelSnapshot {
	snap := &models.ModelSnapshot{
		Ticker:         ticker,
		InputLen:       m.cfg.InputLen,
		Units:          m.cfg.Units,
		Layers:         m.cfg.Layers,
		Dropout:        m.cfg.Dropout,
		TrainedThrough: trainedThrough,
		SavedAt:        time.Now().UTC(),
	}
	for _, p := range m.params {
		data := make([]float64, len(p.data))
		copy(data, p.data)
		snap.Params = append(snap.Params, models.Tensor{Name: p.name, Rows: p.rows, Cols: p.cols, Data: data})
	}
	return snap
}

// Restore rebuilds a model from a snapshot. seed drives future dropout masks.
func Restore(snap *models.ModelSnapshot, learningRate float64, seed uint64) (*SequenceModel, error) {
	if snap == nil {
		return nil, fmt.Errorf("nn: nil snapshot")
	}
	m, err := NewSequenceModel(Config{
		InputLen:     snap.InputLen,
		Units:        snap.Units,
		Layers:       snap.Layers,
		Dropout:      snap.Dropout,
		LearningRate: learningRate,
		Seed:         seed,
	})
	if err != nil {
		return nil, err
	}
	if len(snap.Params) != len(m.params) {
		return nil, fmt.Errorf("nn: snapshot has %d tensors, model has %d", len(snap.Params), len(m.params))
	}
	for i, p := range m.params {
		t := snap.Params[i]
		if t.Name != p.name || t.Rows != p.rows || t.Cols != p.cols || len(t.Data) != len(p.data) {
			return nil, fmt.Errorf("nn: tensor %d mismatch: %s %dx%d vs %s %dx%d", i, t.Name, t.Rows, t.Cols, p.name, p.rows, p.cols)
		}
		copy(p.data, t.Data)
	}
	return m, nil
}
