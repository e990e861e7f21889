package models

import "time"

// Tensor is a named, row-major parameter block of a trained model.
type Tensor struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// ModelSnapshot is the serialisable state of a sequence model.
type ModelSnapshot struct {
	Ticker         string    `json:"ticker"`
	InputLen       int       `json:"input_len"`
	Units          int       `json:"units"`
	Layers         int       `json:"layers"`
	Dropout        float64   `json:"dropout"`
	Params         []Tensor  `json:"params"`
	TrainedThrough time.Time `json:"trained_through"`
	SavedAt        time.Time `json:"saved_at"`
}

// Current reports whether the snapshot was fitted on data up to at least last.
func (s *ModelSnapshot) Current(last time.Time) bool {
	return s != nil && !s.TrainedThrough.Before(last)
}
