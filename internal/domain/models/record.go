package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// ForecastRecord is the persisted and published form of one ticker result.
// Metric fields are null when the ticker failed.
type ForecastRecord struct {
	RunID           string      `json:"run_id"`
	Ticker          string      `json:"ticker"`
	AsOf            time.Time   `json:"as_of"`
	CreatedAt       time.Time   `json:"created_at"`
	FitWindow       int         `json:"fit_window"`
	Window          int         `json:"window"`
	PredictedReturn null.Float  `json:"predicted_return"`
	SharpeRatio     null.Float  `json:"sharpe_ratio"`
	PredictedDate   null.Time   `json:"predicted_date"`
	Stage           null.String `json:"stage"`
	Error           null.String `json:"error"`
}

// NewForecastRecord converts a ticker result.
func NewForecastRecord(runID string, asOf time.Time, fitWindow, window int, r TickerResult) ForecastRecord {
	rec := ForecastRecord{
		RunID:     runID,
		Ticker:    r.Ticker,
		AsOf:      asOf,
		CreatedAt: time.Now().UTC(),
		FitWindow: fitWindow,
		Window:    window,
	}
	if r.Metrics != nil {
		rec.PredictedReturn = null.FloatFrom(r.Metrics.PredictedReturn)
		rec.SharpeRatio = null.FloatFrom(r.Metrics.SharpeRatio)
		rec.PredictedDate = null.TimeFrom(r.Metrics.PredictedDate)
	}
	if r.Err != nil {
		rec.Error = null.StringFrom(r.Err.Error())
		if st, ok := StageOf(r.Err); ok {
			rec.Stage = null.StringFrom(string(st))
		}
	}
	return rec
}
