package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// ForecastRun is the working series of one ticker's autoregressive forecast.
// The first SeedLen points are observed closes, the rest are predictions.
type ForecastRun struct {
	Ticker  string
	Points  []PricePoint
	SeedLen int
}

// Predicted returns the appended forecast points.
func (r *ForecastRun) Predicted() []PricePoint {
	if r == nil || r.SeedLen >= len(r.Points) {
		return nil
	}
	return r.Points[r.SeedLen:]
}

// Metrics summarises a finished forecast run.
type Metrics struct {
	PredictedReturn float64   `json:"predicted_return"`
	SharpeRatio     float64   `json:"sharpe_ratio"`
	PredictedDate   time.Time `json:"predicted_date"`
}

// MarshalJSON renders the predicted date as a calendar day.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PredictedReturn float64 `json:"predicted_return"`
		SharpeRatio     float64 `json:"sharpe_ratio"`
		PredictedDate   string  `json:"predicted_date"`
	}{m.PredictedReturn, m.SharpeRatio, m.PredictedDate.Format(time.DateOnly)})
}

// TickerResult is one entry of a portfolio run.
type TickerResult struct {
	Ticker  string
	Metrics *Metrics
	Err     error
}

// PortfolioResult holds per-ticker results in input order.
type PortfolioResult struct {
	RunID   string
	AsOf    time.Time
	Entries []TickerResult
}

// Get looks up the entry for ticker.
func (p *PortfolioResult) Get(ticker string) (TickerResult, bool) {
	for _, e := range p.Entries {
		if e.Ticker == ticker {
			return e, true
		}
	}
	return TickerResult{}, false
}

// Failed returns the entries that carry an error.
func (p *PortfolioResult) Failed() []TickerResult {
	var out []TickerResult
	for _, e := range p.Entries {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

type tickerErrorJSON struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// MarshalJSON writes the mapping ticker -> metrics as an object whose keys keep
// input order. Failed entries render as {"error": ..., "stage": ...}.
func (p *PortfolioResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Ticker)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var v []byte
		switch {
		case e.Err != nil:
			te := tickerErrorJSON{Error: e.Err.Error()}
			if st, ok := StageOf(e.Err); ok {
				te.Stage = string(st)
			}
			v, err = json.Marshal(te)
		case e.Metrics != nil:
			v, err = json.Marshal(e.Metrics)
		default:
			v = []byte("null")
		}
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
