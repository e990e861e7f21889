package usecase

import (
	"context"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/forecast"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(ticker string, closes ...float64) *models.TimeSeries {
	s := &models.TimeSeries{Ticker: ticker}
	for i, c := range closes {
		s.Points = append(s.Points, models.PricePoint{Date: day0.AddDate(0, 0, i), Close: c})
	}
	return s
}

func zigzag(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)*0.5 + float64(i%3)*2
	}
	return out
}

type fakeSource struct {
	mu     sync.Mutex
	series map[string]*models.TimeSeries
	errs   map[string]error
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		series: map[string]*models.TimeSeries{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeSource) GetDailyCloses(_ context.Context, ticker string, _, _ time.Time) (*models.TimeSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ticker]++
	if err := f.errs[ticker]; err != nil {
		return nil, err
	}
	s, ok := f.series[ticker]
	if !ok {
		return &models.TimeSeries{Ticker: ticker}, nil
	}
	cp := *s
	cp.Points = append([]models.PricePoint(nil), s.Points...)
	return &cp, nil
}

func (f *fakeSource) count(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

type memModels struct {
	mu    sync.Mutex
	snaps map[string]*models.ModelSnapshot
	saves int
	loads int
}

func (m *memModels) Save(_ context.Context, ticker string, snap *models.ModelSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snaps == nil {
		m.snaps = map[string]*models.ModelSnapshot{}
	}
	m.snaps[ticker] = snap
	m.saves++
	return nil
}

func (m *memModels) Load(_ context.Context, ticker string) (*models.ModelSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if s, ok := m.snaps[ticker]; ok {
		return s, nil
	}
	return nil, models.ErrModelNotFound
}

type memResults struct {
	mu        sync.Mutex
	saved     []models.ForecastRecord
	published []models.ForecastRecord
}

func (m *memResults) SaveResults(_ context.Context, recs []models.ForecastRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, recs...)
	return nil
}

func (m *memResults) Latest(context.Context, string, int) ([]models.ForecastRecord, error) {
	return nil, nil
}

func (m *memResults) PublishForecast(_ context.Context, rec models.ForecastRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, rec)
	return nil
}

func (m *memResults) Close() error { return nil }

type countingMetrics struct {
	mu        sync.Mutex
	forecasts int
	errs      map[string]int
}

func (c *countingMetrics) RecordForecast(string, float64) {
	c.mu.Lock()
	c.forecasts++
	c.mu.Unlock()
}

func (c *countingMetrics) RecordError(stage string) {
	c.mu.Lock()
	if c.errs == nil {
		c.errs = map[string]int{}
	}
	c.errs[stage]++
	c.mu.Unlock()
}

func (c *countingMetrics) RecordPredictedReturn(string, float64) {}
func (c *countingMetrics) RecordLatency(string, float64)         {}

func testConfig(fitWindow int) PortfolioConfig {
	tc := forecast.DefaultTrainerConfig(fitWindow)
	tc.Model.Seed = 7
	fc := forecast.DefaultForecasterConfig()
	fc.RefitEpochs = 2
	return PortfolioConfig{FitWindow: fitWindow, Concurrency: 1, Trainer: tc, Forecaster: fc}
}
