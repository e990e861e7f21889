package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/pkg/cache"

	"github.com/guregu/null/v6"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestFileModelStoreRoundTrip(t *testing.T) {
	s := NewFileModelStore(t.TempDir())
	ctx := context.Background()

	if _, err := s.Load(ctx, "aapl"); !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}

	snap := &models.ModelSnapshot{
		Ticker:         "AAPL",
		InputLen:       2,
		Units:          2,
		Layers:         3,
		Dropout:        0.2,
		Params:         []models.Tensor{{Name: "dense.w", Rows: 2, Cols: 1, Data: []float64{0.5, -0.25}}},
		TrainedThrough: day(31),
	}
	if err := s.Save(ctx, "aapl", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(s.path("aapl"), "AAPL_model.json") {
		t.Fatalf("unexpected path %s", s.path("aapl"))
	}
	got, err := s.Load(ctx, "AAPL")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.InputLen != 2 || len(got.Params) != 1 || got.Params[0].Data[1] != -0.25 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.Current(day(31)) || got.Current(day(31).AddDate(0, 0, 1)) {
		t.Fatalf("Current mismatch for trained_through %v", got.TrainedThrough)
	}
}

func TestCacheModelStore(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheModelStore(mc, time.Hour)
	ctx := context.Background()

	if _, err := s.Load(ctx, "MSFT"); !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if err := s.Save(ctx, "msft", &models.ModelSnapshot{Ticker: "MSFT", InputLen: 3}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "MSFT")
	if err != nil || got.InputLen != 3 {
		t.Fatalf("load: %+v %v", got, err)
	}
}

type countingSource struct {
	calls int
	err   error
}

func (c *countingSource) GetDailyCloses(_ context.Context, ticker string, start, _ time.Time) (*models.TimeSeries, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &models.TimeSeries{Ticker: ticker, Points: []models.PricePoint{
		{Date: start, Close: 10},
		{Date: start.AddDate(0, 0, 1), Close: 11},
	}}, nil
}

func TestCachedMarketDataHitsSourceOnce(t *testing.T) {
	src := &countingSource{}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	m := NewCachedMarketData(src, mc, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ts, err := m.GetDailyCloses(ctx, "AAPL", day(1), day(28))
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ts.Len() != 2 || ts.Points[1].Close != 11 || !ts.Points[0].Date.Equal(day(1)) {
			t.Fatalf("unexpected series %+v", ts)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected 1 source call, got %d", src.calls)
	}
	if _, err := m.GetDailyCloses(ctx, "AAPL", day(2), day(28)); err != nil || src.calls != 2 {
		t.Fatalf("different range should miss: calls=%d err=%v", src.calls, err)
	}
}

func TestCachedMarketDataPropagatesErrors(t *testing.T) {
	src := &countingSource{err: models.ErrDataSourceUnavailable}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	m := NewCachedMarketData(src, mc, time.Minute, nil)
	if _, err := m.GetDailyCloses(context.Background(), "AAPL", day(1), day(2)); !errors.Is(err, models.ErrDataSourceUnavailable) {
		t.Fatalf("expected source error, got %v", err)
	}
	if ok, _ := mc.Exists(context.Background(), closesKey("AAPL", day(1), day(2))); ok {
		t.Fatalf("failed fetch must not be cached")
	}
}

func TestForecastInsert(t *testing.T) {
	recs := []models.ForecastRecord{
		{RunID: "r1", Ticker: "AAPL", FitWindow: 2, Window: 30, PredictedReturn: null.FloatFrom(1.5)},
		{RunID: "r1", Ticker: "BAD", FitWindow: 2, Window: 30, Stage: null.StringFrom("train"), Error: null.StringFrom("boom")},
	}
	q, args := forecastInsert(recs)
	if !strings.HasPrefix(q, "INSERT INTO forecast_results (run_id, ticker,") {
		t.Fatalf("unexpected query %s", q)
	}
	if strings.Count(q, "?") != 2*len(forecastColumns) || len(args) != 2*len(forecastColumns) {
		t.Fatalf("placeholders %d args %d", strings.Count(q, "?"), len(args))
	}
	if args[4].(uint16) != 2 || args[5].(uint16) != 30 {
		t.Fatalf("window args %v %v", args[4], args[5])
	}
	if args[len(forecastColumns)+9].(null.String).String != "train" {
		t.Fatalf("stage arg %v", args[len(forecastColumns)+9])
	}
}

func TestClosesInsert(t *testing.T) {
	ts := &models.TimeSeries{Ticker: "AAPL", Points: []models.PricePoint{{Date: day(1), Close: 1}, {Date: day(2), Close: 2}}}
	q, args := closesInsert(ts, "alpaca")
	if strings.Count(q, "(?, ?, ?, ?)") != 2 || len(args) != 8 {
		t.Fatalf("unexpected insert %s %v", q, args)
	}
	if args[5].(string) != "AAPL" || args[7].(string) != "alpaca" {
		t.Fatalf("unexpected args %v", args)
	}
}

type fakeProducer struct {
	topic string
	key   string
	value interface{}
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, string(key), value
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaPublisherKeysByTicker(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaPublisher(fp, "forecast.results")
	rec := models.ForecastRecord{RunID: "r1", Ticker: "AAPL"}
	if err := p.PublishForecast(context.Background(), rec); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if fp.topic != "forecast.results" || fp.key != "AAPL" {
		t.Fatalf("unexpected publish %+v", fp)
	}
	if got, ok := fp.value.(models.ForecastRecord); !ok || got.RunID != "r1" {
		t.Fatalf("unexpected value %#v", fp.value)
	}
}
