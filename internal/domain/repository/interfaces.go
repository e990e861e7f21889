package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// MarketData supplies ordered daily closes for a ticker within [start, end].
type MarketData interface {
	GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) (*models.TimeSeries, error)
}

// ModelStore persists trained models per ticker. Load returns models.ErrModelNotFound
// when nothing is stored.
type ModelStore interface {
	Save(ctx context.Context, ticker string, snap *models.ModelSnapshot) error
	Load(ctx context.Context, ticker string) (*models.ModelSnapshot, error)
}

// ForecastStore keeps forecast results for later inspection.
type ForecastStore interface {
	SaveResults(ctx context.Context, recs []models.ForecastRecord) error
	Latest(ctx context.Context, ticker string, limit int) ([]models.ForecastRecord, error)
}

// ResultPublisher emits forecast results as events.
type ResultPublisher interface {
	PublishForecast(ctx context.Context, rec models.ForecastRecord) error
	Close() error
}

type Metrics interface {
	RecordForecast(ticker string, seconds float64)
	RecordError(stage string)
	RecordPredictedReturn(ticker string, pct float64)
	RecordLatency(op string, seconds float64)
}
