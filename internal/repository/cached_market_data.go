package repository

import (
	"context"
	"errors"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

// CachedMarketData memoizes a MarketData source per (ticker, start, end).
// Cache failures degrade to the underlying source.
type CachedMarketData struct {
	next domrepo.MarketData
	c    cache.Service
	ttl  time.Duration
	l    *applogger.Logger
}

var _ domrepo.MarketData = (*CachedMarketData)(nil)

func NewCachedMarketData(next domrepo.MarketData, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedMarketData {
	return &CachedMarketData{next: next, c: c, ttl: ttl, l: applogger.OrNop(l)}
}

func closesKey(ticker string, start, end time.Time) string {
	return cache.GenerateKeyWithParams("closes", ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func (m *CachedMarketData) GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) (*models.TimeSeries, error) {
	key := closesKey(ticker, start, end)
	var ts models.TimeSeries
	err := m.c.Get(ctx, key, &ts)
	if err == nil {
		m.l.Debug("closes cache hit", applogger.String("key", key))
		return &ts, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		m.l.Warn("closes cache get failed", applogger.String("key", key), applogger.Error(err))
	}

	out, err := m.next.GetDailyCloses(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	if err := m.c.Set(ctx, key, out, m.ttl); err != nil {
		m.l.Warn("closes cache set failed", applogger.String("key", key), applogger.Error(err))
	}
	return out, nil
}
