package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

// CloseSink receives fetched series, e.g. the ClickHouse close store.
type CloseSink interface {
	StoreCloses(ctx context.Context, ts *models.TimeSeries, source string) error
}

// HistoryUseCase loads the observed closes a forecast starts from.
type HistoryUseCase struct {
	src      domrepo.MarketData
	source   string
	lookback time.Duration
	sink     CloseSink
	l        *applogger.Logger
}

const DefaultLookback = 4 * 7 * 24 * time.Hour

func NewHistoryUseCase(src domrepo.MarketData, source string, lookback time.Duration, l *applogger.Logger) *HistoryUseCase {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &HistoryUseCase{src: src, source: source, lookback: lookback, l: applogger.OrNop(l)}
}

// WithSink mirrors every fetched series into sink.
func (h *HistoryUseCase) WithSink(sink CloseSink) *HistoryUseCase {
	h.sink = sink
	return h
}

// Range returns the inclusive calendar range [asOf - lookback, asOf].
func (h *HistoryUseCase) Range(asOf time.Time) (time.Time, time.Time) {
	end := truncateDay(asOf)
	return end.Add(-h.lookback), end
}

// Load fetches and validates the closes of ticker up to asOf. Failures come back
// as *models.TickerError tagged with the fetch or validate stage.
func (h *HistoryUseCase) Load(ctx context.Context, ticker string, asOf time.Time) (*models.TimeSeries, error) {
	start, end := h.Range(asOf)
	ts, err := h.src.GetDailyCloses(ctx, ticker, start, end)
	if err != nil {
		return nil, &models.TickerError{Ticker: ticker, Stage: models.StageFetch, Err: err}
	}
	if ts.Ticker == "" {
		ts.Ticker = ticker
	}
	if err := ts.Validate(); err != nil {
		return nil, &models.TickerError{Ticker: ticker, Stage: models.StageValidate, Err: err}
	}
	h.l.Debug("history.loaded",
		applogger.String("ticker", ticker),
		applogger.Date("start", start),
		applogger.Date("end", end),
		applogger.Int("closes", ts.Len()),
	)
	if h.sink != nil && ts.Len() > 0 {
		if err := h.sink.StoreCloses(ctx, ts, h.source); err != nil {
			h.l.Warn("history.mirror failed", applogger.String("ticker", ticker), applogger.Error(err))
		}
	}
	return ts, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,15}$`)

// NormalizeTickers trims, upper-cases and de-duplicates tickers, keeping input order.
// Symbols outside [A-Z0-9.-]{1,15} are rejected; they end up in URL paths and file names.
func NormalizeTickers(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !tickerPattern.MatchString(t) {
			return nil, fmt.Errorf("invalid ticker %q", t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no tickers given")
	}
	return out, nil
}

// SplitTickers parses a comma separated ticker list.
func SplitTickers(s string) ([]string, error) {
	return NormalizeTickers(strings.Split(s, ","))
}
