package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
)

const AlphaVantageURL = "https://www.alphavantage.co"

// errThrottled marks the 200-with-a-note responses Alpha Vantage sends when
// the call budget is spent.
var errThrottled = errors.New("alphavantage throttled")

// AlphaVantage reads TIME_SERIES_DAILY.
type AlphaVantage struct {
	src        *httpSource
	apiKey     string
	outputSize string
}

// NewAlphaVantage creates the provider. outputSize is "compact" (100 days) or "full".
func NewAlphaVantage(apiKey, outputSize string, opts ...Option) *AlphaVantage {
	if outputSize == "" {
		outputSize = "compact"
	}
	return &AlphaVantage{
		src:        newHTTPSource("alphavantage", AlphaVantageURL, opts...),
		apiKey:     apiKey,
		outputSize: outputSize,
	}
}

func (a *AlphaVantage) GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) (*models.TimeSeries, error) {
	q := map[string][]string{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {ticker},
		"outputsize": {a.outputSize},
		"datatype":   {"json"},
		"apikey":     {a.apiKey},
	}
	var raw map[string]json.RawMessage
	err := a.src.retry(ctx, ticker, func() error {
		raw = nil
		if err := a.src.getJSON(ctx, "/query", nil, q, &raw); err != nil {
			return err
		}
		return checkNotice(raw)
	})
	if err != nil {
		return nil, err
	}
	return parseDaily(ticker, raw, dayOf(start), dayOf(end))
}

func checkNotice(raw map[string]json.RawMessage) error {
	if msg, ok := raw["Error Message"]; ok {
		return &permanentError{fmt.Errorf("alphavantage: %s", msg)}
	}
	for _, k := range []string{"Note", "Information"} {
		if msg, ok := raw[k]; ok {
			return fmt.Errorf("%w: %s", errThrottled, msg)
		}
	}
	return nil
}

func parseDaily(ticker string, raw map[string]json.RawMessage, from, to time.Time) (*models.TimeSeries, error) {
	body, ok := raw["Time Series (Daily)"]
	if !ok {
		return nil, fmt.Errorf("%w: alphavantage %s: missing daily series", models.ErrDataSourceUnavailable, ticker)
	}
	var days map[string]map[string]string
	if err := json.Unmarshal(body, &days); err != nil {
		return nil, fmt.Errorf("alphavantage %s: decode series: %w", ticker, err)
	}
	series := &models.TimeSeries{Ticker: ticker}
	for ds, fields := range days {
		d, err := time.Parse(time.DateOnly, ds)
		if err != nil {
			return nil, fmt.Errorf("alphavantage %s: date %q: %w", ticker, ds, err)
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		var closeStr string
		for k, v := range fields {
			if strings.HasSuffix(strings.ToLower(k), ". close") {
				closeStr = v
				break
			}
		}
		if closeStr == "" {
			return nil, fmt.Errorf("alphavantage %s: no close on %s", ticker, ds)
		}
		c, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return nil, fmt.Errorf("alphavantage %s: close %q: %w", ticker, closeStr, err)
		}
		series.Points = append(series.Points, models.PricePoint{Date: d, Close: c})
	}
	sort.Slice(series.Points, func(i, j int) bool { return series.Points[i].Date.Before(series.Points[j].Date) })
	return series, nil
}

var _ drepo.MarketData = (*AlphaVantage)(nil)
