package marketdata

import (
	"context"
	"sort"
	"strconv"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
)

const AlpacaDataURL = "https://data.alpaca.markets"

// Alpaca reads daily bars from the Alpaca market data v2 API.
type Alpaca struct {
	src    *httpSource
	keyID  string
	secret string
	feed   string
}

// NewAlpaca creates an Alpaca provider. feed is "iex" or "sip"; empty means iex.
func NewAlpaca(keyID, secret, feed string, opts ...Option) *Alpaca {
	if feed == "" {
		feed = "iex"
	}
	return &Alpaca{
		src:    newHTTPSource("alpaca", AlpacaDataURL, opts...),
		keyID:  keyID,
		secret: secret,
		feed:   feed,
	}
}

type alpacaBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V float64   `json:"v"`
}

type alpacaBarsResponse struct {
	Symbol        string      `json:"symbol"`
	Bars          []alpacaBar `json:"bars"`
	NextPageToken *string     `json:"next_page_token"`
}

// GetDailyCloses pages through 1Day bars between start and end inclusive.
func (a *Alpaca) GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) (*models.TimeSeries, error) {
	series := &models.TimeSeries{Ticker: ticker}
	headers := map[string]string{
		"APCA-API-KEY-ID":     a.keyID,
		"APCA-API-SECRET-KEY": a.secret,
		"Accept":              "application/json",
	}
	pageToken := ""
	for {
		q := map[string][]string{
			"timeframe":  {"1Day"},
			"start":      {start.UTC().Format(time.RFC3339)},
			"end":        {end.UTC().Format(time.RFC3339)},
			"limit":      {strconv.Itoa(1000)},
			"adjustment": {"raw"},
			"feed":       {a.feed},
		}
		if pageToken != "" {
			q["page_token"] = []string{pageToken}
		}
		var resp alpacaBarsResponse
		err := a.src.retry(ctx, ticker, func() error {
			resp = alpacaBarsResponse{}
			return a.src.getJSON(ctx, "/v2/stocks/"+ticker+"/bars", headers, q, &resp)
		})
		if err != nil {
			return nil, err
		}
		for _, b := range resp.Bars {
			series.Points = append(series.Points, models.PricePoint{Date: dayOf(b.T), Close: b.C})
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		pageToken = *resp.NextPageToken
	}
	sort.Slice(series.Points, func(i, j int) bool { return series.Points[i].Date.Before(series.Points[j].Date) })
	return series, nil
}

var _ drepo.MarketData = (*Alpaca)(nil)
