package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

const avDaily = `{
  "Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "IBM", "5. Time Zone": "US/Eastern"},
  "Time Series (Daily)": {
    "2024-01-04": {"1. open": "160.0", "4. close": "161.10", "5. volume": "100"},
    "2024-01-02": {"1. open": "158.0", "4. close": "158.50", "5. volume": "100"},
    "2024-01-03": {"1. open": "159.0", "4. close": "159.75", "5. volume": "100"},
    "2023-12-29": {"1. open": "157.0", "4. close": "157.00", "5. volume": "100"}
  }
}`

func TestAlphaVantageFiltersAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "TIME_SERIES_DAILY" || q.Get("symbol") != "IBM" || q.Get("apikey") != "av-key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, avDaily)
	}))
	defer srv.Close()

	av := NewAlphaVantage("av-key", "", WithBaseURL(srv.URL))
	s, err := av.GetDailyCloses(context.Background(), "IBM", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []float64{158.50, 159.75, 161.10}
	if s.Len() != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), s.Len())
	}
	for i, c := range want {
		if s.Points[i].Close != c {
			t.Fatalf("close %d = %v, want %v", i, s.Points[i].Close, c)
		}
	}
}

func TestAlphaVantageThrottleNoteIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`)
			return
		}
		fmt.Fprint(w, avDaily)
	}))
	defer srv.Close()

	av := NewAlphaVantage("k", "compact", WithBaseURL(srv.URL), WithRetry(2, time.Millisecond))
	if _, err := av.GetDailyCloses(context.Background(), "IBM", time.Time{}, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("get: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestAlphaVantageErrorMessage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"Error Message": "Invalid API call."}`)
	}))
	defer srv.Close()

	av := NewAlphaVantage("k", "", WithBaseURL(srv.URL), WithRetry(3, time.Millisecond))
	_, err := av.GetDailyCloses(context.Background(), "NOPE", time.Time{}, time.Now())
	if !errors.Is(err, models.ErrDataSourceUnavailable) {
		t.Fatalf("expected ErrDataSourceUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("permanent error retried %d times", calls)
	}
}
