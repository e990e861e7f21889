package models

import (
	"fmt"
	"math"
	"time"
)

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// TimeSeries is an ordered daily close series for a single ticker.
type TimeSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of observations.
func (s *TimeSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Closes returns a copy of the closing prices in date order.
func (s *TimeSeries) Closes() []float64 {
	out := make([]float64, s.Len())
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Last returns the most recent observation.
func (s *TimeSeries) Last() (PricePoint, bool) {
	if s.Len() == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Tail returns a new series holding the last n points. The points are copied.
func (s *TimeSeries) Tail(n int) *TimeSeries {
	if n > s.Len() {
		n = s.Len()
	}
	if n < 0 {
		n = 0
	}
	pts := make([]PricePoint, n)
	copy(pts, s.Points[s.Len()-n:])
	return &TimeSeries{Ticker: s.Ticker, Points: pts}
}

// Validate checks ordering and value sanity.
func (s *TimeSeries) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil series", ErrInvalidSeries)
	}
	for i, p := range s.Points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return fmt.Errorf("%w: %s close %v at %s", ErrInvalidSeries, s.Ticker, p.Close, p.Date.Format(time.DateOnly))
		}
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("%w: %s dates not strictly increasing at %s", ErrInvalidSeries, s.Ticker, p.Date.Format(time.DateOnly))
		}
	}
	return nil
}
