package forecast

import (
	"time"

	"FinCast/internal/domain/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(ticker string, closes ...float64) *models.TimeSeries {
	s := &models.TimeSeries{Ticker: ticker}
	for i, c := range closes {
		s.Points = append(s.Points, models.PricePoint{Date: day0.AddDate(0, 0, i), Close: c})
	}
	return s
}

// flatThenSpike returns 40 closes: 34 flat days followed by a sharp rise.
func flatThenSpike() []float64 {
	out := make([]float64, 0, 40)
	for i := 0; i < 34; i++ {
		out = append(out, 100)
	}
	return append(out, 101, 103, 108, 118, 135, 160)
}
