package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"FinCast/internal/domain/models"
)

// AnnualizationDaily is the number of trading days per year.
const AnnualizationDaily = 252.0

// minStdDev treats deviations below it as zero.
const minStdDev = 1e-12

// PctChange computes simple returns r_t = C_t / C_{t-1} - 1.
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func PctChange(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

// SharpeRatio annualises daily returns as (mean*252) / (std*sqrt(252)) with the
// sample standard deviation. Zero (or numerically zero) deviation, fewer than two returns or a
// non-finite result yield ErrDegenerateVariance.
func SharpeRatio(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: %d returns", models.ErrDegenerateVariance, len(returns))
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std < minStdDev || math.IsNaN(std) {
		return 0, models.ErrDegenerateVariance
	}
	sr := (mean * AnnualizationDaily) / (std * math.Sqrt(AnnualizationDaily))
	if math.IsNaN(sr) || math.IsInf(sr, 0) {
		return 0, fmt.Errorf("%w: sharpe %v", models.ErrDegenerateVariance, sr)
	}
	return sr, nil
}
