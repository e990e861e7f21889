package features

import (
	"errors"
	"math"
	"testing"

	"FinCast/internal/domain/models"
)

func TestPctChange(t *testing.T) {
	r := PctChange([]float64{100, 110, 99})
	if len(r) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(r))
	}
	if math.Abs(r[0]-0.1) > 1e-12 || math.Abs(r[1]+0.1) > 1e-12 {
		t.Fatalf("unexpected returns %v", r)
	}
	if PctChange([]float64{1}) != nil {
		t.Fatalf("expected nil for single close")
	}
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.03}
	got, err := SharpeRatio(returns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mean := 0.0125
	var ss float64
	for _, v := range returns {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / 3)
	want := mean * 252 / (std * math.Sqrt(252))
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSharpeRatioDegenerate(t *testing.T) {
	for _, r := range [][]float64{nil, {0.01}, {0.25, 0.25, 0.25}, {0, 0}} {
		if _, err := SharpeRatio(r); !errors.Is(err, models.ErrDegenerateVariance) {
			t.Fatalf("%v: expected ErrDegenerateVariance, got %v", r, err)
		}
	}
}
