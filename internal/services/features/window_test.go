package features

import (
	"errors"
	"testing"

	"FinCast/internal/domain/models"
)

func TestWindowsCountAndAlignment(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 15, 16}
	for w := 1; w < len(values); w++ {
		X, y, err := Windows(values, w)
		if err != nil {
			t.Fatalf("w=%d: unexpected error: %v", w, err)
		}
		if len(X) != len(values)-w || len(y) != len(values)-w {
			t.Fatalf("w=%d: got %d/%d samples, want %d", w, len(X), len(y), len(values)-w)
		}
		for i := range X {
			if len(X[i]) != w {
				t.Fatalf("w=%d sample %d: feature len %d", w, i, len(X[i]))
			}
			if X[i][0] != values[i] || y[i] != values[i+w] {
				t.Fatalf("w=%d sample %d misaligned: %v -> %v", w, i, X[i], y[i])
			}
		}
	}
}

func TestWindowsDoesNotAlias(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	X, _, err := Windows(values, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	X[0][0] = 99
	if values[0] != 1 {
		t.Fatalf("window mutation leaked into input")
	}
}

func TestWindowsInsufficient(t *testing.T) {
	cases := []struct {
		n, w int
	}{{0, 1}, {2, 2}, {1, 3}}
	for _, c := range cases {
		_, _, err := Windows(make([]float64, c.n), c.w)
		if !errors.Is(err, models.ErrInsufficientHistory) {
			t.Fatalf("n=%d w=%d: expected ErrInsufficientHistory, got %v", c.n, c.w, err)
		}
	}
	if _, _, err := Windows([]float64{1, 2}, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestSplitChronological(t *testing.T) {
	cases := []struct {
		n, train, val int
	}{
		{0, 0, 0},
		{1, 1, 0},
		{2, 1, 1},
		{5, 4, 1},
		{10, 8, 2},
		{38, 30, 8},
	}
	for _, c := range cases {
		tr, va := SplitChronological(c.n, 0.8)
		if tr != c.train || va != c.val {
			t.Fatalf("n=%d: got %d/%d, want %d/%d", c.n, tr, va, c.train, c.val)
		}
	}
}
