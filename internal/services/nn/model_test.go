package nn

import (
	"errors"
	"math"
	"testing"
	"time"

	"FinCast/internal/domain/models"
)

func newTestModel(t *testing.T, cfg Config) *SequenceModel {
	t.Helper()
	m, err := NewSequenceModel(cfg)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	m := newTestModel(t, Config{InputLen: 3, Units: 3, Layers: 3, Dropout: 0, Seed: 7})
	x := []float64{0.1, 0.5, 0.9}
	target := 0.3
	loss := func() float64 {
		d := m.forward(x, false) - target
		return d * d
	}

	m.zeroGrad()
	d := m.forward(x, false) - target
	m.backward(2 * d)

	const h = 1e-6
	for _, p := range m.params {
		for i := range p.data {
			orig := p.data[i]
			p.data[i] = orig + h
			lp := loss()
			p.data[i] = orig - h
			lm := loss()
			p.data[i] = orig
			num := (lp - lm) / (2 * h)
			if math.Abs(num-p.grad[i]) > 1e-6+1e-4*math.Abs(num) {
				t.Fatalf("%s[%d]: analytic %v numeric %v", p.name, i, p.grad[i], num)
			}
		}
	}
}

func TestFitReducesLoss(t *testing.T) {
	m := newTestModel(t, Config{InputLen: 2, Dropout: 0, LearningRate: 0.01, Seed: 42})
	var X [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		a := float64(i) / 20
		X = append(X, []float64{a, a + 0.025})
		y = append(y, a+0.05)
	}
	hist, err := m.Fit(X, y, FitOptions{Epochs: 200, BatchSize: 4})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(hist.Epochs) != 200 {
		t.Fatalf("expected 200 epochs, got %d", len(hist.Epochs))
	}
	first, last := hist.Epochs[0].Loss, hist.FinalLoss()
	if !(last < first) {
		t.Fatalf("loss did not decrease: first %v last %v", first, last)
	}
	if m.Steps() != 200*5 {
		t.Fatalf("expected %d optimiser steps, got %d", 200*5, m.Steps())
	}
}

func TestFitValidationLoss(t *testing.T) {
	m := newTestModel(t, Config{InputLen: 2, Dropout: 0.2, Seed: 3})
	X := [][]float64{{0, 0.1}, {0.1, 0.2}, {0.2, 0.3}, {0.3, 0.4}}
	y := []float64{0.2, 0.3, 0.4, 0.5}
	hist, err := m.Fit(X[:3], y[:3], FitOptions{Epochs: 5, BatchSize: 2, ValX: X[3:], ValY: y[3:]})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	for _, e := range hist.Epochs {
		if !e.HasVal || math.IsNaN(e.ValLoss) {
			t.Fatalf("epoch %d missing validation loss", e.Epoch)
		}
	}
}

func TestSameSeedIsDeterministic(t *testing.T) {
	X := [][]float64{{0.1, 0.2}, {0.2, 0.4}, {0.4, 0.3}}
	y := []float64{0.4, 0.3, 0.6}
	run := func() float64 {
		m := newTestModel(t, Config{InputLen: 2, Dropout: 0.2, Seed: 99})
		if _, err := m.Fit(X, y, FitOptions{Epochs: 5, BatchSize: 2}); err != nil {
			t.Fatalf("fit: %v", err)
		}
		p, err := m.Predict([]float64{0.3, 0.5})
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		return p
	}
	if a, b := run(), run(); a != b {
		t.Fatalf("same seed produced %v and %v", a, b)
	}
}

func TestFitNaNIsModelFitFailure(t *testing.T) {
	m := newTestModel(t, Config{InputLen: 2, Seed: 1})
	_, err := m.Fit([][]float64{{0.1, 0.2}}, []float64{math.NaN()}, FitOptions{Epochs: 1, BatchSize: 1})
	if !errors.Is(err, models.ErrModelFit) {
		t.Fatalf("expected ErrModelFit, got %v", err)
	}
}

func TestShapeErrors(t *testing.T) {
	m := newTestModel(t, Config{InputLen: 3, Seed: 1})
	if _, err := m.Predict([]float64{1, 2}); err == nil {
		t.Fatalf("expected window length error")
	}
	if _, err := m.Fit([][]float64{{1, 2, 3}}, []float64{1, 2}, FitOptions{Epochs: 1}); err == nil {
		t.Fatalf("expected sample/target mismatch error")
	}
	if _, err := NewSequenceModel(Config{InputLen: 0}); err == nil {
		t.Fatalf("expected invalid config error")
	}
	if _, err := NewSequenceModel(Config{InputLen: 2, Dropout: 1}); err == nil {
		t.Fatalf("expected invalid dropout error")
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := newTestModel(t, DefaultConfig(2))
	if _, err := m.Fit([][]float64{{0.1, 0.2}, {0.2, 0.9}}, []float64{0.9, 0.5}, FitOptions{Epochs: 3, BatchSize: 1}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	through := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	snap := m.Snapshot("AAPL", through)
	if snap.Ticker != "AAPL" || !snap.TrainedThrough.Equal(through) || snap.Layers != 3 {
		t.Fatalf("unexpected snapshot header %+v", snap)
	}
	r, err := Restore(snap, 0.001, 5)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	x := []float64{0.3, 0.4}
	want, _ := m.Predict(x)
	got, err := r.Predict(x)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != want {
		t.Fatalf("restored model predicts %v, original %v", got, want)
	}

	snap.Params[0].Rows++
	if _, err := Restore(snap, 0.001, 5); err == nil {
		t.Fatalf("expected tensor mismatch error")
	}
}
