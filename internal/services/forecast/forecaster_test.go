package forecast

import (
	"context"
	"errors"
	"math"
	"testing"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/nn"
)

// scriptedModel returns queued outputs and records its inputs.
type scriptedModel struct {
	w       int
	outputs []float64
	inputs  [][]float64
	fits    int
}

func (m *scriptedModel) InputLen() int { return m.w }

func (m *scriptedModel) Predict(x []float64) (float64, error) {
	m.inputs = append(m.inputs, append([]float64(nil), x...))
	out := m.outputs[0]
	if len(m.outputs) > 1 {
		m.outputs = m.outputs[1:]
	}
	return out, nil
}

func (m *scriptedModel) Fit(X [][]float64, y []float64, opts nn.FitOptions) (nn.History, error) {
	m.fits++
	for _, row := range X {
		for _, v := range row {
			if v < 0 || v > 1 {
				return nn.History{}, errors.New("unscaled input")
			}
		}
	}
	return nn.History{Epochs: []nn.EpochStats{{Epoch: opts.Epochs, Loss: 0.1}}}, nil
}

func TestForecastWindowZeroUsesSeedOnly(t *testing.T) {
	m := &scriptedModel{w: 3, outputs: []float64{0.5}}
	f := NewForecaster(DefaultForecasterConfig(), nil)
	run, err := f.Forecast(context.Background(), m, makeSeries("A", 100, 101, 103, 106), 0, nil)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(m.inputs) != 0 || m.fits != 0 {
		t.Fatalf("model invoked %d/%d times", len(m.inputs), m.fits)
	}
	if len(run.Points) != 3 || run.Points[0].Close != 101 {
		t.Fatalf("unexpected seed %+v", run.Points)
	}
	met, err := Summarize(run)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	want := (106.0/103.0 - 1) * 100
	if math.Abs(met.PredictedReturn-want) > 1e-9 {
		t.Fatalf("predicted return %v want %v", met.PredictedReturn, want)
	}
	if !met.PredictedDate.Equal(day0.AddDate(0, 0, 3)) {
		t.Fatalf("predicted date %v", met.PredictedDate)
	}
}

func TestForecastScalesAgainstHistory(t *testing.T) {
	m := &scriptedModel{w: 2, outputs: []float64{0.5, 0.6, 0.7}}
	f := NewForecaster(DefaultForecasterConfig(), nil)
	hist := makeSeries("A", 100, 200, 120, 180)
	var steps []Step
	run, err := f.Forecast(context.Background(), m, hist, 3, func(s Step) { steps = append(steps, s) })
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(run.Points) != 2+3 || run.SeedLen != 2 || len(run.Predicted()) != 3 {
		t.Fatalf("unexpected run length %d", len(run.Points))
	}
	wantCloses := []float64{120, 180, 150, 160, 170}
	for i, p := range run.Points {
		if math.Abs(p.Close-wantCloses[i]) > 1e-9 {
			t.Fatalf("close %d = %v, want %v", i, p.Close, wantCloses[i])
		}
		if !p.Date.Equal(day0.AddDate(0, 0, 2+i)) {
			t.Fatalf("date %d = %v", i, p.Date)
		}
	}
	first := m.inputs[0]
	if math.Abs(first[0]-0.2) > 1e-12 || math.Abs(first[1]-0.8) > 1e-12 {
		t.Fatalf("first input not scaled against history: %v", first)
	}
	if m.fits != 3 {
		t.Fatalf("expected one refit per step, got %d", m.fits)
	}
	if len(steps) != 3 || steps[2].Total != 3 {
		t.Fatalf("unexpected steps %+v", steps)
	}
	for _, st := range steps {
		if !st.Refit {
			t.Fatalf("step %d was not refit", st.Index)
		}
	}
	if hist.Len() != 4 {
		t.Fatalf("history mutated: %d points", hist.Len())
	}
}

func TestForecastRefitsEveryStep(t *testing.T) {
	cases := []struct {
		w, window int
		closes    []float64
	}{
		{2, 1, []float64{100, 200, 120, 180}},
		{5, 3, []float64{100, 110, 105, 120, 115, 130}},
	}
	for _, tc := range cases {
		m := &scriptedModel{w: tc.w, outputs: []float64{0.5}}
		f := NewForecaster(DefaultForecasterConfig(), nil)
		run, err := f.Forecast(context.Background(), m, makeSeries("A", tc.closes...), tc.window, nil)
		if err != nil {
			t.Fatalf("w=%d: forecast: %v", tc.w, err)
		}
		if m.fits != tc.window {
			t.Fatalf("w=%d: expected %d refits, got %d", tc.w, tc.window, m.fits)
		}
		if len(run.Points) != tc.w+tc.window {
			t.Fatalf("w=%d: run length %d", tc.w, len(run.Points))
		}
	}
}

func TestForecastRefitDisabled(t *testing.T) {
	m := &scriptedModel{w: 2, outputs: []float64{0.5}}
	f := NewForecaster(ForecasterConfig{RefitEpochs: 0, RefitBatchSize: 1}, nil)
	if _, err := f.Forecast(context.Background(), m, makeSeries("A", 100, 200, 120), 2, nil); err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if m.fits != 0 {
		t.Fatalf("expected no refits, got %d", m.fits)
	}
}

func TestForecastDegenerateHistory(t *testing.T) {
	m := &scriptedModel{w: 2, outputs: []float64{0.5}}
	f := NewForecaster(DefaultForecasterConfig(), nil)
	_, err := f.Forecast(context.Background(), m, makeSeries("A", 5, 5, 5), 1, nil)
	if !errors.Is(err, models.ErrDegenerateRange) {
		t.Fatalf("expected ErrDegenerateRange, got %v", err)
	}
}

func TestForecastShortHistory(t *testing.T) {
	m := &scriptedModel{w: 3, outputs: []float64{0.5}}
	f := NewForecaster(DefaultForecasterConfig(), nil)
	_, err := f.Forecast(context.Background(), m, makeSeries("A", 5, 6), 1, nil)
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestForecastCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scriptedModel{w: 2, outputs: []float64{0.5}}
	_, err := NewForecaster(DefaultForecasterConfig(), nil).Forecast(ctx, m, makeSeries("A", 1, 2, 3), 2, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSummarizeDegenerateVariance(t *testing.T) {
	run := &models.ForecastRun{Points: makeSeries("A", 10, 10, 10, 10).Points}
	if _, err := Summarize(run); !errors.Is(err, models.ErrDegenerateVariance) {
		t.Fatalf("expected ErrDegenerateVariance, got %v", err)
	}
	short := &models.ForecastRun{Points: makeSeries("A", 10, 11).Points}
	if _, err := Summarize(short); !errors.Is(err, models.ErrDegenerateVariance) {
		t.Fatalf("expected ErrDegenerateVariance for a single return, got %v", err)
	}
}

func TestTrainThenForecastFlatThenSpike(t *testing.T) {
	hist := makeSeries("SPK", flatThenSpike()...)
	model, _, err := seededTrainer(2).Train(context.Background(), hist)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	run, err := NewForecaster(DefaultForecasterConfig(), nil).Forecast(context.Background(), model, hist, 5, nil)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(run.Points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(run.Points))
	}
	met, err := Summarize(run)
	if errors.Is(err, models.ErrDegenerateVariance) {
		return
	}
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if math.IsNaN(met.PredictedReturn) || math.IsInf(met.PredictedReturn, 0) || math.IsNaN(met.SharpeRatio) || math.IsInf(met.SharpeRatio, 0) {
		t.Fatalf("non-finite metrics %+v", met)
	}
	last, _ := hist.Last()
	if !met.PredictedDate.Equal(last.Date.AddDate(0, 0, 5)) {
		t.Fatalf("predicted date %v, want %v", met.PredictedDate, last.Date.AddDate(0, 0, 5))
	}
}
