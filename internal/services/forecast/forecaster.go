package forecast

import (
	"context"
	"fmt"
	"math"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/features"
	"FinCast/internal/services/nn"
	"FinCast/pkg/logger"
)

// Model is the part of a sequence model the forecaster drives.
type Model interface {
	InputLen() int
	Predict(x []float64) (float64, error)
	Fit(X [][]float64, y []float64, opts nn.FitOptions) (nn.History, error)
}

var _ Model = (*nn.SequenceModel)(nil)

// ForecasterConfig controls the per-step refit.
type ForecasterConfig struct {
	RefitEpochs    int
	RefitBatchSize int
}

func DefaultForecasterConfig() ForecasterConfig {
	return ForecasterConfig{RefitEpochs: 10, RefitBatchSize: 1}
}

// Step describes one finished forecast iteration.
type Step struct {
	Index int // 1-based
	Total int
	Point models.PricePoint
	Refit bool
	Loss  float64
}

type Forecaster struct {
	cfg ForecasterConfig
	log *logger.Logger
}

func NewForecaster(cfg ForecasterConfig, log *logger.Logger) *Forecaster {
	return &Forecaster{cfg: cfg, log: logger.OrNop(log)}
}

// Forecast seeds a run with the last InputLen observations of history and
// extends it by window predicted days. Inputs and outputs of the model are
// scaled against the whole observed history, never against the run. After each
// prediction the model is refit on the full run.
func (f *Forecaster) Forecast(ctx context.Context, model Model, history *models.TimeSeries, window int, onStep func(Step)) (*models.ForecastRun, error) {
	w := model.InputLen()
	if history.Len() < w {
		return nil, fmt.Errorf("%w: %d closes for window %d", models.ErrInsufficientHistory, history.Len(), w)
	}
	if window < 0 {
		return nil, fmt.Errorf("holding window must not be negative, got %d", window)
	}
	seed := history.Tail(w)
	run := &models.ForecastRun{Ticker: history.Ticker, Points: seed.Points, SeedLen: w}
	if window == 0 {
		return run, nil
	}

	ref, err := features.FitScale1D(history.Closes())
	if err != nil {
		return nil, fmt.Errorf("scale reference: %w", err)
	}

	for i := 1; i <= window; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tail := make([]float64, w)
		for j, p := range run.Points[len(run.Points)-w:] {
			tail[j] = p.Close
		}
		x, err := ref.Apply1D(tail)
		if err != nil {
			return nil, err
		}
		out, err := model.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("predict step %d: %w", i, err)
		}
		price, err := ref.Invert1D([]float64{out})
		if err != nil {
			return nil, err
		}
		if math.IsNaN(price[0]) || math.IsInf(price[0], 0) {
			return nil, fmt.Errorf("%w: step %d produced %v", models.ErrModelFit, i, price[0])
		}
		last := run.Points[len(run.Points)-1]
		pt := models.PricePoint{Date: last.Date.AddDate(0, 0, 1), Close: price[0]}
		run.Points = append(run.Points, pt)

		step := Step{Index: i, Total: window, Point: pt}
		loss, refit, err := f.refit(model, run)
		if err != nil {
			return nil, fmt.Errorf("refit step %d: %w", i, err)
		}
		step.Refit, step.Loss = refit, loss

		f.log.Debug("forecaster.step",
			logger.String("ticker", run.Ticker),
			logger.Int("step", i),
			logger.Date("date", pt.Date),
			logger.Float64("close", pt.Close),
			logger.Bool("refit", refit),
		)
		if onStep != nil {
			onStep(step)
		}
	}
	return run, nil
}

// refit windows and scales the run against itself and fits the model once.
// Constant columns, as in the single window of the first step, scale to 0.
func (f *Forecaster) refit(model Model, run *models.ForecastRun) (float64, bool, error) {
	if f.cfg.RefitEpochs == 0 {
		return 0, false, nil
	}
	closes := make([]float64, len(run.Points))
	for i, p := range run.Points {
		closes[i] = p.Close
	}
	X, y, err := features.Windows(closes, model.InputLen())
	if err != nil {
		return 0, false, err
	}
	xCtx, err := features.FitScaleZeroSafe(X)
	if err != nil {
		return 0, false, err
	}
	yCtx, err := features.FitScaleZeroSafe1D(y)
	if err != nil {
		return 0, false, err
	}
	Xs, err := xCtx.Apply(X)
	if err != nil {
		return 0, false, err
	}
	ys, err := yCtx.Apply1D(y)
	if err != nil {
		return 0, false, err
	}
	hist, err := model.Fit(Xs, ys, nn.FitOptions{Epochs: f.cfg.RefitEpochs, BatchSize: f.cfg.RefitBatchSize})
	if err != nil {
		return 0, false, err
	}
	return hist.FinalLoss(), true, nil
}

// Summarize derives the portfolio metrics of a finished run: the last
// day-over-day return in percent, the annualised Sharpe-like ratio and the
// final date.
func Summarize(run *models.ForecastRun) (models.Metrics, error) {
	var m models.Metrics
	if run == nil || len(run.Points) == 0 {
		return m, fmt.Errorf("%w: empty run", models.ErrInsufficientHistory)
	}
	closes := make([]float64, len(run.Points))
	for i, p := range run.Points {
		closes[i] = p.Close
	}
	returns := features.PctChange(closes)
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return m, fmt.Errorf("%w: non-finite return at %d", models.ErrModelFit, i+1)
		}
	}
	m.PredictedDate = run.Points[len(run.Points)-1].Date
	sr, err := features.SharpeRatio(returns)
	if err != nil {
		return m, err
	}
	m.SharpeRatio = sr
	m.PredictedReturn = returns[len(returns)-1] * 100
	return m, nil
}
