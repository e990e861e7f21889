package forecast

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/features"
	"FinCast/internal/services/nn"
	"FinCast/pkg/logger"
)

// TrainerConfig controls the initial fit on history.
type TrainerConfig struct {
	FitWindow int
	Epochs    int
	BatchSize int
	TrainFrac float64
	// ScaleOnTrainOnly fits the scale contexts on the training split instead of
	// on every window. Off by default.
	ScaleOnTrainOnly bool
	Model            nn.Config
}

// DefaultTrainerConfig returns the stock training schedule: 5 epochs, batch 2,
// 80/20 chronological split.
func DefaultTrainerConfig(fitWindow int) TrainerConfig {
	return TrainerConfig{
		FitWindow: fitWindow,
		Epochs:    5,
		BatchSize: 2,
		TrainFrac: 0.8,
		Model:     nn.DefaultConfig(fitWindow),
	}
}

// Dataset is a windowed series with its chronological split point.
type Dataset struct {
	X     [][]float64
	Y     []float64
	Train int
	Val   int
}

// TrainReport describes a finished initial fit.
type TrainReport struct {
	Samples int
	Train   int
	Val     int
	History nn.History
	Elapsed time.Duration
}

type Trainer struct {
	cfg TrainerConfig
	log *logger.Logger
}

func NewTrainer(cfg TrainerConfig, log *logger.Logger) *Trainer {
	if cfg.TrainFrac <= 0 || cfg.TrainFrac > 1 {
		cfg.TrainFrac = 0.8
	}
	return &Trainer{cfg: cfg, log: logger.OrNop(log)}
}

// Prepare windows the closes and computes the train/validation split.
func (t *Trainer) Prepare(series *models.TimeSeries) (*Dataset, error) {
	if series.Len() < t.cfg.FitWindow+1 {
		return nil, fmt.Errorf("%w: %d closes, need at least %d", models.ErrInsufficientHistory, series.Len(), t.cfg.FitWindow+1)
	}
	X, y, err := features.Windows(series.Closes(), t.cfg.FitWindow)
	if err != nil {
		return nil, err
	}
	tr, va := features.SplitChronological(len(X), t.cfg.TrainFrac)
	return &Dataset{X: X, Y: y, Train: tr, Val: va}, nil
}

// Train fits a fresh model on the series.
func (t *Trainer) Train(ctx context.Context, series *models.TimeSeries) (*nn.SequenceModel, *TrainReport, error) {
	start := time.Now()
	ds, err := t.Prepare(series)
	if err != nil {
		return nil, nil, err
	}

	xRef, yRef := ds.X, ds.Y
	if t.cfg.ScaleOnTrainOnly {
		xRef, yRef = ds.X[:ds.Train], ds.Y[:ds.Train]
	}
	xCtx, err := features.FitScaleZeroSafe(xRef)
	if err != nil {
		return nil, nil, fmt.Errorf("scale inputs: %w", err)
	}
	yCtx, err := features.FitScaleZeroSafe1D(yRef)
	if err != nil {
		return nil, nil, fmt.Errorf("scale targets: %w", err)
	}
	X, err := xCtx.Apply(ds.X)
	if err != nil {
		return nil, nil, err
	}
	y, err := yCtx.Apply1D(ds.Y)
	if err != nil {
		return nil, nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	mcfg := t.cfg.Model
	// one unit per timestep
	mcfg.InputLen, mcfg.Units = t.cfg.FitWindow, t.cfg.FitWindow
	model, err := nn.NewSequenceModel(mcfg)
	if err != nil {
		return nil, nil, err
	}
	opts := nn.FitOptions{Epochs: t.cfg.Epochs, BatchSize: t.cfg.BatchSize}
	if ds.Val > 0 {
		opts.ValX, opts.ValY = X[ds.Train:], y[ds.Train:]
	}
	hist, err := model.Fit(X[:ds.Train], y[:ds.Train], opts)
	if err != nil {
		return nil, nil, fmt.Errorf("fit %s: %w", series.Ticker, err)
	}

	rep := &TrainReport{Samples: len(ds.X), Train: ds.Train, Val: ds.Val, History: hist, Elapsed: time.Since(start)}
	for _, e := range hist.Epochs {
		t.log.Debug("trainer.epoch",
			logger.String("ticker", series.Ticker),
			logger.Int("epoch", e.Epoch),
			logger.Float64("loss", e.Loss),
			logger.Float64("val_loss", e.ValLoss),
		)
	}
	t.log.Info("trainer.fitted",
		logger.String("ticker", series.Ticker),
		logger.Int("train", ds.Train),
		logger.Int("val", ds.Val),
		logger.Float64("loss", hist.FinalLoss()),
		logger.Duration("elapsed_ms", rep.Elapsed),
	)
	return model, rep, nil
}
