package forecast

import (
	"context"
	"errors"
	"testing"

	"FinCast/internal/domain/models"
)

func seededTrainer(fitWindow int) *Trainer {
	cfg := DefaultTrainerConfig(fitWindow)
	cfg.Model.Seed = 11
	return NewTrainer(cfg, nil)
}

func TestTrainInsufficientHistory(t *testing.T) {
	tr := seededTrainer(3)
	_, _, err := tr.Train(context.Background(), makeSeries("X", 1, 2, 3))
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestPrepareMinimalHistory(t *testing.T) {
	tr := seededTrainer(2)
	ds, err := tr.Prepare(makeSeries("X", 10, 11, 12))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if ds.Train != 1 || ds.Val != 0 || len(ds.X) != 1 {
		t.Fatalf("unexpected split %d/%d of %d", ds.Train, ds.Val, len(ds.X))
	}
}

func TestTrainMinimalHistory(t *testing.T) {
	tr := seededTrainer(2)
	model, rep, err := tr.Train(context.Background(), makeSeries("X", 10, 11, 12))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if model == nil || rep.Train != 1 || rep.Val != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.History.Epochs) != tr.cfg.Epochs {
		t.Fatalf("expected %d epochs, got %d", tr.cfg.Epochs, len(rep.History.Epochs))
	}
	if _, err := model.Predict([]float64{0, 0}); err != nil {
		t.Fatalf("predict: %v", err)
	}
}

var zigzag = []float64{10, 12, 11, 13, 15, 14, 16, 18, 17, 19, 21, 20, 22, 24, 23, 25, 27, 26, 28, 30}

func TestTrainSplitsChronologically(t *testing.T) {
	closes := zigzag
	tr := seededTrainer(2)
	model, rep, err := tr.Train(context.Background(), makeSeries("X", closes...))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if model.InputLen() != 2 {
		t.Fatalf("model input len %d", model.InputLen())
	}
	if rep.Samples != 18 || rep.Train != 14 || rep.Val != 4 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.History.Epochs) != 5 {
		t.Fatalf("expected 5 epochs, got %d", len(rep.History.Epochs))
	}
	for _, e := range rep.History.Epochs {
		if !e.HasVal {
			t.Fatalf("epoch %d has no validation loss", e.Epoch)
		}
	}
	// 14 samples in batches of 2 for 5 epochs
	if model.Steps() != 35 {
		t.Fatalf("expected 35 optimiser steps, got %d", model.Steps())
	}
}

func TestTrainScaleOnTrainOnly(t *testing.T) {
	cfg := DefaultTrainerConfig(2)
	cfg.Model.Seed = 5
	cfg.ScaleOnTrainOnly = true
	tr := NewTrainer(cfg, nil)
	if _, _, err := tr.Train(context.Background(), makeSeries("X", zigzag...)); err != nil {
		t.Fatalf("train: %v", err)
	}
	// the flat head leaves the training split without spread; it scales to 0
	_, rep, err := tr.Train(context.Background(), makeSeries("X", flatThenSpike()...))
	if err != nil {
		t.Fatalf("train flat head: %v", err)
	}
	if rep.Train != 30 || rep.Val != 8 {
		t.Fatalf("unexpected split %d/%d", rep.Train, rep.Val)
	}
}

func TestTrainHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := seededTrainer(2).Train(ctx, makeSeries("X", flatThenSpike()...))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
