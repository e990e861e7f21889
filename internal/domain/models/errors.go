package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory   = errors.New("insufficient history")
	ErrDegenerateRange       = errors.New("degenerate range: min equals max")
	ErrDegenerateVariance    = errors.New("degenerate variance: zero return deviation")
	ErrDataSourceUnavailable = errors.New("data source unavailable")
	ErrModelFit              = errors.New("model fit failure")
	ErrInvalidSeries         = errors.New("invalid series")
	ErrModelNotFound         = errors.New("model not found")
)

// Stage names the pipeline step a ticker failed in.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageTrain    Stage = "train"
	StageForecast Stage = "forecast"
	StageMetrics  Stage = "metrics"
	StagePersist  Stage = "persist"
)

// TickerError attaches the ticker and stage to a pipeline failure.
type TickerError struct {
	Ticker string
	Stage  Stage
	Err    error
}

func (e *TickerError) Error() string {
	return fmt.Sprintf("ticker %s: %s: %v", e.Ticker, e.Stage, e.Err)
}

func (e *TickerError) Unwrap() error { return e.Err }

// StageOf extracts the stage from a wrapped TickerError.
func StageOf(err error) (Stage, bool) {
	var te *TickerError
	if errors.As(err, &te) {
		return te.Stage, true
	}
	return "", false
}
