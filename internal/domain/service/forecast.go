package service

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// StepFunc observes one autoregressive forecast iteration.
type StepFunc func(p models.ForecastProgress)

// PortfolioRequest describes one portfolio forecast invocation. Window is taken
// as given (0 is valid). A zero FitWindow falls back to the configured default and
// a zero AsOf means today.
type PortfolioRequest struct {
	Tickers   []string
	AsOf      time.Time
	Window    int
	FitWindow int
	Policy    FailurePolicy
	OnStep    StepFunc
}

// FailurePolicy decides what a ticker failure does to the rest of the run.
type FailurePolicy string

const (
	// FailFast aborts the run at the first failing ticker in input order.
	FailFast FailurePolicy = "fail_fast"
	// Collect records per-ticker failures next to successes.
	Collect FailurePolicy = "collect"
)

// PortfolioForecaster runs the forecast pipeline across tickers.
type PortfolioForecaster interface {
	Run(ctx context.Context, req PortfolioRequest) (*models.PortfolioResult, error)
}
