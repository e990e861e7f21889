package api

import (
	"context"
	"errors"

	"FinCast/internal/domain/models"
	xhttp "FinCast/pkg/http"
)

// toAppError maps pipeline failures onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var out *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrDataSourceUnavailable):
		out = xhttp.BadGatewayError("market data source unavailable")
	case errors.Is(err, models.ErrInsufficientHistory),
		errors.Is(err, models.ErrDegenerateRange),
		errors.Is(err, models.ErrDegenerateVariance),
		errors.Is(err, models.ErrInvalidSeries):
		out = xhttp.UnprocessableError(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out = xhttp.InternalError("forecast aborted")
	default:
		var te *models.TickerError
		if !errors.As(err, &te) {
			// request level failures (bad tickers, policy, window)
			out = xhttp.BadRequestError(err.Error())
			break
		}
		out = xhttp.InternalError("forecast failed")
	}

	var te *models.TickerError
	if errors.As(err, &te) {
		out.WithParam("ticker", te.Ticker).WithParam("stage", string(te.Stage))
	}
	return out.WithError(err)
}
