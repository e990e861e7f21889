package api

import (
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/service/metrics"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastHandler serves portfolio forecasts over HTTP and websocket.
type ForecastHandler struct {
	l     *applogger.Logger
	svc   domsvc.PortfolioForecaster
	store domrepo.ForecastStore
	rl    *ratelimit.Limiter
}

// NewForecastHandler builds the handler. store may be nil, which disables the
// history route.
func NewForecastHandler(l *applogger.Logger, svc domsvc.PortfolioForecaster, store domrepo.ForecastStore, rl *ratelimit.Limiter) *ForecastHandler {
	metrics.Register()
	if rl == nil {
		rl = ratelimit.New(0, 1)
	}
	return &ForecastHandler{l: applogger.OrNop(l), svc: svc, store: store, rl: rl}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/ws/forecast", h.Stream)
	g := e.Group("/api/v1")
	g.GET("/forecast", h.Forecast)
	g.GET("/forecast/:ticker/history", h.History)
}

func (h *ForecastHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

type forecastResponse struct {
	RunID   string                  `json:"run_id"`
	AsOf    string                  `json:"as_of"`
	Results *models.PortfolioResult `json:"results"`
}

// parseRequest binds query parameters into a PortfolioRequest. The second
// return value is a validation payload for a 400 response.
func parseRequest(c echo.Context) (domsvc.PortfolioRequest, interface{}, error) {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return domsvc.PortfolioRequest{}, verr, nil
	}
	tickers, err := usecase.SplitTickers(req.Tickers)
	if err != nil {
		return domsvc.PortfolioRequest{}, nil, xhttp.BadRequestError(err.Error()).WithError(err)
	}
	asOf, err := xhttp.ParseDate(req.AsOf)
	if err != nil {
		return domsvc.PortfolioRequest{}, nil, xhttp.BadRequestError(err.Error()).WithError(err)
	}
	return domsvc.PortfolioRequest{
		Tickers:   tickers,
		AsOf:      asOf,
		Window:    req.Window,
		FitWindow: req.FitWindow,
		Policy:    domsvc.FailurePolicy(req.Policy),
	}, nil, nil
}

func (h *ForecastHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl.Allow(c.RealIP() + ":" + endpoint) {
		return true
	}
	h.l.Warn("forecast rate_limited", applogger.String("remote", c.RealIP()), applogger.String("endpoint", endpoint))
	return false
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.HandlerLatency.WithLabelValues("forecast").Observe(time.Since(start).Seconds()) }()

	if !h.allow(c, "forecast") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	req, verr, err := parseRequest(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	res, err := h.svc.Run(c.Request().Context(), req)
	if err != nil {
		h.l.Error("forecast usecase error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, forecastResponse{
		RunID:   res.RunID,
		AsOf:    res.AsOf.Format(time.DateOnly),
		Results: res,
	})
}

func (h *ForecastHandler) History(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.HandlerLatency.WithLabelValues("history").Observe(time.Since(start).Seconds()) }()

	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("result store is disabled"))
	}
	tickers, err := usecase.SplitTickers(c.Param("ticker"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 10)
	if limit < 1 || limit > 500 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("limit must be in [1, 500], got %d", limit))
	}
	recs, err := h.store.Latest(c.Request().Context(), tickers[0], limit)
	if err != nil {
		h.l.Error("forecast history error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history lookup failed").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

var _ xhttp.Handler = (*ForecastHandler)(nil)
