package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/nn"
	applogger "FinCast/pkg/logger"
)

// PortfolioConfig holds the run-wide defaults of the driver.
type PortfolioConfig struct {
	FitWindow   int
	Window      int
	Policy      domsvc.FailurePolicy
	Concurrency int
	ReuseModels bool
	// Trainer is the base training schedule; FitWindow and the model shape are
	// set per request.
	Trainer    forecast.TrainerConfig
	Forecaster forecast.ForecasterConfig
}

// Portfolio runs fetch → train → forecast → metrics for every ticker of a request.
type Portfolio struct {
	cfg     PortfolioConfig
	history *HistoryUseCase
	models  domrepo.ModelStore
	store   domrepo.ForecastStore
	pub     domrepo.ResultPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

var _ domsvc.PortfolioForecaster = (*Portfolio)(nil)

// NewPortfolio wires the driver. models, store and pub may be nil.
func NewPortfolio(cfg PortfolioConfig, history *HistoryUseCase, models domrepo.ModelStore, store domrepo.ForecastStore, pub domrepo.ResultPublisher, metrics domrepo.Metrics, l *applogger.Logger) *Portfolio {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.FitWindow < 1 {
		cfg.FitWindow = 2
	}
	if cfg.Policy == "" {
		cfg.Policy = domsvc.FailFast
	}
	if cfg.Trainer.Epochs == 0 {
		cfg.Trainer = forecast.DefaultTrainerConfig(cfg.FitWindow)
	}
	if cfg.Forecaster.RefitEpochs == 0 && cfg.Forecaster.RefitBatchSize == 0 {
		cfg.Forecaster = forecast.DefaultForecasterConfig()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Portfolio{
		cfg:     cfg,
		history: history,
		models:  models,
		store:   store,
		pub:     pub,
		metrics: metrics,
		l:       applogger.OrNop(l),
		now:     time.Now,
	}
}

type tickerJob struct {
	runID     string
	ticker    string
	asOf      time.Time
	window    int
	fitWindow int
	onStep    domsvc.StepFunc
}

// Run forecasts every ticker of req. Entries keep input order. Under fail_fast
// the first failing ticker in input order is returned as *models.TickerError.
func (p *Portfolio) Run(ctx context.Context, req domsvc.PortfolioRequest) (*models.PortfolioResult, error) {
	tickers, err := NormalizeTickers(req.Tickers)
	if err != nil {
		return nil, err
	}
	if req.Window < 0 {
		return nil, fmt.Errorf("window must be >= 0, got %d", req.Window)
	}
	policy := req.Policy
	if policy == "" {
		policy = p.cfg.Policy
	}
	if policy != domsvc.FailFast && policy != domsvc.Collect {
		return nil, fmt.Errorf("unknown failure policy %q", policy)
	}
	fitWindow := req.FitWindow
	if fitWindow == 0 {
		fitWindow = p.cfg.FitWindow
	}
	if fitWindow < 1 {
		return nil, fmt.Errorf("fit window must be >= 1, got %d", fitWindow)
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = p.now()
	}
	asOf = truncateDay(asOf)

	runID := uuid.NewString()
	log := p.l.With(applogger.String("run_id", runID))
	log.Info("portfolio.start",
		applogger.Strings("tickers", tickers),
		applogger.Date("as_of", asOf),
		applogger.Int("window", req.Window),
		applogger.Int("fit_window", fitWindow),
		applogger.String("policy", string(policy)),
	)
	started := time.Now()

	results := make([]models.TickerResult, len(tickers))
	ran := make([]bool, len(tickers))
	// lowest failed index so far; tickers after it are skipped under fail_fast
	var firstFail atomic.Int64
	firstFail.Store(math.MaxInt64)
	skip := func(i int) bool {
		return policy == domsvc.FailFast && firstFail.Load() < int64(i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, t := range tickers {
		if skip(i) {
			break
		}
		job := tickerJob{runID: runID, ticker: t, asOf: asOf, window: req.Window, fitWindow: fitWindow, onStep: req.OnStep}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if skip(i) {
				return nil
			}
			res := p.runTicker(gctx, job, log)
			results[i], ran[i] = res, true
			if res.Err != nil {
				for {
					cur := firstFail.Load()
					if int64(i) >= cur || firstFail.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &models.PortfolioResult{RunID: runID, AsOf: asOf}
	for i := range results {
		if ran[i] {
			out.Entries = append(out.Entries, results[i])
		}
	}
	p.persist(ctx, out, fitWindow, req.Window, log)

	log.Info("portfolio.done",
		applogger.Int("tickers", len(out.Entries)),
		applogger.Int("failed", len(out.Failed())),
		applogger.Duration("elapsed_ms", time.Since(started)),
	)

	if policy == domsvc.FailFast {
		if bad := out.Failed(); len(bad) > 0 {
			return nil, bad[0].Err
		}
	}
	return out, nil
}

func (p *Portfolio) runTicker(ctx context.Context, job tickerJob, log *applogger.Logger) models.TickerResult {
	start := time.Now()
	log = log.With(applogger.String("ticker", job.ticker))
	res := models.TickerResult{Ticker: job.ticker}

	fail := func(stage models.Stage, err error) models.TickerResult {
		var te *models.TickerError
		if !errors.As(err, &te) {
			te = &models.TickerError{Ticker: job.ticker, Stage: stage, Err: err}
		}
		p.metrics.RecordError(string(te.Stage))
		log.Error("ticker.failed", applogger.String("stage", string(te.Stage)), applogger.Error(te.Err))
		p.notify(job, models.ForecastProgress{Done: true, Error: te.Error()})
		res.Err = te
		return res
	}

	t0 := time.Now()
	series, err := p.history.Load(ctx, job.ticker, job.asOf)
	if err != nil {
		return fail(models.StageFetch, err)
	}
	p.metrics.RecordLatency("fetch", time.Since(t0).Seconds())

	t0 = time.Now()
	model, err := p.model(ctx, series, job.fitWindow, log)
	if err != nil {
		return fail(models.StageTrain, err)
	}
	p.metrics.RecordLatency("train", time.Since(t0).Seconds())

	t0 = time.Now()
	fc := forecast.NewForecaster(p.cfg.Forecaster, log)
	run, err := fc.Forecast(ctx, model, series, job.window, func(s forecast.Step) {
		p.notify(job, models.ForecastProgress{
			Step:      s.Index,
			Total:     s.Total,
			Date:      s.Point.Date.Format(time.DateOnly),
			Predicted: s.Point.Close,
			Loss:      s.Loss,
		})
	})
	if err != nil {
		return fail(models.StageForecast, err)
	}
	p.metrics.RecordLatency("forecast", time.Since(t0).Seconds())

	m, err := forecast.Summarize(run)
	if err != nil {
		return fail(models.StageMetrics, err)
	}
	res.Metrics = &m

	p.metrics.RecordForecast(job.ticker, time.Since(start).Seconds())
	p.metrics.RecordPredictedReturn(job.ticker, m.PredictedReturn)
	p.notify(job, models.ForecastProgress{Done: true, Step: job.window, Total: job.window, Date: m.PredictedDate.Format(time.DateOnly)})
	log.Info("ticker.done",
		applogger.Float64("predicted_return", m.PredictedReturn),
		applogger.Float64("sharpe_ratio", m.SharpeRatio),
		applogger.Date("predicted_date", m.PredictedDate),
		applogger.Duration("elapsed_ms", time.Since(start)),
	)
	return res
}

// model returns a stored model that is current for series, or trains a fresh one.
// Freshly trained models are saved before forecasting mutates them.
func (p *Portfolio) model(ctx context.Context, series *models.TimeSeries, fitWindow int, log *applogger.Logger) (forecast.Model, error) {
	last, _ := series.Last()
	mcfg := p.modelConfig(fitWindow)

	if p.models != nil && p.cfg.ReuseModels {
		snap, err := p.models.Load(ctx, series.Ticker)
		switch {
		case err == nil && snap.InputLen == fitWindow && snap.Current(last.Date):
			m, rerr := nn.Restore(snap, mcfg.LearningRate, mcfg.Seed)
			if rerr == nil {
				log.Info("model.reused", applogger.Date("trained_through", snap.TrainedThrough))
				return m, nil
			}
			log.Warn("model.restore failed", applogger.Error(rerr))
		case err == nil:
			log.Debug("model.stale", applogger.Date("trained_through", snap.TrainedThrough), applogger.Int("input_len", snap.InputLen))
		case !errors.Is(err, models.ErrModelNotFound):
			log.Warn("model.load failed", applogger.Error(err))
		}
	}

	tcfg := p.cfg.Trainer
	tcfg.FitWindow = fitWindow
	tcfg.Model = mcfg
	model, _, err := forecast.NewTrainer(tcfg, log).Train(ctx, series)
	if err != nil {
		return nil, err
	}

	if p.models != nil {
		if err := p.models.Save(ctx, series.Ticker, model.Snapshot(series.Ticker, last.Date)); err != nil {
			p.metrics.RecordError(string(models.StagePersist))
			log.Warn("model.save failed", applogger.Error(err))
		}
	}
	return model, nil
}

func (p *Portfolio) modelConfig(fitWindow int) nn.Config {
	c := p.cfg.Trainer.Model
	c.InputLen, c.Units = fitWindow, fitWindow
	if c.Layers == 0 {
		c.Layers = 3
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.001
	}
	return c
}

func (p *Portfolio) notify(job tickerJob, pr models.ForecastProgress) {
	if job.onStep == nil {
		return
	}
	pr.RunID, pr.Ticker = job.runID, job.ticker
	job.onStep(pr)
}

// persist stores and publishes the run's records. Failures are logged and
// counted under the persist stage; they never fail the run.
func (p *Portfolio) persist(ctx context.Context, res *models.PortfolioResult, fitWindow, window int, log *applogger.Logger) {
	if p.store == nil && p.pub == nil {
		return
	}
	recs := make([]models.ForecastRecord, 0, len(res.Entries))
	for _, e := range res.Entries {
		recs = append(recs, models.NewForecastRecord(res.RunID, res.AsOf, fitWindow, window, e))
	}
	if p.store != nil {
		if err := p.store.SaveResults(ctx, recs); err != nil {
			p.metrics.RecordError(string(models.StagePersist))
			log.Warn("results.store failed", applogger.Error(err))
		}
	}
	if p.pub != nil {
		for _, r := range recs {
			if err := p.pub.PublishForecast(ctx, r); err != nil {
				p.metrics.RecordError(string(models.StagePersist))
				log.Warn("results.publish failed", applogger.String("ticker", r.Ticker), applogger.Error(err))
			}
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordForecast(string, float64)        {}
func (nopMetrics) RecordError(string)                    {}
func (nopMetrics) RecordPredictedReturn(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)         {}
