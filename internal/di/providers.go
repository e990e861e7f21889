package di

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/handler/api"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/service/marketdata"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/nn"
	"FinCast/internal/usecase"
	"FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideCache creates the configured cache backend, or nil when caching is off.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.MarketData.Cache.Enabled {
		return nil, func() {}, nil
	}
	var svc cache.Service
	switch cfg.MarketData.Cache.Backend {
	case "memory":
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(1000))
	case "redis", "layered":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = rc
		if cfg.MarketData.Cache.Backend == "layered" {
			svc = cache.NewLayeredCache(rc, 1000)
		}
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.MarketData.Cache.Backend)
	}
	return svc, func() { _ = svc.Close() }, nil
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.MarketData.Provider == "clickhouse" || cfg.MarketData.Mirror || cfg.Results.Store
}

// ProvideClickHouseClient creates a ClickHouse client and its schema when any
// component needs one, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideKafkaProducer creates a Kafka producer when results are published.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Results.Publish {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreateTopic),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideMarketData builds the configured close provider, paced, retried and
// optionally cached.
func ProvideMarketData(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *applogger.Logger) (repository.MarketData, error) {
	md := cfg.MarketData
	opts := []marketdata.Option{
		marketdata.WithTimeout(md.Timeout),
		marketdata.WithRetry(md.Attempts, md.Backoff),
		marketdata.WithLimiter(ratelimit.New(md.RatePerSec, md.RateBurst)),
		marketdata.WithLogger(l),
	}

	var src repository.MarketData
	switch md.Provider {
	case "alpaca":
		src = marketdata.NewAlpaca(md.Alpaca.KeyID, md.Alpaca.SecretKey, md.Alpaca.Feed,
			append(opts, marketdata.WithBaseURL(md.Alpaca.BaseURL))...)
	case "alphavantage":
		src = marketdata.NewAlphaVantage(md.AlphaVantage.APIKey, md.AlphaVantage.OutputSize,
			append(opts, marketdata.WithBaseURL(md.AlphaVantage.BaseURL))...)
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse provider without client")
		}
		src = internalrepo.NewCHCloseStore(ch, l)
	default:
		return nil, fmt.Errorf("unknown market data provider %q", md.Provider)
	}

	if c != nil {
		src = internalrepo.NewCachedMarketData(src, c, md.Cache.TTL, l)
	}
	return src, nil
}

// ProvideHistory creates the history use case, mirroring into ClickHouse when asked.
func ProvideHistory(cfg *config.Config, src repository.MarketData, ch *pkgch.Client, l *applogger.Logger) *usecase.HistoryUseCase {
	h := usecase.NewHistoryUseCase(src, cfg.MarketData.Provider, cfg.MarketData.Lookback, l)
	if cfg.MarketData.Mirror && ch != nil {
		h.WithSink(internalrepo.NewCHCloseStore(ch, l))
	}
	return h
}

// ProvideModelStore returns the configured model store or nil.
func ProvideModelStore(cfg *config.Config, c cache.Service) repository.ModelStore {
	switch cfg.Models.Store {
	case "file":
		return internalrepo.NewFileModelStore(cfg.Models.Dir)
	case "cache":
		if c != nil {
			return internalrepo.NewCacheModelStore(c, cfg.Models.TTL)
		}
	}
	return nil
}

// ProvideForecastStore returns the ClickHouse result store or nil.
func ProvideForecastStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.ForecastStore {
	if !cfg.Results.Store || ch == nil {
		return nil
	}
	return internalrepo.NewCHForecastStore(ch, l)
}

// ProvideResultPublisher returns the Kafka result publisher or nil.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvidePortfolio creates the portfolio forecast driver.
func ProvidePortfolio(
	cfg *config.Config,
	history *usecase.HistoryUseCase,
	models repository.ModelStore,
	store repository.ForecastStore,
	pub repository.ResultPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) domsvc.PortfolioForecaster {
	fc := cfg.Forecast
	tc := forecast.TrainerConfig{
		FitWindow:        fc.FitWindow,
		Epochs:           fc.Epochs,
		BatchSize:        fc.BatchSize,
		TrainFrac:        fc.TrainFraction,
		ScaleOnTrainOnly: fc.ScaleOnTrainOnly,
		Model: nn.Config{
			Layers:       3,
			Dropout:      fc.Dropout,
			LearningRate: fc.LearningRate,
			Seed:         fc.Seed,
		},
	}
	return usecase.NewPortfolio(usecase.PortfolioConfig{
		FitWindow:   fc.FitWindow,
		Window:      fc.Window,
		Policy:      domsvc.FailurePolicy(fc.Policy),
		Concurrency: fc.Concurrency,
		ReuseModels: cfg.Models.Reuse,
		Trainer:     tc,
		Forecaster:  forecast.ForecasterConfig{RefitEpochs: fc.RefitEpochs, RefitBatchSize: fc.RefitBatchSize},
	}, history, models, store, pub, m, l)
}

// ProvideForecastHandler creates the HTTP handler.
func ProvideForecastHandler(cfg *config.Config, l *applogger.Logger, svc domsvc.PortfolioForecaster, store repository.ForecastStore) *api.ForecastHandler {
	return api.NewForecastHandler(l, svc, store, ratelimit.New(cfg.Server.RatePerSec, cfg.Server.RateBurst))
}

// ProvideApp creates the application.
func ProvideApp(cfg *config.Config, l *applogger.Logger, svc domsvc.PortfolioForecaster, h *api.ForecastHandler) *server.App {
	return server.New(cfg, l, svc, h)
}
