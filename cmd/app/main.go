package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinCast/internal/di"
	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/util"

	"github.com/joho/godotenv"
)

func main() {
	started := time.Now()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "config file path")
	portfolio := flag.String("portfolio", "", "tickers, comma separated")
	window := flag.Int("window", -1, "holding window in days (default from config)")
	fitWindow := flag.Int("fit-window", 0, "closes per model input (default from config)")
	asOf := flag.String("as-of", "", "as-of date YYYY-MM-DD (default today)")
	policy := flag.String("policy", "", "failure policy: fail_fast or collect (default from config)")
	serve := flag.Bool("serve", false, "run the HTTP API instead of a single forecast")
	testRun := flag.Bool("test", false, "print the run time to stderr")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := app.Serve(ctx); err != nil {
			app.Logger().Error("server stopped", applogger.Error(err))
			cleanup()
			os.Exit(1)
		}
		return
	}

	code := forecast(ctx, app, cfg, *portfolio, *window, *fitWindow, *asOf, *policy)
	if *testRun {
		fmt.Fprintf(os.Stderr, "Run time: %s\n", time.Since(started))
	}
	if code != 0 {
		cleanup()
		os.Exit(code)
	}
}

type forecaster interface {
	Forecast(ctx context.Context, req domsvc.PortfolioRequest) (*models.PortfolioResult, error)
}

func forecast(ctx context.Context, app forecaster, cfg *config.Config, portfolio string, window, fitWindow int, asOf, policy string) int {
	tickers, err := usecase.SplitTickers(portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -portfolio: %v\n", err)
		return 2
	}
	day, err := util.ParseDate(asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -as-of: %v\n", err)
		return 2
	}
	if window < 0 {
		window = cfg.Forecast.Window
	}

	res, err := app.Forecast(ctx, domsvc.PortfolioRequest{
		Tickers:   tickers,
		AsOf:      day,
		Window:    window,
		FitWindow: fitWindow,
		Policy:    domsvc.FailurePolicy(policy),
	})
	if err != nil {
		var te *models.TickerError
		if errors.As(err, &te) {
			fmt.Fprintf(os.Stderr, "forecast failed: ticker=%s stage=%s: %v\n", te.Ticker, te.Stage, te.Err)
		} else {
			fmt.Fprintf(os.Stderr, "forecast failed: %v\n", err)
		}
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return 1
	}
	return 0
}
