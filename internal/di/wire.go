//go:build wireinject
// +build wireinject

package di

import (
	"FinCast/pkg/config"
	"FinCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideMarketData,
		ProvideModelStore,
		ProvideForecastStore,
		ProvideResultPublisher,

		// Use cases
		ProvideHistory,
		ProvidePortfolio,

		// Transport
		ProvideForecastHandler,
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
