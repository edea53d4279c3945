//go:build wireinject
// +build wireinject

package di

import (
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/config"
	"github.com/Habtu32/brent-oil-change-point-analysis/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetricsRecorder,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideCHStore,
		ProvideBytesCache,

		// Use cases
		ProvidePriceService,
		ProvideRunManager,
		ProvideAnalysisService,
		ProvideJobQueue,
		ProvideKafkaConsumer,

		// Transport
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
