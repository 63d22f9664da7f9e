//go:build wireinject
// +build wireinject

package di

import (
	"CtxWeights/pkg/config"
	"CtxWeights/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCacheService,
		ProvideAlerting,
		ProvideAlertSink,

		// Sources
		ProvideCalendarSource,
		ProvidePriceSource,

		// Snapshot lifecycle and query engine
		ProvideBuilder,
		ProvideManager,
		ProvideEngine,

		// Use cases and HTTP surface
		ProvideWeightsUseCase,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
