//go:build wireinject
// +build wireinject

package di

import (
	"OpsPulse/pkg/config"
	"OpsPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Foundation
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,

		// Storage and caching
		ProvideMetricSource,
		ProvideCacheService,
		ProvideRuleStore,

		// Queue and delivery
		ProvideQueuePublisher,
		ProvideQueueConsumer,
		ProvideHub,
		ProvideSinks,

		// Analytics engines
		ProvideForecaster,
		ProvideScorer,
		ProvideAlertEngine,

		// Use cases
		ProvideInsights,
		ProvideMonitor,

		// HTTP surface
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
