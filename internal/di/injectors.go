//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"forwarder/internal"
	"forwarder/internal/controllers"
	"forwarder/internal/dispatch"
	"forwarder/internal/persistence"
	"forwarder/internal/persistence/interfaces"
	"forwarder/internal/providers"
	"forwarder/internal/services"
	"forwarder/internal/structures"
	"forwarder/internal/transport"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		services.NewFingerprintStore,
		services.NewRelayMap,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		transport.NewHTTPGateway,
		wire.Bind(new(transport.FeedResolver), new(*transport.HTTPGateway)),
		wire.Bind(new(transport.Publisher), new(*transport.HTTPGateway)),
		wire.Bind(new(dispatch.Outbound), new(*transport.HTTPGateway)),
		transport.NewResolver,
		transport.NewTopology,
		dispatch.NewPolicy,

		persistence.NewZstdCompressor,
		persistence.NewGateway,
		persistence.NewScheduler,
		wire.Bind(new(interfaces.Checkpointer), new(interfaces.SchedulerInterface)),

		services.NewFilterConfig,
		services.NewRelayEngine,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
