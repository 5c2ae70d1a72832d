package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forwarder/internal/controllers"
	"forwarder/internal/models"
	"forwarder/internal/persistence"
	"forwarder/internal/persistence/interfaces"
	"forwarder/internal/providers"
	"forwarder/internal/services"
	"forwarder/internal/structures"
	"forwarder/internal/transport"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	WebServer  *http.Server
	engine     services.RelayEngineInterface
	scheduler  interfaces.SchedulerInterface
	gateway    *transport.HTTPGateway
	topology   *models.Topology
	store      persistence.Gateway
	compressor interfaces.CompressorInterface
	conf       *structures.Config
	logger     providers.Logger
}

func NewApp(
	healthController *controllers.HealthController,
	engine services.RelayEngineInterface,
	scheduler interfaces.SchedulerInterface,
	gateway *transport.HTTPGateway,
	topology *models.Topology,
	store persistence.Gateway,
	compressor interfaces.CompressorInterface,
	conf *structures.Config,
	logger providers.Logger,
	router providers.RouterProviderInterface,
	metrics providers.MetricsProviderInterface,
) *App {
	// Inner mux: API routes
	apiMux := http.NewServeMux()
	for _, route := range router.GetRoutes() {
		apiMux.Handle(route.Url, route.Handler)
	}

	// Outer mux: infrastructure + instrumented API
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", providers.MetricsMiddleware(metrics, logger, router, apiMux))

	return &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:     engine,
		scheduler:  scheduler,
		gateway:    gateway,
		topology:   topology,
		store:      store,
		compressor: compressor,
		conf:       conf,
		logger:     logger,
	}
}

// Run blocks until SIGINT or SIGTERM, then drains and persists.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	a.logger.Infof(providers.TypeApp, "Starting %s", a.conf.AppName)
	if err := a.scheduler.Restore(); err != nil {
		a.logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}

	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	events, err := a.gateway.Subscribe(engineCtx, a.topology.Sources)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	a.scheduler.Init()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- a.engine.Run(engineCtx, events)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Infof(providers.TypeApp, "Listening HTTP clients on %s", a.WebServer.Addr)
		if err := a.WebServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.WebServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Errorf(providers.TypeApp, "HTTP shutdown error: %s", err)
	}

	// no new events; the one in flight finishes its fan-out
	a.gateway.Close()
	stopEngine()
	<-engineDone
	if pending := len(events); pending > 0 {
		a.logger.Warnf(providers.TypeApp, "%d queued events dropped at shutdown", pending)
	}

	a.scheduler.Stop()
	if err := a.scheduler.Persist(); err != nil && runErr == nil {
		runErr = err
	}
	if err := a.store.Close(); err != nil {
		a.logger.Errorf(providers.TypeApp, "Persistence close error: %s", err)
	}
	a.compressor.Close()

	a.logger.Infof(providers.TypeApp, "gracefully stopped")
	return runErr
}
