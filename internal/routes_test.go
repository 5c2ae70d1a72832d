package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"forwarder/internal/controllers"
	"forwarder/internal/models"
	"forwarder/internal/providers"
	"forwarder/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- minimal mocks for routes test ---

type routeTestLogger struct{}

func (m *routeTestLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *routeTestLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *routeTestLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *routeTestLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *routeTestLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *routeTestLogger) Close()                                                  {}

type routeTestEngine struct{}

func (m *routeTestEngine) Run(_ context.Context, _ <-chan models.Event) error { return nil }
func (m *routeTestEngine) Handle(_ context.Context, _ models.Event)           {}
func (m *routeTestEngine) Lookup(_ models.RelayKey) ([]models.Copy, bool)     { return nil, false }
func (m *routeTestEngine) Stats() services.Stats                              { return services.Stats{} }

type routeTestPublisher struct{}

func (m *routeTestPublisher) Publish(_ context.Context, _ models.Event) error { return nil }

func newRouteTestController() *controllers.ApiController {
	return controllers.NewApiController(&routeTestLogger{}, &routeTestEngine{}, &routeTestPublisher{})
}

func TestInitRoutes_RegistersRoutes(t *testing.T) {
	router := InitRoutes(newRouteTestController())
	routes := router.GetRoutes()

	require.Len(t, routes, 2)

	urls := make([]string, len(routes))
	for i, r := range routes {
		urls[i] = r.Url
	}

	assert.Contains(t, urls, "/events")
	assert.Contains(t, urls, "/relays")
	assert.True(t, router.Known("/events"))
	assert.False(t, router.Known("/list"))
}

func TestInitRoutes_MethodEnforcement(t *testing.T) {
	router := InitRoutes(newRouteTestController())

	mux := http.NewServeMux()
	for _, r := range router.GetRoutes() {
		mux.Handle(r.Url, r.Handler)
	}

	// GET /relays with POST should fail
	req := httptest.NewRequest(http.MethodPost, "/relays", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	// POST /events with GET should fail
	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
