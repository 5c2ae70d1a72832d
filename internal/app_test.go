package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"forwarder/internal/controllers"
	"forwarder/internal/dispatch"
	"forwarder/internal/models"
	"forwarder/internal/persistence"
	"forwarder/internal/services"
	"forwarder/internal/structures"
	"forwarder/internal/testutil"
	"forwarder/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBackend(t *testing.T) (*httptest.Server, *atomic.Int64) {
	var sends atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			n := sends.Add(1)
			_, _ = fmt.Fprintf(w, `{"message_id": %d}`, 1000+n)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &sends
}

func appConfig(backendURL, dir string) *structures.Config {
	return &structures.Config{
		AppName: "Forwarder",
		Relay:   structures.RelayConfig{Keywords: []string{"btc"}},
		Dispatch: structures.DispatchConfig{
			MaxRateLimitWait: time.Minute,
			CallTimeout:      time.Second,
		},
		Persistence: structures.Persistence{
			Driver:       persistence.DriverFile,
			Dir:          dir,
			SaveInterval: time.Hour,
		},
		Transport: structures.TransportConfig{BaseURL: backendURL, Timeout: time.Second, QueueSize: 8},
		WebServer: structures.Server{Host: "127.0.0.1", Port: 0},
	}
}

func TestApp_ServeRelaysAndPersistsOnShutdown(t *testing.T) {
	srv, sends := fakeBackend(t)
	dir := t.TempDir()
	conf := appConfig(srv.URL, dir)
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()

	fps := models.NewFingerprintStore(0, 0)
	relays := models.NewRelayMap()
	topology := models.NewTopology([]models.FeedID{1}, []models.FeedID{2, 3})

	gw := transport.NewHTTPGateway(conf, logger)
	policy := dispatch.NewPolicy(conf, gw, logger, metrics)
	comp, err := persistence.NewZstdCompressor()
	require.NoError(t, err)
	store, err := persistence.NewFileGateway(dir, comp, logger)
	require.NoError(t, err)
	scheduler := persistence.NewScheduler(conf, logger, store, fps, relays, metrics)
	engine, err := services.NewRelayEngine(services.NewFilterConfig(conf), topology, fps, relays, policy, scheduler, logger, metrics)
	require.NoError(t, err)

	api := controllers.NewApiController(logger, engine, gw)
	health := controllers.NewHealthController(engine, fps, relays)
	app := NewApp(health, engine, scheduler, gw, topology, store, comp, conf, logger, InitRoutes(api), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx) }()

	text := "BTC first"
	first := models.NewMessageEvent(&models.Message{Feed: 1, ID: 10, Text: &text, Date: time.Now()})
	require.Eventually(t, func() bool {
		return gw.Publish(context.Background(), first) == nil
	}, 2*time.Second, 10*time.Millisecond)

	body := fmt.Sprintf(`{"kind":"new","feed":1,"message_id":11,"text":"btc second","date":%d}`, time.Now().Unix())
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	rr := httptest.NewRecorder()
	app.WebServer.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool { return relays.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(4), sends.Load())

	req = httptest.NewRequest(http.MethodGet, "/relays?feed=1&msg=10", nil)
	rr = httptest.NewRecorder()
	app.WebServer.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rr = httptest.NewRecorder()
	app.WebServer.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"relay_entries":2`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	_, err = os.Stat(filepath.Join(dir, persistence.RelayMapFile))
	require.NoError(t, err)
	assert.ErrorIs(t, gw.Publish(context.Background(), first), transport.ErrGatewayClosed)

	// restart from disk
	comp2, err := persistence.NewZstdCompressor()
	require.NoError(t, err)
	defer comp2.Close()
	store2, err := persistence.NewFileGateway(dir, comp2, logger)
	require.NoError(t, err)
	restoredFps := models.NewFingerprintStore(0, 0)
	restoredRelays := models.NewRelayMap()
	require.NoError(t, persistence.NewScheduler(conf, logger, store2, restoredFps, restoredRelays, metrics).Restore())
	assert.Equal(t, 2, restoredRelays.Len())
	assert.Equal(t, 2, restoredFps.Len())
}
