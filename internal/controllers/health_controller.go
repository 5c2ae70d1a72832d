package controllers

import (
	"fmt"
	"net/http"
	"time"

	"forwarder/internal/models"
	"forwarder/internal/services"
)

type HealthController struct {
	engine       services.RelayEngineInterface
	fingerprints *models.FingerprintStore
	relays       *models.RelayMap
	startTime    time.Time
}

type healthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Fingerprints  int            `json:"fingerprints"`
	RelayEntries  int            `json:"relay_entries"`
	Events        services.Stats `json:"events"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Fingerprints:  hc.fingerprints.Len(),
		RelayEntries:  hc.relays.Len(),
		Events:        hc.engine.Stats(),
	})
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(engine services.RelayEngineInterface, fingerprints *models.FingerprintStore, relays *models.RelayMap) *HealthController {
	return &HealthController{
		engine:       engine,
		fingerprints: fingerprints,
		relays:       relays,
		startTime:    time.Now(),
	}
}
