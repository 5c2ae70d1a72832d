package controllers

import (
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"forwarder/internal/models"
	"forwarder/internal/providers"
	"forwarder/internal/services"
	"forwarder/internal/transport"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger    providers.Logger
	engine    services.RelayEngineInterface
	publisher transport.Publisher
}

type relayResponse struct {
	Feed      models.FeedID    `json:"feed"`
	MessageID models.MessageID `json:"message_id"`
	Copies    []models.Copy    `json:"copies"`
}

func NewApiController(logger providers.Logger, engine services.RelayEngineInterface, publisher transport.Publisher) *ApiController {
	return &ApiController{
		logger:    logger,
		engine:    engine,
		publisher: publisher,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

// ReceiveEvent queues one lifecycle event for the relay engine.
func (ac *ApiController) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload models.InputEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	evt, err := payload.ToEvent()
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err = ac.publisher.Publish(r.Context(), evt)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, transport.ErrFeedNotMonitored):
		http.Error(w, "Feed Not Monitored", http.StatusUnprocessableEntity)
	case errors.Is(err, transport.ErrGatewayClosed), errors.Is(err, transport.ErrNotSubscribed):
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	default:
		ac.logger.Warnf(providers.TypePost, "Event %s %s not queued: %s", evt.Kind, evt.Key, err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	}
}

// GetRelay returns the copies recorded for ?feed=&msg=.
func (ac *ApiController) GetRelay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	feed, err := strconv.ParseInt(q.Get("feed"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	msg, err := strconv.ParseInt(q.Get("msg"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	key := models.RelayKey{Feed: models.FeedID(feed), Message: models.MessageID(msg)}
	copies, ok := ac.engine.Lookup(key)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, relayResponse{Feed: key.Feed, MessageID: key.Message, Copies: copies})
}
