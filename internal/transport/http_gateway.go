package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"forwarder/internal/models"
	"forwarder/internal/providers"
	"forwarder/internal/structures"
)

const (
	defaultQueueSize  = 256
	defaultRetryAfter = time.Second
	maxErrorBody      = 512
)

type sendRequest struct {
	Text   *string         `json:"text,omitempty"`
	Media  *models.Media   `json:"media,omitempty"`
	Source models.RelayKey `json:"source"`
}

type sendResponse struct {
	MessageID models.MessageID `json:"message_id"`
}

type editRequest struct {
	Text  *string       `json:"text,omitempty"`
	Media *models.Media `json:"media,omitempty"`
}

type resolveResponse struct {
	Feed models.FeedID `json:"feed"`
}

type errorResponse struct {
	Description string `json:"description"`
	RetryAfter  int    `json:"retry_after"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// HTTPGateway talks to a relay backend over JSON/HTTP. Outbound calls map to
// /feeds/{feed}/messages[/{id}]; inbound lifecycle events are pushed to it
// through Publish and drained by the single Subscribe consumer.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  providers.Logger

	mu         sync.RWMutex
	subscribed bool
	monitored  map[models.FeedID]struct{}
	events     chan models.Event
	done       chan struct{}
	closeOnce  sync.Once
}

func NewHTTPGateway(conf *structures.Config, logger providers.Logger) *HTTPGateway {
	size := conf.Transport.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(conf.Transport.BaseURL, "/"),
		token:   conf.Transport.Token,
		client:  &http.Client{Timeout: conf.Transport.Timeout},
		logger:  logger,
		events:  make(chan models.Event, size),
		done:    make(chan struct{}),
	}
}

func (g *HTTPGateway) Subscribe(_ context.Context, feeds []models.FeedID) (<-chan models.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subscribed {
		return nil, ErrAlreadySubscribed
	}
	g.monitored = make(map[models.FeedID]struct{}, len(feeds))
	for _, f := range feeds {
		g.monitored[f] = struct{}{}
	}
	g.subscribed = true
	return g.events, nil
}

// Publish queues an event for the subscriber, blocking while the queue is full.
func (g *HTTPGateway) Publish(ctx context.Context, evt models.Event) error {
	g.mu.RLock()
	subscribed := g.subscribed
	_, monitored := g.monitored[evt.Key.Feed]
	g.mu.RUnlock()

	if !subscribed {
		return ErrNotSubscribed
	}
	if !monitored {
		return ErrFeedNotMonitored
	}

	select {
	case <-g.done:
		return ErrGatewayClosed
	default:
	}

	select {
	case g.events <- evt:
		return nil
	case <-g.done:
		return ErrGatewayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further publishes. The event channel stays open so a consumer
// blocked on it is released by its own context.
func (g *HTTPGateway) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}

func (g *HTTPGateway) Send(ctx context.Context, dest models.FeedID, msg *models.Message) (models.MessageID, error) {
	var resp sendResponse
	body := sendRequest{Text: msg.Text, Media: msg.Media, Source: msg.Key()}
	path := fmt.Sprintf("/feeds/%d/messages", dest)
	if err := g.do(ctx, "send", http.MethodPost, path, body, &resp); err != nil {
		return 0, err
	}
	return resp.MessageID, nil
}

func (g *HTTPGateway) EditCopy(ctx context.Context, c models.Copy, msg *models.Message) error {
	body := editRequest{Text: msg.Text, Media: msg.Media}
	path := fmt.Sprintf("/feeds/%d/messages/%d", c.Feed, c.Message)
	return g.do(ctx, "edit", http.MethodPut, path, body, nil)
}

func (g *HTTPGateway) DeleteCopy(ctx context.Context, c models.Copy) error {
	path := fmt.Sprintf("/feeds/%d/messages/%d", c.Feed, c.Message)
	return g.do(ctx, "delete", http.MethodDelete, path, nil, nil)
}

func (g *HTTPGateway) ResolveFeed(ctx context.Context, ref string) (models.FeedID, error) {
	var resp resolveResponse
	path := "/feeds/resolve?ref=" + url.QueryEscape(ref)
	if err := g.do(ctx, "resolve", http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Feed, nil
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &PermanentError{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return &PermanentError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &PermanentError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp)
		g.logger.Debugf(providers.TypeTransport, "%s %s throttled for %s", method, path, wait)
		return &RateLimitedError{Wait: wait}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &PermanentError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, describe(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PermanentError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(h); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
			return 0
		}
	}

	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.RetryAfter > 0:
			return time.Duration(body.RetryAfter) * time.Second
		case body.Parameters.RetryAfter > 0:
			return time.Duration(body.Parameters.RetryAfter) * time.Second
		}
	}
	return defaultRetryAfter
}

func describe(raw []byte) string {
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil && body.Description != "" {
		return body.Description
	}
	return strings.TrimSpace(string(raw))
}
