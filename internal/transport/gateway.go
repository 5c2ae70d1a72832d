package transport

import (
	"context"

	"forwarder/internal/models"
)

// Gateway is the messaging network as seen by the relay: a stream of lifecycle
// events from monitored feeds plus send, edit and delete calls. Calls return
// *RateLimitedError when throttled and *PermanentError otherwise.
type Gateway interface {
	Subscribe(ctx context.Context, feeds []models.FeedID) (<-chan models.Event, error)
	Send(ctx context.Context, dest models.FeedID, msg *models.Message) (models.MessageID, error)
	EditCopy(ctx context.Context, c models.Copy, msg *models.Message) error
	DeleteCopy(ctx context.Context, c models.Copy) error
}

type FeedResolver interface {
	ResolveFeed(ctx context.Context, ref string) (models.FeedID, error)
}

// Publisher accepts lifecycle events pushed by the host, e.g. the ingest API.
type Publisher interface {
	Publish(ctx context.Context, evt models.Event) error
}
