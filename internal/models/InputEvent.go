package models

import (
	"errors"
	"time"
)

var ErrInvalidEvent = errors.New("invalid event")

// InputEvent is the wire form of a lifecycle event accepted by the ingest API.
// Date is unix seconds and is required for new and edited messages.
type InputEvent struct {
	Kind      EventKind `json:"kind"`
	Feed      FeedID    `json:"feed"`
	MessageID MessageID `json:"message_id"`
	Text      *string   `json:"text,omitempty"`
	Media     *Media    `json:"media,omitempty"`
	Forwarded bool      `json:"forwarded"`
	FromBot   bool      `json:"from_bot"`
	Date      int64     `json:"date"`
}

func (in *InputEvent) ToEvent() (Event, error) {
	if in.Feed == 0 || in.MessageID == 0 {
		return Event{}, ErrInvalidEvent
	}
	msg := &Message{
		Feed:      in.Feed,
		ID:        in.MessageID,
		Text:      in.Text,
		Media:     in.Media,
		Forwarded: in.Forwarded,
		FromBot:   in.FromBot,
		Date:      time.Unix(in.Date, 0).UTC(),
	}
	if in.Kind != EventDeleted && in.Date <= 0 {
		return Event{}, ErrInvalidEvent
	}
	switch in.Kind {
	case EventNew:
		return NewMessageEvent(msg), nil
	case EventEdited:
		return EditedMessageEvent(msg), nil
	case EventDeleted:
		return DeletedMessageEvent(in.Feed, in.MessageID), nil
	default:
		return Event{}, ErrInvalidEvent
	}
}
