package models

import (
	"strconv"
	"time"
)

type FeedID int64

type MessageID int64

type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
	MediaWebPage  MediaKind = "webpage"
	MediaOther    MediaKind = "other"
)

// Media is produced once by the transport adapter. ID carries the stable
// identifier for photo, document and webpage media; TypeTag names the
// transport's media type for everything else.
type Media struct {
	Kind    MediaKind `json:"kind"`
	ID      string    `json:"id,omitempty"`
	TypeTag string    `json:"type_tag,omitempty"`
}

// Identity returns the token mixed into the content fingerprint.
func (m *Media) Identity() string {
	if m == nil {
		return ""
	}
	switch m.Kind {
	case MediaPhoto, MediaDocument, MediaWebPage:
		if m.ID != "" {
			return string(m.Kind) + ":" + m.ID
		}
		return string(m.Kind)
	default:
		tag := m.TypeTag
		if tag == "" {
			tag = string(m.Kind)
		}
		return string(MediaOther) + ":" + tag
	}
}

type Message struct {
	Feed      FeedID    `json:"feed"`
	ID        MessageID `json:"message_id"`
	Text      *string   `json:"text,omitempty"`
	Media     *Media    `json:"media,omitempty"`
	Forwarded bool      `json:"forwarded"`
	FromBot   bool      `json:"from_bot"`
	Date      time.Time `json:"date"`
}

func (m *Message) Key() RelayKey {
	return RelayKey{Feed: m.Feed, Message: m.ID}
}

// TextOrEmpty returns the message text, or "" for messages without text.
func (m *Message) TextOrEmpty() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

type EventKind string

const (
	EventNew     EventKind = "new"
	EventEdited  EventKind = "edited"
	EventDeleted EventKind = "deleted"
)

// Event is one lifecycle notification from a monitored feed. Message is set
// for new and edited events; Key identifies the source message for all kinds.
type Event struct {
	Kind    EventKind
	Key     RelayKey
	Message *Message
}

func NewMessageEvent(msg *Message) Event {
	return Event{Kind: EventNew, Key: msg.Key(), Message: msg}
}

func EditedMessageEvent(msg *Message) Event {
	return Event{Kind: EventEdited, Key: msg.Key(), Message: msg}
}

func DeletedMessageEvent(feed FeedID, id MessageID) Event {
	return Event{Kind: EventDeleted, Key: RelayKey{Feed: feed, Message: id}}
}

// RelayKey identifies a source message.
type RelayKey struct {
	Feed    FeedID    `json:"feed"`
	Message MessageID `json:"message_id"`
}

func (k RelayKey) String() string {
	return strconv.FormatInt(int64(k.Feed), 10) + ":" + strconv.FormatInt(int64(k.Message), 10)
}

// Copy is a relayed message on a destination feed.
type Copy struct {
	Feed    FeedID    `json:"feed"`
	Message MessageID `json:"message_id"`
}
