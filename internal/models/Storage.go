package models

// SnapshotVersion is bumped when the on-disk layout of a snapshot changes.
const SnapshotVersion = 1

type FingerprintSnapshot struct {
	Version      int           `json:"version"`
	Fingerprints []Fingerprint `json:"fingerprints"`
}

type RelayEntry struct {
	Feed    FeedID    `json:"feed"`
	Message MessageID `json:"message_id"`
	Copies  []Copy    `json:"copies"`
}

type RelayMapSnapshot struct {
	Version int          `json:"version"`
	Entries []RelayEntry `json:"entries"`
}

func NewRelayMapSnapshot(entries map[RelayKey][]Copy) *RelayMapSnapshot {
	snap := &RelayMapSnapshot{
		Version: SnapshotVersion,
		Entries: make([]RelayEntry, 0, len(entries)),
	}
	for k, copies := range entries {
		snap.Entries = append(snap.Entries, RelayEntry{Feed: k.Feed, Message: k.Message, Copies: copies})
	}
	return snap
}

func (s *RelayMapSnapshot) ToMap() map[RelayKey][]Copy {
	out := make(map[RelayKey][]Copy, len(s.Entries))
	for _, e := range s.Entries {
		if len(e.Copies) == 0 {
			continue
		}
		out[RelayKey{Feed: e.Feed, Message: e.Message}] = e.Copies
	}
	return out
}
