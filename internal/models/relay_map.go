package models

import "sync"

// RelayMap associates a source message with the copies produced for it.
// Copies are kept in the order destinations were dispatched; a destination
// that failed has no copy, so positions do not line up with the configured
// destination list.
type RelayMap struct {
	mu      sync.RWMutex
	entries map[RelayKey][]Copy
	sources map[Copy]RelayKey
	dirty   bool
}

func NewRelayMap() *RelayMap {
	return &RelayMap{
		entries: make(map[RelayKey][]Copy),
		sources: make(map[Copy]RelayKey),
	}
}

func (m *RelayMap) Put(key RelayKey, copies []Copy) {
	if len(copies) == 0 {
		return
	}
	cp := make([]Copy, len(copies))
	copy(cp, copies)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unindex(key)
	m.entries[key] = cp
	for _, c := range cp {
		m.sources[c] = key
	}
	m.dirty = true
}

func (m *RelayMap) Get(key RelayKey) ([]Copy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copies, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]Copy, len(copies))
	copy(out, copies)
	return out, true
}

func (m *RelayMap) Remove(key RelayKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return
	}
	m.unindex(key)
	delete(m.entries, key)
	m.dirty = true
}

// SourceOf reports which source message c was relayed from.
func (m *RelayMap) SourceOf(c Copy) (RelayKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.sources[c]
	return key, ok
}

func (m *RelayMap) unindex(key RelayKey) {
	for _, c := range m.entries[key] {
		if m.sources[c] == key {
			delete(m.sources, c)
		}
	}
}

func (m *RelayMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *RelayMap) Snapshot() map[RelayKey][]Copy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[RelayKey][]Copy, len(m.entries))
	for k, v := range m.entries {
		cp := make([]Copy, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Replace swaps the whole mapping, used when restoring from persistence.
func (m *RelayMap) Replace(entries map[RelayKey][]Copy) {
	next := make(map[RelayKey][]Copy, len(entries))
	sources := make(map[Copy]RelayKey, len(entries))
	for k, v := range entries {
		if len(v) == 0 {
			continue
		}
		cp := make([]Copy, len(v))
		copy(cp, v)
		next[k] = cp
		for _, c := range cp {
			sources[c] = k
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = next
	m.sources = sources
	m.dirty = false
}

func (m *RelayMap) TakeDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.dirty
	m.dirty = false
	return d
}

func (m *RelayMap) MarkDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}
