package models

import "sync"

const (
	DefaultFingerprintCapacity = 10000
	DefaultFingerprintTrimTo   = 9000
)

// FingerprintStore is an insertion-ordered set of fingerprints. Once an add
// pushes it past capacity, the oldest entries are dropped until trimTo remain,
// so trimming happens once per (capacity - trimTo) inserts.
type FingerprintStore struct {
	mu       sync.RWMutex
	set      map[Fingerprint]struct{}
	order    []Fingerprint
	capacity int
	trimTo   int
	dirty    bool
}

func NewFingerprintStore(capacity, trimTo int) *FingerprintStore {
	if capacity <= 0 {
		capacity = DefaultFingerprintCapacity
	}
	if trimTo <= 0 || trimTo >= capacity {
		trimTo = capacity * 9 / 10
	}
	return &FingerprintStore{
		set:      make(map[Fingerprint]struct{}),
		capacity: capacity,
		trimTo:   trimTo,
	}
}

func (s *FingerprintStore) Contains(fp Fingerprint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[fp]
	return ok
}

// Add records fp. Adding a fingerprint that is already present is a no-op.
func (s *FingerprintStore) Add(fp Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[fp]; ok {
		return
	}
	s.set[fp] = struct{}{}
	s.order = append(s.order, fp)
	s.dirty = true
	s.evictIfNeeded()
}

func (s *FingerprintStore) evictIfNeeded() {
	if len(s.order) <= s.capacity {
		return
	}
	drop := len(s.order) - s.trimTo
	for _, fp := range s.order[:drop] {
		delete(s.set, fp)
	}
	kept := make([]Fingerprint, s.trimTo, s.capacity+1)
	copy(kept, s.order[drop:])
	s.order = kept
}

func (s *FingerprintStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *FingerprintStore) Capacity() int {
	return s.capacity
}

// Snapshot returns the fingerprints oldest first.
func (s *FingerprintStore) Snapshot() []Fingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fingerprint, len(s.order))
	copy(out, s.order)
	return out
}

// Replace swaps the content for fps, given oldest first. Duplicates are
// skipped and the capacity bound is applied as if fps were added in order.
func (s *FingerprintStore) Replace(fps []Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = make(map[Fingerprint]struct{}, len(fps))
	s.order = make([]Fingerprint, 0, len(fps))
	for _, fp := range fps {
		if _, ok := s.set[fp]; ok {
			continue
		}
		s.set[fp] = struct{}{}
		s.order = append(s.order, fp)
		s.evictIfNeeded()
	}
	s.dirty = false
}

// TakeDirty reports whether the store changed since the previous call and
// clears the flag.
func (s *FingerprintStore) TakeDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

// MarkDirty forces the next TakeDirty to report a change, used when a save fails.
func (s *FingerprintStore) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}
