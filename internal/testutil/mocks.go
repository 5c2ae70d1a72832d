package testutil

import (
	"context"
	"sync"
	"time"

	"forwarder/internal/models"
	"forwarder/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// identity
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

// MockMetrics implements providers.MetricsProviderInterface and counts
// event and dispatch outcomes.
type MockMetrics struct {
	mu          sync.Mutex
	Events      map[string]int
	Dispatches  map[string]int
	Persistence int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Events: map[string]int{}, Dispatches: map[string]int{}}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits()                                    {}
func (m *MockMetrics) IncCacheMisses()                                  {}
func (m *MockMetrics) ObserveFanOutDuration(_ time.Duration)            {}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Persistence++
}

func (m *MockMetrics) IncEvents(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events[kind+"/"+outcome]++
}

func (m *MockMetrics) IncDispatch(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dispatches[op+"/"+outcome]++
}

func (m *MockMetrics) Event(kind, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Events[kind+"/"+outcome]
}

func (m *MockMetrics) Dispatch(op, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Dispatches[op+"/"+outcome]
}

type SendCall struct {
	Dest models.FeedID
	Text string
}

type EditCall struct {
	Copy models.Copy
	Text string
}

// FakeTransport is an in-memory outbound gateway. Copies get increasing
// message ids starting at 1000. The Fn hooks, when set, replace the default
// behavior and see every call in order.
type FakeTransport struct {
	mu      sync.Mutex
	nextID  models.MessageID
	Sends   []SendCall
	Edits   []EditCall
	Deletes []models.Copy

	SendFn   func(dest models.FeedID, msg *models.Message) (models.MessageID, error)
	EditFn   func(c models.Copy, msg *models.Message) error
	DeleteFn func(c models.Copy) error
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{nextID: 1000}
}

func (f *FakeTransport) Send(_ context.Context, dest models.FeedID, msg *models.Message) (models.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sends = append(f.Sends, SendCall{Dest: dest, Text: msg.TextOrEmpty()})
	if f.SendFn != nil {
		return f.SendFn(dest, msg)
	}
	f.nextID++
	return f.nextID, nil
}

func (f *FakeTransport) EditCopy(_ context.Context, c models.Copy, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, EditCall{Copy: c, Text: msg.TextOrEmpty()})
	if f.EditFn != nil {
		return f.EditFn(c, msg)
	}
	return nil
}

func (f *FakeTransport) DeleteCopy(_ context.Context, c models.Copy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes = append(f.Deletes, c)
	if f.DeleteFn != nil {
		return f.DeleteFn(c)
	}
	return nil
}

func (f *FakeTransport) SendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sends)
}

func (f *FakeTransport) EditCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Edits)
}

func (f *FakeTransport) DeleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Deletes)
}

// MockCheckpointer counts checkpoint requests.
type MockCheckpointer struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockCheckpointer) Checkpoint() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
}

func (m *MockCheckpointer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
