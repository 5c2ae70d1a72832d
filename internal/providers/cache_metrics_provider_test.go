package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type cacheMetricsTestMetrics struct {
	hits   int
	misses int
}

func (m *cacheMetricsTestMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *cacheMetricsTestMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *cacheMetricsTestMetrics) IncCacheHits()                                    { m.hits++ }
func (m *cacheMetricsTestMetrics) IncCacheMisses()                                  { m.misses++ }
func (m *cacheMetricsTestMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (m *cacheMetricsTestMetrics) IncEvents(_, _ string)                            {}
func (m *cacheMetricsTestMetrics) IncDispatch(_, _ string)                          {}
func (m *cacheMetricsTestMetrics) ObserveFanOutDuration(_ time.Duration)            {}

type cacheMetricsTestInner struct {
	data map[string][]byte
}

func (c *cacheMetricsTestInner) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}
func (c *cacheMetricsTestInner) Set(key string, value []byte) {
	c.data[key] = value
}

func TestMeteredCache_Hit(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{"key1": []byte("val1")}}
	metrics := &cacheMetricsTestMetrics{}
	cache := &meteredCache{inner: inner, metrics: metrics}

	val, ok := cache.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, []byte("val1"), val)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 0, metrics.misses)
}

func TestMeteredCache_Miss(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{}}
	metrics := &cacheMetricsTestMetrics{}
	cache := &meteredCache{inner: inner, metrics: metrics}

	val, ok := cache.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Equal(t, 0, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
}

func TestMeteredCache_SetDelegates(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{}}
	metrics := &cacheMetricsTestMetrics{}
	cache := &meteredCache{inner: inner, metrics: metrics}

	cache.Set("key2", []byte("val2"))

	val, ok := inner.Get("key2")
	assert.True(t, ok)
	assert.Equal(t, []byte("val2"), val)
}

func TestMeteredCache_MultipleOperations(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{"a": []byte("1")}}
	metrics := &cacheMetricsTestMetrics{}
	cache := &meteredCache{inner: inner, metrics: metrics}

	cache.Get("a") // hit
	cache.Get("b") // miss
	cache.Get("a") // hit
	cache.Get("c") // miss

	assert.Equal(t, 2, metrics.hits)
	assert.Equal(t, 2, metrics.misses)
}

func TestNewInstrumentedCacheProvider_DisabledIsBare(t *testing.T) {
	c := NewInstrumentedCacheProvider(cacheConfig(false, 1, time.Second), &cacheTestLogger{}, &cacheMetricsTestMetrics{})
	assert.IsType(t, &noopCache{}, c)
}

func TestNewInstrumentedCacheProvider_EnabledIsMetered(t *testing.T) {
	metrics := &cacheMetricsTestMetrics{}
	c := NewInstrumentedCacheProvider(cacheConfig(true, 1, time.Minute), &cacheTestLogger{}, metrics)
	assert.IsType(t, &meteredCache{}, c)

	c.Set("feed:@news", []byte("-100123"))
	_, ok := c.Get("feed:@news")
	assert.True(t, ok)
	_, ok = c.Get("feed:@other")
	assert.False(t, ok)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
}
