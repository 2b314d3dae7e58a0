package kubeauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingCacheMetrics struct {
	mu        sync.Mutex
	hits      int
	misses    int
	evictions map[string]int
	size      int
}

func newCountingCacheMetrics() *countingCacheMetrics {
	return &countingCacheMetrics{evictions: make(map[string]int)}
}

func (m *countingCacheMetrics) RecordCacheHit(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *countingCacheMetrics) RecordCacheMiss(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *countingCacheMetrics) RecordCacheEviction(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions[reason]++
}

func (m *countingCacheMetrics) SetCacheSize(_ context.Context, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size = size
}

func TestCredentialCacheGetSet(t *testing.T) {
	clock := newFakeClock()
	metrics := newCountingCacheMetrics()
	cache := newCredentialCache(CacheConfig{TTL: time.Minute}, metrics, clock.Now)
	defer cache.Close()

	ctx := context.Background()
	key := cacheKey("/kube/config", "dev")
	cred := &credential{provider: ProviderStatic, contextName: "dev"}

	assert.Nil(t, cache.Get(ctx, key))
	cache.Set(ctx, key, cred)
	assert.Same(t, cred, cache.Get(ctx, key))
	assert.Equal(t, 1, cache.Size())

	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, 1, metrics.size)
}

func TestCredentialCacheTTL(t *testing.T) {
	clock := newFakeClock()
	metrics := newCountingCacheMetrics()
	cache := newCredentialCache(CacheConfig{TTL: time.Minute}, metrics, clock.Now)
	defer cache.Close()

	ctx := context.Background()
	key := cacheKey("", "dev")
	cache.Set(ctx, key, &credential{contextName: "dev"})

	clock.Advance(59 * time.Second)
	assert.NotNil(t, cache.Get(ctx, key))

	clock.Advance(time.Second)
	assert.Nil(t, cache.Get(ctx, key))
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, 1, metrics.evictions[EvictionExpired])
}

func TestCredentialCacheRespectsCredentialExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := newCredentialCache(CacheConfig{TTL: time.Hour}, nil, clock.Now)
	defer cache.Close()

	ctx := context.Background()
	key := cacheKey("", "arn:aws:eks:r:1:cluster/c")
	cache.Set(ctx, key, &credential{expiresAt: clock.Now().Add(10 * time.Minute)})

	clock.Advance(9 * time.Minute)
	assert.NotNil(t, cache.Get(ctx, key))

	clock.Advance(time.Minute)
	assert.Nil(t, cache.Get(ctx, key), "entry must not outlive the credential")
}

func TestCredentialCacheSkipsExpired(t *testing.T) {
	clock := newFakeClock()
	cache := newCredentialCache(CacheConfig{TTL: time.Hour}, nil, clock.Now)
	defer cache.Close()

	cache.Set(context.Background(), "k", &credential{expiresAt: clock.Now().Add(-time.Second)})
	assert.Equal(t, 0, cache.Size())
}

func TestCredentialCacheLRUEviction(t *testing.T) {
	clock := newFakeClock()
	metrics := newCountingCacheMetrics()
	cache := newCredentialCache(CacheConfig{TTL: time.Hour, MaxEntries: 2}, metrics, clock.Now)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "a", &credential{contextName: "a"})
	cache.Set(ctx, "b", &credential{contextName: "b"})
	assert.NotNil(t, cache.Get(ctx, "a"))

	cache.Set(ctx, "c", &credential{contextName: "c"})

	assert.Equal(t, 2, cache.Size())
	assert.NotNil(t, cache.Get(ctx, "a"))
	assert.Nil(t, cache.Get(ctx, "b"), "least recently used entry is evicted")
	assert.NotNil(t, cache.Get(ctx, "c"))
	assert.Equal(t, 1, metrics.evictions[EvictionLRU])
}

func TestCredentialCacheCleanup(t *testing.T) {
	clock := newFakeClock()
	metrics := newCountingCacheMetrics()
	cache := newCredentialCache(CacheConfig{TTL: time.Minute}, metrics, clock.Now)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "a", &credential{})
	cache.Set(ctx, "b", &credential{expiresAt: clock.Now().Add(2 * time.Hour)})

	clock.Advance(2 * time.Minute)
	cache.cleanup()

	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, 2, metrics.evictions[EvictionExpired])
	assert.Equal(t, 0, metrics.size)
}

func TestCredentialCacheCloseIsIdempotent(t *testing.T) {
	cache := newCredentialCache(CacheConfig{TTL: time.Minute}, nil, nil)
	cache.Set(context.Background(), "a", &credential{})

	cache.Close()
	cache.Close()
	assert.Equal(t, 0, cache.Size())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey("/a", "b"), cacheKey("/a", "b"))
	assert.NotEqual(t, cacheKey("/a", "b"), cacheKey("/a", "c"))
	assert.NotEqual(t, cacheKey("/ab", ""), cacheKey("/a", "b"))
	assert.NotContains(t, cacheKey("/home/user/.kube/config", "dev"), "kube")
}
