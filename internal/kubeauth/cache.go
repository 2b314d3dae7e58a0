package kubeauth

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Defaults for the optional credential cache.
const (
	// DefaultCacheTTL caps how long a resolved credential is reused. Entries
	// never outlive the credential's own expiry, whichever comes first.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheCleanupInterval is how often expired entries are swept.
	// Entries are also dropped on access once expired.
	DefaultCacheCleanupInterval = 1 * time.Minute

	// DefaultCacheMaxEntries bounds the number of cached credentials.
	DefaultCacheMaxEntries = 100
)

// Eviction reasons reported to CacheMetricsRecorder.
const (
	EvictionExpired = "expired"
	EvictionLRU     = "lru"
)

// CacheConfig configures the credential cache. A zero TTL disables caching.
type CacheConfig struct {
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

// CacheMetricsRecorder receives cache events. It lets the cache report
// metrics without depending on the instrumentation package.
type CacheMetricsRecorder interface {
	RecordCacheHit(ctx context.Context)
	RecordCacheMiss(ctx context.Context)
	RecordCacheEviction(ctx context.Context, reason string)
	SetCacheSize(ctx context.Context, size int)
}

type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordCacheHit(context.Context)              {}
func (noopCacheMetrics) RecordCacheMiss(context.Context)             {}
func (noopCacheMetrics) RecordCacheEviction(context.Context, string) {}
func (noopCacheMetrics) SetCacheSize(context.Context, int)           {}

type cacheEntry struct {
	key       string
	cred      *credential
	expiresAt time.Time
}

// credentialCache is a TTL+LRU cache of resolved credentials keyed by
// (kubeconfig path, context name). It stores credential material only;
// staged files always belong to the LiveClientConfig built from an entry.
type credentialCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lruList *list.List // front = most recently used
	ttl     time.Duration
	maxSize int

	metrics CacheMetricsRecorder
	now     func() time.Time

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

func newCredentialCache(config CacheConfig, metrics CacheMetricsRecorder, now func() time.Time) *credentialCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheTTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheMaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheCleanupInterval
	}
	if metrics == nil {
		metrics = noopCacheMetrics{}
	}
	if now == nil {
		now = time.Now
	}

	c := &credentialCache{
		entries:     make(map[string]*list.Element),
		lruList:     list.New(),
		ttl:         config.TTL,
		maxSize:     config.MaxEntries,
		metrics:     metrics,
		now:         now,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go c.cleanupLoop(config.CleanupInterval)

	return c
}

// cacheKey hashes the credential reference so raw paths never become map keys.
func cacheKey(path, contextName string) string {
	hash := sha256.Sum256([]byte(path + "\x00" + contextName))
	return hex.EncodeToString(hash[:])
}

// expiryFor returns when an entry for cred must expire: the TTL, capped at
// the credential's own expiry.
func (c *credentialCache) expiryFor(cred *credential) time.Time {
	expiresAt := c.now().Add(c.ttl)
	if !cred.expiresAt.IsZero() && cred.expiresAt.Before(expiresAt) {
		expiresAt = cred.expiresAt
	}
	return expiresAt
}

// Get returns the cached credential for key, or nil.
func (c *credentialCache) Get(ctx context.Context, key string) *credential {
	c.mu.Lock()
	elem, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.metrics.RecordCacheMiss(ctx)
		return nil
	}

	entry := elem.Value.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		size := c.removeElementLocked(elem)
		c.mu.Unlock()
		c.metrics.RecordCacheEviction(ctx, EvictionExpired)
		c.metrics.SetCacheSize(ctx, size)
		c.metrics.RecordCacheMiss(ctx)
		return nil
	}

	c.lruList.MoveToFront(elem)
	cred := entry.cred
	c.mu.Unlock()

	c.metrics.RecordCacheHit(ctx)
	return cred
}

// Set stores cred under key until its computed expiry. Credentials that are
// already expired are not stored.
func (c *credentialCache) Set(ctx context.Context, key string, cred *credential) {
	expiresAt := c.expiryFor(cred)
	if !c.now().Before(expiresAt) {
		return
	}

	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.cred = cred
		entry.expiresAt = expiresAt
		c.lruList.MoveToFront(elem)
		c.mu.Unlock()
		return
	}

	evicted := 0
	for c.maxSize > 0 && c.lruList.Len() >= c.maxSize {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeElementLocked(oldest)
		evicted++
	}

	c.entries[key] = c.lruList.PushFront(&cacheEntry{key: key, cred: cred, expiresAt: expiresAt})
	size := len(c.entries)
	c.mu.Unlock()

	for i := 0; i < evicted; i++ {
		c.metrics.RecordCacheEviction(ctx, EvictionLRU)
	}
	c.metrics.SetCacheSize(ctx, size)
}

// removeElementLocked drops elem and returns the new size. Must be called with mu held.
func (c *credentialCache) removeElementLocked(elem *list.Element) int {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lruList.Remove(elem)
	return len(c.entries)
}

func (c *credentialCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(c.cleanupDone)

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes every expired entry.
func (c *credentialCache) cleanup() {
	now := c.now()

	c.mu.Lock()
	removed := 0
	var next *list.Element
	for elem := c.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		if !now.Before(elem.Value.(*cacheEntry).expiresAt) {
			c.removeElementLocked(elem)
			removed++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	if removed == 0 {
		return
	}
	ctx := context.Background()
	for i := 0; i < removed; i++ {
		c.metrics.RecordCacheEviction(ctx, EvictionExpired)
	}
	c.metrics.SetCacheSize(ctx, size)
}

// Size returns the number of cached credentials.
func (c *credentialCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine and drops every entry.
func (c *credentialCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
		<-c.cleanupDone

		c.mu.Lock()
		c.entries = make(map[string]*list.Element)
		c.lruList.Init()
		c.mu.Unlock()
	})
}
