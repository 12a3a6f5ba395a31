package recurrence

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CacheEntry represents a cached occurrence check
type CacheEntry struct {
	Found      bool
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// OccurrenceCache caches occurrence checks keyed by the event anchor, the
// serialized recurrence and the instant asked about.
type OccurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// CacheConfig holds configuration for the occurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before eviction
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for occurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewOccurrenceCache creates a new cache and starts its cleanup goroutine.
// Zero config fields fall back to DefaultCacheConfig.
func NewOccurrenceCache(config CacheConfig) *OccurrenceCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &OccurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

func cacheKey(dtstart time.Time, allDay bool, rec Recurrence, occurrenceStart time.Time) string {
	hasher := sha256.New()

	hasher.Write([]byte(dtstart.Format(time.RFC3339Nano)))
	hasher.Write([]byte(dtstart.Location().String()))
	fmt.Fprintf(hasher, "|%t|", allDay)
	hasher.Write([]byte(FormatRule(rec.Rule, allDay)))
	hasher.Write([]byte("|" + joinDates(rec.RDate)))
	hasher.Write([]byte("|" + joinDates(rec.ExDate)))
	hasher.Write([]byte("|" + occurrenceStart.UTC().Format(time.RFC3339Nano)))

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached result if it exists and hasn't expired
func (c *OccurrenceCache) Get(dtstart time.Time, allDay bool, rec Recurrence, occurrenceStart time.Time) (bool, bool) {
	key := cacheKey(dtstart, allDay, rec, occurrenceStart)
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return false, false
	}
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		return false, false
	}

	entry.AccessedAt = now
	return entry.Found, true
}

// Set stores a result in the cache
func (c *OccurrenceCache) Set(dtstart time.Time, allDay bool, rec Recurrence, occurrenceStart time.Time, found bool) {
	key := cacheKey(dtstart, allDay, rec, occurrenceStart)
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Found:      found,
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries and then the least recently accessed ones
// until the cache is within maxEntries. Callers hold the write lock.
func (c *OccurrenceCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	byAccess := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		byAccess = append(byAccess, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	sort.Slice(byAccess, func(i, j int) bool {
		return byAccess[i].accessedAt.Before(byAccess[j].accessedAt)
	})

	excess := len(c.entries) - c.maxEntries
	for i := 0; i < excess; i++ {
		delete(c.entries, byAccess[i].key)
	}
}

func (c *OccurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call
// more than once.
func (c *OccurrenceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics
func (c *OccurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	expired := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
		MaxEntries:     c.maxEntries,
		TTL:            c.ttl,
	}
}

// CacheStats provides information about cache occupancy
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	MaxEntries     int
	TTL            time.Duration
}
