package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry is one cached report result keyed by prompt signature.
type Entry struct {
	Result    json.RawMessage
	ModelID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// ReportCache memoizes finished report results so that resubmitting an
// identical KPI dataset within the TTL reuses the prior completion instead
// of paying for another provider call.
type ReportCache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	ttl        time.Duration
	maxEntries int
}

func NewReportCache(config Config) *ReportCache {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 500
	}
	return &ReportCache{
		entries:    make(map[string]Entry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (c *ReportCache) Get(signature string) (Entry, bool) {
	c.mu.RLock()
	entry, exists := c.entries[signature]
	c.mu.RUnlock()

	if !exists {
		return Entry{}, false
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, signature)
		c.mu.Unlock()
		return Entry{}, false
	}
	return cloneEntry(entry), true
}

func (c *ReportCache) Set(signature string, entry Entry) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.ttl)
	entry.Result = append([]byte(nil), entry.Result...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[signature] = entry
}

// BuildSignature derives a stable cache key from the report type, model and
// rendered prompt.
func (c *ReportCache) BuildSignature(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.TrimSpace(part))
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "||")))
	return hex.EncodeToString(sum[:])
}

func (c *ReportCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	oldestKey := ""
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.CreatedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.CreatedAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneEntry(entry Entry) Entry {
	clone := entry
	clone.Result = append([]byte(nil), entry.Result...)
	return clone
}
