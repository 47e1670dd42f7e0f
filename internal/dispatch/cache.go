// Package dispatch implements the conversational turn controller: the crisis
// gate, mood extraction, routing, response caching, retry, and persistence
// for every incoming chat message.
package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/synermind/synermind/internal/models"
)

// CacheTTL is how long a cached reply stays valid.
const CacheTTL = 5 * time.Minute

// ResponseCache memoizes agent replies per session so an identical message in
// an identical context costs nothing for a short window. Keys bind the agent,
// the message, and the trimmed context; if any of them changes the entry
// cannot match.
type ResponseCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	reply    string
	storedAt time.Time
}

// NewResponseCache creates a cache on the real clock.
func NewResponseCache() *ResponseCache {
	return NewResponseCacheWithClock(time.Now)
}

// NewResponseCacheWithClock creates a cache with an injectable clock so
// expiry can be tested without sleeping.
func NewResponseCacheWithClock(now func() time.Time) *ResponseCache {
	return &ResponseCache{
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(agent models.AgentType, message, context string) string {
	sum := sha256.Sum256([]byte(string(agent) + "||" + message + "||" + context))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached reply for the (agent, message, context) triple.
// Expired entries are removed on access.
func (c *ResponseCache) Get(agent models.AgentType, message, context string) (string, bool) {
	key := cacheKey(agent, message, context)
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.storedAt) >= CacheTTL {
		delete(c.entries, key)
		slog.Debug("ResponseCache.Get: entry expired", "agent", agent)
		return "", false
	}
	slog.Debug("ResponseCache.Get: hit", "agent", agent)
	return entry.reply, true
}

// Put stores a reply for the (agent, message, context) triple.
func (c *ResponseCache) Put(agent models.AgentType, message, context, reply string) {
	key := cacheKey(agent, message, context)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{reply: reply, storedAt: c.now()}
}
