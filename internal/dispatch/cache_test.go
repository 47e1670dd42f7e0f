package dispatch

import (
	"testing"
	"time"

	"github.com/synermind/synermind/internal/models"
)

func TestResponseCacheHit(t *testing.T) {
	c := NewResponseCache()
	c.Put(models.AgentMood, "hello", "ctx", "hi there")

	got, ok := c.Get(models.AgentMood, "hello", "ctx")
	if !ok || got != "hi there" {
		t.Errorf("expected hit with 'hi there', got (%q, %v)", got, ok)
	}
}

func TestResponseCacheKeyBindsAllParts(t *testing.T) {
	c := NewResponseCache()
	c.Put(models.AgentMood, "hello", "ctx", "hi there")

	if _, ok := c.Get(models.AgentTherapy, "hello", "ctx"); ok {
		t.Error("different agent must miss")
	}
	if _, ok := c.Get(models.AgentMood, "hello!", "ctx"); ok {
		t.Error("different message must miss")
	}
	if _, ok := c.Get(models.AgentMood, "hello", "other ctx"); ok {
		t.Error("different context must miss")
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	now := time.Now()
	c := NewResponseCacheWithClock(func() time.Time { return now })
	c.Put(models.AgentMood, "hello", "ctx", "hi there")

	// Just under the TTL: still valid
	now = now.Add(CacheTTL - time.Second)
	if _, ok := c.Get(models.AgentMood, "hello", "ctx"); !ok {
		t.Error("entry expired too early")
	}

	// At the TTL boundary: expired
	now = now.Add(time.Second)
	if _, ok := c.Get(models.AgentMood, "hello", "ctx"); ok {
		t.Error("entry should have expired")
	}

	// Expired entries are removed, so a later hit cannot resurrect them
	now = now.Add(-CacheTTL)
	if _, ok := c.Get(models.AgentMood, "hello", "ctx"); ok {
		t.Error("expired entry must be deleted on access")
	}
}
