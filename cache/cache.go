// Package cache stores extracted feature vectors in a keyed string store so
// repeat searches skip re-decoding images. The whole cache lives under a
// single storage key as one JSON snapshot: stale entries are pruned on every
// load and the snapshot is rewritten in full on every save. A failed write
// degrades the engine to always-recompute instead of surfacing an error to
// the search pipeline.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/NanamiAkari/attire-ai-explorer/logging"
	"github.com/NanamiAkari/attire-ai-explorer/types"
)

// Storage is any keyed, string-valued persistent store.
type Storage interface {
	Read(key string) (string, bool, error)
	Write(key, value string) error
	Delete(key string) error
}

const (
	// DefaultSnapshotKey is the storage key the cache snapshot lives under.
	DefaultSnapshotKey = "attire:feature-cache"

	// MaxEntries bounds the snapshot; the newest entries by creation time
	// survive a trim. Recency of insertion, not of access.
	MaxEntries = 100

	// FreshnessWindow is how long an entry stays servable after creation.
	FreshnessWindow = 7 * 24 * time.Hour
)

// Entry is one cached feature vector.
type Entry struct {
	ID        string              `json:"id"`
	SourceURL string              `json:"source_url"`
	Vector    types.FeatureVector `json:"vector"`
	CreatedAt time.Time           `json:"created_at"`
}

// FeatureCache maps image identifiers to previously computed feature vectors
// with time-based expiry and a capacity bound.
type FeatureCache struct {
	storage  Storage
	key      string
	now      func() time.Time
	mu       sync.Mutex
	disabled bool
}

// Option customizes a FeatureCache.
type Option func(*FeatureCache)

// WithClock injects the time source, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *FeatureCache) { c.now = now }
}

// WithSnapshotKey overrides the storage key.
func WithSnapshotKey(key string) Option {
	return func(c *FeatureCache) { c.key = key }
}

// New creates a feature cache over the given storage backend.
func New(storage Storage, opts ...Option) *FeatureCache {
	c := &FeatureCache{
		storage: storage,
		key:     DefaultSnapshotKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached vector for an id. Entries past the freshness window
// are treated as absent.
func (c *FeatureCache) Get(id string) (types.FeatureVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return nil, false
	}

	for _, e := range c.load() {
		if e.ID == id {
			return e.Vector, true
		}
	}
	return nil, false
}

// Put stores a vector under an id, replacing any previous entry for that id
// and trimming the snapshot to capacity.
func (c *FeatureCache) Put(id, sourceURL string, vector types.FeatureVector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return
	}

	entries := c.load()
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	kept = append(kept, Entry{
		ID:        id,
		SourceURL: sourceURL,
		Vector:    vector.Clone(),
		CreatedAt: c.now(),
	})

	c.save(kept)
}

// Clear removes the snapshot from storage.
func (c *FeatureCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage.Delete(c.key)
}

// Disabled reports whether a write failure has turned caching off for the
// rest of the session.
func (c *FeatureCache) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// load reads the snapshot and prunes entries older than the freshness window.
// A corrupt snapshot is discarded rather than propagated.
func (c *FeatureCache) load() []Entry {
	raw, ok, err := c.storage.Read(c.key)
	if err != nil {
		logging.LogWarning("feature cache read failed: %v", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logging.LogWarning("feature cache snapshot corrupt, discarding: %v", err)
		c.storage.Delete(c.key)
		return nil
	}

	cutoff := c.now().Add(-FreshnessWindow)
	fresh := entries[:0]
	for _, e := range entries {
		if e.CreatedAt.After(cutoff) {
			fresh = append(fresh, e)
		}
	}
	return fresh
}

// save trims to capacity (newest first by creation time) and rewrites the
// snapshot. On write failure the whole cache is cleared and caching is
// disabled for the remainder of the session.
func (c *FeatureCache) save(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		logging.LogError("feature cache encode failed: %v", err)
		return
	}

	if err := c.storage.Write(c.key, string(raw)); err != nil {
		logging.LogError("feature cache write failed, disabling cache: %v", err)
		c.storage.Delete(c.key)
		c.disabled = true
	}
}
