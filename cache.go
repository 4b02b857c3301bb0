package reach

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-reach/kv"
)

const userKeyPrefix = "user:"

// DefaultCacheTTL is how long a fetched profile is trusted.
const DefaultCacheTTL = 24 * time.Hour

// cacheEntry is the stored form of a cached profile.
type cacheEntry struct {
	Profile   Profile   `json:"profile"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ProfileCache maps handles to their last fetched profile. It is an
// optimisation only: store failures degrade to misses and are never returned.
type ProfileCache struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewProfileCache returns a cache over store whose entries expire after ttl.
func NewProfileCache(store kv.Store, ttl time.Duration) *ProfileCache {
	return &ProfileCache{store: store, ttl: ttl, now: time.Now}
}

func userKey(handle string) string {
	return userKeyPrefix + NormalizeHandle(handle)
}

// Get returns the cached profile for handle if present and younger than the TTL.
func (c *ProfileCache) Get(ctx context.Context, handle string) (Profile, bool) {
	key := userKey(handle)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		slog.Warn("profile cache read failed", slog.String("key", key), slog.Any("error", err))
		return Profile{}, false
	}
	if !ok {
		cacheLookups.WithLabelValues("miss").Inc()
		return Profile{}, false
	}

	var e cacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		slog.Warn("profile cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		return Profile{}, false
	}
	if c.now().Sub(e.FetchedAt) > c.ttl {
		cacheLookups.WithLabelValues("expired").Inc()
		return Profile{}, false
	}
	cacheLookups.WithLabelValues("hit").Inc()
	slog.Debug("profile cache hit", slog.String("handle", handle))
	return e.Profile, true
}

// Put stores p under handle, replacing any previous entry.
func (c *ProfileCache) Put(ctx context.Context, handle string, p Profile) {
	key := userKey(handle)
	data, err := json.Marshal(cacheEntry{Profile: p, FetchedAt: c.now()})
	if err != nil {
		slog.Warn("profile cache encode failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.store.SetWithExpiry(ctx, key, data, c.ttl); err != nil {
		slog.Warn("profile cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
