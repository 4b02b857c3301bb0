package reach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestProfileCache_PutGet(t *testing.T) {
	c := NewProfileCache(newMemStore(), time.Hour)
	ctx := context.Background()
	p := Profile{ID: 7, Handle: "Alice", FollowerCount: 150}

	c.Put(ctx, "@Alice", p)

	got, ok := c.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestProfileCache_Miss(t *testing.T) {
	c := NewProfileCache(newMemStore(), time.Hour)
	_, ok := c.Get(context.Background(), "nobody")
	assert.False(t, ok)
}

func TestProfileCache_ExpiresOnRead(t *testing.T) {
	store := newMemStore()
	c := NewProfileCache(store, 24*time.Hour)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	c.now = fixedClock(t0)
	c.Put(ctx, "alice", Profile{Handle: "alice"})

	c.now = fixedClock(t0.Add(23 * time.Hour))
	_, ok := c.Get(ctx, "alice")
	assert.True(t, ok, "entry within the window is returned")

	c.now = fixedClock(t0.Add(24*time.Hour + time.Second))
	_, ok = c.Get(ctx, "alice")
	assert.False(t, ok, "entry past the window is treated as absent")

	// The stored bytes are still there; expiry is decided on read.
	_, present, err := store.Get(ctx, "user:alice")
	require.NoError(t, err)
	assert.True(t, present)
}

func TestProfileCache_WritesWithTTL(t *testing.T) {
	store := newMemStore()
	c := NewProfileCache(store, 24*time.Hour)
	c.Put(context.Background(), "Bob", Profile{Handle: "Bob"})
	assert.Equal(t, 24*time.Hour, store.ttls["user:bob"])
}

func TestProfileCache_StoreFailuresAreMisses(t *testing.T) {
	store := newMemStore()
	c := NewProfileCache(store, time.Hour)
	ctx := context.Background()

	store.setFailures(false, true)
	assert.NotPanics(t, func() { c.Put(ctx, "alice", Profile{Handle: "alice"}) })

	store.setFailures(true, false)
	_, ok := c.Get(ctx, "alice")
	assert.False(t, ok)
}

func TestProfileCache_CorruptEntry(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "user:alice", []byte("{not json")))

	c := NewProfileCache(store, time.Hour)
	_, ok := c.Get(ctx, "alice")
	assert.False(t, ok)
}
