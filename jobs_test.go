package reach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStore_CreateGet(t *testing.T) {
	s := NewJobStore(newMemStore())
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = fixedClock(t0)
	ctx := context.Background()

	job := &Job{ID: "j1", Status: StatusPending, Target: "seed", Depth: 1, Results: []ResultItem{}}
	require.NoError(t, s.Create(ctx, job))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "seed", got.Target)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.NotNil(t, got.Results)
}

func TestJobStore_NotFound(t *testing.T) {
	s := NewJobStore(newMemStore())
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.NotErrorIs(t, err, ErrStore)
}

func TestJobStore_UpdateProgressKeepsStatus(t *testing.T) {
	s := NewJobStore(newMemStore())
	ctx := context.Background()
	job := &Job{ID: "j2", Status: StatusRunning, Results: []ResultItem{{Handle: "a", Depth: 1}}}
	require.NoError(t, s.Create(ctx, job))

	require.NoError(t, s.UpdateProgress(ctx, "j2", "Analyzing a at depth 2"))

	got, err := s.Get(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, "Analyzing a at depth 2", got.Progress)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Len(t, got.Results, 1)
}

func TestJobStore_Errors(t *testing.T) {
	store := newMemStore()
	s := NewJobStore(store)
	ctx := context.Background()

	store.setFailures(false, true)
	err := s.Create(ctx, &Job{ID: "j3"})
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, errStoreDown)

	store.setFailures(true, false)
	_, err = s.Get(ctx, "j3")
	assert.ErrorIs(t, err, ErrStore)

	store.setFailures(false, false)
	require.NoError(t, store.Set(ctx, "job:bad", []byte("nope")))
	_, err = s.Get(ctx, "bad")
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "decode", se.Op)
}
