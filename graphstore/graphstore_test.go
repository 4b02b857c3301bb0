package graphstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reach "github.com/anatolykoptev/go-reach"
)

type call struct {
	query  string
	params map[string]any
}

type fakeRunner struct {
	calls []call
	err   error
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	f.calls = append(f.calls, call{query: query, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return &neo4j.EagerResult{}, nil
}

func TestRecordFollow(t *testing.T) {
	runner := &fakeRunner{}
	rec := NewRecorder(runner)
	rec.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	follower := reach.Profile{ID: 7, Handle: "Alice", DisplayName: "Alice A", FollowerCount: 150}
	followee := reach.Profile{ID: 1, Handle: "seed", FollowerCount: 5000, FollowingCount: 10, Private: true}

	require.NoError(t, rec.RecordFollow(context.Background(), follower, followee))
	require.Len(t, runner.calls, 1)

	c := runner.calls[0]
	assert.Equal(t, followQuery, c.query)
	assert.Equal(t, map[string]any{
		"handle":       "alice",
		"id":           int64(7),
		"display_name": "Alice A",
		"followers":    150,
		"private":      false,
	}, c.params["follower"])
	assert.Equal(t, map[string]any{
		"handle":    "seed",
		"id":        int64(1),
		"followers": 5000,
		"following": 10,
		"private":   true,
	}, c.params["followee"])
	assert.Equal(t, "2026-01-02T03:04:05Z", c.params["seen_at"])
}

func TestRecordFollow_SparseProfile(t *testing.T) {
	runner := &fakeRunner{}
	rec := NewRecorder(runner)

	require.NoError(t, rec.RecordFollow(context.Background(), reach.Profile{Handle: "bob"}, reach.Profile{Handle: "seed"}))
	assert.Equal(t, map[string]any{"handle": "bob", "private": false}, runner.calls[0].params["follower"])
}

func TestRecordFollow_AccountTurnsPublic(t *testing.T) {
	runner := &fakeRunner{}
	rec := NewRecorder(runner)
	seed := reach.Profile{Handle: "seed"}

	require.NoError(t, rec.RecordFollow(context.Background(), reach.Profile{Handle: "bob", Private: true}, seed))
	require.NoError(t, rec.RecordFollow(context.Background(), reach.Profile{Handle: "bob"}, seed))
	require.Len(t, runner.calls, 2)

	// SET f += $follower only overwrites keys present in the map.
	assert.Equal(t, true, runner.calls[0].params["follower"].(map[string]any)["private"])
	assert.Contains(t, runner.calls[1].params["follower"], "private")
	assert.Equal(t, false, runner.calls[1].params["follower"].(map[string]any)["private"])
}

func TestRecordFollow_Error(t *testing.T) {
	runner := &fakeRunner{err: errors.New("connection refused")}
	rec := NewRecorder(runner)

	err := rec.RecordFollow(context.Background(), reach.Profile{Handle: "a"}, reach.Profile{Handle: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.err)
	assert.Contains(t, err.Error(), "a -> b")
}

func TestEnsureSchema(t *testing.T) {
	runner := &fakeRunner{}
	require.NoError(t, NewRecorder(runner).EnsureSchema(context.Background()))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, constraintQuery, runner.calls[0].query)

	runner.err = errors.New("denied")
	assert.ErrorIs(t, NewRecorder(runner).EnsureSchema(context.Background()), runner.err)
}
