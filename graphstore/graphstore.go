// Package graphstore exports resolved follow edges to Neo4j as
// (:Account)-[:FOLLOWS]->(:Account).
package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	reach "github.com/anatolykoptev/go-reach"
)

// Runner executes one Cypher statement and buffers its result.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Executor is a Runner backed by the Neo4j driver.
type Executor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// NewExecutor creates a driver for uri with basic auth.
func NewExecutor(uri, username, password, dbName string) (*Executor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Executor{Driver: driver, DBName: dbName}, nil
}

// Verify checks connectivity to the server.
func (e *Executor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Close releases the driver.
func (e *Executor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Run executes query with session and transaction handling left to the driver.
func (e *Executor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		e.Driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.DBName),
	)
	if err != nil {
		return nil, fmt.Errorf("execute neo4j query: %w", err)
	}
	return result, nil
}

const (
	constraintQuery = `CREATE CONSTRAINT account_handle IF NOT EXISTS FOR (a:Account) REQUIRE a.handle IS UNIQUE`

	followQuery = `MERGE (f:Account {handle: $follower.handle})
SET f += $follower
MERGE (t:Account {handle: $followee.handle})
SET t += $followee
MERGE (f)-[r:FOLLOWS]->(t)
SET r.seen_at = $seen_at`
)

// Recorder implements reach.EdgeRecorder on a Runner.
type Recorder struct {
	runner Runner
	now    func() time.Time
}

var _ reach.EdgeRecorder = (*Recorder)(nil)

// NewRecorder returns a Recorder writing through runner.
func NewRecorder(runner Runner) *Recorder {
	return &Recorder{runner: runner, now: time.Now}
}

// EnsureSchema creates the handle uniqueness constraint if missing.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, constraintQuery, nil); err != nil {
		return fmt.Errorf("ensure account constraint: %w", err)
	}
	return nil
}

// RecordFollow upserts both accounts and the edge between them.
func (r *Recorder) RecordFollow(ctx context.Context, follower, followee reach.Profile) error {
	params := map[string]any{
		"follower": accountProps(follower),
		"followee": accountProps(followee),
		"seen_at":  r.now().UTC().Format(time.RFC3339),
	}
	if _, err := r.runner.Run(ctx, followQuery, params); err != nil {
		return fmt.Errorf("record %s -> %s: %w", follower.Handle, followee.Handle, err)
	}
	return nil
}

// accountProps keys accounts by normalized handle. Counts are only set when
// the profile carries them so a sparse follower entry never zeroes a node.
// The private flag is always written so an account that turns public is
// updated.
func accountProps(p reach.Profile) map[string]any {
	props := map[string]any{
		"handle":  reach.NormalizeHandle(p.Handle),
		"private": p.Private,
	}
	if p.ID != 0 {
		props["id"] = p.ID
	}
	if p.DisplayName != "" {
		props["display_name"] = p.DisplayName
	}
	if p.FollowerCount > 0 {
		props["followers"] = p.FollowerCount
	}
	if p.FollowingCount > 0 {
		props["following"] = p.FollowingCount
	}
	return props
}
