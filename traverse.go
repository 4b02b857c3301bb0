package reach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ProgressSink receives one event per node the traversal starts exploring.
type ProgressSink interface {
	Report(ctx context.Context, ev ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ctx context.Context, ev ProgressEvent)

func (f ProgressFunc) Report(ctx context.Context, ev ProgressEvent) { f(ctx, ev) }

// EdgeRecorder is told about every follower edge the traversal resolves.
// Failures are logged and never affect the traversal.
type EdgeRecorder interface {
	RecordFollow(ctx context.Context, follower, followee Profile) error
}

// Engine walks the follower graph outward from a seed account.
// An Engine holds no per-traversal state and may be shared by concurrent jobs.
type Engine struct {
	provider      Provider
	cache         *ProfileCache
	followerLimit int
	edges         EdgeRecorder
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFollowerLimit caps each follower-list fetch. Zero fetches all.
func WithFollowerLimit(n int) EngineOption {
	return func(e *Engine) { e.followerLimit = n }
}

// WithEdgeRecorder exports resolved follow edges to r.
func WithEdgeRecorder(r EdgeRecorder) EngineOption {
	return func(e *Engine) { e.edges = r }
}

// NewEngine returns an Engine reading through cache (may be nil) to provider.
func NewEngine(provider Provider, cache *ProfileCache, opts ...EngineOption) *Engine {
	e := &Engine{provider: provider, cache: cache}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Traverse returns every account reachable from target whose follower count
// is at least minFollowers, up to maxDepth hops, in provider order with nested
// discoveries placed right after the account they were found through.
//
// Failures to resolve the target itself (or fetch its followers) are returned.
// Failures deeper in the graph prune that branch only, except for
// authentication failures and cancellation, which abort the walk. On error the
// results gathered so far are returned alongside it.
func (e *Engine) Traverse(ctx context.Context, target string, maxDepth, minFollowers int, sink ProgressSink) ([]ResultItem, error) {
	if NormalizeHandle(target) == "" {
		return nil, fmt.Errorf("%w: empty target handle", ErrInvalidRequest)
	}
	if maxDepth < 1 {
		return nil, fmt.Errorf("%w: depth %d", ErrInvalidRequest, maxDepth)
	}
	w := &walk{
		engine:       e,
		maxDepth:     maxDepth,
		minFollowers: minFollowers,
		sink:         sink,
		visited:      make(map[string]struct{}),
		resolved:     make(map[string]Profile),
		failed:       make(map[string]error),
		reported:     make(map[string]struct{}),
	}
	return w.explore(ctx, target, 1)
}

// walk is the state of one Traverse call. It is never shared between calls.
type walk struct {
	engine       *Engine
	maxDepth     int
	minFollowers int
	sink         ProgressSink

	visited  map[string]struct{}
	resolved map[string]Profile
	failed   map[string]error
	reported map[string]struct{}
}

func (w *walk) explore(ctx context.Context, handle string, depth int) ([]ResultItem, error) {
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	key := NormalizeHandle(handle)
	if _, seen := w.visited[key]; seen {
		return nil, nil
	}
	w.visited[key] = struct{}{}

	if w.sink != nil {
		w.sink.Report(ctx, ProgressEvent{Handle: handle, Depth: depth})
	}

	target, err := w.resolve(ctx, handle)
	if err != nil {
		if abort := w.abort(ctx, err, depth); abort != nil {
			return nil, abort
		}
		slog.Warn("could not resolve account, pruning branch",
			slog.String("handle", handle), slog.Int("depth", depth), slog.Any("error", err))
		return nil, nil
	}

	if target.Private {
		slog.Info("skipping private account", slog.String("handle", handle))
		return nil, nil
	}

	followers, err := w.engine.provider.FetchFollowers(ctx, target.ID, w.engine.followerLimit)
	if err != nil {
		if abort := w.abort(ctx, err, depth); abort != nil {
			return nil, abort
		}
		slog.Warn("could not fetch followers, pruning branch",
			slog.String("handle", handle), slog.Int("depth", depth), slog.Any("error", err))
		return nil, nil
	}
	slog.Info("found followers", slog.String("handle", handle), slog.Int("count", len(followers)))

	var results []ResultItem
	for _, f := range followers {
		if ctx.Err() != nil {
			return results, cancelled(ctx)
		}
		prof, err := w.resolve(ctx, f.Handle)
		if err != nil {
			if ctx.Err() != nil {
				return results, cancelled(ctx)
			}
			if errors.Is(err, ErrAuth) {
				return results, err
			}
			slog.Debug("skipping unresolvable follower", slog.String("handle", f.Handle), slog.Any("error", err))
			continue
		}
		w.recordEdge(ctx, prof, target)

		// Only accounts that pass the threshold are explored further.
		if prof.FollowerCount < w.minFollowers {
			continue
		}
		if k := NormalizeHandle(prof.Handle); !w.seenResult(k) {
			results = append(results, newResultItem(prof, depth))
		}

		if depth < w.maxDepth && !prof.Private {
			nested, err := w.explore(ctx, prof.Handle, depth+1)
			results = append(results, nested...)
			if err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

// seenResult marks key as reported and says whether it already was.
// Diamond-shaped reachability would otherwise list an account twice.
func (w *walk) seenResult(key string) bool {
	if _, ok := w.reported[key]; ok {
		return true
	}
	w.reported[key] = struct{}{}
	return false
}

// abort decides whether err ends the whole walk. Errors at the root always do.
func (w *walk) abort(ctx context.Context, err error, depth int) error {
	if ctx.Err() != nil {
		return cancelled(ctx)
	}
	if depth == 1 || errors.Is(err, ErrAuth) {
		return err
	}
	return nil
}

// resolve returns the full profile for handle: walk memo, then cache, then
// provider. Each handle reaches the provider at most once per walk.
func (w *walk) resolve(ctx context.Context, handle string) (Profile, error) {
	key := NormalizeHandle(handle)
	if p, ok := w.resolved[key]; ok {
		return p, nil
	}
	if err, ok := w.failed[key]; ok {
		return Profile{}, err
	}
	if c := w.engine.cache; c != nil {
		if p, ok := c.Get(ctx, key); ok {
			w.resolved[key] = p
			return p, nil
		}
	}

	p, err := w.engine.provider.FetchProfile(ctx, handle)
	if err != nil {
		if ctx.Err() == nil {
			w.failed[key] = err
		}
		return Profile{}, err
	}
	if c := w.engine.cache; c != nil {
		c.Put(ctx, key, p)
	}
	w.resolved[key] = p
	return p, nil
}

func (w *walk) recordEdge(ctx context.Context, follower, followee Profile) {
	if w.engine.edges == nil {
		return
	}
	if err := w.engine.edges.RecordFollow(ctx, follower, followee); err != nil {
		slog.Debug("edge export failed",
			slog.String("follower", follower.Handle),
			slog.String("followee", followee.Handle),
			slog.Any("error", err))
	}
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}
