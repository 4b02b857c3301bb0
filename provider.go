package reach

import (
	"context"
	"math/rand/v2"
	"time"
)

// Provider is the external source of profiles and follower lists.
//
// FetchFollowers may return partial profiles: counts can be zero or stale, so
// callers resolve each entry with FetchProfile before trusting them.
// A limit of zero means the full list.
type Provider interface {
	FetchProfile(ctx context.Context, handle string) (Profile, error)
	FetchFollowers(ctx context.Context, userID int64, limit int) ([]Profile, error)
}

// Pacer delays the caller before an external call.
type Pacer interface {
	Pace(ctx context.Context) error
}

// JitterPacer sleeps a uniformly distributed duration in [Min, Max].
type JitterPacer struct {
	Min time.Duration
	Max time.Duration
}

// DefaultPacer is the 1–3 second window used in production.
var DefaultPacer = JitterPacer{Min: time.Second, Max: 3 * time.Second}

// Delay draws the next delay.
func (p JitterPacer) Delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min+1)
}

// Pace sleeps for Delay, returning early with ctx.Err() on cancellation.
func (p JitterPacer) Pace(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PacedProvider runs the pacer before every call to the wrapped provider.
// One PacedProvider (and the session behind it) is shared by all jobs.
type PacedProvider struct {
	next  Provider
	pacer Pacer
}

var _ Provider = (*PacedProvider)(nil)

// NewPacedProvider wraps next. A nil pacer uses DefaultPacer.
func NewPacedProvider(next Provider, pacer Pacer) *PacedProvider {
	if pacer == nil {
		pacer = DefaultPacer
	}
	return &PacedProvider{next: next, pacer: pacer}
}

func (p *PacedProvider) FetchProfile(ctx context.Context, handle string) (Profile, error) {
	if err := p.pacer.Pace(ctx); err != nil {
		return Profile{}, err
	}
	prof, err := p.next.FetchProfile(ctx, handle)
	providerCalls.WithLabelValues("profile", providerOutcome(err)).Inc()
	return prof, err
}

func (p *PacedProvider) FetchFollowers(ctx context.Context, userID int64, limit int) ([]Profile, error) {
	if err := p.pacer.Pace(ctx); err != nil {
		return nil, err
	}
	followers, err := p.next.FetchFollowers(ctx, userID, limit)
	providerCalls.WithLabelValues("followers", providerOutcome(err)).Inc()
	return followers, err
}
