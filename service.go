// Package reach discovers accounts reachable from a seed account through the
// follower graph, keeping only those above a follower threshold. Traversals
// run as background jobs whose state is kept in a durable store.
package reach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service is the surface used by the API layer.
type Service struct {
	jobs         *JobStore
	dispatcher   *Dispatcher
	minFollowers int
	maxDepth     int
}

// NewService wires the job store and dispatcher. cfg supplies the default
// follower threshold and the depth limit.
func NewService(jobs *JobStore, dispatcher *Dispatcher, cfg Config) *Service {
	cfg.defaults()
	return &Service{
		jobs:         jobs,
		dispatcher:   dispatcher,
		minFollowers: cfg.MinFollowers,
		maxDepth:     cfg.MaxDepth,
	}
}

// MaxDepth is the largest depth SubmitJob accepts.
func (s *Service) MaxDepth() int { return s.maxDepth }

type submitOptions struct {
	minFollowers *int
}

// SubmitOption adjusts a single submission.
type SubmitOption func(*submitOptions)

// WithMinFollowers overrides the configured follower threshold.
func WithMinFollowers(n int) SubmitOption {
	return func(o *submitOptions) { o.minFollowers = &n }
}

// SubmitJob records a pending job for target and queues it. When the queue is
// full the job is recorded as Failed and its id is returned along with
// ErrQueueFull.
func (s *Service) SubmitJob(ctx context.Context, target string, depth int, opts ...SubmitOption) (string, error) {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	minFollowers := s.minFollowers
	if o.minFollowers != nil {
		minFollowers = *o.minFollowers
	}

	handle := NormalizeHandle(target)
	switch {
	case handle == "":
		return "", fmt.Errorf("%w: username is required", ErrInvalidRequest)
	case depth < 1 || depth > s.maxDepth:
		return "", fmt.Errorf("%w: depth must be between 1 and %d", ErrInvalidRequest, s.maxDepth)
	case minFollowers < 0:
		return "", fmt.Errorf("%w: min_followers must not be negative", ErrInvalidRequest)
	}

	job := &Job{
		ID:           uuid.New().String(),
		Status:       StatusPending,
		Target:       handle,
		Depth:        depth,
		MinFollowers: minFollowers,
		Results:      []ResultItem{},
		Progress:     progressQueued,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if err := s.dispatcher.Enqueue(job.ID); err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		if saveErr := s.jobs.Save(ctx, job); saveErr != nil {
			slog.Error("could not record rejected job", slog.String("job", job.ID), slog.Any("error", saveErr))
			return "", err
		}
		jobsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return job.ID, err
	}

	jobsTotal.WithLabelValues(string(StatusPending)).Inc()
	slog.Info("job submitted", slog.String("job", job.ID), slog.String("target", handle), slog.Int("depth", depth))
	return job.ID, nil
}

// GetJob returns the job record, or ErrJobNotFound.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.jobs.Get(ctx, id)
}

// CancelJob stops a queued or running job. Finished jobs cannot be cancelled.
func (s *Service) CancelJob(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: job already %s", ErrInvalidRequest, job.Status)
	}
	if s.dispatcher.Cancel(id) {
		return nil
	}
	if s.dispatcher.Owns(id) {
		// A worker finished it after the read above; its record is final.
		return fmt.Errorf("%w: job already finished", ErrInvalidRequest)
	}

	// Not owned by any worker (e.g. left over from a previous process).
	job.Status = StatusFailed
	job.Error = fmt.Errorf("%w: %w", ErrCancelled, errCancelRequested).Error()
	if err := s.jobs.Save(ctx, job); err != nil {
		return err
	}
	jobsTotal.WithLabelValues(string(StatusFailed)).Inc()
	return nil
}

// IsNotFound reports whether err means the job does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
