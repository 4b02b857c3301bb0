package reach

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Worker executes one job at a time: Pending -> Running -> Completed|Failed.
// While a job runs, its record is written only by the Worker running it.
type Worker struct {
	jobs   *JobStore
	engine *Engine
}

// NewWorker returns a Worker that persists to jobs and traverses with engine.
func NewWorker(jobs *JobStore, engine *Engine) *Worker {
	return &Worker{jobs: jobs, engine: engine}
}

// Run executes the job with the given id. Traversal failures are recorded on
// the job and are not returned; the returned error means a status transition
// could not be persisted and the record may be stale.
//
// Cancelling ctx stops the traversal; the job is then recorded as Failed with
// an ErrCancelled message.
func (w *Worker) Run(ctx context.Context, id string) error {
	// Persistence must outlive cancellation of the traversal.
	persistCtx := context.WithoutCancel(ctx)

	job, err := w.jobs.Get(persistCtx, id)
	if err != nil {
		return fmt.Errorf("load job %s: %w", id, err)
	}
	if job.Status != StatusPending {
		slog.Warn("job not pending, skipping", slog.String("job", id), slog.String("status", string(job.Status)))
		return nil
	}

	job.Status = StatusRunning
	if err := w.jobs.Save(persistCtx, job); err != nil {
		return fmt.Errorf("mark job %s running: %w", id, err)
	}
	slog.Info("job started", slog.String("job", id), slog.String("target", job.Target), slog.Int("depth", job.Depth))

	jobsRunning.Inc()
	defer jobsRunning.Dec()

	sink := ProgressFunc(func(_ context.Context, ev ProgressEvent) {
		if err := w.jobs.UpdateProgress(persistCtx, id, ev.String()); err != nil {
			slog.Warn("progress update failed", slog.String("job", id), slog.Any("error", err))
		}
	})

	start := time.Now()
	results, travErr := w.traverse(ctx, job, sink)
	traversalDuration.Observe(time.Since(start).Seconds())

	// Progress writes went straight to the store; reload so they are kept.
	if latest, err := w.jobs.Get(persistCtx, id); err == nil {
		job = latest
	}
	if results == nil {
		results = []ResultItem{}
	}
	job.Results = results

	if travErr != nil {
		job.Status = StatusFailed
		job.Error = travErr.Error()
		if job.Error == "" {
			job.Error = "traversal failed"
		}
		jobsTotal.WithLabelValues(string(StatusFailed)).Inc()
		slog.Error("job failed", slog.String("job", id), slog.Any("error", travErr))
	} else {
		job.Status = StatusCompleted
		job.Error = ""
		job.Progress = fmt.Sprintf(progressFormat, len(results))
		jobsTotal.WithLabelValues(string(StatusCompleted)).Inc()
		slog.Info("job completed", slog.String("job", id), slog.Int("results", len(results)))
	}

	if err := w.jobs.Save(persistCtx, job); err != nil {
		return fmt.Errorf("finish job %s as %s: %w", id, job.Status, err)
	}
	return nil
}

// traverse runs the engine, converting a panic into a job failure.
func (w *Worker) traverse(ctx context.Context, job *Job, sink ProgressSink) (results []ResultItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("traversal panicked", slog.String("job", job.ID), slog.Any("panic", r))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return w.engine.Traverse(ctx, job.Target, job.Depth, job.MinFollowers, sink)
}
