package reach

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

var errCancelRequested = errors.New("cancelled by request")

// Dispatcher feeds queued job ids to a fixed number of workers, bounding how
// many traversals hit the provider at once.
type Dispatcher struct {
	worker  *Worker
	workers int
	queue   chan string

	mu        sync.Mutex
	queued    map[string]struct{}
	cancelled map[string]struct{}
	running   map[string]context.CancelCauseFunc
	owned     map[string]struct{} // every id accepted by Enqueue in this process

	// OnFatal, if set, is called when a job's state could not be persisted.
	OnFatal func(jobID string, err error)
}

// NewDispatcher returns a Dispatcher with the given number of workers and
// queue capacity. Call Run to start it.
func NewDispatcher(worker *Worker, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		worker:    worker,
		workers:   workers,
		queue:     make(chan string, queueSize),
		queued:    make(map[string]struct{}),
		cancelled: make(map[string]struct{}),
		running:   make(map[string]context.CancelCauseFunc),
		owned:     make(map[string]struct{}),
	}
}

// Enqueue schedules a job without blocking. It fails with ErrQueueFull when
// the queue is at capacity.
func (d *Dispatcher) Enqueue(jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case d.queue <- jobID:
		d.queued[jobID] = struct{}{}
		d.owned[jobID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Cancel stops a running job or marks a queued one so it fails as soon as a
// worker picks it up. It reports whether the job was known to the dispatcher.
func (d *Dispatcher) Cancel(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cancel, ok := d.running[jobID]; ok {
		cancel(errCancelRequested)
		return true
	}
	if _, ok := d.queued[jobID]; ok {
		d.cancelled[jobID] = struct{}{}
		return true
	}
	return false
}

// Owns reports whether jobID was accepted by this dispatcher. Once true it
// stays true, so a job that Cancel no longer finds but Owns reports has been
// finished by a worker.
func (d *Dispatcher) Owns(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.owned[jobID]
	return ok
}

// Run starts the workers and blocks until ctx is done and every in-flight
// job has been recorded.
func (d *Dispatcher) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-d.queue:
					d.runOne(ctx, id)
				}
			}
		})
	}
	slog.Info("dispatcher started", slog.Int("workers", d.workers), slog.Int("queue", cap(d.queue)))
	return g.Wait()
}

func (d *Dispatcher) runOne(ctx context.Context, id string) {
	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	d.mu.Lock()
	delete(d.queued, id)
	d.running[id] = cancel
	if _, ok := d.cancelled[id]; ok {
		delete(d.cancelled, id)
		cancel(errCancelRequested)
	}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.running, id)
		d.mu.Unlock()
	}()

	if err := d.worker.Run(jobCtx, id); err != nil {
		jobStoreFailures.Inc()
		slog.Error("job state could not be persisted", slog.String("job", id), slog.Any("error", err))
		if d.OnFatal != nil {
			d.OnFatal(id, err)
		}
	}
}
