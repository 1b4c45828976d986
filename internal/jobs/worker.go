package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lionboard/internal/observability"
)

// Handler processes one job. Errors exposing Retryable() == true are retried
// under the worker's policy; any other error abandons the job.
type Handler func(ctx context.Context, job *Job) error

type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err asks for another attempt.
func IsRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r) && r.Retryable()
}

const reasonAttemptsExhausted = "attempts exhausted without a result"

// RetryPolicy is a fixed-delay, bounded retry schedule.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Name         string
	Policy       RetryPolicy
	PollInterval time.Duration
	Lease        time.Duration
}

// Worker polls a Queue and dispatches jobs to handlers by kind.
type Worker struct {
	queue    Queue
	name     string
	policy   RetryPolicy
	poll     time.Duration
	lease    time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewWorker(queue Queue, opts WorkerOptions) *Worker {
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy.MaxAttempts = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 750 * time.Millisecond
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Worker{
		queue:    queue,
		name:     opts.Name,
		policy:   opts.Policy,
		poll:     opts.PollInterval,
		lease:    opts.Lease,
		now:      func() time.Time { return time.Now().UTC() },
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobs of the given kind.
func (w *Worker) Handle(kind string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Enqueue schedules job to run as soon as a worker is free.
func (w *Worker) Enqueue(ctx context.Context, job *Job) error {
	if err := w.queue.Enqueue(ctx, job, w.now()); err != nil {
		return err
	}
	observability.JobEvents.WithLabelValues(w.name, "enqueued").Inc()
	return nil
}

// Run polls until ctx is cancelled. It always returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	observability.Logger.InfoContext(ctx, "job worker started", slog.String("queue", w.name))
	lastRequeue := time.Time{}

	for {
		if ctx.Err() != nil {
			observability.Logger.InfoContext(ctx, "job worker stopped", slog.String("queue", w.name))
			return nil
		}
		if w.now().Sub(lastRequeue) >= time.Minute {
			if n, err := w.queue.RequeueStale(ctx, w.now()); err != nil {
				observability.Logger.WarnContext(ctx, "requeue stale jobs failed", slog.String("queue", w.name), slog.String("error", err.Error()))
			} else if n > 0 {
				observability.Logger.WarnContext(ctx, "requeued stale jobs", slog.String("queue", w.name), slog.Int("count", n))
			}
			lastRequeue = w.now()
		}

		processed, err := w.ProcessNext(ctx)
		switch {
		case err != nil:
			observability.Logger.ErrorContext(ctx, "job queue error", slog.String("queue", w.name), slog.String("error", err.Error()))
			if !sleepContext(ctx, time.Second) {
				return nil
			}
		case !processed:
			if !sleepContext(ctx, w.poll) {
				return nil
			}
		}
	}
}

// ProcessNext claims and runs at most one due job. It reports whether a job
// was claimed. Handler failures are consumed here; only queue errors are
// returned.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Claim(ctx, w.now(), w.lease)
	if errors.Is(err, ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if job.Attempts > w.policy.MaxAttempts {
		// Earlier deliveries never reported back; the lease expired instead.
		observability.JobEvents.WithLabelValues(w.name, "abandoned").Inc()
		observability.Logger.ErrorContext(ctx, "job abandoned after expired leases",
			slog.String("queue", w.name),
			slog.String("job_id", job.ID),
			slog.String("kind", job.Kind),
			slog.Int("attempt", job.Attempts),
		)
		return true, w.queue.Abandon(ctx, job, reasonAttemptsExhausted)
	}

	herr := w.dispatch(ctx, job)
	if herr == nil {
		observability.JobEvents.WithLabelValues(w.name, "succeeded").Inc()
		return true, w.queue.Ack(ctx, job)
	}

	job.LastError = herr.Error()
	attrs := []any{
		slog.String("queue", w.name),
		slog.String("job_id", job.ID),
		slog.String("kind", job.Kind),
		slog.Int("attempt", job.Attempts),
		slog.String("error", herr.Error()),
	}

	if IsRetryable(herr) && job.Attempts < w.policy.MaxAttempts {
		observability.JobEvents.WithLabelValues(w.name, "retried").Inc()
		observability.Logger.WarnContext(ctx, "job failed, retrying", attrs...)
		return true, w.queue.Retry(ctx, job, w.now().Add(w.policy.Delay))
	}

	observability.JobEvents.WithLabelValues(w.name, "abandoned").Inc()
	observability.Logger.ErrorContext(ctx, "job abandoned", attrs...)
	return true, w.queue.Abandon(ctx, job, herr.Error())
}

func (w *Worker) dispatch(ctx context.Context, job *Job) (err error) {
	w.mu.RLock()
	h, ok := w.handlers[job.Kind]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler for job kind %q", job.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, w.lease)
	defer cancel()
	return h(runCtx, job)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
