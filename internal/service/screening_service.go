package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lionboard/internal/contentsafety"
	"lionboard/internal/jobs"
	"lionboard/internal/models"
	"lionboard/internal/observability"
	"lionboard/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ScreenThreadJob is the job kind carrying a thread to screen.
const ScreenThreadJob = "screen_thread"

// Outcome records which branch a screening run took.
type Outcome int

const (
	// OutcomeFailed accompanies a non-nil error.
	OutcomeFailed Outcome = iota
	OutcomeNotFound
	OutcomeAlreadyFlagged
	OutcomeSkipped
	OutcomeClean
	OutcomeFlagged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeAlreadyFlagged:
		return "already_flagged"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeClean:
		return "clean"
	case OutcomeFlagged:
		return "flagged"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// JobEnqueuer accepts background jobs. *jobs.Worker implements it.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *jobs.Job) error
}

type screenThreadPayload struct {
	ThreadID uint `json:"thread_id"`
}

// ScreeningService classifies new threads with the moderation API and flags
// them for human review. It never touches redaction fields.
type ScreeningService struct {
	threads  repository.ThreadRepository
	screener contentsafety.Screener
	queue    JobEnqueuer
	now      func() time.Time
	warnOnce sync.Once
}

func NewScreeningService(threads repository.ThreadRepository, screener contentsafety.Screener, queue JobEnqueuer) *ScreeningService {
	return &ScreeningService{
		threads:  threads,
		screener: screener,
		queue:    queue,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ScreenThread runs one screening attempt. A nil error means the attempt is
// finished; a non-nil error is retryable when it is an ExternalServiceError.
func (s *ScreeningService) ScreenThread(ctx context.Context, threadID uint) (outcome Outcome, err error) {
	ctx, span := observability.StartSpan(ctx, "screening.thread", attribute.Int64("thread.id", int64(threadID)))
	defer func() {
		span.SetAttributes(attribute.String("screening.outcome", outcome.String()))
		observability.EndSpan(span, err)
		if err == nil {
			observability.ScreeningOutcomes.WithLabelValues(outcome.String()).Inc()
		} else {
			observability.ScreeningOutcomes.WithLabelValues("error").Inc()
		}
	}()

	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return OutcomeNotFound, nil
		}
		return OutcomeFailed, fmt.Errorf("load thread %d: %w", threadID, err)
	}
	if thread.AIFlagged {
		return OutcomeAlreadyFlagged, nil
	}
	if !s.screener.Configured() {
		s.warnMissingCredential(ctx)
		return OutcomeSkipped, nil
	}

	result, err := s.screener.Screen(ctx, thread.ScreeningText())
	if err != nil {
		if errors.Is(err, contentsafety.ErrMissingCredential) {
			s.warnMissingCredential(ctx)
			return OutcomeSkipped, nil
		}
		var extErr *contentsafety.ExternalServiceError
		if !errors.As(err, &extErr) {
			err = &contentsafety.ExternalServiceError{Op: "screen", Err: err}
		}
		observability.Logger.WarnContext(ctx, "content screening failed",
			slog.Uint64("thread_id", uint64(threadID)),
			slog.String("error", err.Error()),
		)
		return OutcomeFailed, err
	}

	// A clean result leaves the thread untouched.
	if !result.Flagged {
		return OutcomeClean, nil
	}

	flaggedAt := s.now()
	thread.AIFlagged = true
	thread.AICategories = result.Categories
	thread.AIScores = result.CategoryScores
	thread.ScreenedAt = &flaggedAt
	if err := s.threads.SaveScreening(ctx, thread); err != nil {
		return OutcomeFailed, fmt.Errorf("save screening for thread %d: %w", threadID, err)
	}

	observability.Logger.WarnContext(ctx, "thread flagged by content screening",
		slog.Uint64("thread_id", uint64(threadID)),
	)
	return OutcomeFlagged, nil
}

// EnqueueScreening schedules a screening job. Failures are logged and never
// returned; thread creation must not depend on the queue.
func (s *ScreeningService) EnqueueScreening(ctx context.Context, threadID uint) {
	if s.queue == nil {
		return
	}
	job, err := jobs.NewJob(ScreenThreadJob, screenThreadPayload{ThreadID: threadID})
	if err == nil {
		err = s.queue.Enqueue(ctx, job)
	}
	if err != nil {
		observability.Logger.ErrorContext(ctx, "failed to enqueue content screening",
			slog.Uint64("thread_id", uint64(threadID)),
			slog.String("error", err.Error()),
		)
	}
}

// HandleJob adapts ScreenThread to the job worker.
func (s *ScreeningService) HandleJob(ctx context.Context, job *jobs.Job) error {
	var payload screenThreadPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	if payload.ThreadID == 0 {
		return models.NewMissingFieldError("thread_id")
	}
	_, err := s.ScreenThread(ctx, payload.ThreadID)
	return err
}

func (s *ScreeningService) warnMissingCredential(ctx context.Context) {
	s.warnOnce.Do(func() {
		observability.Logger.WarnContext(ctx, "content screening disabled: no moderation API key configured")
	})
}
