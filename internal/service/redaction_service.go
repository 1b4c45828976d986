package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"lionboard/internal/models"
	"lionboard/internal/observability"
	"lionboard/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// RedactionService moves threads and answers between visible, partial and
// redacted, recording every transition in the audit trail.
type RedactionService struct {
	db          *gorm.DB
	threads     repository.ThreadRepository
	answers     repository.AnswerRepository
	users       repository.UserRepository
	audit       *AuditService
	canModerate ModeratorCheck
	now         func() time.Time
}

// RedactInput requests a redaction. Empty Reason and State select the
// defaults.
type RedactInput struct {
	Kind    models.ContentKind
	ItemID  uint
	ActorID uint
	Reason  string
	State   string
}

type UnredactInput struct {
	Kind    models.ContentKind
	ItemID  uint
	ActorID uint
}

func NewRedactionService(
	db *gorm.DB,
	threads repository.ThreadRepository,
	answers repository.AnswerRepository,
	users repository.UserRepository,
	audit *AuditService,
	canModerate ModeratorCheck,
) *RedactionService {
	return &RedactionService{
		db:          db,
		threads:     threads,
		answers:     answers,
		users:       users,
		audit:       audit,
		canModerate: canModerate,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Redact hides an item behind a placeholder. The original body is preserved
// the first time the item leaves the visible state.
func (s *RedactionService) Redact(ctx context.Context, in RedactInput) (models.Redactable, error) {
	target, err := models.ParseRedactionTarget(in.State)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = models.DefaultRedactionReason
	}

	action := models.RedactedAction(in.Kind)
	ctx, span := observability.StartSpan(ctx, "redaction.redact",
		attribute.String("content.kind", string(in.Kind)),
		attribute.Int64("content.id", int64(in.ItemID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	actor, err := s.authorize(ctx, in.Kind, in.ItemID, in.ActorID)
	if err != nil {
		s.count(action, err)
		return nil, err
	}

	var item models.Redactable
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.lock(ctx, tx, in.Kind, in.ItemID)
		if err != nil {
			return err
		}
		if err := locked.Redact(target, actor.ID, reason); err != nil {
			return err
		}
		if err := s.save(ctx, tx, locked); err != nil {
			return err
		}

		metadata := s.baseMetadata(locked, actor)
		metadata["reason"] = reason
		metadata["state"] = string(target)
		if _, err := s.audit.WithTx(tx).Record(ctx, RecordInput{
			Action:        action,
			SubjectUserID: locked.AuthorID(),
			ActorUserID:   actor.ID,
			Target:        locked.Target(),
			Metadata:      metadata,
		}); err != nil {
			return err
		}
		item = locked
		return nil
	})
	err = opaque(ctx, "redaction.redact", err)
	s.count(action, err)
	if err != nil {
		return nil, err
	}

	observability.Logger.InfoContext(ctx, "content redacted",
		slog.String("target", item.Target().String()),
		slog.String("state", string(target)),
		slog.Uint64("moderator_id", uint64(actor.ID)),
	)
	return item, nil
}

// Unredact restores the preserved body and clears all moderation fields.
func (s *RedactionService) Unredact(ctx context.Context, in UnredactInput) (models.Redactable, error) {
	action := models.UnredactedAction(in.Kind)
	ctx, span := observability.StartSpan(ctx, "redaction.unredact",
		attribute.String("content.kind", string(in.Kind)),
		attribute.Int64("content.id", int64(in.ItemID)),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	actor, err := s.authorize(ctx, in.Kind, in.ItemID, in.ActorID)
	if err != nil {
		s.count(action, err)
		return nil, err
	}

	var item models.Redactable
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.lock(ctx, tx, in.Kind, in.ItemID)
		if err != nil {
			return err
		}
		previous := locked.State()
		if err := locked.Unredact(); err != nil {
			return err
		}
		if err := s.save(ctx, tx, locked); err != nil {
			return err
		}

		metadata := s.baseMetadata(locked, actor)
		metadata["previous_state"] = string(previous)
		if _, err := s.audit.WithTx(tx).Record(ctx, RecordInput{
			Action:        action,
			SubjectUserID: locked.AuthorID(),
			ActorUserID:   actor.ID,
			Target:        locked.Target(),
			Metadata:      metadata,
		}); err != nil {
			return err
		}
		item = locked
		return nil
	})
	err = opaque(ctx, "redaction.unredact", err)
	s.count(action, err)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ModerationQueue lists redacted threads and AI-flagged threads still
// visible. Only moderators may see it.
func (s *RedactionService) ModerationQueue(ctx context.Context, actorID uint) ([]models.Thread, error) {
	allowed, err := s.canModerate(ctx, actorID)
	if err != nil {
		return nil, opaque(ctx, "redaction.queue.authorize", err)
	}
	if !allowed {
		return nil, models.NewUnauthorizedError("moderator privileges required")
	}
	threads, err := s.threads.ListModerationQueue(ctx)
	if err != nil {
		return nil, opaque(ctx, "redaction.queue", err)
	}
	return threads, nil
}

// authorize validates the request shape and loads the acting moderator.
func (s *RedactionService) authorize(ctx context.Context, kind models.ContentKind, itemID, actorID uint) (*models.User, error) {
	switch kind {
	case models.ContentThread, models.ContentAnswer:
	default:
		return nil, models.NewValidationError("unknown content type")
	}
	if itemID == 0 {
		return nil, models.NewMissingFieldError("content id")
	}
	if actorID == 0 {
		return nil, models.NewMissingFieldError("moderator")
	}

	allowed, err := s.canModerate(ctx, actorID)
	if err != nil {
		return nil, opaque(ctx, "redaction.authorize", err)
	}
	if !allowed {
		return nil, models.NewUnauthorizedError("moderator privileges required")
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("moderator privileges required")
		}
		return nil, opaque(ctx, "redaction.actor", err)
	}
	return actor, nil
}

func (s *RedactionService) lock(ctx context.Context, tx *gorm.DB, kind models.ContentKind, id uint) (models.Redactable, error) {
	switch kind {
	case models.ContentThread:
		thread, err := s.threads.WithTx(tx).GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		return thread, nil
	case models.ContentAnswer:
		answer, err := s.answers.WithTx(tx).GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		return answer, nil
	default:
		return nil, models.NewValidationError("unknown content type")
	}
}

func (s *RedactionService) save(ctx context.Context, tx *gorm.DB, item models.Redactable) error {
	switch v := item.(type) {
	case *models.Thread:
		return s.threads.WithTx(tx).SaveRedaction(ctx, v)
	case *models.Answer:
		return s.answers.WithTx(tx).SaveRedaction(ctx, v)
	default:
		return models.NewValidationError("unknown content type")
	}
}

func (s *RedactionService) baseMetadata(item models.Redactable, actor *models.User) map[string]any {
	metadata := map[string]any{
		"thread_id":       item.ParentThreadID(),
		"moderator_id":    actor.ID,
		"moderator_email": actor.Email,
		"timestamp":       s.now().Format(time.RFC3339),
	}
	switch item.Target().Kind {
	case models.ContentAnswer:
		metadata["answer_id"] = item.Target().ID
	case models.ContentThread:
	}
	return metadata
}

func (s *RedactionService) count(action models.AuditAction, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case models.HasCode(err, models.CodeUnauthorized):
		outcome = "unauthorized"
	case models.HasCode(err, models.CodeInvalidState):
		outcome = "invalid_state"
	case models.HasCode(err, models.CodeValidation):
		outcome = "invalid"
	case models.HasCode(err, models.CodeNotFound):
		outcome = "not_found"
	default:
		outcome = "failed"
	}
	observability.ModerationActions.WithLabelValues(string(action), outcome).Inc()
}
