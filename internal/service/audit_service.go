package service

import (
	"context"

	"lionboard/internal/models"
	"lionboard/internal/observability"
	"lionboard/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// AuditService appends and reads the immutable audit trail.
type AuditService struct {
	repo repository.AuditLogRepository
}

// RecordInput describes one audit entry. SubjectUserID is the user whose
// content or identity was affected; ActorUserID performed the action.
type RecordInput struct {
	Action        models.AuditAction
	SubjectUserID uint
	ActorUserID   uint
	Target        models.AuditTarget
	Metadata      map[string]any
}

func NewAuditService(repo repository.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo}
}

// WithTx returns a service whose writes join tx.
func (s *AuditService) WithTx(tx *gorm.DB) *AuditService {
	return &AuditService{repo: s.repo.WithTx(tx)}
}

func (in RecordInput) validate() error {
	switch {
	case in.Action == "":
		return models.NewMissingFieldError("action")
	case !in.Action.Valid():
		return models.NewValidationError("unknown audit action")
	case in.SubjectUserID == 0:
		return models.NewMissingFieldError("subject user")
	case in.ActorUserID == 0:
		return models.NewMissingFieldError("actor user")
	case in.Target.ID == 0:
		return models.NewMissingFieldError("target")
	}
	switch in.Target.Kind {
	case models.ContentThread, models.ContentAnswer:
		return nil
	default:
		return models.NewValidationError("unknown audit target type")
	}
}

// Record appends one entry. It never updates or deletes existing entries.
func (s *AuditService) Record(ctx context.Context, in RecordInput) (*models.AuditLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "audit.record",
		attribute.String("audit.action", string(in.Action)),
		attribute.String("audit.target", in.Target.String()),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	entry := &models.AuditLog{
		UserID:        in.SubjectUserID,
		PerformedByID: in.ActorUserID,
		AuditableType: in.Target.Kind,
		AuditableID:   in.Target.ID,
		Action:        in.Action,
		Metadata:      metadata,
	}
	if err = s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	observability.AuditEntriesRecorded.WithLabelValues(string(in.Action)).Inc()
	return entry, nil
}

// Query returns every entry for target, newest first.
func (s *AuditService) Query(ctx context.Context, target models.AuditTarget) ([]models.AuditLog, error) {
	if target.ID == 0 {
		return nil, models.NewMissingFieldError("target")
	}
	entries, err := s.repo.ListByTarget(ctx, target)
	if err != nil {
		return nil, opaque(ctx, "audit.query", err)
	}
	return entries, nil
}
