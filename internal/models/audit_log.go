package models

import "time"

// AuditAction tags what an audit entry records.
type AuditAction string

const (
	ActionIdentityRevealed AuditAction = "identity_revealed"
	ActionIdentityHidden   AuditAction = "identity_hidden"
	ActionPostRedacted     AuditAction = "post_redacted"
	ActionPostUnredacted   AuditAction = "post_unredacted"
	ActionAnswerRedacted   AuditAction = "answer_redacted"
	ActionAnswerUnredacted AuditAction = "answer_unredacted"
)

// Valid reports whether a is a known action tag.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionIdentityRevealed, ActionIdentityHidden,
		ActionPostRedacted, ActionPostUnredacted,
		ActionAnswerRedacted, ActionAnswerUnredacted:
		return true
	}
	return false
}

// RedactedAction returns the redaction tag for a content kind.
func RedactedAction(kind ContentKind) AuditAction {
	switch kind {
	case ContentAnswer:
		return ActionAnswerRedacted
	default:
		return ActionPostRedacted
	}
}

// UnredactedAction returns the restoration tag for a content kind.
func UnredactedAction(kind ContentKind) AuditAction {
	switch kind {
	case ContentAnswer:
		return ActionAnswerUnredacted
	default:
		return ActionPostUnredacted
	}
}

// AuditLog is an append-only record of an identity reveal or a moderation
// action. UserID is the subject whose content or identity was affected;
// PerformedByID is the acting user.
type AuditLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	PerformedByID uint           `gorm:"not null;index" json:"performed_by_id"`
	AuditableType ContentKind    `gorm:"type:varchar(16);not null;index:idx_audit_logs_auditable" json:"auditable_type"`
	AuditableID   uint           `gorm:"not null;index:idx_audit_logs_auditable" json:"auditable_id"`
	Action        AuditAction    `gorm:"type:varchar(32);not null" json:"action"`
	Metadata      map[string]any `gorm:"type:text;serializer:json" json:"metadata"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
}

// Target returns the tagged content reference of the entry.
func (a *AuditLog) Target() AuditTarget {
	return AuditTarget{Kind: a.AuditableType, ID: a.AuditableID}
}
