package models

import (
	"fmt"
	"strings"
	"time"
)

// ContentKind tags the two kinds of redactable, auditable content.
type ContentKind string

const (
	ContentThread ContentKind = "thread"
	ContentAnswer ContentKind = "answer"
)

// ParseContentKind accepts singular or plural forms, plus "post" as an alias
// for thread.
func ParseContentKind(raw string) (ContentKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "thread", "threads", "post", "posts":
		return ContentThread, nil
	case "answer", "answers":
		return ContentAnswer, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unknown content type %q", raw))
	}
}

// AuditTarget identifies the content item an audit entry is about.
type AuditTarget struct {
	Kind ContentKind
	ID   uint
}

// ThreadTarget and AnswerTarget build targets for the two content kinds.
func ThreadTarget(id uint) AuditTarget { return AuditTarget{Kind: ContentThread, ID: id} }
func AnswerTarget(id uint) AuditTarget { return AuditTarget{Kind: ContentAnswer, ID: id} }

func (t AuditTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// Thread is a discussion container opened by its author.
type Thread struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	UserID           uint   `gorm:"not null;index" json:"-"`
	User             User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Title            string `gorm:"not null" json:"title"`
	Body             string `gorm:"type:text;not null" json:"body"`
	ShowRealIdentity bool   `gorm:"not null;default:false" json:"show_real_identity"`
	Redaction
	AIFlagged    bool               `gorm:"not null;default:false;index" json:"ai_flagged"`
	AICategories map[string]bool    `gorm:"type:text;serializer:json" json:"ai_categories,omitempty"`
	AIScores     map[string]float64 `gorm:"type:text;serializer:json" json:"ai_scores,omitempty"`
	ScreenedAt   *time.Time         `json:"screened_at,omitempty"`
	ExpiresAt    *time.Time         `gorm:"index" json:"expires_at,omitempty"`
	Answers      []Answer           `gorm:"constraint:OnDelete:CASCADE" json:"answers,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ScreeningText is the text submitted to the content screening API.
func (t *Thread) ScreeningText() string {
	return t.Title + "\n\n" + t.Body
}

// Answer is a reply within a thread.
type Answer struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	ThreadID         uint   `gorm:"not null;index" json:"thread_id"`
	UserID           uint   `gorm:"not null;index" json:"-"`
	User             User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Body             string `gorm:"type:text;not null" json:"body"`
	ShowRealIdentity bool   `gorm:"not null;default:false" json:"show_real_identity"`
	Redaction
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a short note on a thread. Comments are not redactable.
type Comment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ThreadID         uint      `gorm:"not null;index" json:"thread_id"`
	Thread           Thread    `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	UserID           uint      `gorm:"not null;index" json:"-"`
	User             User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Body             string    `gorm:"type:text;not null" json:"body"`
	ShowRealIdentity bool      `gorm:"not null;default:false" json:"show_real_identity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ThreadIdentity maps a (user, thread) pair to the pseudonym shown for that
// user inside the thread. Rows are never updated.
type ThreadIdentity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_thread_identities_user_thread" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ThreadID  uint      `gorm:"not null;uniqueIndex:idx_thread_identities_user_thread;index" json:"thread_id"`
	Thread    Thread    `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
	Pseudonym string    `gorm:"not null" json:"pseudonym"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Redactable is the moderation view shared by threads and answers.
type Redactable interface {
	Target() AuditTarget
	AuthorID() uint
	ParentThreadID() uint
	DisplayBody() string
	State() RedactionState
	Redact(target RedactionState, moderatorID uint, reason string) error
	Unredact() error
}

func (t *Thread) Target() AuditTarget  { return ThreadTarget(t.ID) }
func (t *Thread) AuthorID() uint       { return t.UserID }
func (t *Thread) ParentThreadID() uint { return t.ID }
func (t *Thread) DisplayBody() string  { return t.Body }

func (a *Answer) Target() AuditTarget  { return AnswerTarget(a.ID) }
func (a *Answer) AuthorID() uint       { return a.UserID }
func (a *Answer) ParentThreadID() uint { return a.ThreadID }
func (a *Answer) DisplayBody() string  { return a.Body }

// Redact hides the thread body behind the placeholder for target.
func (t *Thread) Redact(target RedactionState, moderatorID uint, reason string) error {
	return t.Hide(&t.Body, target, moderatorID, reason)
}

// Unredact restores the preserved thread body.
func (t *Thread) Unredact() error {
	return t.Restore(&t.Body)
}

// Redact hides the answer body behind the placeholder for target.
func (a *Answer) Redact(target RedactionState, moderatorID uint, reason string) error {
	return a.Hide(&a.Body, target, moderatorID, reason)
}

// Unredact restores the preserved answer body.
func (a *Answer) Unredact() error {
	return a.Restore(&a.Body)
}
