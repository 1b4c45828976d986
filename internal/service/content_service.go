package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"lionboard/internal/models"
	"lionboard/internal/observability"
	"lionboard/internal/repository"

	"gorm.io/gorm"
)

const (
	maxTitleLen = 300
	maxBodyLen  = 50000
)

// ContentService creates threads, answers and comments. After each insert
// it resolves the author's pseudonym for the thread, and new threads are
// queued for screening once committed.
type ContentService struct {
	db         *gorm.DB
	threads    repository.ThreadRepository
	answers    repository.AnswerRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	identities *IdentityService
	audit      *AuditService
	screening  *ScreeningService
	now        func() time.Time
}

type CreateThreadInput struct {
	UserID           uint
	Title            string
	Body             string
	ShowRealIdentity bool
	ExpiresAt        *time.Time
}

type CreateAnswerInput struct {
	UserID           uint
	ThreadID         uint
	Body             string
	ShowRealIdentity bool
}

type CreateCommentInput struct {
	UserID           uint
	ThreadID         uint
	Body             string
	ShowRealIdentity bool
}

// IdentityInput names an item whose author toggles identity disclosure.
type IdentityInput struct {
	Kind    models.ContentKind
	ItemID  uint
	ActorID uint
}

// CreatedThread pairs a new thread with its author's pseudonym. Pseudonym is
// empty when resolution failed; it is created lazily on the next lookup.
type CreatedThread struct {
	Thread    *models.Thread `json:"thread"`
	Pseudonym string         `json:"pseudonym"`
}

type CreatedAnswer struct {
	Answer    *models.Answer `json:"answer"`
	Pseudonym string         `json:"pseudonym"`
}

type CreatedComment struct {
	Comment   *models.Comment `json:"comment"`
	Pseudonym string          `json:"pseudonym"`
}

func NewContentService(
	db *gorm.DB,
	threads repository.ThreadRepository,
	answers repository.AnswerRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	identities *IdentityService,
	audit *AuditService,
	screening *ScreeningService,
) *ContentService {
	return &ContentService{
		db:         db,
		threads:    threads,
		answers:    answers,
		comments:   comments,
		users:      users,
		identities: identities,
		audit:      audit,
		screening:  screening,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return models.NewMissingFieldError("body")
	}
	if len(body) > maxBodyLen {
		return models.NewValidationError("body too long (max 50000 characters)")
	}
	return nil
}

func (s *ContentService) requireUser(ctx context.Context, userID uint) error {
	if userID == 0 {
		return models.NewMissingFieldError("user")
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return opaque(ctx, "content.user", err)
	}
	if !ok {
		return models.NewNotFoundError("User", userID)
	}
	return nil
}

func (s *ContentService) requireThread(ctx context.Context, threadID uint) error {
	if threadID == 0 {
		return models.NewMissingFieldError("thread")
	}
	ok, err := s.threads.Exists(ctx, threadID)
	if err != nil {
		return opaque(ctx, "content.thread", err)
	}
	if !ok {
		return models.NewNotFoundError("Thread", threadID)
	}
	return nil
}

// pseudonymFor resolves the author's pseudonym right after content is
// stored. The content is already committed, so failure is only logged.
func (s *ContentService) pseudonymFor(ctx context.Context, userID, threadID uint) string {
	pseudonym, err := s.identities.Resolve(ctx, userID, threadID)
	if err != nil {
		observability.Logger.WarnContext(ctx, "pseudonym resolution after post failed",
			slog.Uint64("thread_id", uint64(threadID)),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return pseudonym
}

func (s *ContentService) CreateThread(ctx context.Context, in CreateThreadInput) (*CreatedThread, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewMissingFieldError("title")
	}
	if len(title) > maxTitleLen {
		return nil, models.NewValidationError("title too long (max 300 characters)")
	}
	if err := validateBody(in.Body); err != nil {
		return nil, err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, models.NewValidationError("expires_at must be in the future")
	}
	if err := s.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	thread := &models.Thread{
		UserID:           in.UserID,
		Title:            title,
		Body:             in.Body,
		ShowRealIdentity: in.ShowRealIdentity,
		ExpiresAt:        in.ExpiresAt,
	}
	if err := s.threads.Create(ctx, thread); err != nil {
		return nil, opaque(ctx, "content.create_thread", err)
	}

	out := &CreatedThread{Thread: thread, Pseudonym: s.pseudonymFor(ctx, thread.UserID, thread.ID)}
	if s.screening != nil {
		s.screening.EnqueueScreening(ctx, thread.ID)
	}
	return out, nil
}

func (s *ContentService) CreateAnswer(ctx context.Context, in CreateAnswerInput) (*CreatedAnswer, error) {
	if err := validateBody(in.Body); err != nil {
		return nil, err
	}
	if err := s.requireThread(ctx, in.ThreadID); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	answer := &models.Answer{
		ThreadID:         in.ThreadID,
		UserID:           in.UserID,
		Body:             in.Body,
		ShowRealIdentity: in.ShowRealIdentity,
	}
	if err := s.answers.Create(ctx, answer); err != nil {
		return nil, opaque(ctx, "content.create_answer", err)
	}
	return &CreatedAnswer{Answer: answer, Pseudonym: s.pseudonymFor(ctx, answer.UserID, answer.ThreadID)}, nil
}

func (s *ContentService) CreateComment(ctx context.Context, in CreateCommentInput) (*CreatedComment, error) {
	if err := validateBody(in.Body); err != nil {
		return nil, err
	}
	if err := s.requireThread(ctx, in.ThreadID); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ThreadID:         in.ThreadID,
		UserID:           in.UserID,
		Body:             in.Body,
		ShowRealIdentity: in.ShowRealIdentity,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, opaque(ctx, "content.create_comment", err)
	}
	return &CreatedComment{Comment: comment, Pseudonym: s.pseudonymFor(ctx, comment.UserID, comment.ThreadID)}, nil
}

// identityItem is the slice of a thread or answer that disclosure needs.
type identityItem struct {
	target   models.AuditTarget
	threadID uint
	ownerID  uint
	shown    bool
}

func (s *ContentService) lockIdentityItem(ctx context.Context, tx *gorm.DB, kind models.ContentKind, id uint) (*identityItem, error) {
	switch kind {
	case models.ContentThread:
		thread, err := s.threads.WithTx(tx).GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		return &identityItem{target: thread.Target(), threadID: thread.ID, ownerID: thread.UserID, shown: thread.ShowRealIdentity}, nil
	case models.ContentAnswer:
		answer, err := s.answers.WithTx(tx).GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		return &identityItem{target: answer.Target(), threadID: answer.ThreadID, ownerID: answer.UserID, shown: answer.ShowRealIdentity}, nil
	default:
		return nil, models.NewValidationError("unknown content type")
	}
}

func (s *ContentService) setShown(ctx context.Context, tx *gorm.DB, item *identityItem, show bool) error {
	switch item.target.Kind {
	case models.ContentThread:
		return s.threads.WithTx(tx).SetShowRealIdentity(ctx, item.target.ID, show)
	case models.ContentAnswer:
		return s.answers.WithTx(tx).SetShowRealIdentity(ctx, item.target.ID, show)
	default:
		return models.NewValidationError("unknown content type")
	}
}

// RevealIdentity lets an author show their real identity on one item.
// Revealing an already revealed item succeeds without a second audit entry.
// It reports whether anything changed.
func (s *ContentService) RevealIdentity(ctx context.Context, in IdentityInput) (bool, error) {
	return s.toggleIdentity(ctx, in, true)
}

// HideIdentity reverts a reveal. The earlier reveal entry stays in the trail.
func (s *ContentService) HideIdentity(ctx context.Context, in IdentityInput) (bool, error) {
	return s.toggleIdentity(ctx, in, false)
}

func (s *ContentService) toggleIdentity(ctx context.Context, in IdentityInput, show bool) (bool, error) {
	if in.ItemID == 0 {
		return false, models.NewMissingFieldError("content id")
	}
	if in.ActorID == 0 {
		return false, models.NewMissingFieldError("user")
	}

	action, stampKey := models.ActionIdentityHidden, "hidden_at"
	if show {
		action, stampKey = models.ActionIdentityRevealed, "revealed_at"
	}

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.lockIdentityItem(ctx, tx, in.Kind, in.ItemID)
		if err != nil {
			return err
		}
		if item.ownerID != in.ActorID {
			return models.NewUnauthorizedError("only the author can change identity disclosure")
		}
		if item.shown == show {
			return nil
		}
		if err := s.setShown(ctx, tx, item, show); err != nil {
			return err
		}

		metadata := map[string]any{
			"thread_id": item.threadID,
			stampKey:    s.now().Format(time.RFC3339),
		}
		if item.target.Kind == models.ContentAnswer {
			metadata["answer_id"] = item.target.ID
		}
		if _, err := s.audit.WithTx(tx).Record(ctx, RecordInput{
			Action:        action,
			SubjectUserID: item.ownerID,
			ActorUserID:   in.ActorID,
			Target:        item.target,
			Metadata:      metadata,
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, opaque(ctx, "content."+string(action), err)
	}
	return changed, nil
}
