package repository

import (
	"context"
	"time"

	"lionboard/internal/models"

	"gorm.io/gorm"
)

// ThreadRepository defines the interface for thread data operations
type ThreadRepository interface {
	Create(ctx context.Context, thread *models.Thread) error
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Thread, error)
	Exists(ctx context.Context, id uint) (bool, error)
	SaveRedaction(ctx context.Context, thread *models.Thread) error
	SetShowRealIdentity(ctx context.Context, id uint, show bool) error
	SaveScreening(ctx context.Context, thread *models.Thread) error
	ListModerationQueue(ctx context.Context) ([]models.Thread, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]uint, error)
	WithTx(tx *gorm.DB) ThreadRepository
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) WithTx(tx *gorm.DB) ThreadRepository {
	return &threadRepository{db: tx}
}

func (r *threadRepository) Create(ctx context.Context, thread *models.Thread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *threadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := r.db.WithContext(ctx).First(&thread, id).Error; err != nil {
		return nil, notFoundOr(err, "Thread", id)
	}
	return &thread, nil
}

func (r *threadRepository) GetForUpdate(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := forUpdate(r.db.WithContext(ctx)).First(&thread, id).Error; err != nil {
		return nil, notFoundOr(err, "Thread", id)
	}
	return &thread, nil
}

func (r *threadRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *threadRepository) SaveRedaction(ctx context.Context, thread *models.Thread) error {
	return r.db.WithContext(ctx).Model(thread).Select(redactionColumns).Updates(thread).Error
}

func (r *threadRepository) SetShowRealIdentity(ctx context.Context, id uint, show bool) error {
	return r.db.WithContext(ctx).Model(&models.Thread{}).
		Where("id = ?", id).
		Update("show_real_identity", show).Error
}

// SaveScreening writes only the screening columns so a concurrent redaction
// is never overwritten.
func (r *threadRepository) SaveScreening(ctx context.Context, thread *models.Thread) error {
	return r.db.WithContext(ctx).Model(thread).
		Select("ai_flagged", "ai_categories", "ai_scores", "screened_at").
		Updates(thread).Error
}

// ListModerationQueue returns redacted threads plus AI-flagged threads that
// are still visible, most recently touched first.
func (r *threadRepository) ListModerationQueue(ctx context.Context) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Where("redaction_state <> ?", models.RedactionVisible).
		Or("ai_flagged = ? AND redaction_state = ?", true, models.RedactionVisible).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&threads).Error
	return threads, err
}

// DeleteExpired destroys threads whose expires_at has passed, together with
// their answers, comments, identities and audit entries.
func (r *threadRepository) DeleteExpired(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Thread{}).
			Where("expires_at IS NOT NULL AND expires_at <= ?", now).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		var answerIDs []uint
		if err := tx.Model(&models.Answer{}).Where("thread_id IN ?", ids).Pluck("id", &answerIDs).Error; err != nil {
			return err
		}

		audit := tx.Where("auditable_type = ? AND auditable_id IN ?", models.ContentThread, ids)
		if len(answerIDs) > 0 {
			audit = audit.Or("auditable_type = ? AND auditable_id IN ?", models.ContentAnswer, answerIDs)
		}
		if err := audit.Delete(&models.AuditLog{}).Error; err != nil {
			return err
		}

		for _, m := range []any{&models.ThreadIdentity{}, &models.Comment{}, &models.Answer{}} {
			if err := tx.Where("thread_id IN ?", ids).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", ids).Delete(&models.Thread{}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
