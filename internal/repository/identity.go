package repository

import (
	"context"

	"lionboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadIdentityRepository persists per-thread pseudonym mappings.
type ThreadIdentityRepository interface {
	Find(ctx context.Context, userID, threadID uint) (*models.ThreadIdentity, error)
	// InsertIfAbsent reports false when another writer already owns the
	// (user, thread) pair.
	InsertIfAbsent(ctx context.Context, identity *models.ThreadIdentity) (bool, error)
	ListByThread(ctx context.Context, threadID uint) ([]models.ThreadIdentity, error)
}

type threadIdentityRepository struct {
	db *gorm.DB
}

// NewThreadIdentityRepository creates a new thread identity repository
func NewThreadIdentityRepository(db *gorm.DB) ThreadIdentityRepository {
	return &threadIdentityRepository{db: db}
}

func (r *threadIdentityRepository) Find(ctx context.Context, userID, threadID uint) (*models.ThreadIdentity, error) {
	var identity models.ThreadIdentity
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		First(&identity).Error
	if err != nil {
		return nil, notFoundOr(err, "ThreadIdentity", threadID)
	}
	return &identity, nil
}

func (r *threadIdentityRepository) InsertIfAbsent(ctx context.Context, identity *models.ThreadIdentity) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "thread_id"}},
			DoNothing: true,
		}).
		Create(identity)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *threadIdentityRepository) ListByThread(ctx context.Context, threadID uint) ([]models.ThreadIdentity, error) {
	var identities []models.ThreadIdentity
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&identities).Error
	return identities, err
}
