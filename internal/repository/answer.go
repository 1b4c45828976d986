package repository

import (
	"context"

	"lionboard/internal/models"

	"gorm.io/gorm"
)

// AnswerRepository defines the interface for answer data operations
type AnswerRepository interface {
	Create(ctx context.Context, answer *models.Answer) error
	GetByID(ctx context.Context, id uint) (*models.Answer, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Answer, error)
	SaveRedaction(ctx context.Context, answer *models.Answer) error
	SetShowRealIdentity(ctx context.Context, id uint, show bool) error
	WithTx(tx *gorm.DB) AnswerRepository
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) WithTx(tx *gorm.DB) AnswerRepository {
	return &answerRepository{db: tx}
}

func (r *answerRepository) Create(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	var answer models.Answer
	if err := r.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, notFoundOr(err, "Answer", id)
	}
	return &answer, nil
}

func (r *answerRepository) GetForUpdate(ctx context.Context, id uint) (*models.Answer, error) {
	var answer models.Answer
	if err := forUpdate(r.db.WithContext(ctx)).First(&answer, id).Error; err != nil {
		return nil, notFoundOr(err, "Answer", id)
	}
	return &answer, nil
}

func (r *answerRepository) SaveRedaction(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Model(answer).Select(redactionColumns).Updates(answer).Error
}

func (r *answerRepository) SetShowRealIdentity(ctx context.Context, id uint, show bool) error {
	return r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ?", id).
		Update("show_real_identity", show).Error
}
