package repository

import (
	"context"

	"lionboard/internal/models"

	"gorm.io/gorm"
)

// AuditLogRepository appends and reads audit entries. There is no update or
// delete path.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByTarget(ctx context.Context, target models.AuditTarget) ([]models.AuditLog, error)
	WithTx(tx *gorm.DB) AuditLogRepository
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) WithTx(tx *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: tx}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) ListByTarget(ctx context.Context, target models.AuditTarget) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("auditable_type = ? AND auditable_id = ?", target.Kind, target.ID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	return entries, err
}
