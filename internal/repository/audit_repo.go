package repository

import (
	"context"
	"encoding/json"

	"github.com/emmanuel-dcoder/teevil-api/internal/models"

	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// Record appends an entry with metadata serialised as JSON.
func (r *AuditLogRepository) Record(ctx context.Context, actor *uint, action, resource, resourceID string, metadata map[string]interface{}) error {
	entry := &models.AuditLog{
		UserID:     actor,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
	}
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		entry.Metadata = string(b)
	}
	return r.Create(ctx, entry)
}

func (r *AuditLogRepository) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("resource = ? AND resource_id = ?", resource, resourceID).
		Order("id ASC").
		Find(&list).Error
	return list, err
}
