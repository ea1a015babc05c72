package repository

import (
	"context"

	"github.com/emmanuel-dcoder/teevil-api/internal/models"

	"gorm.io/gorm"
)

// JobRepository reads the shared jobs table.
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) GetByID(ctx context.Context, id uint) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}

// GetByIDAndOwner returns the job only if it was created by ownerID.
func (r *JobRepository) GetByIDAndOwner(ctx context.Context, id, ownerID uint) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).Where("id = ? AND created_by = ?", id, ownerID).First(&j).Error; err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}
