package repository

import (
	"context"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EscrowRepository struct {
	db *gorm.DB
}

func NewEscrowRepository(db *gorm.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Ensure returns the version row for a freelancer and job, creating it on
// first use. Concurrent creators converge on the same row.
func (r *EscrowRepository) Ensure(ctx context.Context, freelancerID, jobID uint) (*models.EscrowAccount, error) {
	acc := models.EscrowAccount{FreelancerID: freelancerID, JobID: jobID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&acc).Error
	if err != nil {
		return nil, err
	}
	var out models.EscrowAccount
	err = r.db.WithContext(ctx).
		Where("freelancer_id = ? AND job_id = ?", freelancerID, jobID).
		First(&out).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// BumpVersion advances the version if it still equals expected.
func (r *EscrowRepository) BumpVersion(ctx context.Context, id uint, expected int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.EscrowAccount{}).
		Where("id = ? AND version = ?", id, expected).
		Updates(map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
