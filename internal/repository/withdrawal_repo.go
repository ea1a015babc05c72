package repository

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"

	"gorm.io/gorm"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// WithdrawalFilter scopes a listing. JobOwnerID restricts to withdrawals on
// jobs created by that client.
type WithdrawalFilter struct {
	FreelancerID   uint
	JobOwnerID     uint
	Status         domain.WithdrawalStatus
	ApprovalStatus domain.ApprovalStatus
	Search         string
	Page
}

// NewReference returns a platform reference such as TRX-7KQ2M. Uniqueness is
// enforced by the unique index on insert, not here.
func NewReference() (string, error) {
	b := make([]byte, 5)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = referenceAlphabet[n.Int64()]
	}
	return "TRX-" + string(b), nil
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.WithContext(ctx).Preload("Job").Preload("Freelancer").First(&w, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// CommittedTotal sums withdrawals that still hold escrow for a freelancer and
// job: anything not rejected and not failed.
func (r *WithdrawalRepository) CommittedTotal(ctx context.Context, freelancerID, jobID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("freelancer_id = ? AND job_id = ? AND approval_status <> ? AND status <> ?",
			freelancerID, jobID, domain.ApprovalRejected, domain.WithdrawalFailed).
		Scan(&total).Error
	return total, err
}

// ApprovedTotal sums approved withdrawals that have not failed execution.
func (r *WithdrawalRepository) ApprovedTotal(ctx context.Context, freelancerID, jobID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("freelancer_id = ? AND job_id = ? AND approval_status = ? AND status <> ?",
			freelancerID, jobID, domain.ApprovalApproved, domain.WithdrawalFailed).
		Scan(&total).Error
	return total, err
}

// ResolveApproval sets the approval status only if it is still pending.
func (r *WithdrawalRepository) ResolveApproval(ctx context.Context, id uint, to domain.ApprovalStatus, by uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND approval_status = ?", id, domain.ApprovalPending).
		Updates(map[string]interface{}{
			"approval_status": to,
			"resolved_by":     by,
			"resolved_at":     at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkExecuted records the payout outcome of an approved withdrawal that has
// not been executed yet.
func (r *WithdrawalRepository) MarkExecuted(ctx context.Context, id uint, to domain.WithdrawalStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND approval_status = ? AND status IN ?", id, domain.ApprovalApproved,
			[]domain.WithdrawalStatus{domain.WithdrawalPending, domain.WithdrawalInReview}).
		Updates(map[string]interface{}{
			"status":      to,
			"executed_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *WithdrawalRepository) List(ctx context.Context, f WithdrawalFilter) ([]models.Withdrawal, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Withdrawal{})
	if f.JobOwnerID != 0 {
		q = q.Joins("JOIN jobs ON jobs.id = withdrawals.job_id AND jobs.created_by = ?", f.JobOwnerID)
	}
	if f.FreelancerID != 0 {
		q = q.Where("withdrawals.freelancer_id = ?", f.FreelancerID)
	}
	if f.Status != "" {
		q = q.Where("withdrawals.status = ?", f.Status)
	}
	if f.ApprovalStatus != "" {
		q = q.Where("withdrawals.approval_status = ?", f.ApprovalStatus)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("(LOWER(withdrawals.reference) LIKE ? OR LOWER(withdrawals.method) LIKE ? OR LOWER(withdrawals.status) LIKE ? OR LOWER(withdrawals.approval_status) LIKE ?)", p, p, p, p)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Withdrawal
	err := q.Preload("Job").Preload("Freelancer").
		Order("withdrawals.created_at DESC, withdrawals.id DESC").
		Limit(f.Limit).Offset(f.Offset()).
		Find(&list).Error
	return list, total, err
}
