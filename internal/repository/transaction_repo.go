package repository

import (
	"context"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// TransactionFilter scopes a listing. Zero values are ignored.
type TransactionFilter struct {
	ClientID     uint
	FreelancerID uint
	Status       domain.FundingStatus
	PayoutStatus domain.PayoutStatus
	Search       string
	Page
}

func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TransactionRepository) GetByGatewayRef(ctx context.Context, ref string) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.WithContext(ctx).Where("gateway_ref = ?", ref).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// TransitionStatus moves the funding status of one transaction from any of
// the given statuses to `to`. It reports false when the row was no longer in
// one of those statuses, which callers treat as a lost race.
func (r *TransactionRepository) TransitionStatus(ctx context.Context, id uint, from []domain.FundingStatus, to domain.FundingStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to, "updated_at": at}
	if to == domain.FundingConfirmed {
		updates["confirmed_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release marks a funded transaction's escrow as paid out. Funding status
// follows to paid.
func (r *TransactionRepository) Release(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status IN ? AND payout_status IN ?", id,
			domain.FundedStatuses(),
			[]domain.PayoutStatus{domain.PayoutProcessing, domain.PayoutInReview}).
		Updates(map[string]interface{}{
			"status":        domain.FundingPaid,
			"payout_status": domain.PayoutPaid,
			"released_at":   at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// EscrowBalanceForClient sums the client's funded transactions whose payout
// is still processing.
func (r *TransactionRepository) EscrowBalanceForClient(ctx context.Context, clientID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("client_id = ? AND payout_status = ? AND status IN ?", clientID, domain.PayoutProcessing, domain.FundedStatuses()).
		Scan(&total).Error
	return total, err
}

// FundedTotal sums every funded transaction paid toward a freelancer for a job.
func (r *TransactionRepository) FundedTotal(ctx context.Context, freelancerID, jobID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("freelancer_id = ? AND job_id = ? AND status IN ?", freelancerID, jobID, domain.FundedStatuses()).
		Scan(&total).Error
	return total, err
}

// ListFunded returns funded transactions for a freelancer and job, oldest first.
func (r *TransactionRepository) ListFunded(ctx context.Context, freelancerID, jobID uint) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.WithContext(ctx).
		Where("freelancer_id = ? AND job_id = ? AND status IN ?", freelancerID, jobID, domain.FundedStatuses()).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]models.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.FreelancerID != 0 {
		q = q.Where("freelancer_id = ?", f.FreelancerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PayoutStatus != "" {
		q = q.Where("payout_status = ?", f.PayoutStatus)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("(LOWER(payment_type) LIKE ? OR LOWER(channel) LIKE ? OR LOWER(status) LIKE ? OR LOWER(payout_status) LIKE ?)", p, p, p, p)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Transaction
	err := q.Preload("Client").Preload("Freelancer").Preload("Job").
		Order("created_at DESC, id DESC").
		Limit(f.Limit).Offset(f.Offset()).
		Find(&list).Error
	return list, total, err
}
