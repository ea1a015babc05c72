package models

import (
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
)

// Withdrawal is a freelancer payout request against the escrow of one job.
type Withdrawal struct {
	ID             uint                    `gorm:"primaryKey" json:"id"`
	Reference      string                  `gorm:"size:16;uniqueIndex;not null" json:"reference"`
	AmountCents    int64                   `gorm:"not null" json:"amount_cents"`
	FreelancerID   uint                    `gorm:"not null;index:idx_withdrawals_freelancer_job" json:"freelancer_id"`
	JobID          uint                    `gorm:"not null;index:idx_withdrawals_freelancer_job" json:"job_id"`
	Method         string                  `gorm:"size:32;not null" json:"method"`
	Status         domain.WithdrawalStatus `gorm:"size:20;not null;index" json:"status"`
	ApprovalStatus domain.ApprovalStatus   `gorm:"size:20;not null;index" json:"approval_status"`
	ResolvedBy     *uint                   `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time              `json:"resolved_at"`
	ExecutedAt     *time.Time              `json:"executed_at"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`

	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
	Job        *Job  `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

// Committed reports whether the amount still counts against escrow.
func (w *Withdrawal) Committed() bool {
	return w.ApprovalStatus != domain.ApprovalRejected && w.Status != domain.WithdrawalFailed
}
