package models

import "time"

// EscrowAccount carries only a version counter per (freelancer, job). The
// balance itself is always derived from transactions and withdrawals; the
// version serialises concurrent withdrawal requests against it.
type EscrowAccount struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FreelancerID uint      `gorm:"not null;uniqueIndex:idx_escrow_accounts_freelancer_job" json:"freelancer_id"`
	JobID        uint      `gorm:"not null;uniqueIndex:idx_escrow_accounts_freelancer_job" json:"job_id"`
	Version      int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (EscrowAccount) TableName() string {
	return "escrow_accounts"
}
