package models

import (
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
)

// Transaction is one funding event from a client toward a job. Rows are never
// deleted; only the two status axes change after creation.
type Transaction struct {
	ID           uint                 `gorm:"primaryKey" json:"id"`
	AmountCents  int64                `gorm:"not null" json:"amount_cents"`
	Currency     string               `gorm:"size:3;not null" json:"currency"`
	ClientID     uint                 `gorm:"not null;index" json:"client_id"`
	FreelancerID uint                 `gorm:"not null;index:idx_transactions_freelancer_job" json:"freelancer_id"`
	JobID        uint                 `gorm:"not null;index:idx_transactions_freelancer_job" json:"job_id"`
	Channel      string               `gorm:"size:32;not null" json:"channel"`
	GatewayRef   string               `gorm:"size:255;uniqueIndex;not null" json:"payment_intent_id"`
	PaymentType  string               `gorm:"size:32" json:"payment_type"`
	Metadata     string               `gorm:"type:text" json:"metadata,omitempty"`
	Status       domain.FundingStatus `gorm:"size:20;not null;index" json:"status"`
	PayoutStatus domain.PayoutStatus  `gorm:"size:20;not null;index" json:"payout_status"`
	ConfirmedAt  *time.Time           `json:"confirmed_at"`
	ReleasedAt   *time.Time           `json:"released_at"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`

	Client     *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
	Job        *Job  `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// InEscrow reports whether the amount has landed and not yet been released.
func (t *Transaction) InEscrow() bool {
	return t.Status.Funded() && t.PayoutStatus == domain.PayoutProcessing
}
