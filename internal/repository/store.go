package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in ledger writes so they can
// share one database transaction.
type Store struct {
	db            *gorm.DB
	Transactions  *TransactionRepository
	Withdrawals   *WithdrawalRepository
	Escrow        *EscrowRepository
	WebhookEvents *WebhookEventRepository
	Audit         *AuditLogRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Transactions:  NewTransactionRepository(db),
		Withdrawals:   NewWithdrawalRepository(db),
		Escrow:        NewEscrowRepository(db),
		WebhookEvents: NewWebhookEventRepository(db),
		Audit:         NewAuditLogRepository(db),
	}
}

// InTx runs fn with a Store bound to a single database transaction. Any
// error returned by fn rolls the transaction back.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
