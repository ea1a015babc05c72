// Package events publishes ledger state changes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	TransactionInitiated     = "transaction.initiated"
	TransactionStatusChanged = "transaction.status_changed"
	WithdrawalRequested      = "withdrawal.requested"
	WithdrawalApprovalUpdate = "withdrawal.approval_updated"
	WithdrawalExecuted       = "withdrawal.executed"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func NewEnvelope(eventType string, data interface{}) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events. Callers treat failures as best-effort.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	b, err := json.Marshal(env.Data)
	if err != nil {
		return err
	}
	p.logger.Debug().
		Str("event_id", env.ID).
		Str("type", env.Type).
		Str("key", key).
		RawJSON("data", b).
		Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
