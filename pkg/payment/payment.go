// Package payment abstracts the card-payment gateway the ledger funds escrow
// through.
package payment

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrUnavailable covers transport, auth and timeout failures.
	ErrUnavailable      = errors.New("payment gateway unavailable")
	ErrIntentNotFound   = errors.New("payment intent not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentCanceled              IntentStatus = "canceled"
)

// Intent is a funds hold created at the gateway.
type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	AmountCents  int64
	Currency     string
	Raw          json.RawMessage
}

func (i *Intent) Succeeded() bool {
	return i.Status == IntentSucceeded
}

type EventType string

const (
	EventIntentSucceeded  EventType = "payment_intent.succeeded"
	EventIntentFailed     EventType = "payment_intent.payment_failed"
	EventIntentCanceled   EventType = "payment_intent.canceled"
	EventIntentProcessing EventType = "payment_intent.processing"
)

// Event is a webhook payload that passed signature verification.
type Event struct {
	ID       string
	Type     EventType
	IntentID string
	Raw      json.RawMessage
}

type CreateIntentRequest struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
	Description string
}

// Gateway is implemented by each payment provider.
type Gateway interface {
	Channel() string
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	// VerifyWebhook must reject forged or altered payloads before anything in
	// them is interpreted.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}
