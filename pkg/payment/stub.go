package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// StubGateway keeps intents in memory. It is used for local development and
// tests; webhook signatures are checked by stripe-go exactly as for Stripe.
type StubGateway struct {
	webhookSecret string
	tolerance     time.Duration

	seq     atomic.Int64
	mu      sync.Mutex
	intents map[string]*Intent
	// Err, when set, is returned by every gateway call.
	err error
	// Delay simulates a slow gateway; calls honour ctx cancellation.
	delay time.Duration
}

func NewStubGateway(webhookSecret string) *StubGateway {
	return &StubGateway{
		webhookSecret: webhookSecret,
		tolerance:     webhook.DefaultTolerance,
		intents:       make(map[string]*Intent),
	}
}

func (s *StubGateway) Channel() string { return "stub" }

// FailWith makes subsequent calls fail with err (nil restores normal behaviour).
func (s *StubGateway) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StubGateway) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetStatus changes the gateway-side status of an intent, as a customer
// completing or abandoning checkout would.
func (s *StubGateway) SetStatus(intentID string, status IntentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.intents[intentID]; ok {
		in.Status = status
	}
}

func (s *StubGateway) IntentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intents)
}

func (s *StubGateway) wait(ctx context.Context) error {
	s.mu.Lock()
	err, delay := s.err, s.delay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}
	return err
}

func (s *StubGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	n := s.seq.Add(1)
	in := &Intent{
		ID:          fmt.Sprintf("pi_stub_%d_%d", time.Now().UnixNano(), n),
		Status:      IntentRequiresPaymentMethod,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	in.ClientSecret = in.ID + "_secret"
	in.Raw, _ = json.Marshal(map[string]interface{}{
		"id":       in.ID,
		"amount":   req.AmountCents,
		"currency": req.Currency,
		"metadata": req.Metadata,
	})
	s.mu.Lock()
	s.intents[in.ID] = in
	s.mu.Unlock()
	cp := *in
	return &cp, nil
}

func (s *StubGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[intentID]
	if !ok {
		return nil, ErrIntentNotFound
	}
	cp := *in
	return &cp, nil
}

func (s *StubGateway) CancelIntent(ctx context.Context, intentID string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[intentID]
	if !ok {
		return ErrIntentNotFound
	}
	in.Status = IntentCanceled
	return nil
}

func (s *StubGateway) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, signatureHeader, s.webhookSecret, s.tolerance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID     string `json:"id"`
				Object string `json:"object"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	evt := &Event{ID: env.ID, Type: EventType(env.Type), Raw: payload}
	if env.Data.Object.Object == "payment_intent" {
		evt.IntentID = env.Data.Object.ID
	}
	return evt, nil
}

// SignPayload returns the Stripe-Signature header Stripe would send for
// payload signed with secret at the given time.
func SignPayload(payload []byte, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

// EventPayload builds a Stripe-shaped event body for an intent.
func EventPayload(eventID string, typ EventType, intentID string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"id":     eventID,
		"object": "event",
		"type":   string(typ),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":     intentID,
				"object": "payment_intent",
			},
		},
	})
	return b
}
