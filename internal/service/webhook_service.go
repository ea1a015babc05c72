package service

import (
	"context"
	"fmt"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/pkg/payment"

	"github.com/rs/zerolog"
)

// EventCache short-circuits redelivered gateway events.
type EventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// WebhookService is the only path from the public gateway callback into the
// ledger. Nothing in a payload is read before its signature verifies.
type WebhookService struct {
	gateway payment.Gateway
	ledger  *TransactionService
	cache   EventCache
	logger  zerolog.Logger
}

// NewWebhookService builds the ingestion path. cache may be nil.
func NewWebhookService(gateway payment.Gateway, ledger *TransactionService, cache EventCache, logger zerolog.Logger) *WebhookService {
	return &WebhookService{
		gateway: gateway,
		ledger:  ledger,
		cache:   cache,
		logger:  logger.With().Str("component", "webhooks").Logger(),
	}
}

// Handle verifies and applies one delivery. Once the signature verifies the
// delivery counts as received, whatever the ledger makes of it, unless the
// ledger failed in a way worth a gateway retry.
func (s *WebhookService) Handle(ctx context.Context, rawBody []byte, signature string) (WebhookOutcome, error) {
	evt, err := s.gateway.VerifyWebhook(rawBody, signature)
	if err != nil {
		s.logger.Error().Err(err).Int("bytes", len(rawBody)).Msg("webhook signature verification failed")
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	if s.cache != nil && evt.ID != "" {
		seen, err := s.cache.Seen(ctx, evt.ID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("webhook cache lookup failed")
		} else if seen {
			return OutcomeDuplicateEvent, nil
		}
	}

	outcome, err := s.ledger.ApplyWebhookEvent(ctx, evt)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", evt.ID).Str("event_type", string(evt.Type)).Msg("apply webhook event")
		return "", err
	}
	s.logger.Info().
		Str("event_id", evt.ID).
		Str("event_type", string(evt.Type)).
		Str("payment_intent_id", evt.IntentID).
		Str("outcome", string(outcome)).
		Msg("webhook handled")

	if s.cache != nil && evt.ID != "" {
		if err := s.cache.Mark(ctx, evt.ID); err != nil {
			s.logger.Warn().Err(err).Msg("webhook cache write failed")
		}
	}
	return outcome, nil
}
