package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxWebhookBody bounds one gateway event payload.
const maxWebhookBody = 64 << 10

type WebhookIngestor interface {
	Handle(ctx context.Context, rawBody []byte, signature string) (service.WebhookOutcome, error)
}

type WebhookHandler struct {
	ingest WebhookIngestor
	logger zerolog.Logger
}

func NewWebhookHandler(ingest WebhookIngestor, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{ingest: ingest, logger: logger.With().Str("component", "webhook_handler").Logger()}
}

// Stripe receives gateway events. The body is read raw: the signature covers
// the exact bytes sent.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.logger.Warn().Int64("limit", tooLarge.Limit).Msg("webhook body too large")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	_, err = h.ingest.Handle(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, domain.ErrInvalidSignature) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	if err != nil {
		// Non-2xx makes the gateway redeliver; nothing was written.
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
