package handler

import (
	"context"
	"net/http"

	"github.com/emmanuel-dcoder/teevil-api/internal/middleware"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"
	"github.com/emmanuel-dcoder/teevil-api/internal/service"
	"github.com/emmanuel-dcoder/teevil-api/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionLedger is the part of the transaction service the HTTP layer uses.
type TransactionLedger interface {
	InitiatePayment(ctx context.Context, in service.InitiatePaymentInput) (*service.InitiatePaymentResult, error)
	VerifyPayment(ctx context.Context, intentID string, req service.Requester) (*models.Transaction, error)
	ComputeEscrowBalance(ctx context.Context, clientID uint) (int64, error)
	FindAll(ctx context.Context, req service.Requester, q service.TransactionQuery) (*service.PageResult[models.Transaction], error)
	Get(ctx context.Context, id uint, req service.Requester) (*models.Transaction, error)
}

type TransactionHandler struct {
	ledger TransactionLedger
	logger zerolog.Logger
}

func NewTransactionHandler(ledger TransactionLedger, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, logger: logger.With().Str("component", "transaction_handler").Logger()}
}

func requester(c *gin.Context) service.Requester {
	return service.Requester{ID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

// Initiate creates a payment intent for a job. Client only.
func (h *TransactionHandler) Initiate(c *gin.Context) {
	var req struct {
		Freelancer uint             `json:"freelancer" binding:"required"`
		Job        uint             `json:"job" binding:"required"`
		Amount     *decimal.Decimal `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cents, err := money.ToMinorUnits(*req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.ledger.InitiatePayment(c.Request.Context(), service.InitiatePaymentInput{
		ClientID:     middleware.GetUserID(c),
		FreelancerID: req.Freelancer,
		JobID:        req.Job,
		AmountCents:  cents,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"clientSecret":    res.ClientSecret,
		"paymentIntentId": res.PaymentIntentID,
		"transaction":     res.Transaction,
	})
}

func (h *TransactionHandler) Verify(c *gin.Context) {
	intentID := c.Param("paymentIntentId")
	if intentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment intent id required"})
		return
	}
	t, err := h.ledger.VerifyPayment(c.Request.Context(), intentID, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	res, err := h.ledger.FindAll(c.Request.Context(), requester(c), service.TransactionQuery{
		Search:       c.Query("search"),
		Status:       c.Query("status"),
		PayoutStatus: c.Query("payoutStatus"),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.ledger.Get(c.Request.Context(), id, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Escrow returns the caller's funded amount not yet released. Client only.
func (h *TransactionHandler) Escrow(c *gin.Context) {
	cents, err := h.ledger.ComputeEscrowBalance(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"escrowBalance":      money.FromMinorUnits(cents),
		"escrowBalanceCents": cents,
	})
}
