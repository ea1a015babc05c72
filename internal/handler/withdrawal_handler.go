package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/emmanuel-dcoder/teevil-api/internal/middleware"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"
	"github.com/emmanuel-dcoder/teevil-api/internal/service"
	"github.com/emmanuel-dcoder/teevil-api/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type WithdrawalLedger interface {
	RequestWithdrawal(ctx context.Context, in service.RequestWithdrawalInput) (*models.Withdrawal, error)
	UpdateApprovalStatus(ctx context.Context, id uint, status string, req service.Requester) (*models.Withdrawal, error)
	MarkExecuted(ctx context.Context, id uint, status string, req service.Requester) (*models.Withdrawal, error)
	Get(ctx context.Context, id uint, req service.Requester) (*models.Withdrawal, error)
	FindFreelancerWithdrawal(ctx context.Context, freelancerID uint, q service.WithdrawalQuery) (*service.PageResult[models.Withdrawal], error)
	FindClientWithdrawal(ctx context.Context, clientID uint, q service.WithdrawalQuery) (*service.PageResult[models.Withdrawal], error)
	FindAllWithdrawal(ctx context.Context, q service.WithdrawalQuery) (*service.PageResult[models.Withdrawal], error)
	AvailableBalance(ctx context.Context, freelancerID, jobID uint) (int64, error)
}

type WithdrawalHandler struct {
	ledger WithdrawalLedger
	logger zerolog.Logger
}

func NewWithdrawalHandler(ledger WithdrawalLedger, logger zerolog.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{ledger: ledger, logger: logger.With().Str("component", "withdrawal_handler").Logger()}
}

// Create requests a payout from a job's escrow. Freelancer only.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req struct {
		Amount *decimal.Decimal `json:"amount" binding:"required"`
		Method string           `json:"method" binding:"required"`
		Job    uint             `json:"job" binding:"required"`
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
	w, err := h.ledger.RequestWithdrawal(c.Request.Context(), service.RequestWithdrawalInput{
		FreelancerID: middleware.GetUserID(c),
		JobID:        req.Job,
		AmountCents:  cents,
		Method:       req.Method,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *WithdrawalHandler) UpdateApproval(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.ledger.UpdateApprovalStatus(c.Request.Context(), id, req.Status, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// UpdateExecution records whether the payout went out. Admin only.
func (h *WithdrawalHandler) UpdateExecution(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.ledger.MarkExecuted(c.Request.Context(), id, req.Status, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	w, err := h.ledger.Get(c.Request.Context(), id, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Balance reports how much of a job's escrow the caller can still withdraw.
func (h *WithdrawalHandler) Balance(c *gin.Context) {
	jobID, err := strconv.ParseUint(c.Query("job"), 10, 64)
	if err != nil || jobID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job query parameter is required"})
		return
	}
	cents, err := h.ledger.AvailableBalance(c.Request.Context(), middleware.GetUserID(c), uint(jobID))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":            jobID,
		"available":      money.FromMinorUnits(cents),
		"availableCents": cents,
	})
}

func withdrawalQuery(c *gin.Context) service.WithdrawalQuery {
	page, limit := parsePagination(c)
	return service.WithdrawalQuery{
		Search:         c.Query("search"),
		Status:         c.Query("status"),
		ApprovalStatus: c.Query("approvalStatus"),
		Page:           page,
		Limit:          limit,
	}
}

func (h *WithdrawalHandler) ListMine(c *gin.Context) {
	res, err := h.ledger.FindFreelancerWithdrawal(c.Request.Context(), middleware.GetUserID(c), withdrawalQuery(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *WithdrawalHandler) ListClient(c *gin.Context) {
	res, err := h.ledger.FindClientWithdrawal(c.Request.Context(), middleware.GetUserID(c), withdrawalQuery(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *WithdrawalHandler) ListAll(c *gin.Context) {
	res, err := h.ledger.FindAllWithdrawal(c.Request.Context(), withdrawalQuery(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
