package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/internal/events"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"
	"github.com/emmanuel-dcoder/teevil-api/internal/repository"
	"github.com/emmanuel-dcoder/teevil-api/pkg/money"
	"github.com/emmanuel-dcoder/teevil-api/pkg/payment"

	"github.com/rs/zerolog"
)

// maxTransitionAttempts bounds re-reads after losing a status race.
const maxTransitionAttempts = 3

var errLostRace = errors.New("transaction status changed concurrently")

type TransactionDeps struct {
	Store       *repository.Store
	Jobs        JobLookup
	Users       UserLookup
	Gateway     payment.Gateway
	Notifier    Notifier
	Publisher   events.Publisher
	Broadcaster StatusBroadcaster
	Currency    string
	// GatewayTimeout bounds every call to the gateway.
	GatewayTimeout time.Duration
	Logger         zerolog.Logger
}

// TransactionService owns the funding lifecycle of escrow transactions.
type TransactionService struct {
	store    *repository.Store
	jobs     JobLookup
	users    UserLookup
	gateway  payment.Gateway
	currency string
	timeout  time.Duration
	effects  *sideEffects
	logger   zerolog.Logger
	now      func() time.Time
}

func NewTransactionService(d TransactionDeps) *TransactionService {
	logger := d.Logger.With().Str("component", "transactions").Logger()
	timeout := d.GatewayTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	currency := d.Currency
	if currency == "" {
		currency = "usd"
	}
	return &TransactionService{
		store:    d.Store,
		jobs:     d.Jobs,
		users:    d.Users,
		gateway:  d.Gateway,
		currency: currency,
		timeout:  timeout,
		effects: &sideEffects{
			notifier:    d.Notifier,
			publisher:   d.Publisher,
			broadcaster: d.Broadcaster,
			logger:      logger,
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type InitiatePaymentInput struct {
	ClientID     uint
	FreelancerID uint
	JobID        uint
	AmountCents  int64
}

type InitiatePaymentResult struct {
	ClientSecret    string              `json:"client_secret"`
	PaymentIntentID string              `json:"payment_intent_id"`
	Transaction     *models.Transaction `json:"transaction"`
}

// InitiatePayment creates a gateway intent and then records a pending
// transaction for it. Nothing is persisted unless the intent exists.
func (s *TransactionService) InitiatePayment(ctx context.Context, in InitiatePaymentInput) (*InitiatePaymentResult, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidRequest)
	}
	job, err := s.jobs.GetByIDAndOwner(ctx, in.JobID, in.ClientID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: job not found or not owned by client", domain.ErrInvalidJob)
	}
	if err != nil {
		return nil, err
	}
	freelancer, err := s.users.GetByID(ctx, in.FreelancerID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !freelancer.IsFreelancer()) {
		return nil, fmt.Errorf("%w: freelancer not found", domain.ErrInvalidRequest)
	}
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	intent, err := s.gateway.CreateIntent(gctx, payment.CreateIntentRequest{
		AmountCents: in.AmountCents,
		Currency:    s.currency,
		Description: fmt.Sprintf("Escrow funding for job #%d", job.ID),
		Metadata: map[string]string{
			"client_id":     strconv.FormatUint(uint64(in.ClientID), 10),
			"freelancer_id": strconv.FormatUint(uint64(in.FreelancerID), 10),
			"job_id":        strconv.FormatUint(uint64(job.ID), 10),
		},
	})
	cancel()
	if err != nil {
		s.logger.Error().Err(err).Uint("job_id", job.ID).Msg("create payment intent")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	t := &models.Transaction{
		AmountCents:  in.AmountCents,
		Currency:     s.currency,
		ClientID:     in.ClientID,
		FreelancerID: in.FreelancerID,
		JobID:        job.ID,
		Channel:      s.gateway.Channel(),
		GatewayRef:   intent.ID,
		PaymentType:  domain.PaymentTypeCard,
		Metadata:     string(intent.Raw),
		Status:       domain.FundingPending,
		PayoutStatus: domain.PayoutProcessing,
	}
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Transactions.Create(ctx, t); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, uintPtr(in.ClientID), domain.AuditTransactionInitiated, "transaction", strconv.FormatUint(uint64(t.ID), 10), map[string]interface{}{
			"payment_intent_id": intent.ID,
			"amount_cents":      in.AmountCents,
		})
	})
	if err != nil {
		s.cancelOrphan(ctx, intent.ID, err)
		return nil, err
	}

	s.logger.Info().
		Uint("transaction_id", t.ID).
		Str("payment_intent_id", intent.ID).
		Int64("amount_cents", t.AmountCents).
		Msg("payment initiated")
	s.effects.publish(ctx, intent.ID, events.TransactionInitiated, t)

	return &InitiatePaymentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Transaction:     t,
	}, nil
}

func (s *TransactionService) cancelOrphan(ctx context.Context, intentID string, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.gateway.CancelIntent(cctx, intentID); err != nil {
		s.logger.Error().Err(cause).AnErr("cancel_error", err).Str("payment_intent_id", intentID).
			Msg("orphaned payment intent: transaction not persisted and cancel failed")
		return
	}
	s.logger.Warn().Err(cause).Str("payment_intent_id", intentID).Msg("payment intent cancelled after persist failure")
}

// VerifyPayment settles an unsettled transaction from the gateway's view of
// its intent.
func (s *TransactionService) VerifyPayment(ctx context.Context, intentID string, req Requester) (*models.Transaction, error) {
	t, err := s.store.Transactions.GetByGatewayRef(ctx, intentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no transaction for this payment intent", domain.ErrDuplicateOrInvalidTransaction)
	}
	if err != nil {
		return nil, err
	}
	if !canView(t, req) {
		return nil, fmt.Errorf("%w: transaction belongs to another user", domain.ErrForbidden)
	}
	if !t.Status.Unsettled() {
		return nil, fmt.Errorf("%w: likely a duplicate or invalid payment", domain.ErrDuplicateOrInvalidTransaction)
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	intent, err := s.gateway.RetrieveIntent(gctx, intentID)
	cancel()
	if errors.Is(err, payment.ErrIntentNotFound) {
		return nil, fmt.Errorf("%w: payment intent unknown to gateway", domain.ErrNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("payment_intent_id", intentID).Msg("retrieve payment intent")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	target := targetForIntent(intent)
	if target == t.Status {
		return t, nil
	}
	changed, err := s.applyTransition(ctx, t, target, uintPtr(req.ID), "verify", nil)
	if errors.Is(err, errLostRace) || (err == nil && !changed) {
		return nil, fmt.Errorf("%w: transaction was settled concurrently", domain.ErrDuplicateOrInvalidTransaction)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func targetForIntent(intent *payment.Intent) domain.FundingStatus {
	switch intent.Status {
	case payment.IntentSucceeded:
		return domain.FundingConfirmed
	case payment.IntentProcessing:
		return domain.FundingInReview
	default:
		return domain.FundingFailed
	}
}

func canView(t *models.Transaction, req Requester) bool {
	switch req.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleClient:
		return t.ClientID == req.ID
	case domain.RoleFreelancer:
		return t.FreelancerID == req.ID
	}
	return false
}

// applyTransition moves t to target if the transition table allows it,
// re-reading after a lost race. extra runs inside the same database
// transaction as the status change. It reports whether this call changed
// the row; t is updated to the latest known state either way.
func (s *TransactionService) applyTransition(ctx context.Context, t *models.Transaction, target domain.FundingStatus, actor *uint, source string, extra func(tx *repository.Store) error) (bool, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if t.Status == target {
			return false, nil
		}
		if !t.Status.CanTransitionTo(target) {
			return false, nil
		}
		from := t.Status
		now := s.now()
		err := s.store.InTx(ctx, func(tx *repository.Store) error {
			ok, err := tx.Transactions.TransitionStatus(ctx, t.ID, []domain.FundingStatus{from}, target, now)
			if err != nil {
				return err
			}
			if !ok {
				return errLostRace
			}
			if extra != nil {
				if err := extra(tx); err != nil {
					return err
				}
			}
			return tx.Audit.Record(ctx, actor, domain.AuditTransactionStatus, "transaction", strconv.FormatUint(uint64(t.ID), 10), map[string]interface{}{
				"from":   from,
				"to":     target,
				"source": source,
			})
		})
		if errors.Is(err, errLostRace) {
			fresh, rerr := s.store.Transactions.GetByID(ctx, t.ID)
			if rerr != nil {
				return false, rerr
			}
			*t = *fresh
			continue
		}
		if err != nil {
			return false, err
		}

		t.Status = target
		t.UpdatedAt = now
		if target == domain.FundingConfirmed {
			t.ConfirmedAt = &now
		}
		s.logger.Info().
			Uint("transaction_id", t.ID).
			Str("payment_intent_id", t.GatewayRef).
			Str("from", string(from)).
			Str("to", string(target)).
			Str("source", source).
			Msg("transaction status changed")
		s.afterStatusChange(ctx, t, from)
		return true, nil
	}
	return false, errLostRace
}

func (s *TransactionService) afterStatusChange(ctx context.Context, t *models.Transaction, from domain.FundingStatus) {
	payload := map[string]interface{}{
		"type":              "transaction.status",
		"transaction_id":    t.ID,
		"payment_intent_id": t.GatewayRef,
		"status":            t.Status,
		"payout_status":     t.PayoutStatus,
	}
	s.effects.broadcast(payload, t.ClientID, t.FreelancerID)
	s.effects.publish(ctx, t.GatewayRef, events.TransactionStatusChanged, map[string]interface{}{
		"transaction_id": t.ID,
		"from":           from,
		"to":             t.Status,
		"amount_cents":   t.AmountCents,
		"client_id":      t.ClientID,
		"freelancer_id":  t.FreelancerID,
		"job_id":         t.JobID,
	})
	if t.Status == domain.FundingConfirmed {
		data := map[string]interface{}{"transaction_id": t.ID, "job_id": t.JobID}
		amount := money.Format(t.AmountCents)
		s.effects.notify(ctx, t.ClientID, domain.NotificationTypePayment, "Payment confirmed",
			"Your payment of "+amount+" is now held in escrow.", data)
		s.effects.notify(ctx, t.FreelancerID, domain.NotificationTypePayment, "Job funded",
			"A payment of "+amount+" for your job has been placed in escrow.", data)
	}
}

// WebhookOutcome describes what applying a gateway event did.
type WebhookOutcome string

const (
	OutcomeApplied        WebhookOutcome = "applied"
	OutcomeNoop           WebhookOutcome = "noop"
	OutcomeIgnoredType    WebhookOutcome = "ignored_type"
	OutcomeUnknownIntent  WebhookOutcome = "unknown_intent"
	OutcomeContradictory  WebhookOutcome = "contradictory"
	OutcomeDuplicateEvent WebhookOutcome = "duplicate_event"
)

var errDuplicateEvent = errors.New("webhook event already recorded")

// targetForEvent maps gateway events to funding statuses. Success has exactly
// one canonical status.
func targetForEvent(t payment.EventType) (domain.FundingStatus, bool) {
	switch t {
	case payment.EventIntentSucceeded:
		return domain.FundingConfirmed, true
	case payment.EventIntentFailed, payment.EventIntentCanceled:
		return domain.FundingFailed, true
	case payment.EventIntentProcessing:
		return domain.FundingInReview, true
	}
	return "", false
}

// ApplyWebhookEvent applies a verified gateway event. It is idempotent per
// intent and target status, and the first terminal status wins: late
// contradictory events are logged and ignored.
func (s *TransactionService) ApplyWebhookEvent(ctx context.Context, evt *payment.Event) (WebhookOutcome, error) {
	log := s.logger.With().Str("event_id", evt.ID).Str("event_type", string(evt.Type)).Str("payment_intent_id", evt.IntentID).Logger()

	target, ok := targetForEvent(evt.Type)
	if !ok || evt.IntentID == "" {
		log.Debug().Msg("webhook event type not handled")
		return OutcomeIgnoredType, nil
	}
	if evt.ID != "" {
		recorded, err := s.store.WebhookEvents.Exists(ctx, evt.ID)
		if err != nil {
			return "", err
		}
		if recorded {
			return OutcomeDuplicateEvent, nil
		}
	}
	t, err := s.store.Transactions.GetByGatewayRef(ctx, evt.IntentID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Msg("webhook for unknown payment intent dropped")
		return OutcomeUnknownIntent, nil
	}
	if err != nil {
		return "", err
	}
	if t.Status.Satisfies(target) {
		return OutcomeNoop, nil
	}
	if !t.Status.CanTransitionTo(target) {
		log.Warn().Str("status", string(t.Status)).Str("target", string(target)).Msg("contradictory webhook ignored")
		return OutcomeContradictory, nil
	}

	changed, err := s.applyTransition(ctx, t, target, nil, "webhook", func(tx *repository.Store) error {
		recorded, err := tx.WebhookEvents.Record(ctx, &models.WebhookEvent{
			EventID:    evt.ID,
			Type:       string(evt.Type),
			GatewayRef: evt.IntentID,
			Outcome:    string(OutcomeApplied),
		})
		if err != nil {
			return err
		}
		if !recorded {
			return errDuplicateEvent
		}
		return nil
	})
	switch {
	case errors.Is(err, errDuplicateEvent):
		return OutcomeDuplicateEvent, nil
	case err != nil:
		return "", err
	case changed:
		return OutcomeApplied, nil
	case t.Status.Satisfies(target):
		return OutcomeNoop, nil
	default:
		log.Warn().Str("status", string(t.Status)).Str("target", string(target)).Msg("contradictory webhook ignored")
		return OutcomeContradictory, nil
	}
}

// ComputeEscrowBalance returns the client's funded amount not yet released.
func (s *TransactionService) ComputeEscrowBalance(ctx context.Context, clientID uint) (int64, error) {
	return s.store.Transactions.EscrowBalanceForClient(ctx, clientID)
}

type TransactionQuery struct {
	Search       string
	Status       string
	PayoutStatus string
	Page         int
	Limit        int
}

// FindAll lists transactions visible to the requester: clients see what they
// funded, freelancers what they are paid, admins everything.
func (s *TransactionService) FindAll(ctx context.Context, req Requester, q TransactionQuery) (*PageResult[models.Transaction], error) {
	q.Page, q.Limit = normalizePage(q.Page, q.Limit)
	f := repository.TransactionFilter{
		Search: q.Search,
		Page:   repository.Page{Page: q.Page, Limit: q.Limit},
	}
	switch req.Role {
	case domain.RoleClient:
		f.ClientID = req.ID
	case domain.RoleFreelancer:
		f.FreelancerID = req.ID
	case domain.RoleAdmin:
	default:
		return nil, domain.ErrForbidden
	}
	if q.PayoutStatus != "" {
		ps := domain.PayoutStatus(q.PayoutStatus)
		if !ps.Valid() {
			return nil, fmt.Errorf("%w: unknown payout status %q", domain.ErrInvalidStatus, q.PayoutStatus)
		}
		f.PayoutStatus = ps
	}
	if q.Status != "" {
		fs := domain.FundingStatus(q.Status)
		if !fs.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidStatus, q.Status)
		}
		f.Status = fs
	}
	list, total, err := s.store.Transactions.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return newPageResult(list, total, q.Page, q.Limit), nil
}

// Get returns one transaction if the requester may see it.
func (s *TransactionService) Get(ctx context.Context, id uint, req Requester) (*models.Transaction, error) {
	t, err := s.store.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(t, req) {
		return nil, domain.ErrNotFound
	}
	return t, nil
}
