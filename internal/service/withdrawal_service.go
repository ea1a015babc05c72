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

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// maxWithdrawalAttempts bounds retries on escrow version conflicts and
// reference collisions.
const maxWithdrawalAttempts = 8

var (
	errEscrowVersion      = errors.New("escrow account changed concurrently")
	errReferenceCollision = errors.New("withdrawal reference collision")
)

type WithdrawalDeps struct {
	Store     *repository.Store
	Jobs      JobLookup
	Users     UserLookup
	Notifier  Notifier
	Mailer    Mailer
	Publisher events.Publisher
	Logger    zerolog.Logger
}

// WithdrawalService owns freelancer payout requests against job escrow.
type WithdrawalService struct {
	store   *repository.Store
	jobs    JobLookup
	users   UserLookup
	effects *sideEffects
	logger  zerolog.Logger
	now     func() time.Time
	newRef  func() (string, error)
}

func NewWithdrawalService(d WithdrawalDeps) *WithdrawalService {
	logger := d.Logger.With().Str("component", "withdrawals").Logger()
	return &WithdrawalService{
		store: d.Store,
		jobs:  d.Jobs,
		users: d.Users,
		effects: &sideEffects{
			notifier:  d.Notifier,
			mailer:    d.Mailer,
			publisher: d.Publisher,
			logger:    logger,
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newRef: repository.NewReference,
	}
}

type RequestWithdrawalInput struct {
	FreelancerID uint
	JobID        uint
	AmountCents  int64
	Method       string
}

// AvailableBalance is what a freelancer may still withdraw for a job: funded
// transactions minus withdrawals that are neither rejected nor failed.
func (s *WithdrawalService) AvailableBalance(ctx context.Context, freelancerID, jobID uint) (int64, error) {
	return availableBalance(ctx, s.store, freelancerID, jobID)
}

func availableBalance(ctx context.Context, st *repository.Store, freelancerID, jobID uint) (int64, error) {
	funded, err := st.Transactions.FundedTotal(ctx, freelancerID, jobID)
	if err != nil {
		return 0, err
	}
	committed, err := st.Withdrawals.CommittedTotal(ctx, freelancerID, jobID)
	if err != nil {
		return 0, err
	}
	return funded - committed, nil
}

// RequestWithdrawal checks the escrow balance and inserts the withdrawal in
// one database transaction. The per (freelancer, job) escrow version is
// bumped with compare-and-swap in that same transaction, so two concurrent
// requests can never both spend the same balance.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, in RequestWithdrawalInput) (*models.Withdrawal, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidRequest)
	}
	if !domain.ValidWithdrawalMethod(in.Method) {
		return nil, fmt.Errorf("%w: method must be %s or %s", domain.ErrInvalidRequest,
			domain.WithdrawalMethodBankTransfer, domain.WithdrawalMethodPaypal)
	}
	job, err := s.jobs.GetByID(ctx, in.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: job not found", domain.ErrInvalidJob)
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

	var w *models.Withdrawal
	for attempt := 1; ; attempt++ {
		w, err = s.tryRequest(ctx, in)
		if err == nil {
			break
		}
		if !errors.Is(err, errEscrowVersion) && !errors.Is(err, errReferenceCollision) {
			return nil, err
		}
		if attempt >= maxWithdrawalAttempts {
			s.logger.Warn().Err(err).Uint("freelancer_id", in.FreelancerID).Uint("job_id", in.JobID).Msg("withdrawal retries exhausted")
			return nil, fmt.Errorf("%w: escrow balance is busy, try again", domain.ErrConflict)
		}
	}
	w.Job = job
	w.Freelancer = freelancer

	s.logger.Info().
		Uint("withdrawal_id", w.ID).
		Str("reference", w.Reference).
		Uint("freelancer_id", w.FreelancerID).
		Uint("job_id", w.JobID).
		Int64("amount_cents", w.AmountCents).
		Msg("withdrawal requested")

	amount := money.Format(w.AmountCents)
	s.effects.mail(ctx, freelancer.Email, "Teevil: Withdrawal Request", MailTemplateWithdrawalRequest, MailData{
		Name:      freelancer.FullName(),
		Amount:    amount,
		Reference: w.Reference,
	})
	s.effects.notify(ctx, w.FreelancerID, domain.NotificationTypeWithdrawal, "Withdrawal",
		"Congratulations!!! your withdrawal request for "+amount+" is processing",
		map[string]interface{}{"withdrawal_id": w.ID, "reference": w.Reference})
	s.effects.publish(ctx, w.Reference, events.WithdrawalRequested, w)
	return w, nil
}

func (s *WithdrawalService) tryRequest(ctx context.Context, in RequestWithdrawalInput) (*models.Withdrawal, error) {
	ref, err := s.newRef()
	if err != nil {
		return nil, err
	}
	var w *models.Withdrawal
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		acc, err := tx.Escrow.Ensure(ctx, in.FreelancerID, in.JobID)
		if err != nil {
			return err
		}
		available, err := availableBalance(ctx, tx, in.FreelancerID, in.JobID)
		if err != nil {
			return err
		}
		if in.AmountCents > available {
			return fmt.Errorf("%w: requested %s, available %s", domain.ErrEscrowInsufficient,
				money.Format(in.AmountCents), money.Format(max(available, 0)))
		}
		w = &models.Withdrawal{
			Reference:      ref,
			AmountCents:    in.AmountCents,
			FreelancerID:   in.FreelancerID,
			JobID:          in.JobID,
			Method:         in.Method,
			Status:         domain.WithdrawalInReview,
			ApprovalStatus: domain.ApprovalPending,
		}
		if err := tx.Withdrawals.Create(ctx, w); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errReferenceCollision
			}
			return err
		}
		ok, err := tx.Escrow.BumpVersion(ctx, acc.ID, acc.Version)
		if err != nil {
			return err
		}
		if !ok {
			return errEscrowVersion
		}
		return tx.Audit.Record(ctx, uintPtr(in.FreelancerID), domain.AuditWithdrawalRequested, "withdrawal", strconv.FormatUint(uint64(w.ID), 10), map[string]interface{}{
			"reference":    ref,
			"amount_cents": in.AmountCents,
			"available":    available,
			"version":      acc.Version + 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateApprovalStatus resolves a pending withdrawal exactly once. Approval
// releases the job's funded transactions, oldest first, up to the total the
// freelancer has had approved.
func (s *WithdrawalService) UpdateApprovalStatus(ctx context.Context, withdrawalID uint, status string, req Requester) (*models.Withdrawal, error) {
	next := domain.ApprovalStatus(status)
	if !next.Resolution() {
		return nil, fmt.Errorf("%w: approval status must be approved or rejected", domain.ErrInvalidStatus)
	}
	w, err := s.store.Withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if !s.canResolve(ctx, w, req) {
		return nil, fmt.Errorf("%w: only the job owner or an admin may resolve this withdrawal", domain.ErrForbidden)
	}
	if !w.ApprovalStatus.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: withdrawal is already %s", domain.ErrConflict, w.ApprovalStatus)
	}

	now := s.now()
	var released []uint
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		ok, err := tx.Withdrawals.ResolveApproval(ctx, w.ID, next, req.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: withdrawal was resolved concurrently", domain.ErrConflict)
		}
		if next == domain.ApprovalApproved {
			released, err = s.settle(ctx, tx, w.FreelancerID, w.JobID, req.ID, now)
			if err != nil {
				return err
			}
		}
		return tx.Audit.Record(ctx, uintPtr(req.ID), domain.AuditWithdrawalApproval, "withdrawal", strconv.FormatUint(uint64(w.ID), 10), map[string]interface{}{
			"approval_status": next,
			"released":        released,
		})
	})
	if err != nil {
		return nil, err
	}
	w.ApprovalStatus = next
	w.ResolvedBy = uintPtr(req.ID)
	w.ResolvedAt = &now

	s.logger.Info().
		Uint("withdrawal_id", w.ID).
		Str("approval_status", string(next)).
		Uint("resolved_by", req.ID).
		Int("released_transactions", len(released)).
		Msg("withdrawal approval updated")

	amount := money.Format(w.AmountCents)
	s.effects.notify(ctx, w.FreelancerID, domain.NotificationTypeWithdrawal, "Withdrawal",
		"Your withdrawal request of "+amount+" has been "+string(next),
		map[string]interface{}{"withdrawal_id": w.ID, "reference": w.Reference, "approval_status": string(next)})
	if w.Freelancer != nil {
		s.effects.mail(ctx, w.Freelancer.Email, "Teevil: Withdrawal "+string(next), MailTemplateWithdrawalApproval, MailData{
			Name:      w.Freelancer.FullName(),
			Amount:    amount,
			Reference: w.Reference,
			Status:    string(next),
		})
	}
	s.effects.publish(ctx, w.Reference, events.WithdrawalApprovalUpdate, map[string]interface{}{
		"withdrawal_id":   w.ID,
		"reference":       w.Reference,
		"approval_status": next,
		"released":        released,
	})
	return w, nil
}

func (s *WithdrawalService) canResolve(ctx context.Context, w *models.Withdrawal, req Requester) bool {
	switch req.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleClient:
		if w.Job != nil {
			return w.Job.CreatedBy == req.ID
		}
		_, err := s.jobs.GetByIDAndOwner(ctx, w.JobID, req.ID)
		return err == nil
	}
	return false
}

// settle releases funded transactions oldest first while the running total
// stays within the approved, non-failed withdrawals for the pair.
func (s *WithdrawalService) settle(ctx context.Context, tx *repository.Store, freelancerID, jobID, actor uint, now time.Time) ([]uint, error) {
	approved, err := tx.Withdrawals.ApprovedTotal(ctx, freelancerID, jobID)
	if err != nil {
		return nil, err
	}
	funded, err := tx.Transactions.ListFunded(ctx, freelancerID, jobID)
	if err != nil {
		return nil, err
	}
	var released []uint
	var cumulative int64
	for i := range funded {
		t := &funded[i]
		cumulative += t.AmountCents
		if cumulative > approved {
			break
		}
		if !domain.CanRelease(t.Status, t.PayoutStatus) {
			continue
		}
		ok, err := tx.Transactions.Release(ctx, t.ID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		released = append(released, t.ID)
		if err := tx.Audit.Record(ctx, uintPtr(actor), domain.AuditTransactionReleased, "transaction", strconv.FormatUint(uint64(t.ID), 10), map[string]interface{}{
			"payout_status": domain.PayoutPaid,
		}); err != nil {
			return nil, err
		}
	}
	return released, nil
}

// MarkExecuted records the outcome of paying out an approved withdrawal.
func (s *WithdrawalService) MarkExecuted(ctx context.Context, withdrawalID uint, status string, req Requester) (*models.Withdrawal, error) {
	next := domain.WithdrawalStatus(status)
	if next != domain.WithdrawalSuccess && next != domain.WithdrawalFailed {
		return nil, fmt.Errorf("%w: execution status must be success or failed", domain.ErrInvalidStatus)
	}
	if req.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	w, err := s.store.Withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.ApprovalStatus != domain.ApprovalApproved {
		return nil, fmt.Errorf("%w: withdrawal is not approved", domain.ErrConflict)
	}
	if !w.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: withdrawal is already %s", domain.ErrConflict, w.Status)
	}
	now := s.now()
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		ok, err := tx.Withdrawals.MarkExecuted(ctx, w.ID, next, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: withdrawal was executed concurrently", domain.ErrConflict)
		}
		return tx.Audit.Record(ctx, uintPtr(req.ID), domain.AuditWithdrawalExecuted, "withdrawal", strconv.FormatUint(uint64(w.ID), 10), map[string]interface{}{
			"status": next,
		})
	})
	if err != nil {
		return nil, err
	}
	w.Status = next
	w.ExecutedAt = &now

	s.logger.Info().Uint("withdrawal_id", w.ID).Str("status", string(next)).Msg("withdrawal executed")
	s.effects.notify(ctx, w.FreelancerID, domain.NotificationTypeWithdrawal, "Withdrawal",
		"Your withdrawal "+w.Reference+" of "+money.Format(w.AmountCents)+" was "+executionWord(next),
		map[string]interface{}{"withdrawal_id": w.ID, "status": string(next)})
	s.effects.publish(ctx, w.Reference, events.WithdrawalExecuted, map[string]interface{}{
		"withdrawal_id": w.ID,
		"reference":     w.Reference,
		"status":        next,
	})
	return w, nil
}

func executionWord(s domain.WithdrawalStatus) string {
	if s == domain.WithdrawalSuccess {
		return "paid out"
	}
	return "not completed"
}

// Get returns a withdrawal if the requester may see it.
func (s *WithdrawalService) Get(ctx context.Context, id uint, req Requester) (*models.Withdrawal, error) {
	w, err := s.store.Withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case req.Role == domain.RoleAdmin,
		req.Role == domain.RoleFreelancer && w.FreelancerID == req.ID,
		req.Role == domain.RoleClient && w.Job != nil && w.Job.CreatedBy == req.ID:
		return w, nil
	}
	return nil, domain.ErrNotFound
}

type WithdrawalQuery struct {
	Search         string
	Status         string
	ApprovalStatus string
	Page           int
	Limit          int
}

func (s *WithdrawalService) FindFreelancerWithdrawal(ctx context.Context, freelancerID uint, q WithdrawalQuery) (*PageResult[models.Withdrawal], error) {
	return s.find(ctx, repository.WithdrawalFilter{FreelancerID: freelancerID}, q)
}

// FindClientWithdrawal lists withdrawals against jobs the client owns.
func (s *WithdrawalService) FindClientWithdrawal(ctx context.Context, clientID uint, q WithdrawalQuery) (*PageResult[models.Withdrawal], error) {
	return s.find(ctx, repository.WithdrawalFilter{JobOwnerID: clientID}, q)
}

func (s *WithdrawalService) FindAllWithdrawal(ctx context.Context, q WithdrawalQuery) (*PageResult[models.Withdrawal], error) {
	return s.find(ctx, repository.WithdrawalFilter{}, q)
}

func (s *WithdrawalService) find(ctx context.Context, f repository.WithdrawalFilter, q WithdrawalQuery) (*PageResult[models.Withdrawal], error) {
	q.Page, q.Limit = normalizePage(q.Page, q.Limit)
	if q.Status != "" {
		st := domain.WithdrawalStatus(q.Status)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidStatus, q.Status)
		}
		f.Status = st
	}
	if q.ApprovalStatus != "" {
		as := domain.ApprovalStatus(q.ApprovalStatus)
		if !as.Valid() {
			return nil, fmt.Errorf("%w: unknown approval status %q", domain.ErrInvalidStatus, q.ApprovalStatus)
		}
		f.ApprovalStatus = as
	}
	f.Search = q.Search
	f.Page = repository.Page{Page: q.Page, Limit: q.Limit}
	list, total, err := s.store.Withdrawals.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return newPageResult(list, total, q.Page, q.Limit), nil
}
