package domain

import "slices"

// FundingStatus is the client -> escrow axis of a Transaction.
type FundingStatus string

const (
	FundingPending   FundingStatus = "pending"
	FundingInReview  FundingStatus = "in-review"
	FundingConfirmed FundingStatus = "confirmed"
	FundingFailed    FundingStatus = "failed"
	FundingPaid      FundingStatus = "paid"
)

var fundingTransitions = map[FundingStatus][]FundingStatus{
	FundingPending:   {FundingInReview, FundingConfirmed, FundingFailed},
	FundingInReview:  {FundingConfirmed, FundingFailed},
	FundingConfirmed: {FundingPaid},
	FundingFailed:    nil,
	FundingPaid:      nil,
}

func (s FundingStatus) Valid() bool {
	_, ok := fundingTransitions[s]
	return ok
}

func (s FundingStatus) CanTransitionTo(next FundingStatus) bool {
	for _, n := range fundingTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Satisfies reports whether a transaction in s already reflects target. A
// settled transaction still counts as confirmed.
func (s FundingStatus) Satisfies(target FundingStatus) bool {
	return s == target || (target == FundingConfirmed && s == FundingPaid)
}

// Unsettled statuses may still be moved by verification or webhooks.
func (s FundingStatus) Unsettled() bool {
	return slices.Contains(UnsettledFundingStatuses(), s)
}

// Funded means the money has landed with the platform.
func (s FundingStatus) Funded() bool {
	return slices.Contains(FundedStatuses(), s)
}

// UnsettledFundingStatuses lists the statuses a verification may start from.
func UnsettledFundingStatuses() []FundingStatus {
	return []FundingStatus{FundingPending, FundingInReview}
}

// FundedStatuses lists the statuses that count toward escrow.
func FundedStatuses() []FundingStatus {
	return []FundingStatus{FundingConfirmed, FundingPaid}
}

// PayoutStatus is the escrow -> freelancer axis of a Transaction.
type PayoutStatus string

const (
	PayoutProcessing PayoutStatus = "processing"
	PayoutInReview   PayoutStatus = "in-review"
	PayoutPaid       PayoutStatus = "paid"
	PayoutRejected   PayoutStatus = "rejected"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutProcessing: {PayoutInReview, PayoutPaid, PayoutRejected},
	PayoutInReview:   {PayoutPaid, PayoutRejected},
	PayoutPaid:       nil,
	PayoutRejected:   nil,
}

func (s PayoutStatus) Valid() bool {
	_, ok := payoutTransitions[s]
	return ok
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, n := range payoutTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// CanRelease reports whether a transaction in the given pair of states may
// have its payout marked paid. Funds must have landed first.
func CanRelease(funding FundingStatus, payout PayoutStatus) bool {
	return funding.Funded() && payout.CanTransitionTo(PayoutPaid)
}

// WithdrawalStatus is the payout execution axis of a Withdrawal.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalInReview WithdrawalStatus = "in-review"
	WithdrawalSuccess  WithdrawalStatus = "success"
	WithdrawalFailed   WithdrawalStatus = "failed"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:  {WithdrawalInReview},
	WithdrawalInReview: {WithdrawalSuccess, WithdrawalFailed},
	WithdrawalSuccess:  nil,
	WithdrawalFailed:   nil,
}

func (s WithdrawalStatus) Valid() bool {
	_, ok := withdrawalTransitions[s]
	return ok
}

func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, n := range withdrawalTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// ApprovalStatus is the human approval gate of a Withdrawal.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalInReview ApprovalStatus = "in-review"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending:  {ApprovalApproved, ApprovalRejected},
	ApprovalInReview: nil,
	ApprovalApproved: nil,
	ApprovalRejected: nil,
}

func (s ApprovalStatus) Valid() bool {
	_, ok := approvalTransitions[s]
	return ok
}

func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	for _, n := range approvalTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Resolution reports whether s is a value an approver may set.
func (s ApprovalStatus) Resolution() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}
