package domain

const (
	RoleClient     = "CLIENT"
	RoleFreelancer = "FREELANCER"
	RoleAdmin      = "ADMIN"
)

const (
	ChannelStripe = "stripe"
	ChannelStub   = "stub"

	PaymentTypeCard = "card"
)

const (
	WithdrawalMethodBankTransfer = "bank-transfer"
	WithdrawalMethodPaypal       = "paypal"
)

// ValidWithdrawalMethod reports whether m is an accepted payout method.
func ValidWithdrawalMethod(m string) bool {
	return m == WithdrawalMethodBankTransfer || m == WithdrawalMethodPaypal
}

const (
	NotificationTypeWithdrawal = "Withdrawal"
	NotificationTypePayment    = "Payment"
)

// Audit actions recorded for financial state changes.
const (
	AuditTransactionInitiated = "transaction.initiated"
	AuditTransactionStatus    = "transaction.status_changed"
	AuditTransactionReleased  = "transaction.released"
	AuditWithdrawalRequested  = "withdrawal.requested"
	AuditWithdrawalApproval   = "withdrawal.approval_updated"
	AuditWithdrawalExecuted   = "withdrawal.executed"
)
