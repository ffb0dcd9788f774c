package pool

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/audit"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
)

// Status is the lifecycle state of an event.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ParticipantStatus is the membership state of a user in an event.
type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantApproved ParticipantStatus = "approved"
	ParticipantActive   ParticipantStatus = "active"
	ParticipantRejected ParticipantStatus = "rejected"
)

// DepositSource records where money entering the pool came from.
type DepositSource string

const (
	SourcePayment        DepositSource = "payment"
	SourceWallet         DepositSource = "wallet"
	SourceDebtSettlement DepositSource = "debt_settlement"
	SourceWalletReversal DepositSource = "wallet_reversal"
	SourceRefund         DepositSource = "refund"
)

// Event is a shared pool. TotalSpent never exceeds TotalPool.
type Event struct {
	ID          uuid.UUID
	CreatorID   uuid.UUID
	Name        string
	Status      Status
	TotalPool   decimal.Decimal
	TotalSpent  decimal.Decimal
	Rules       rules.Rules
	AuditRoot   audit.Hash
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Participant is one user's position in an event. Balance is
// DepositAmount - TotalSpent and goes negative when a share was pushed to
// debt; AvailableContribution only counts liquid pool funds and never goes
// below zero.
type Participant struct {
	EventID               uuid.UUID
	UserID                uuid.UUID
	Status                ParticipantStatus
	PledgedDeposit        decimal.Decimal
	DepositAmount         decimal.Decimal
	TotalSpent            decimal.Decimal
	Balance               decimal.Decimal
	AvailableContribution decimal.Decimal
	JoinedAt              time.Time
	UpdatedAt             time.Time
}

// Deposit is one entry of an event's deposit history.
type Deposit struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Source    DepositSource
	Reference string
	CreatedAt time.Time
}

// Charge is one participant's part of a deduction. PoolDrawn is filled in
// by DeductExpense with the amount taken from the participant's liquid
// contribution, so the deduction can be reversed exactly.
type Charge struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	PoolDrawn decimal.Decimal
}

// Active reports whether the event still accepts ledger operations.
func (e *Event) Active() bool {
	return e.Status == StatusActive
}

// Authorized reports whether the participant may be charged for expenses.
func (p *Participant) Authorized() bool {
	return p.Status == ParticipantActive || p.Status == ParticipantApproved
}
