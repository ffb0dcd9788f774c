package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/audit"
	"github.com/MrJamesThe3rd/kitty/internal/split"
)

type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalCancelled    ApprovalStatus = "cancelled"
)

// Status is the expense's effect on the pool.
type Status string

const (
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusDeducted         Status = "deducted"
	StatusNotApplied       Status = "not_applied"
	StatusReverted         Status = "reverted"
)

type SplitStatus string

const (
	SplitPending  SplitStatus = "pending"
	SplitCharged  SplitStatus = "charged"
	SplitReverted SplitStatus = "reverted"
)

// Expense is a spend against an event's pool. Amount never changes after
// creation.
type Expense struct {
	ID             uuid.UUID
	EventID        uuid.UUID
	PayerID        uuid.UUID
	Amount         decimal.Decimal
	Description    string
	Category       string
	SplitType      split.Strategy
	Splits         []Split
	ApprovalStatus ApprovalStatus
	Status         Status
	LeafHash       audit.Hash
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Split is one participant's share of an expense and how it was funded.
type Split struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Status        SplitStatus
	PoolDrawn     decimal.Decimal
	WalletCovered decimal.Decimal
	DebtCovered   decimal.Decimal
}

type ApprovalRequest struct {
	ID            uuid.UUID
	ExpenseID     uuid.UUID
	RequestedBy   uuid.UUID
	Status        ApprovalStatus
	TriggerReason string
	ResolvedBy    *uuid.UUID
	ResolvedAt    *time.Time
	CreatedAt     time.Time
}

// AuditRecord is an immutable entry in an expense's history.
type AuditRecord struct {
	ID        uuid.UUID
	ExpenseID uuid.UUID
	ActorID   uuid.UUID
	Action    Action
	Reason    string
	CreatedAt time.Time
}

// Leaf projects the expense onto its audit tree leaf.
func (e *Expense) Leaf() audit.Leaf {
	return audit.Leaf{
		ID:          e.ID,
		EventID:     e.EventID,
		PayerID:     e.PayerID,
		Amount:      e.Amount,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

// Deducted reports whether the expense currently weighs on the pool.
func (e *Expense) Deducted() bool {
	return e.Status == StatusDeducted
}
