package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is a user's personal balance, independent of any event.
type Wallet struct {
	UserID    uuid.UUID
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

type Reason string

const (
	ReasonTopUp             Reason = "top_up"
	ReasonRefund            Reason = "refund"
	ReasonShortfallCoverage Reason = "shortfall_coverage"
	ReasonDebtPayment       Reason = "debt_payment"
	ReasonSettlement        Reason = "settlement"
)

// Transaction is one entry of the append-only wallet log.
type Transaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Kind         Kind
	Reason       Reason
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Reference    string
	CreatedAt    time.Time
}

type UsageKind string

const (
	UsageShortfallCoverage UsageKind = "shortfall_coverage"
	UsagePartialCoverage   UsageKind = "partial_coverage"
)

// Usage records one shortfall a user ran into. Usages feed the
// reliability score.
type Usage struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EventID   uuid.UUID
	ExpenseID uuid.UUID
	Kind      UsageKind
	Amount    decimal.Decimal
	CreatedAt time.Time
}
