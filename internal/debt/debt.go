package debt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOutstanding   Status = "outstanding"
	StatusPartiallyPaid Status = "partially_paid"
	StatusSettled       Status = "settled"
	StatusForgiven      Status = "forgiven"
)

// Debt is what a participant still owes after their wallet could not cover
// a shortfall. Debts are never deleted.
type Debt struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	EventID         uuid.UUID
	ExpenseID       uuid.UUID
	AmountOriginal  decimal.Decimal
	AmountRemaining decimal.Decimal
	AmountPaid      decimal.Decimal
	Status          Status
	DueAt           time.Time
	CreatedAt       time.Time
	SettledAt       *time.Time
	ForgivenBy      *uuid.UUID
	Payments        []Payment
}

// Payment is one installment applied to a debt.
type Payment struct {
	ID        uuid.UUID
	DebtID    uuid.UUID
	Amount    decimal.Decimal
	Reference string
	CreatedAt time.Time
}

// Application records how much of a credit went to which debt.
type Application struct {
	DebtID  uuid.UUID
	EventID uuid.UUID
	Amount  decimal.Decimal
	Settled bool
}

// Open reports whether the debt still has money outstanding.
func (d *Debt) Open() bool {
	return d.Status == StatusOutstanding || d.Status == StatusPartiallyPaid
}

// AgeDays is the number of whole days since the debt was created.
func (d *Debt) AgeDays(now time.Time) int {
	if now.Before(d.CreatedAt) {
		return 0
	}

	return int(now.Sub(d.CreatedAt).Hours() / 24)
}

// Late reports whether the debt was settled after its due date.
func (d *Debt) Late() bool {
	return d.Status == StatusSettled && d.SettledAt != nil && d.SettledAt.After(d.DueAt)
}
