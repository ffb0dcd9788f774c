// Package payment holds the confirmations the ledger consumes from the
// payment layer. The purpose of a payment is resolved once, here, into a
// closed set of variants.
package payment

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
)

// Purpose is what a confirmed payment pays for. The variants below are
// the only implementations.
type Purpose interface {
	isPurpose()
	Kind() Kind
}

type Kind string

const (
	KindDeposit        Kind = "deposit"
	KindDebtSettlement Kind = "debt_settlement"
	KindWalletTopUp    Kind = "wallet_top_up"
	KindExpenseShare   Kind = "expense_share"
)

// Deposit funds the payer's share of an event pool.
type Deposit struct {
	EventID uuid.UUID
}

// DebtSettlement pays down a debt.
type DebtSettlement struct {
	DebtID uuid.UUID
}

// WalletTopUp credits the payer's wallet.
type WalletTopUp struct{}

// ExpenseShare pays the payer's share of an expense directly. It is
// credited to the event pool like a deposit.
type ExpenseShare struct {
	EventID   uuid.UUID
	ExpenseID uuid.UUID
}

func (Deposit) isPurpose()        {}
func (DebtSettlement) isPurpose() {}
func (WalletTopUp) isPurpose()    {}
func (ExpenseShare) isPurpose()   {}

func (Deposit) Kind() Kind        { return KindDeposit }
func (DebtSettlement) Kind() Kind { return KindDebtSettlement }
func (WalletTopUp) Kind() Kind    { return KindWalletTopUp }
func (ExpenseShare) Kind() Kind   { return KindExpenseShare }

// Confirmation is a payment the gateway layer has already verified.
type Confirmation struct {
	PaymentID string
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Purpose   Purpose
}

// Failure is a payment the gateway reported as failed.
type Failure struct {
	PaymentID string
	UserID    uuid.UUID
	Reason    string
	Purpose   Purpose
}

// Raw is the loosely typed shape payments arrive in.
type Raw struct {
	PaymentID string          `json:"payment_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Purpose   Kind            `json:"purpose"`
	EventID   *uuid.UUID      `json:"event_id,omitempty"`
	ExpenseID *uuid.UUID      `json:"expense_id,omitempty"`
	DebtID    *uuid.UUID      `json:"debt_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Decode reads a Raw from JSON.
func Decode(data []byte) (Raw, error) {
	var r Raw
	if err := json.Unmarshal(data, &r); err != nil {
		return Raw{}, apperr.Validation("decoding payment: %v", err)
	}

	return r, nil
}

// ParseConfirmation validates r and resolves its purpose.
func ParseConfirmation(r Raw) (Confirmation, error) {
	if r.PaymentID == "" {
		return Confirmation{}, apperr.Validation("payment id is required")
	}

	if r.UserID == uuid.Nil {
		return Confirmation{}, apperr.Validation("payment %s has no user", r.PaymentID)
	}

	if !r.Amount.IsPositive() {
		return Confirmation{}, apperr.Validation("payment %s amount must be positive", r.PaymentID)
	}

	purpose, err := parsePurpose(r)
	if err != nil {
		return Confirmation{}, err
	}

	return Confirmation{
		PaymentID: r.PaymentID,
		UserID:    r.UserID,
		Amount:    r.Amount,
		Purpose:   purpose,
	}, nil
}

// ParseFailure validates r as a failed payment.
func ParseFailure(r Raw) (Failure, error) {
	if r.PaymentID == "" {
		return Failure{}, apperr.Validation("payment id is required")
	}

	purpose, err := parsePurpose(r)
	if err != nil {
		return Failure{}, err
	}

	return Failure{
		PaymentID: r.PaymentID,
		UserID:    r.UserID,
		Reason:    r.Reason,
		Purpose:   purpose,
	}, nil
}

func parsePurpose(r Raw) (Purpose, error) {
	switch r.Purpose {
	case KindDeposit:
		if r.EventID == nil {
			return nil, missing(r, "event_id")
		}

		return Deposit{EventID: *r.EventID}, nil
	case KindDebtSettlement:
		if r.DebtID == nil {
			return nil, missing(r, "debt_id")
		}

		return DebtSettlement{DebtID: *r.DebtID}, nil
	case KindWalletTopUp:
		return WalletTopUp{}, nil
	case KindExpenseShare:
		if r.EventID == nil {
			return nil, missing(r, "event_id")
		}

		if r.ExpenseID == nil {
			return nil, missing(r, "expense_id")
		}

		return ExpenseShare{EventID: *r.EventID, ExpenseID: *r.ExpenseID}, nil
	default:
		return nil, apperr.Validation("payment %s has unknown purpose %q", r.PaymentID, r.Purpose)
	}
}

func missing(r Raw, field string) error {
	return apperr.Validation("%s payment %s is missing %s", r.Purpose, r.PaymentID, field)
}

func (c Confirmation) String() string {
	return fmt.Sprintf("%s payment %s of %s by %s", c.Purpose.Kind(), c.PaymentID, c.Amount.StringFixed(2), c.UserID)
}
