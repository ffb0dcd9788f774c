package debt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/debt"
)

type paymentResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type debtResponse struct {
	ID              uuid.UUID         `json:"id"`
	EventID         uuid.UUID         `json:"event_id"`
	ExpenseID       uuid.UUID         `json:"expense_id"`
	AmountOriginal  decimal.Decimal   `json:"amount_original"`
	AmountRemaining decimal.Decimal   `json:"amount_remaining"`
	AmountPaid      decimal.Decimal   `json:"amount_paid"`
	Status          debt.Status       `json:"status"`
	AgeDays         int               `json:"age_days"`
	DueAt           time.Time         `json:"due_at"`
	CreatedAt       time.Time         `json:"created_at"`
	SettledAt       *time.Time        `json:"settled_at,omitempty"`
	ForgivenBy      *uuid.UUID        `json:"forgiven_by,omitempty"`
	Payments        []paymentResponse `json:"payments,omitempty"`
}

func toResponse(d *debt.Debt, now time.Time) debtResponse {
	resp := debtResponse{
		ID:              d.ID,
		EventID:         d.EventID,
		ExpenseID:       d.ExpenseID,
		AmountOriginal:  d.AmountOriginal,
		AmountRemaining: d.AmountRemaining,
		AmountPaid:      d.AmountPaid,
		Status:          d.Status,
		AgeDays:         d.AgeDays(now),
		DueAt:           d.DueAt,
		CreatedAt:       d.CreatedAt,
		SettledAt:       d.SettledAt,
		ForgivenBy:      d.ForgivenBy,
	}

	for _, p := range d.Payments {
		resp.Payments = append(resp.Payments, paymentResponse{Amount: p.Amount, Reference: p.Reference, CreatedAt: p.CreatedAt})
	}

	return resp
}

func toResponseList(ds []*debt.Debt, now time.Time) []debtResponse {
	out := make([]debtResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toResponse(d, now))
	}

	return out
}
