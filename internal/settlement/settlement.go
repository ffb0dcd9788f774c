// Package settlement turns final balances into a short list of transfers.
package settlement

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/money"
)

// Pool stands in for the event's pool when it holds a surplus at close.
// Transfers from Pool are refunds.
var Pool = uuid.Nil

// Balance is a signed final position: positive is owed money, negative
// owes money.
type Balance struct {
	UserID uuid.UUID       `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type Transfer struct {
	From   uuid.UUID       `json:"from"`
	To     uuid.UUID       `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Record is a transfer persisted when an event closes, with how much of it
// has been paid since.
type Record struct {
	EventID  uuid.UUID
	Position int
	Transfer
	Paid decimal.Decimal
}

// Remaining is what the debtor still owes on the record.
func (r *Record) Remaining() decimal.Decimal {
	return money.Max(r.Amount.Sub(r.Paid), decimal.Zero)
}

// Records numbers transfers in plan order. Transfers from Pool are paid
// at close and start out settled.
func Records(eventID uuid.UUID, transfers []Transfer) []*Record {
	out := make([]*Record, len(transfers))

	for i, t := range transfers {
		paid := decimal.Zero
		if t.From == Pool {
			paid = t.Amount
		}

		out[i] = &Record{EventID: eventID, Position: i, Transfer: t, Paid: paid}
	}

	return out
}

// Minimize greedily matches the largest debtor with the largest creditor
// until both sides are exhausted. Equal amounts are ordered by user id so
// the same balances always give the same plan. Balances must net to zero.
func Minimize(balances []Balance) ([]Transfer, error) {
	var creditors, debtors []Balance

	net := decimal.Zero

	for _, b := range balances {
		amount := money.Round(b.Amount)
		net = net.Add(amount)

		switch {
		case amount.GreaterThan(money.Tolerance):
			creditors = append(creditors, Balance{UserID: b.UserID, Amount: amount})
		case amount.LessThan(money.Tolerance.Neg()):
			debtors = append(debtors, Balance{UserID: b.UserID, Amount: amount.Neg()})
		}
	}

	if !money.IsZero(net) {
		return nil, apperr.Validation("balances net to %s, expected zero", net.StringFixed(2))
	}

	sortDescending(creditors)
	sortDescending(debtors)

	var transfers []Transfer

	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := money.Min(debtors[i].Amount, creditors[j].Amount)

		transfers = append(transfers, Transfer{
			From:   debtors[i].UserID,
			To:     creditors[j].UserID,
			Amount: amount,
		})

		debtors[i].Amount = debtors[i].Amount.Sub(amount)
		creditors[j].Amount = creditors[j].Amount.Sub(amount)

		if debtors[i].Amount.LessThan(money.Tolerance) {
			i++
		}

		if creditors[j].Amount.LessThan(money.Tolerance) {
			j++
		}
	}

	return transfers, nil
}

// Apply returns balances after transfers have been paid.
func Apply(balances []Balance, transfers []Transfer) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(balances))
	for _, b := range balances {
		out[b.UserID] = out[b.UserID].Add(b.Amount)
	}

	for _, t := range transfers {
		out[t.From] = out[t.From].Add(t.Amount)
		out[t.To] = out[t.To].Sub(t.Amount)
	}

	return out
}

func sortDescending(bs []Balance) {
	slices.SortFunc(bs, func(a, b Balance) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}

		return bytes.Compare(a.UserID[:], b.UserID[:])
	})
}
