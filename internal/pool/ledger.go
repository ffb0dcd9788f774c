package pool

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/money"
)

// Available returns the unspent part of the pool.
func Available(ev *Event) decimal.Decimal {
	return ev.TotalPool.Sub(ev.TotalSpent)
}

// ValidateOperation fails with ErrInsufficientPool when amount exceeds
// what is left in the pool.
func ValidateOperation(ev *Event, amount decimal.Decimal) error {
	if available := Available(ev); amount.GreaterThan(available) {
		return apperr.InsufficientPool("requested %s but only %s is left in the pool",
			amount.StringFixed(2), available.StringFixed(2))
	}

	return nil
}

// ConfirmDeposit credits amount to p and to the event's pool. An approved
// participant becomes active on their first deposit.
func ConfirmDeposit(ev *Event, p *Participant, amount decimal.Decimal) error {
	if p == nil {
		return apperr.NotFound("participant is not part of event %s", ev.ID)
	}

	if !amount.IsPositive() {
		return apperr.Validation("deposit must be positive, got %s", amount.StringFixed(2))
	}

	p.DepositAmount = p.DepositAmount.Add(amount)
	p.Balance = p.Balance.Add(amount)
	p.AvailableContribution = p.AvailableContribution.Add(amount)

	if p.Status == ParticipantApproved {
		p.Status = ParticipantActive
	}

	ev.TotalPool = ev.TotalPool.Add(amount)

	return nil
}

// WithdrawDeposit takes back up to amount of p's liquid contribution out
// of the pool and returns how much was withdrawn.
func WithdrawDeposit(ev *Event, p *Participant, amount decimal.Decimal) decimal.Decimal {
	out := money.Min(amount, money.Min(money.Max(p.AvailableContribution, decimal.Zero), Available(ev)))
	if !out.IsPositive() {
		return decimal.Zero
	}

	p.DepositAmount = p.DepositAmount.Sub(out)
	p.Balance = p.Balance.Sub(out)
	p.AvailableContribution = p.AvailableContribution.Sub(out)
	ev.TotalPool = ev.TotalPool.Sub(out)

	return out
}

// RefundSurplus pays amount of the unspent pool back out to p when the
// event closes. Unlike WithdrawDeposit the full amount is taken, so p's
// balance afterwards is what they are still owed by other participants.
func RefundSurplus(ev *Event, p *Participant, amount decimal.Decimal) error {
	if p == nil {
		return apperr.NotFound("participant is not part of event %s", ev.ID)
	}

	if !amount.IsPositive() {
		return apperr.Validation("refund must be positive, got %s", amount.StringFixed(2))
	}

	if err := ValidateOperation(ev, amount); err != nil {
		return err
	}

	p.DepositAmount = p.DepositAmount.Sub(amount)
	p.Balance = p.Balance.Sub(amount)
	p.AvailableContribution = money.Max(p.AvailableContribution.Sub(amount), decimal.Zero)
	ev.TotalPool = ev.TotalPool.Sub(amount)

	return nil
}

// DeductExpense charges total against the pool and each charge against its
// participant. Every check runs before anything is mutated, so a failure
// leaves ev and participants untouched. The returned charges carry the
// PoolDrawn amounts needed by RevertExpense.
func DeductExpense(ev *Event, participants map[uuid.UUID]*Participant, total decimal.Decimal, charges []Charge) ([]Charge, error) {
	if err := checkCharges(ev, participants, total, charges); err != nil {
		return nil, err
	}

	if err := ValidateOperation(ev, total); err != nil {
		return nil, err
	}

	applied := make([]Charge, len(charges))

	for i, c := range charges {
		p := participants[c.UserID]

		drawn := money.Min(money.Max(p.AvailableContribution, decimal.Zero), c.Amount)

		p.TotalSpent = p.TotalSpent.Add(c.Amount)
		p.Balance = p.Balance.Sub(c.Amount)
		p.AvailableContribution = p.AvailableContribution.Sub(drawn)

		applied[i] = Charge{UserID: c.UserID, Amount: c.Amount, PoolDrawn: drawn}
	}

	ev.TotalSpent = ev.TotalSpent.Add(total)

	return applied, nil
}

// RevertExpense is the inverse of DeductExpense for the charges it returned.
func RevertExpense(ev *Event, participants map[uuid.UUID]*Participant, total decimal.Decimal, charges []Charge) error {
	if err := checkCharges(ev, participants, total, charges); err != nil {
		return err
	}

	if total.GreaterThan(ev.TotalSpent) {
		return apperr.StateConflict("cannot revert %s, event has only spent %s",
			total.StringFixed(2), ev.TotalSpent.StringFixed(2))
	}

	for _, c := range charges {
		p := participants[c.UserID]

		p.TotalSpent = p.TotalSpent.Sub(c.Amount)
		p.Balance = p.Balance.Add(c.Amount)
		p.AvailableContribution = p.AvailableContribution.Add(c.PoolDrawn)
	}

	ev.TotalSpent = ev.TotalSpent.Sub(total)

	return nil
}

func checkCharges(ev *Event, participants map[uuid.UUID]*Participant, total decimal.Decimal, charges []Charge) error {
	if !total.IsPositive() {
		return apperr.Validation("amount must be positive, got %s", total.StringFixed(2))
	}

	sum := decimal.Zero

	for _, c := range charges {
		if _, ok := participants[c.UserID]; !ok {
			return apperr.NotFound("user %s is not a participant of event %s", c.UserID, ev.ID)
		}

		sum = sum.Add(c.Amount)
	}

	if !money.Equal(sum, total) {
		return apperr.Validation("charges add up to %s, expected %s", sum.StringFixed(2), total.StringFixed(2))
	}

	return nil
}
