package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
)

var hundred = decimal.NewFromInt(100)

// ExpenseInput is what the engine needs to know about a proposed expense.
type ExpenseInput struct {
	Amount        decimal.Decimal
	Category      string
	PayerSpent    decimal.Decimal // payer's cumulative spend in the event so far
	PoolAvailable decimal.Decimal // total_pool - total_spent
}

// DepositInput describes a proposed deposit or join.
type DepositInput struct {
	Amount       decimal.Decimal
	GroupAverage decimal.Decimal // zero when nobody has deposited yet
}

// ValidateExpense checks, in order: blocked category, transaction bounds,
// cumulative spend, pool availability. Approval flags are then derived; an
// amount under AutoApproveUnder never requires approval, even when another
// trigger matched.
func ValidateExpense(r Rules, in ExpenseInput) Result {
	res := approvalFlags(r, in)

	switch {
	case categoryIn(r.BlockedCategories, in.Category):
		return res.fail(ViolationBlockedCategory, apperr.Validation("category %q is blocked for this event", in.Category))
	case len(r.AllowedCategories) > 0 && !categoryIn(r.AllowedCategories, in.Category):
		return res.fail(ViolationBlockedCategory, apperr.Validation("category %q is not allowed for this event", in.Category))
	case r.MinExpense != nil && in.Amount.LessThan(*r.MinExpense):
		return res.fail(ViolationBelowMinimum, apperr.Validation("expense %s is below the minimum of %s",
			in.Amount.StringFixed(2), r.MinExpense.StringFixed(2)))
	case r.MaxExpense != nil && in.Amount.GreaterThan(*r.MaxExpense):
		return res.fail(ViolationAboveMaximum, apperr.Validation("expense %s is above the maximum of %s",
			in.Amount.StringFixed(2), r.MaxExpense.StringFixed(2)))
	case r.MaxSpendPerUser != nil && in.PayerSpent.Add(in.Amount).GreaterThan(*r.MaxSpendPerUser):
		return res.fail(ViolationSpendLimit, apperr.Validation("expense would take spending to %s, limit is %s",
			in.PayerSpent.Add(in.Amount).StringFixed(2), r.MaxSpendPerUser.StringFixed(2)))
	case in.Amount.GreaterThan(in.PoolAvailable):
		return res.fail(ViolationInsufficientPool, apperr.InsufficientPool("expense %s exceeds available pool funds %s",
			in.Amount.StringFixed(2), in.PoolAvailable.StringFixed(2)))
	}

	res.Valid = true

	return res
}

func approvalFlags(r Rules, in ExpenseInput) Result {
	var res Result

	switch {
	case r.AlwaysRequireApproval:
		res.RequiresApproval, res.Trigger = true, TriggerAlways
	case r.ApprovalThreshold != nil && in.Amount.GreaterThanOrEqual(*r.ApprovalThreshold):
		res.RequiresApproval, res.Trigger = true, TriggerThreshold
	case categoryIn(r.ApprovalCategories, in.Category):
		res.RequiresApproval, res.Trigger = true, TriggerRestrictedCategory
	}

	if r.AutoApproveUnder != nil && in.Amount.LessThan(*r.AutoApproveUnder) {
		res.RequiresApproval, res.Trigger = false, ""
	}

	if r.WarningThreshold != nil && in.Amount.GreaterThanOrEqual(*r.WarningThreshold) {
		res.Warning = fmt.Sprintf("expense %s is at or above the warning threshold of %s",
			in.Amount.StringFixed(2), r.WarningThreshold.StringFixed(2))
	}

	return res
}

func (res Result) fail(v Violation, err error) Result {
	res.Valid = false
	res.Violation = v
	res.Err = err

	return res
}

// ValidateDeposit checks the deposit bounds and, when a margin band is set
// and others have already deposited, that the amount stays within the band
// around the group average.
func ValidateDeposit(r Rules, in DepositInput) Result {
	var res Result

	switch {
	case !in.Amount.IsPositive():
		return res.fail(ViolationBelowMinimum, apperr.Validation("deposit must be positive"))
	case r.MinDeposit != nil && in.Amount.LessThan(*r.MinDeposit):
		return res.fail(ViolationBelowMinimum, apperr.Validation("deposit %s is below the minimum of %s",
			in.Amount.StringFixed(2), r.MinDeposit.StringFixed(2)))
	case r.MaxDeposit != nil && in.Amount.GreaterThan(*r.MaxDeposit):
		return res.fail(ViolationAboveMaximum, apperr.Validation("deposit %s is above the maximum of %s",
			in.Amount.StringFixed(2), r.MaxDeposit.StringFixed(2)))
	}

	if r.DepositMarginPercent != nil && in.GroupAverage.IsPositive() {
		band := in.GroupAverage.Mul(*r.DepositMarginPercent).Div(hundred)
		low, high := in.GroupAverage.Sub(band), in.GroupAverage.Add(band)

		if in.Amount.LessThan(low) || in.Amount.GreaterThan(high) {
			return res.fail(ViolationDepositBand, apperr.Validation("deposit %s is outside the allowed range %s-%s",
				in.Amount.StringFixed(2), low.StringFixed(2), high.StringFixed(2)))
		}
	}

	res.Valid = true

	return res
}

// ValidateJoin checks a pledged deposit like ValidateDeposit and flags the
// join for creator approval when the event requires it.
func ValidateJoin(r Rules, in DepositInput) Result {
	res := ValidateDeposit(r, in)

	if r.RequireJoinApproval {
		res.RequiresApproval, res.Trigger = true, TriggerJoinApproval
	}

	return res
}
