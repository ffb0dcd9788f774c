package rules

import (
	"github.com/shopspring/decimal"
)

// Tier is a user's trust classification.
type Tier string

const (
	TierExcellent  Tier = "excellent"
	TierGood       Tier = "good"
	TierFair       Tier = "fair"
	TierPoor       Tier = "poor"
	TierRestricted Tier = "restricted"
)

// History is the behaviour a reliability score is derived from.
type History struct {
	ShortfallCount      int
	DebtAgeDays         int // summed over outstanding debts
	LateSettlementCount int
}

// Policy is what a tier does to a user's rules.
type Policy struct {
	Tier                   Tier
	ExpenseLimitMultiplier decimal.Decimal
	ForceApproval          bool
	MaxDebtCap             *decimal.Decimal
	CanCreateEvents        bool
	DepositMultiplier      decimal.Decimal
}

// Report bundles a score with its tier and policy.
type Report struct {
	Score   int
	History History
	Policy  Policy
}

// Score weighs shortfalls by 10, each day of outstanding debt by 1 and each
// late settlement by 5.
func Score(h History) int {
	return 10*h.ShortfallCount + h.DebtAgeDays + 5*h.LateSettlementCount
}

// TierFor maps a score to its tier.
func TierFor(score int) Tier {
	switch {
	case score <= 10:
		return TierExcellent
	case score <= 30:
		return TierGood
	case score <= 60:
		return TierFair
	case score <= 100:
		return TierPoor
	default:
		return TierRestricted
	}
}

// PolicyFor returns the policy attached to a tier.
func PolicyFor(t Tier) Policy {
	switch t {
	case TierExcellent:
		return Policy{
			Tier:                   t,
			ExpenseLimitMultiplier: decimal.NewFromInt(1),
			CanCreateEvents:        true,
			DepositMultiplier:      decimal.NewFromInt(1),
		}
	case TierGood:
		return Policy{
			Tier:                   t,
			ExpenseLimitMultiplier: decimal.NewFromInt(1),
			MaxDebtCap:             ptr(decimal.NewFromInt(500)),
			CanCreateEvents:        true,
			DepositMultiplier:      decimal.NewFromInt(1),
		}
	case TierFair:
		return Policy{
			Tier:                   t,
			ExpenseLimitMultiplier: decimal.RequireFromString("0.75"),
			MaxDebtCap:             ptr(decimal.NewFromInt(200)),
			CanCreateEvents:        true,
			DepositMultiplier:      decimal.RequireFromString("1.25"),
		}
	case TierPoor:
		return Policy{
			Tier:                   t,
			ExpenseLimitMultiplier: decimal.RequireFromString("0.5"),
			ForceApproval:          true,
			MaxDebtCap:             ptr(decimal.NewFromInt(50)),
			DepositMultiplier:      decimal.RequireFromString("1.5"),
		}
	default:
		return Policy{
			Tier:                   TierRestricted,
			ExpenseLimitMultiplier: decimal.Zero,
			ForceApproval:          true,
			MaxDebtCap:             ptr(decimal.Zero),
			DepositMultiplier:      decimal.NewFromInt(2),
		}
	}
}

// Assess scores h and resolves its policy.
func Assess(h History) Report {
	score := Score(h)

	return Report{
		Score:   score,
		History: h,
		Policy:  PolicyFor(TierFor(score)),
	}
}

// ApplyReliabilityAdjustments returns base tightened by p. No limit in the
// result is looser than in base.
func ApplyReliabilityAdjustments(base Rules, p Policy) Rules {
	adjusted := base

	adjusted.MaxExpense = scaleLimit(base.MaxExpense, p.ExpenseLimitMultiplier)
	adjusted.MaxSpendPerUser = scaleLimit(base.MaxSpendPerUser, p.ExpenseLimitMultiplier)

	if p.ForceApproval {
		adjusted.AlwaysRequireApproval = true
		adjusted.AutoApproveUnder = nil
	}

	if p.MaxDebtCap != nil {
		if base.MaxDebtAllowed == nil || p.MaxDebtCap.LessThan(*base.MaxDebtAllowed) {
			adjusted.MaxDebtAllowed = ptr(*p.MaxDebtCap)
		}
	}

	if base.MinDeposit != nil && p.DepositMultiplier.GreaterThan(decimal.NewFromInt(1)) {
		adjusted.MinDeposit = ptr(base.MinDeposit.Mul(p.DepositMultiplier).Round(2))
	}

	return adjusted
}

// scaleLimit multiplies an upper limit by m when that tightens it. A
// multiplier of zero closes an unset limit entirely.
func scaleLimit(limit *decimal.Decimal, m decimal.Decimal) *decimal.Decimal {
	one := decimal.NewFromInt(1)

	switch {
	case m.GreaterThanOrEqual(one):
		return limit
	case limit != nil:
		return ptr(limit.Mul(m).Round(2))
	case m.IsZero():
		return ptr(decimal.Zero)
	default:
		return nil
	}
}
