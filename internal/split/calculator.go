package split

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/money"
)

var hundred = decimal.NewFromInt(100)

// Calculate computes the shares for req. The result always sums to
// req.Total within money.Tolerance, and exactly for every strategy except
// exact, where the caller's amounts are kept as given.
func Calculate(req Request) ([]Share, error) {
	if !req.Total.IsPositive() {
		return nil, apperr.Validation("total must be positive, got %s", req.Total)
	}

	if len(req.Entries) == 0 {
		return nil, apperr.Validation("no participants to split between")
	}

	total := money.Round(req.Total)

	var (
		shares []Share
		err    error
	)

	switch req.Strategy {
	case StrategyEqual:
		shares = equal(total, userIDs(req.Entries))
	case StrategyWeighted:
		shares, err = weighted(total, req.Entries)
	case StrategyPercentage:
		shares, err = percentage(total, req.Entries)
	case StrategyExact:
		shares, err = exact(total, req.Entries)
	case StrategyMargin:
		shares, err = margin(total, req.Entries, req.DefaultMargin)
	case StrategyMixed:
		shares, err = mixed(total, req.Entries)
	default:
		return nil, apperr.Validation("unknown split strategy %q", req.Strategy)
	}

	if err != nil {
		return nil, err
	}

	if err := Validate(total, shares, nil); err != nil {
		return nil, err
	}

	return shares, nil
}

func equal(total decimal.Decimal, users []uuid.UUID) []Share {
	n := decimal.NewFromInt(int64(len(users)))
	base := money.Round(total.Div(n))

	amounts := make([]decimal.Decimal, len(users))
	for i := range amounts {
		amounts[i] = base
	}

	return absorb(total, users, amounts)
}

func weighted(total decimal.Decimal, entries []Entry) ([]Share, error) {
	weights := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		if !e.Weight.IsPositive() {
			return nil, apperr.Validation("weight for user %s must be positive", e.UserID)
		}

		weights[i] = e.Weight
	}

	return proportional(total, userIDs(entries), weights)
}

func percentage(total decimal.Decimal, entries []Entry) ([]Share, error) {
	sum := decimal.Zero

	amounts := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		if e.Percentage.IsNegative() {
			return nil, apperr.Validation("percentage for user %s is negative", e.UserID)
		}

		sum = sum.Add(e.Percentage)
		amounts[i] = money.Round(total.Mul(e.Percentage).Div(hundred))
	}

	if !money.Equal(sum, hundred) {
		return nil, apperr.Validation("percentages must add up to 100, got %s", sum)
	}

	return absorb(total, userIDs(entries), amounts), nil
}

func exact(total decimal.Decimal, entries []Entry) ([]Share, error) {
	shares := make([]Share, len(entries))
	sum := decimal.Zero

	for i, e := range entries {
		amount := money.Round(e.Amount)
		sum = sum.Add(amount)
		shares[i] = Share{UserID: e.UserID, Amount: amount}
	}

	if !money.Equal(sum, total) {
		return nil, apperr.Validation("split amounts (%s) don't add up to total (%s)", sum.StringFixed(2), total.StringFixed(2))
	}

	return shares, nil
}

func margin(total decimal.Decimal, entries []Entry, fallback Margin) ([]Share, error) {
	base := total.Div(decimal.NewFromInt(int64(len(entries))))

	targets := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		m := fallback
		if e.Margin != nil {
			m = *e.Margin
		}

		var extra decimal.Decimal

		switch m.Mode {
		case MarginFixed:
			extra = m.Value
		case MarginPercentage:
			extra = base.Mul(m.Value).Div(hundred)
		case "":
			extra = decimal.Zero
		default:
			return nil, apperr.Validation("unknown margin mode %q", m.Mode)
		}

		targets[i] = base.Add(extra)
		if !targets[i].IsPositive() {
			return nil, apperr.Validation("margin for user %s leaves a non-positive share", e.UserID)
		}
	}

	return proportional(total, userIDs(entries), targets)
}

func mixed(total decimal.Decimal, entries []Entry) ([]Share, error) {
	amounts := make([]decimal.Decimal, len(entries))
	allocated := decimal.Zero

	var equalIdx []int

	for i, e := range entries {
		switch e.Kind {
		case KindExact:
			if e.Amount.IsNegative() {
				return nil, apperr.Validation("exact amount for user %s is negative", e.UserID)
			}

			amounts[i] = money.Round(e.Amount)
		case KindPercentage:
			if e.Percentage.IsNegative() {
				return nil, apperr.Validation("percentage for user %s is negative", e.UserID)
			}

			amounts[i] = money.Round(total.Mul(e.Percentage).Div(hundred))
		case KindEqual:
			equalIdx = append(equalIdx, i)
			continue
		default:
			return nil, apperr.Validation("unknown mixed split kind %q for user %s", e.Kind, e.UserID)
		}

		allocated = allocated.Add(amounts[i])
	}

	if allocated.Sub(total).GreaterThan(money.Tolerance) {
		return nil, apperr.Validation("exact and percentage allocations (%s) exceed total (%s)",
			allocated.StringFixed(2), total.StringFixed(2))
	}

	remainder := total.Sub(allocated)

	if len(equalIdx) == 0 {
		if !money.IsZero(remainder) {
			return nil, apperr.Validation("allocations (%s) don't cover total (%s)",
				allocated.StringFixed(2), total.StringFixed(2))
		}

		return absorb(total, userIDs(entries), amounts), nil
	}

	each := money.Round(remainder.Div(decimal.NewFromInt(int64(len(equalIdx)))))
	for _, i := range equalIdx {
		amounts[i] = each
	}

	// The last equal entry takes whatever rounding left over.
	last := equalIdx[len(equalIdx)-1]
	amounts[last] = decimal.Zero
	amounts[last] = total.Sub(money.Sum(amounts...))
	cover(amounts, equalIdx)

	return toShares(userIDs(entries), amounts), nil
}

// proportional divides total by weight; the last user absorbs the remainder.
func proportional(total decimal.Decimal, users []uuid.UUID, weights []decimal.Decimal) ([]Share, error) {
	sum := money.Sum(weights...)
	if !sum.IsPositive() {
		return nil, apperr.Validation("weights must add up to a positive number")
	}

	amounts := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		amounts[i] = money.Round(total.Mul(w).Div(sum))
	}

	return absorb(total, users, amounts), nil
}

// absorb replaces the last amount with whatever makes the sum exactly total.
func absorb(total decimal.Decimal, users []uuid.UUID, amounts []decimal.Decimal) []Share {
	last := len(amounts) - 1
	amounts[last] = total.Sub(money.Sum(amounts[:last]...))

	idx := make([]int, len(amounts))
	for i := range idx {
		idx[i] = i
	}

	cover(amounts, idx)

	return toShares(users, amounts)
}

// cover zeroes a negative last amount among idx and takes the deficit from
// the amounts before it, nearest first. Rounding a tiny total up for every
// user is the only way the last amount goes negative.
func cover(amounts []decimal.Decimal, idx []int) {
	last := idx[len(idx)-1]

	deficit := amounts[last].Neg()
	if !deficit.IsPositive() {
		return
	}

	amounts[last] = decimal.Zero

	for j := len(idx) - 2; j >= 0 && deficit.IsPositive(); j-- {
		take := money.Min(amounts[idx[j]], deficit)
		amounts[idx[j]] = amounts[idx[j]].Sub(take)
		deficit = deficit.Sub(take)
	}
}

func toShares(users []uuid.UUID, amounts []decimal.Decimal) []Share {
	shares := make([]Share, len(users))
	for i, u := range users {
		shares[i] = Share{UserID: u, Amount: amounts[i]}
	}

	return shares
}

func userIDs(entries []Entry) []uuid.UUID {
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}

	return ids
}
