package split

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/money"
)

// Validate rejects negative amounts, duplicate users, a sum that misses
// total by more than money.Tolerance, and users missing from authorized.
// A nil authorized set skips the membership check.
func Validate(total decimal.Decimal, shares []Share, authorized map[uuid.UUID]bool) error {
	if len(shares) == 0 {
		return apperr.Validation("expense has no splits")
	}

	seen := make(map[uuid.UUID]struct{}, len(shares))
	sum := decimal.Zero

	for _, s := range shares {
		if s.Amount.IsNegative() {
			return apperr.Validation("split for user %s is negative (%s)", s.UserID, s.Amount.StringFixed(2))
		}

		if _, dup := seen[s.UserID]; dup {
			return apperr.Validation("user %s appears in more than one split", s.UserID)
		}

		seen[s.UserID] = struct{}{}

		if authorized != nil && !authorized[s.UserID] {
			return apperr.Validation("user %s is not an active participant of this event", s.UserID)
		}

		sum = sum.Add(s.Amount)
	}

	if !money.Equal(sum, total) {
		return apperr.Validation("splits add up to %s, expected %s", sum.StringFixed(2), total.StringFixed(2))
	}

	return nil
}
