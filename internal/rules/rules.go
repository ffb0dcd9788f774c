package rules

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
)

// Rules are the creator-defined limits of an event. A nil limit is unset.
type Rules struct {
	MinDeposit           *decimal.Decimal `json:"min_deposit,omitempty"`
	MaxDeposit           *decimal.Decimal `json:"max_deposit,omitempty"`
	DepositMarginPercent *decimal.Decimal `json:"deposit_margin_percent,omitempty"`

	MinExpense      *decimal.Decimal `json:"min_expense,omitempty"`
	MaxExpense      *decimal.Decimal `json:"max_expense,omitempty"`
	MaxSpendPerUser *decimal.Decimal `json:"max_spend_per_user,omitempty"`

	AllowedCategories  []string `json:"allowed_categories,omitempty"`
	BlockedCategories  []string `json:"blocked_categories,omitempty"`
	ApprovalCategories []string `json:"approval_categories,omitempty"`

	WarningThreshold      *decimal.Decimal `json:"warning_threshold,omitempty"`
	ApprovalThreshold     *decimal.Decimal `json:"approval_threshold,omitempty"`
	AutoApproveUnder      *decimal.Decimal `json:"auto_approve_under,omitempty"`
	AlwaysRequireApproval bool             `json:"always_require_approval,omitempty"`
	RequireJoinApproval   bool             `json:"require_join_approval,omitempty"`

	MaxDebtAllowed *decimal.Decimal `json:"max_debt_allowed,omitempty"`
}

// Violation names the rule an operation broke.
type Violation string

const (
	ViolationNone             Violation = ""
	ViolationBlockedCategory  Violation = "blocked_category"
	ViolationBelowMinimum     Violation = "below_minimum"
	ViolationAboveMaximum     Violation = "above_maximum"
	ViolationSpendLimit       Violation = "spend_limit"
	ViolationInsufficientPool Violation = "insufficient_pool"
	ViolationDepositBand      Violation = "deposit_outside_band"
)

// Approval trigger reasons, stored on approval requests.
const (
	TriggerAlways             = "always_require_approval"
	TriggerThreshold          = "approval_threshold"
	TriggerRestrictedCategory = "restricted_category"
	TriggerJoinApproval       = "join_approval"
)

// Result is the outcome of a rule check. RequiresApproval is computed even
// when Valid is false.
type Result struct {
	Valid            bool
	Err              error
	Violation        Violation
	RequiresApproval bool
	Trigger          string
	Warning          string
}

// Validate rejects limits that contradict each other or are negative.
func (r Rules) Validate() error {
	limits := map[string]*decimal.Decimal{
		"min_deposit":            r.MinDeposit,
		"max_deposit":            r.MaxDeposit,
		"deposit_margin_percent": r.DepositMarginPercent,
		"min_expense":            r.MinExpense,
		"max_expense":            r.MaxExpense,
		"max_spend_per_user":     r.MaxSpendPerUser,
		"warning_threshold":      r.WarningThreshold,
		"approval_threshold":     r.ApprovalThreshold,
		"auto_approve_under":     r.AutoApproveUnder,
		"max_debt_allowed":       r.MaxDebtAllowed,
	}

	for name, limit := range limits {
		if limit != nil && limit.IsNegative() {
			return apperr.Validation("%s must not be negative", name)
		}
	}

	if r.MinDeposit != nil && r.MaxDeposit != nil && r.MinDeposit.GreaterThan(*r.MaxDeposit) {
		return apperr.Validation("min_deposit is above max_deposit")
	}

	if r.MinExpense != nil && r.MaxExpense != nil && r.MinExpense.GreaterThan(*r.MaxExpense) {
		return apperr.Validation("min_expense is above max_expense")
	}

	return nil
}

func categoryIn(list []string, category string) bool {
	return slices.ContainsFunc(list, func(c string) bool {
		return strings.EqualFold(c, category)
	})
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
