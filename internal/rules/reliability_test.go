package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/kitty/internal/rules"
)

func TestScoreAndTier(t *testing.T) {
	tests := []struct {
		name      string
		history   rules.History
		wantScore int
		wantTier  rules.Tier
	}{
		{name: "Clean", history: rules.History{}, wantScore: 0, wantTier: rules.TierExcellent},
		{name: "OneShortfall", history: rules.History{ShortfallCount: 1}, wantScore: 10, wantTier: rules.TierExcellent},
		{name: "Good", history: rules.History{ShortfallCount: 1, DebtAgeDays: 5, LateSettlementCount: 1}, wantScore: 20, wantTier: rules.TierGood},
		{name: "Fair", history: rules.History{ShortfallCount: 3, DebtAgeDays: 30}, wantScore: 60, wantTier: rules.TierFair},
		{name: "Poor", history: rules.History{ShortfallCount: 5, LateSettlementCount: 10}, wantScore: 100, wantTier: rules.TierPoor},
		{name: "Restricted", history: rules.History{DebtAgeDays: 101}, wantScore: 101, wantTier: rules.TierRestricted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := rules.Assess(tt.history)

			assert.Equal(t, tt.wantScore, report.Score)
			assert.Equal(t, tt.wantTier, report.Policy.Tier)
		})
	}
}

func TestApplyReliabilityAdjustments_Restricted(t *testing.T) {
	base := rules.Rules{
		MaxExpense:       ptr("500"),
		AutoApproveUnder: ptr("1000"),
		MaxDebtAllowed:   ptr("300"),
		MinDeposit:       ptr("20"),
	}

	policy := rules.PolicyFor(rules.TierRestricted)
	require.True(t, policy.ForceApproval)
	require.True(t, policy.ExpenseLimitMultiplier.IsZero())

	adjusted := rules.ApplyReliabilityAdjustments(base, policy)

	assert.True(t, adjusted.AlwaysRequireApproval)
	assert.Nil(t, adjusted.AutoApproveUnder)
	require.NotNil(t, adjusted.MaxExpense)
	assert.True(t, adjusted.MaxExpense.IsZero())
	assert.True(t, adjusted.MaxDebtAllowed.IsZero())
	assert.True(t, adjusted.MinDeposit.Equal(dec("40")))

	res := rules.ValidateExpense(adjusted, rules.ExpenseInput{Amount: dec("1"), PoolAvailable: dec("100")})
	assert.True(t, res.RequiresApproval)
	assert.False(t, res.Valid)
	assert.Equal(t, rules.ViolationAboveMaximum, res.Violation)
}

func TestApplyReliabilityAdjustments_RestrictedWithoutEventLimits(t *testing.T) {
	adjusted := rules.ApplyReliabilityAdjustments(rules.Rules{}, rules.PolicyFor(rules.TierRestricted))

	require.NotNil(t, adjusted.MaxExpense)
	assert.True(t, adjusted.MaxExpense.IsZero())
	assert.True(t, adjusted.AlwaysRequireApproval)
}

func TestApplyReliabilityAdjustments_NeverLoosens(t *testing.T) {
	base := rules.Rules{
		MaxExpense:     ptr("100"),
		MaxDebtAllowed: ptr("20"),
	}

	for _, tier := range []rules.Tier{rules.TierExcellent, rules.TierGood, rules.TierFair, rules.TierPoor, rules.TierRestricted} {
		t.Run(string(tier), func(t *testing.T) {
			adjusted := rules.ApplyReliabilityAdjustments(base, rules.PolicyFor(tier))

			assert.True(t, adjusted.MaxExpense.LessThanOrEqual(*base.MaxExpense))
			assert.True(t, adjusted.MaxDebtAllowed.LessThanOrEqual(*base.MaxDebtAllowed))
		})
	}
}

func TestApplyReliabilityAdjustments_Fair(t *testing.T) {
	adjusted := rules.ApplyReliabilityAdjustments(
		rules.Rules{MaxExpense: ptr("100")},
		rules.PolicyFor(rules.TierFair),
	)

	assert.True(t, adjusted.MaxExpense.Equal(dec("75")))
	assert.False(t, adjusted.AlwaysRequireApproval)
	assert.True(t, adjusted.MaxDebtAllowed.Equal(dec("200")))
}
