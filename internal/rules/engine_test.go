package rules_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestValidateExpense(t *testing.T) {
	type testCase struct {
		name          string
		rules         rules.Rules
		input         rules.ExpenseInput
		wantValid     bool
		wantViolation rules.Violation
		wantErr       error
		wantApproval  bool
		wantTrigger   string
	}

	pool := dec("1000")

	tests := []testCase{
		{
			name:      "NoRules",
			input:     rules.ExpenseInput{Amount: dec("50"), PoolAvailable: pool},
			wantValid: true,
		},
		{
			name:          "BlockedCategory",
			rules:         rules.Rules{BlockedCategories: []string{"Alcohol"}},
			input:         rules.ExpenseInput{Amount: dec("50"), Category: "alcohol", PoolAvailable: pool},
			wantViolation: rules.ViolationBlockedCategory,
			wantErr:       apperr.ErrValidation,
		},
		{
			name:          "CategoryNotInAllowList",
			rules:         rules.Rules{AllowedCategories: []string{"food"}},
			input:         rules.ExpenseInput{Amount: dec("50"), Category: "travel", PoolAvailable: pool},
			wantViolation: rules.ViolationBlockedCategory,
			wantErr:       apperr.ErrValidation,
		},
		{
			name:          "BelowMinimum",
			rules:         rules.Rules{MinExpense: ptr("10")},
			input:         rules.ExpenseInput{Amount: dec("5"), PoolAvailable: pool},
			wantViolation: rules.ViolationBelowMinimum,
			wantErr:       apperr.ErrValidation,
		},
		{
			name:          "AboveMaximum",
			rules:         rules.Rules{MaxExpense: ptr("100")},
			input:         rules.ExpenseInput{Amount: dec("100.01"), PoolAvailable: pool},
			wantViolation: rules.ViolationAboveMaximum,
			wantErr:       apperr.ErrValidation,
		},
		{
			name:          "CumulativeSpend",
			rules:         rules.Rules{MaxSpendPerUser: ptr("200")},
			input:         rules.ExpenseInput{Amount: dec("60"), PayerSpent: dec("150"), PoolAvailable: pool},
			wantViolation: rules.ViolationSpendLimit,
			wantErr:       apperr.ErrValidation,
		},
		{
			name:          "PoolExhausted",
			input:         rules.ExpenseInput{Amount: dec("60"), PoolAvailable: dec("59.99")},
			wantViolation: rules.ViolationInsufficientPool,
			wantErr:       apperr.ErrInsufficientPool,
		},
		{
			name:         "ThresholdRequiresApproval",
			rules:        rules.Rules{ApprovalThreshold: ptr("100")},
			input:        rules.ExpenseInput{Amount: dec("100"), PoolAvailable: pool},
			wantValid:    true,
			wantApproval: true,
			wantTrigger:  rules.TriggerThreshold,
		},
		{
			name:         "RestrictedCategoryRequiresApproval",
			rules:        rules.Rules{ApprovalCategories: []string{"travel"}},
			input:        rules.ExpenseInput{Amount: dec("10"), Category: "travel", PoolAvailable: pool},
			wantValid:    true,
			wantApproval: true,
			wantTrigger:  rules.TriggerRestrictedCategory,
		},
		{
			name:         "AlwaysApproval",
			rules:        rules.Rules{AlwaysRequireApproval: true},
			input:        rules.ExpenseInput{Amount: dec("1"), PoolAvailable: pool},
			wantValid:    true,
			wantApproval: true,
			wantTrigger:  rules.TriggerAlways,
		},
		{
			// Overlapping thresholds: auto-approve-under wins.
			name:      "AutoApproveUnderOverridesThreshold",
			rules:     rules.Rules{ApprovalThreshold: ptr("20"), AutoApproveUnder: ptr("50")},
			input:     rules.ExpenseInput{Amount: dec("30"), PoolAvailable: pool},
			wantValid: true,
		},
		{
			name:      "AutoApproveUnderOverridesAlways",
			rules:     rules.Rules{AlwaysRequireApproval: true, AutoApproveUnder: ptr("50")},
			input:     rules.ExpenseInput{Amount: dec("49.99"), PoolAvailable: pool},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rules.ValidateExpense(tt.rules, tt.input)

			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantViolation, res.Violation)
			assert.Equal(t, tt.wantApproval, res.RequiresApproval)
			assert.Equal(t, tt.wantTrigger, res.Trigger)

			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
				return
			}

			assert.NoError(t, res.Err)
		})
	}
}

func TestValidateExpense_Warning(t *testing.T) {
	res := rules.ValidateExpense(
		rules.Rules{WarningThreshold: ptr("80")},
		rules.ExpenseInput{Amount: dec("90"), PoolAvailable: dec("100")},
	)

	require.True(t, res.Valid)
	assert.Contains(t, res.Warning, "warning threshold")
}

func TestValidateDeposit(t *testing.T) {
	tests := []struct {
		name          string
		rules         rules.Rules
		input         rules.DepositInput
		wantViolation rules.Violation
	}{
		{
			name:  "Valid",
			rules: rules.Rules{MinDeposit: ptr("10"), MaxDeposit: ptr("100")},
			input: rules.DepositInput{Amount: dec("50")},
		},
		{
			name:          "Zero",
			input:         rules.DepositInput{Amount: dec("0")},
			wantViolation: rules.ViolationBelowMinimum,
		},
		{
			name:          "BelowMinimum",
			rules:         rules.Rules{MinDeposit: ptr("10")},
			input:         rules.DepositInput{Amount: dec("9.99")},
			wantViolation: rules.ViolationBelowMinimum,
		},
		{
			name:          "AboveMaximum",
			rules:         rules.Rules{MaxDeposit: ptr("100")},
			input:         rules.DepositInput{Amount: dec("101")},
			wantViolation: rules.ViolationAboveMaximum,
		},
		{
			name:  "InsideBand",
			rules: rules.Rules{DepositMarginPercent: ptr("20")},
			input: rules.DepositInput{Amount: dec("120"), GroupAverage: dec("100")},
		},
		{
			name:          "OutsideBand",
			rules:         rules.Rules{DepositMarginPercent: ptr("20")},
			input:         rules.DepositInput{Amount: dec("79.99"), GroupAverage: dec("100")},
			wantViolation: rules.ViolationDepositBand,
		},
		{
			name:  "BandIgnoredForFirstDeposit",
			rules: rules.Rules{DepositMarginPercent: ptr("20")},
			input: rules.DepositInput{Amount: dec("5")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rules.ValidateDeposit(tt.rules, tt.input)

			assert.Equal(t, tt.wantViolation, res.Violation)
			assert.Equal(t, tt.wantViolation == rules.ViolationNone, res.Valid)

			if !res.Valid {
				assert.ErrorIs(t, res.Err, apperr.ErrValidation)
			}
		})
	}
}

func TestValidateJoin(t *testing.T) {
	res := rules.ValidateJoin(rules.Rules{RequireJoinApproval: true, MinDeposit: ptr("10")}, rules.DepositInput{Amount: dec("20")})

	assert.True(t, res.Valid)
	assert.True(t, res.RequiresApproval)
	assert.Equal(t, rules.TriggerJoinApproval, res.Trigger)

	res = rules.ValidateJoin(rules.Rules{MinDeposit: ptr("10")}, rules.DepositInput{Amount: dec("5")})
	assert.False(t, res.Valid)
	assert.False(t, res.RequiresApproval)
}

func TestRules_Validate(t *testing.T) {
	assert.NoError(t, rules.Rules{MinExpense: ptr("1"), MaxExpense: ptr("10")}.Validate())
	assert.ErrorIs(t, rules.Rules{MinExpense: ptr("11"), MaxExpense: ptr("10")}.Validate(), apperr.ErrValidation)
	assert.ErrorIs(t, rules.Rules{MaxDebtAllowed: ptr("-1")}.Validate(), apperr.ErrValidation)
}
