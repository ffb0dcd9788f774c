package settlement_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/money"
	"github.com/MrJamesThe3rd/kitty/internal/settlement"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMinimize_ThreeWay(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	balances := []settlement.Balance{
		{UserID: a, Amount: dec("30")},
		{UserID: b, Amount: dec("-10")},
		{UserID: c, Amount: dec("-20")},
	}

	transfers, err := settlement.Minimize(balances)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, c, transfers[0].From)
	assert.True(t, transfers[0].Amount.Equal(dec("20")))

	total := decimal.Zero
	for _, tr := range transfers {
		assert.Equal(t, a, tr.To)
		total = total.Add(tr.Amount)
	}
	assert.True(t, total.Equal(dec("30")))

	for id, left := range settlement.Apply(balances, transfers) {
		assert.True(t, money.IsZero(left), "user %s left with %s", id, left)
	}
}

func TestMinimize_NetsToZero(t *testing.T) {
	tests := []struct {
		name     string
		balances []string
		wantLen  int
	}{
		{name: "Empty", wantLen: 0},
		{name: "AllSettled", balances: []string{"0", "0.00", "-0.001"}, wantLen: 0},
		{name: "ManyToOne", balances: []string{"60", "-15", "-15", "-15", "-15"}, wantLen: 4},
		{name: "OneToMany", balances: []string{"-90", "30", "30", "30"}, wantLen: 3},
		{name: "Mixed", balances: []string{"25.50", "14.50", "-33.33", "-6.67"}, wantLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var balances []settlement.Balance
			for _, s := range tt.balances {
				balances = append(balances, settlement.Balance{UserID: uuid.New(), Amount: dec(s)})
			}

			transfers, err := settlement.Minimize(balances)
			require.NoError(t, err)
			assert.Len(t, transfers, tt.wantLen)

			owed := decimal.Zero
			for _, b := range balances {
				if b.Amount.IsNegative() {
					owed = owed.Add(b.Amount.Abs())
				}
			}

			paid := decimal.Zero
			for _, tr := range transfers {
				paid = paid.Add(tr.Amount)
			}

			assert.True(t, money.Equal(owed, paid))

			for _, left := range settlement.Apply(balances, transfers) {
				assert.True(t, money.IsZero(left))
			}
		})
	}
}

func TestMinimize_TiesAreDeterministic(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	high := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	debtor := uuid.New()

	for range 5 {
		transfers, err := settlement.Minimize([]settlement.Balance{
			{UserID: high, Amount: dec("10")},
			{UserID: low, Amount: dec("10")},
			{UserID: debtor, Amount: dec("-20")},
		})
		require.NoError(t, err)
		require.Len(t, transfers, 2)
		assert.Equal(t, low, transfers[0].To)
	}
}

func TestMinimize_PoolSurplus(t *testing.T) {
	a := uuid.New()

	transfers, err := settlement.Minimize([]settlement.Balance{
		{UserID: a, Amount: dec("12.50")},
		{UserID: settlement.Pool, Amount: dec("-12.50")},
	})
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	assert.Equal(t, settlement.Pool, transfers[0].From)
	assert.Equal(t, a, transfers[0].To)
}

func TestMinimize_Unbalanced(t *testing.T) {
	_, err := settlement.Minimize([]settlement.Balance{
		{UserID: uuid.New(), Amount: dec("10")},
		{UserID: uuid.New(), Amount: dec("-5")},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecords_PoolTransfersStartPaid(t *testing.T) {
	eventID, a, b := uuid.New(), uuid.New(), uuid.New()

	records := settlement.Records(eventID, []settlement.Transfer{
		{From: b, To: a, Amount: dec("30")},
		{From: settlement.Pool, To: a, Amount: dec("20")},
	})
	require.Len(t, records, 2)

	assert.Equal(t, 0, records[0].Position)
	assert.Equal(t, eventID, records[0].EventID)
	assert.True(t, records[0].Remaining().Equal(dec("30")))

	assert.Equal(t, 1, records[1].Position)
	assert.True(t, records[1].Remaining().IsZero())

	records[0].Paid = dec("45")
	assert.True(t, records[0].Remaining().IsZero())
}
