package debt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/debt"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func clock() time.Time { return now }

func openDebt(amount string, createdAt time.Time) *debt.Debt {
	return &debt.Debt{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		EventID:         uuid.New(),
		AmountOriginal:  dec(amount),
		AmountRemaining: dec(amount),
		AmountPaid:      decimal.Zero,
		Status:          debt.StatusOutstanding,
		CreatedAt:       createdAt,
		DueAt:           createdAt.Add(debt.DefaultDueIn),
	}
}

func TestService_Lifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := debt.NewMockRepository(ctrl)
	svc := debt.NewService(repo, debt.WithClock(clock))
	ctx := context.Background()

	var stored *debt.Debt

	repo.EXPECT().CreateDebt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, d *debt.Debt) error {
			stored = d
			return nil
		})
	repo.EXPECT().GetDebt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID) (*debt.Debt, error) {
			return stored, nil
		}).Times(2)
	repo.EXPECT().CreateDebtPayment(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	repo.EXPECT().UpdateDebt(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	d, err := svc.Create(ctx, debt.CreateParams{UserID: uuid.New(), EventID: uuid.New(), Amount: dec("50.00")})
	require.NoError(t, err)
	assert.Equal(t, debt.StatusOutstanding, d.Status)
	assert.Equal(t, now.Add(7*24*time.Hour), d.DueAt)

	d, err = svc.Settle(ctx, d.ID, dec("30.00"), "pay-1")
	require.NoError(t, err)
	assert.True(t, d.AmountRemaining.Equal(dec("20.00")))
	assert.True(t, d.AmountPaid.Equal(dec("30.00")))
	assert.Equal(t, debt.StatusPartiallyPaid, d.Status)
	assert.Nil(t, d.SettledAt)

	d, err = svc.Settle(ctx, d.ID, dec("20.00"), "pay-2")
	require.NoError(t, err)
	assert.True(t, d.AmountRemaining.IsZero())
	assert.Equal(t, debt.StatusSettled, d.Status)
	require.NotNil(t, d.SettledAt)
	assert.Len(t, d.Payments, 2)
	assert.False(t, d.Late())
}

func TestService_Settle(t *testing.T) {
	type testCase struct {
		name      string
		amount    string
		setupMock func(m *debt.MockRepository)
		wantErr   error
	}

	tests := []testCase{
		{
			name:   "Overpayment",
			amount: "50.02",
			setupMock: func(m *debt.MockRepository) {
				m.EXPECT().GetDebt(gomock.Any(), gomock.Any()).Return(openDebt("50", now), nil)
			},
			wantErr: apperr.ErrValidation,
		},
		{
			name:   "NonPositive",
			amount: "0",
			setupMock: func(m *debt.MockRepository) {
				m.EXPECT().GetDebt(gomock.Any(), gomock.Any()).Return(openDebt("50", now), nil)
			},
			wantErr: apperr.ErrValidation,
		},
		{
			name:   "AlreadyForgiven",
			amount: "10",
			setupMock: func(m *debt.MockRepository) {
				d := openDebt("50", now)
				d.Status = debt.StatusForgiven
				m.EXPECT().GetDebt(gomock.Any(), gomock.Any()).Return(d, nil)
			},
			wantErr: apperr.ErrStateConflict,
		},
		{
			name:   "NotFound",
			amount: "10",
			setupMock: func(m *debt.MockRepository) {
				m.EXPECT().GetDebt(gomock.Any(), gomock.Any()).Return(nil, apperr.NotFound("debt not found"))
			},
			wantErr: apperr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := debt.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := debt.NewService(repo, debt.WithClock(clock))
			_, err := svc.Settle(context.Background(), uuid.New(), dec(tt.amount), "ref")

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Forgive(t *testing.T) {
	creator := uuid.New()

	t.Run("CreatorOnly", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := debt.NewMockRepository(ctrl)
		repo.EXPECT().GetDebt(gomock.Any(), gomock.Any()).Return(openDebt("50", now), nil)

		_, err := debt.NewService(repo).Forgive(context.Background(), uuid.New(), uuid.New(), creator)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("ZeroesRemaining", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		d := openDebt("50", now)
		d.AmountRemaining = dec("20")
		d.AmountPaid = dec("30")
		d.Status = debt.StatusPartiallyPaid

		repo := debt.NewMockRepository(ctrl)
		repo.EXPECT().GetDebt(gomock.Any(), d.ID).Return(d, nil)
		repo.EXPECT().UpdateDebt(gomock.Any(), d).Return(nil)

		got, err := debt.NewService(repo).Forgive(context.Background(), d.ID, creator, creator)
		require.NoError(t, err)

		assert.Equal(t, debt.StatusForgiven, got.Status)
		assert.True(t, got.AmountRemaining.IsZero())
		assert.True(t, got.AmountPaid.Equal(dec("30")))
		assert.Equal(t, creator, *got.ForgivenBy)
	})
}

func TestService_ApplyCredit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	older := openDebt("30", now.Add(-48*time.Hour))
	newer := openDebt("50", now.Add(-24*time.Hour))

	repo := debt.NewMockRepository(ctrl)
	repo.EXPECT().ListDebts(gomock.Any(), gomock.Any()).Return([]*debt.Debt{older, newer}, nil)
	repo.EXPECT().CreateDebtPayment(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	repo.EXPECT().UpdateDebt(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	svc := debt.NewService(repo, debt.WithClock(clock))

	applied, err := svc.ApplyCredit(context.Background(), older.UserID, dec("45"), "top-up")
	require.NoError(t, err)
	require.Len(t, applied, 2)

	assert.True(t, applied[0].Amount.Equal(dec("30")))
	assert.True(t, applied[0].Settled)
	assert.True(t, applied[1].Amount.Equal(dec("15")))
	assert.False(t, applied[1].Settled)

	assert.Equal(t, debt.StatusSettled, older.Status)
	assert.True(t, newer.AmountRemaining.Equal(dec("35")))
}

func TestService_CheckRestrictions(t *testing.T) {
	maxAllowed := dec("100")

	tests := []struct {
		name    string
		debts   []*debt.Debt
		max     *decimal.Decimal
		wantErr bool
	}{
		{name: "NoDebts", max: &maxAllowed},
		{name: "UnderLimit", debts: []*debt.Debt{openDebt("60", now)}, max: &maxAllowed},
		{name: "AtLimit", debts: []*debt.Debt{openDebt("60", now), openDebt("40", now)}, max: &maxAllowed, wantErr: true},
		{name: "CriticalAgeIgnoresAmount", debts: []*debt.Debt{openDebt("1", now.Add(-30*24*time.Hour))}, wantErr: true},
		{name: "JustBelowCriticalAge", debts: []*debt.Debt{openDebt("1", now.Add(-29*24*time.Hour))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := debt.NewMockRepository(ctrl)
			repo.EXPECT().ListDebts(gomock.Any(), gomock.Any()).Return(tt.debts, nil)

			err := debt.NewService(repo, debt.WithClock(clock)).CheckRestrictions(context.Background(), uuid.New(), tt.max)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestService_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	late := openDebt("10", now.Add(-20*24*time.Hour))
	settledAt := now.Add(-time.Hour)
	late.Status = debt.StatusSettled
	late.SettledAt = &settledAt

	repo := debt.NewMockRepository(ctrl)
	repo.EXPECT().ListDebts(gomock.Any(), gomock.Any()).Return([]*debt.Debt{
		openDebt("5", now.Add(-3*24*time.Hour)),
		openDebt("5", now.Add(-2*24*time.Hour)),
		late,
	}, nil)

	h, err := debt.NewService(repo, debt.WithClock(clock)).History(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 5, h.DebtAgeDays)
	assert.Equal(t, 1, h.LateSettlementCount)
	assert.True(t, h.Outstanding.Equal(dec("10")))
}

func TestService_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := debt.NewMockRepository(ctrl)
	repo.EXPECT().CreateDebt(gomock.Any(), gomock.Any()).Return(errors.New("db error"))

	_, err := debt.NewService(repo).Create(context.Background(), debt.CreateParams{Amount: dec("1")})
	assert.Error(t, err)
	assert.False(t, apperr.IsBusiness(err))
}
