package ledger_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/kitty/internal/debt"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/payment"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

func TestMemTx_RejectsUnlockedWrites(t *testing.T) {
	f := newFixture(t, rules.Rules{})

	tx, err := f.store.Begin(f.ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ev := f.storedEvent()
	assert.Error(t, tx.UpdateEvent(f.ctx, &ev))

	other := uuid.New()
	assert.Error(t, tx.SaveWallet(f.ctx, &wallet.Wallet{UserID: other}))

	require.NoError(t, tx.LockEvent(f.ctx, ev.ID))
	assert.NoError(t, tx.UpdateEvent(f.ctx, &ev))

	require.NoError(t, tx.LockWallets(f.ctx, []uuid.UUID{other}))
	assert.NoError(t, tx.SaveWallet(f.ctx, &wallet.Wallet{UserID: other}))

	// Re-taking a held event lock is fine; a new one after a wallet is not.
	assert.NoError(t, tx.LockEvent(f.ctx, ev.ID))
	assert.Error(t, tx.LockEvent(f.ctx, uuid.New()))
}

func TestEndEvent_RefundPaysDebtInAnotherEvent(t *testing.T) {
	f := newFixture(t, rules.Rules{})
	b := f.member("50")

	host := uuid.New()

	other, err := f.svc.CreateEvent(f.ctx, ledger.CreateEventParams{CreatorID: host, Name: "Porto weekend"})
	require.NoError(t, err)

	_, err = f.svc.Join(f.ctx, ledger.JoinParams{EventID: other.ID, UserID: b, Deposit: dec("10")})
	require.NoError(t, err)

	f.pay(host, "100", payment.Deposit{EventID: other.ID})
	f.pay(b, "10", payment.Deposit{EventID: other.ID})

	_, err = f.svc.CreateExpense(f.ctx, ledger.CreateExpenseParams{
		EventID:     other.ID,
		PayerID:     host,
		Amount:      dec("60"),
		Description: "dinner",
	})
	require.NoError(t, err)

	owed := f.debtsOf(b)
	require.Len(t, owed, 1)
	assertDecimal(t, "20", owed[0].AmountRemaining)

	f.store.locks = nil

	_, err = f.svc.EndEvent(f.ctx, f.event.ID, f.creator)
	require.NoError(t, err)

	// The refund clears the debt before it lands in the wallet.
	assertDecimal(t, "30", f.wallet(b))
	assert.Equal(t, debt.StatusSettled, f.debtsOf(b)[0].Status)
	assert.Equal(t, []uuid.UUID{f.event.ID, other.ID}, f.store.locks[:2])

	p := f.store.data.participants[memberKey{other.ID, b}]
	assertDecimal(t, "30", p.DepositAmount)

	ev := f.store.data.events[other.ID]
	assertDecimal(t, "130", ev.TotalPool)
	assert.Equal(t, pool.StatusActive, ev.Status)
}
