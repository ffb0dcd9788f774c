package ledger

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/debt"
	"github.com/MrJamesThe3rd/kitty/internal/money"
	"github.com/MrJamesThe3rd/kitty/internal/notify"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

// SettleDebt records a payment against a debt. The debtor or the event
// creator may record it. While the event is open the money goes back into
// its pool as the debtor's deposit; after it has ended the money goes to
// the creditors of the debtor's settlement transfers.
func (s *Service) SettleDebt(ctx context.Context, debtID, actorID uuid.UUID, amount decimal.Decimal, reference string) (*debt.Debt, error) {
	var d *debt.Debt

	err := s.run(ctx, func(sc *scope) error {
		found, err := sc.debts.Get(ctx, debtID)
		if err != nil {
			return err
		}

		ev, err := sc.lockedEvent(ctx, found.EventID)
		if err != nil {
			return err
		}

		if actorID != found.UserID && actorID != ev.CreatorID {
			return apperr.Unauthorized("only the debtor or the event creator can settle a debt")
		}

		d, err = sc.settle(ctx, ev, found, amount, reference)

		return err
	})
	if err != nil {
		return nil, err
	}

	return d, nil
}

// settle pays amount into the debt and books the money with the event.
// The event must be locked.
func (sc *scope) settle(ctx context.Context, ev *pool.Event, found *debt.Debt, amount decimal.Decimal, reference string) (*debt.Debt, error) {
	paid := money.Min(amount, found.AmountRemaining)

	d, err := sc.debts.Settle(ctx, found.ID, amount, reference)
	if err != nil {
		return nil, err
	}

	if err := sc.bookDebtPayment(ctx, ev, d.UserID, paid, d.ID.String()); err != nil {
		return nil, err
	}

	for _, userID := range []uuid.UUID{d.UserID, ev.CreatorID} {
		sc.notify(notify.TypeDebtSettled, userID,
			notify.WithEvent(d.EventID), notify.WithDebt(d.ID), notify.WithAmount(amount), notify.WithText(string(d.Status)))
	}

	return d, nil
}

// bookDebtPayment books a debt payment as the debtor's deposit while the
// event is open, and pays it out to the debtor's creditors once it has
// ended.
func (sc *scope) bookDebtPayment(ctx context.Context, ev *pool.Event, userID uuid.UUID, amount decimal.Decimal, reference string) error {
	if !ev.Active() {
		return sc.payCreditors(ctx, ev, userID, amount, reference)
	}

	p, err := sc.tx.GetParticipant(ctx, ev.ID, userID)
	if err != nil {
		return err
	}

	if err := sc.deposit(ctx, ev, p, amount, pool.SourceDebtSettlement, reference); err != nil {
		return err
	}

	if err := sc.saveParticipants(ctx, p); err != nil {
		return err
	}

	return sc.saveEvent(ctx, ev)
}

type payout struct {
	userID uuid.UUID
	amount decimal.Decimal
}

// payCreditors spreads a debt payment on an ended event over the debtor's
// unpaid settlement transfers in plan order. Anything beyond them goes
// back to the debtor. The money lands in wallets without paying down the
// recipients' own debts.
func (sc *scope) payCreditors(ctx context.Context, ev *pool.Event, debtorID uuid.UUID, amount decimal.Decimal, reference string) error {
	records, err := sc.tx.ListSettlements(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("listing settlements: %w", err)
	}

	var payouts []payout

	left := amount

	for _, r := range records {
		if r.From != debtorID || !left.IsPositive() {
			continue
		}

		part := money.Min(r.Remaining(), left)
		if !part.IsPositive() {
			continue
		}

		r.Paid = r.Paid.Add(part)
		if err := sc.tx.UpdateSettlement(ctx, r); err != nil {
			return fmt.Errorf("updating settlement: %w", err)
		}

		payouts = append(payouts, payout{userID: r.To, amount: part})
		left = left.Sub(part)
	}

	if left.IsPositive() {
		payouts = append(payouts, payout{userID: debtorID, amount: left})
	}

	users := make([]uuid.UUID, len(payouts))
	for i, po := range payouts {
		users[i] = po.userID
	}

	if err := sc.wallets.Lock(ctx, users...); err != nil {
		return err
	}

	for _, po := range payouts {
		if _, err := sc.wallets.Receive(ctx, po.userID, po.amount, wallet.ReasonSettlement, reference); err != nil {
			return fmt.Errorf("paying out to %s: %w", po.userID, err)
		}

		if po.userID != debtorID {
			sc.notify(notify.TypeSettlementReceived, po.userID,
				notify.WithEvent(ev.ID), notify.WithAmount(po.amount))
		}
	}

	return nil
}

// ForgiveDebt writes off what remains of a debt. Creator only.
func (s *Service) ForgiveDebt(ctx context.Context, debtID, actorID uuid.UUID) (*debt.Debt, error) {
	var d *debt.Debt

	err := s.run(ctx, func(sc *scope) error {
		found, err := sc.debts.Get(ctx, debtID)
		if err != nil {
			return err
		}

		ev, err := sc.lockedEvent(ctx, found.EventID)
		if err != nil {
			return err
		}

		d, err = sc.debts.Forgive(ctx, debtID, actorID, ev.CreatorID)
		if err != nil {
			return err
		}

		sc.notify(notify.TypeDebtForgiven, d.UserID, notify.WithEvent(d.EventID), notify.WithDebt(d.ID))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return d, nil
}

// TopUpWallet credits a user's wallet. The credit pays down open debts
// oldest first before it stays in the wallet.
func (s *Service) TopUpWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*wallet.CreditResult, error) {
	var res *wallet.CreditResult

	err := s.run(ctx, func(sc *scope) error {
		var err error

		res, err = sc.topUp(ctx, userID, amount, wallet.ReasonTopUp, reference)

		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (sc *scope) topUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason wallet.Reason, reference string) (*wallet.CreditResult, error) {
	if err := sc.lockDebtEvents(ctx, userID); err != nil {
		return nil, err
	}

	res, err := sc.wallets.Credit(ctx, userID, amount, reason, reference)
	if err != nil {
		return nil, err
	}

	if err := sc.creditDebtEvents(ctx, res.Applied, nil); err != nil {
		return nil, err
	}

	return res, nil
}

// lockDebtEvents locks the events of the users' open debts, which a wallet
// credit may pay into. It must run before any wallet is locked.
func (sc *scope) lockDebtEvents(ctx context.Context, userIDs ...uuid.UUID) error {
	var events []uuid.UUID

	for _, userID := range userIDs {
		open, err := sc.debts.List(ctx, debt.ListFilter{UserID: &userID, OpenOnly: true})
		if err != nil {
			return fmt.Errorf("listing debts: %w", err)
		}

		for _, d := range open {
			events = append(events, d.EventID)
		}
	}

	// Events before wallets, in id order, same as every other operation.
	slices.SortFunc(events, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	for _, id := range slices.Compact(events) {
		if err := sc.tx.LockEvent(ctx, id); err != nil {
			return fmt.Errorf("locking event %s: %w", id, err)
		}
	}

	return nil
}

// creditDebtEvents books debt payments made from a wallet credit with the
// events the debts belong to. held is an event the caller already has
// loaded and locked, or nil; it is used as is instead of being reloaded.
func (sc *scope) creditDebtEvents(ctx context.Context, applied []debt.Application, held *pool.Event) error {
	for _, a := range applied {
		ev := held
		if held == nil || a.EventID != held.ID {
			var err error

			if ev, err = sc.lockedEvent(ctx, a.EventID); err != nil {
				return err
			}
		}

		d, err := sc.debts.Get(ctx, a.DebtID)
		if err != nil {
			return err
		}

		if err := sc.bookDebtPayment(ctx, ev, d.UserID, a.Amount, a.DebtID.String()); err != nil {
			return err
		}

		if a.Settled {
			sc.notify(notify.TypeDebtSettled, d.UserID, notify.WithEvent(a.EventID), notify.WithDebt(a.DebtID))
		}
	}

	return nil
}

// ListDebts returns the user's debts, oldest first.
func (s *Service) ListDebts(ctx context.Context, userID uuid.UUID, openOnly bool) ([]*debt.Debt, error) {
	var out []*debt.Debt

	err := s.run(ctx, func(sc *scope) error {
		var err error

		out, err = sc.debts.List(ctx, debt.ListFilter{UserID: &userID, OpenOnly: openOnly})

		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

type WalletSummary struct {
	Balance        decimal.Decimal
	Transactions   []*wallet.Transaction
	ShortfallCount int
	Outstanding    decimal.Decimal
}

const summaryTransactions = 50

func (s *Service) WalletSummary(ctx context.Context, userID uuid.UUID) (*WalletSummary, error) {
	var out *WalletSummary

	err := s.run(ctx, func(sc *scope) error {
		balance, err := sc.wallets.Balance(ctx, userID)
		if err != nil {
			return err
		}

		txs, err := sc.wallets.Transactions(ctx, userID, summaryTransactions)
		if err != nil {
			return fmt.Errorf("listing wallet transactions: %w", err)
		}

		shortfalls, err := sc.wallets.ShortfallCount(ctx, userID)
		if err != nil {
			return fmt.Errorf("counting shortfalls: %w", err)
		}

		h, err := sc.debts.History(ctx, userID)
		if err != nil {
			return err
		}

		out = &WalletSummary{
			Balance:        balance,
			Transactions:   txs,
			ShortfallCount: shortfalls,
			Outstanding:    h.Outstanding,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// SweepCriticalDebts notifies debtors and event creators about every open
// debt that has reached the critical age, and returns how many it found.
func (s *Service) SweepCriticalDebts(ctx context.Context) (int, error) {
	var n int

	err := s.run(ctx, func(sc *scope) error {
		critical, err := sc.debts.Critical(ctx)
		if err != nil {
			return err
		}

		creators := map[uuid.UUID]uuid.UUID{}

		for _, d := range critical {
			creator, ok := creators[d.EventID]
			if !ok {
				ev, err := sc.tx.GetEvent(ctx, d.EventID)
				if err != nil {
					return err
				}

				creator = ev.CreatorID
				creators[d.EventID] = creator
			}

			days := fmt.Sprintf("%d days old", d.AgeDays(sc.now))

			sc.notify(notify.TypeDebtCritical, d.UserID,
				notify.WithEvent(d.EventID), notify.WithDebt(d.ID), notify.WithAmount(d.AmountRemaining), notify.WithText(days))
			sc.notify(notify.TypeDebtCritical, creator,
				notify.WithEvent(d.EventID), notify.WithDebt(d.ID), notify.WithAmount(d.AmountRemaining), notify.WithText(days))
		}

		n = len(critical)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}
