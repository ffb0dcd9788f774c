package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/money"
	"github.com/MrJamesThe3rd/kitty/internal/notify"
	"github.com/MrJamesThe3rd/kitty/internal/payment"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

// HandlePayment books a confirmed payment. Each payment id is booked at
// most once; a redelivery reports false and changes nothing.
func (s *Service) HandlePayment(ctx context.Context, c payment.Confirmation) (bool, error) {
	if c.PaymentID == "" {
		return false, apperr.Validation("payment id is required")
	}

	if !c.Amount.IsPositive() {
		return false, apperr.Validation("payment amount must be positive, got %s", c.Amount.StringFixed(2))
	}

	booked := false

	err := s.run(ctx, func(sc *scope) error {
		switch p := c.Purpose.(type) {
		case payment.Deposit:
			return sc.payIntoPool(ctx, c, p.EventID, c.PaymentID, &booked)
		case payment.ExpenseShare:
			return sc.payIntoPool(ctx, c, p.EventID, p.ExpenseID.String(), &booked)
		case payment.DebtSettlement:
			return sc.payDebt(ctx, c, p.DebtID, &booked)
		case payment.WalletTopUp:
			if fresh, err := sc.mark(ctx, c, &booked); !fresh {
				return err
			}

			_, err := sc.topUp(ctx, c.UserID, c.Amount, wallet.ReasonTopUp, c.PaymentID)

			return err
		default:
			return apperr.Validation("unknown payment purpose %T", c.Purpose)
		}
	})
	if err != nil {
		return false, err
	}

	return booked, nil
}

// mark records the payment as processed and reports whether it is new.
func (sc *scope) mark(ctx context.Context, c payment.Confirmation, booked *bool) (bool, error) {
	fresh, err := sc.tx.MarkPaymentProcessed(ctx, c.PaymentID, c.Purpose.Kind())
	if err != nil {
		return false, fmt.Errorf("marking payment %s: %w", c.PaymentID, err)
	}

	*booked = fresh

	return fresh, nil
}

// payIntoPool credits a payment to the payer's pool share. Money for an
// event that has ended, or from someone not admitted to it, goes to the
// payer's wallet instead.
func (sc *scope) payIntoPool(ctx context.Context, c payment.Confirmation, eventID uuid.UUID, reference string, booked *bool) error {
	ev, err := sc.lockedEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if fresh, err := sc.mark(ctx, c, booked); !fresh {
		return err
	}

	p, err := sc.tx.GetParticipant(ctx, ev.ID, c.UserID)
	if err != nil && !isNotFound(err) {
		return err
	}

	if !ev.Active() || p == nil || !p.Authorized() {
		_, err := sc.topUp(ctx, c.UserID, c.Amount, wallet.ReasonRefund, c.PaymentID)
		return err
	}

	if err := sc.deposit(ctx, ev, p, c.Amount, pool.SourcePayment, reference); err != nil {
		return err
	}

	if err := sc.saveParticipants(ctx, p); err != nil {
		return err
	}

	if err := sc.saveEvent(ctx, ev); err != nil {
		return err
	}

	sc.notify(notify.TypeDepositConfirmed, c.UserID, notify.WithEvent(ev.ID), notify.WithAmount(c.Amount))

	return nil
}

// ConfirmDeposit records a deposit the creator received outside the
// payment layer, such as cash.
func (s *Service) ConfirmDeposit(ctx context.Context, eventID, userID, actorID uuid.UUID, amount decimal.Decimal, reference string) (*pool.Participant, error) {
	var p *pool.Participant

	err := s.run(ctx, func(sc *scope) error {
		ev, err := sc.lockedEvent(ctx, eventID)
		if err != nil {
			return err
		}

		if ev.CreatorID != actorID {
			return apperr.Unauthorized("only the event creator can record deposits")
		}

		if !ev.Active() {
			return apperr.StateConflict("event %s is %s", ev.ID, ev.Status)
		}

		p, err = sc.tx.GetParticipant(ctx, ev.ID, userID)
		if err != nil {
			return err
		}

		if !p.Authorized() {
			return apperr.StateConflict("participant is %s", p.Status)
		}

		if err := sc.deposit(ctx, ev, p, amount, pool.SourcePayment, reference); err != nil {
			return err
		}

		if err := sc.saveParticipants(ctx, p); err != nil {
			return err
		}

		if err := sc.saveEvent(ctx, ev); err != nil {
			return err
		}

		sc.notify(notify.TypeDepositConfirmed, userID, notify.WithEvent(ev.ID), notify.WithAmount(amount))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// payDebt settles a debt from a payment. Whatever exceeds the debt, or the
// whole payment when the debt is already closed, goes to the payer's wallet.
func (sc *scope) payDebt(ctx context.Context, c payment.Confirmation, debtID uuid.UUID, booked *bool) error {
	found, err := sc.debts.Get(ctx, debtID)
	if err != nil {
		return err
	}

	if found.UserID != c.UserID {
		return apperr.Unauthorized("debt %s belongs to another user", debtID)
	}

	ev, err := sc.lockedEvent(ctx, found.EventID)
	if err != nil {
		return err
	}

	// The excess top-up may pay into other events.
	if err := sc.lockDebtEvents(ctx, c.UserID); err != nil {
		return err
	}

	if fresh, err := sc.mark(ctx, c, booked); !fresh {
		return err
	}

	// Reload under the lock.
	found, err = sc.debts.Get(ctx, debtID)
	if err != nil {
		return err
	}

	excess := c.Amount

	if found.Open() {
		paid := money.Min(c.Amount, found.AmountRemaining)

		if _, err := sc.settle(ctx, ev, found, paid, c.PaymentID); err != nil {
			return err
		}

		excess = c.Amount.Sub(paid)
	}

	if !excess.IsPositive() {
		return nil
	}

	_, err = sc.topUp(ctx, c.UserID, excess, wallet.ReasonTopUp, c.PaymentID)

	return err
}

// HandlePaymentFailure tells the payer their payment did not go through.
// Nothing is booked.
func (s *Service) HandlePaymentFailure(ctx context.Context, f payment.Failure) error {
	if f.PaymentID == "" {
		return apperr.Validation("payment id is required")
	}

	opts := []notify.MessageOption{notify.WithText(f.Reason)}

	switch p := f.Purpose.(type) {
	case payment.Deposit:
		opts = append(opts, notify.WithEvent(p.EventID))
	case payment.ExpenseShare:
		opts = append(opts, notify.WithEvent(p.EventID), notify.WithExpense(p.ExpenseID))
	case payment.DebtSettlement:
		opts = append(opts, notify.WithDebt(p.DebtID))
	}

	msg := notify.New(notify.TypePaymentFailed, f.UserID, opts...)
	msg.CreatedAt = s.now()

	s.notifier.Notify(msg)

	return nil
}
