package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/notify"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
	"github.com/MrJamesThe3rd/kitty/internal/settlement"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

type CreateEventParams struct {
	CreatorID uuid.UUID
	Name      string
	Rules     rules.Rules
}

// CreateEvent opens a new pool with its creator as the first active
// participant.
func (s *Service) CreateEvent(ctx context.Context, params CreateEventParams) (*pool.Event, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, apperr.Validation("event name is required")
	}

	if err := params.Rules.Validate(); err != nil {
		return nil, err
	}

	var ev *pool.Event

	err := s.run(ctx, func(sc *scope) error {
		report, err := sc.reliability(ctx, params.CreatorID)
		if err != nil {
			return err
		}

		if !report.Policy.CanCreateEvents {
			return apperr.Unauthorized("users in the %s reliability tier cannot create events", report.Policy.Tier)
		}

		ev = &pool.Event{
			ID:         uuid.New(),
			CreatorID:  params.CreatorID,
			Name:       name,
			Status:     pool.StatusActive,
			TotalPool:  decimal.Zero,
			TotalSpent: decimal.Zero,
			Rules:      params.Rules,
			CreatedAt:  sc.now,
			UpdatedAt:  sc.now,
		}

		if err := sc.tx.CreateEvent(ctx, ev); err != nil {
			return fmt.Errorf("creating event: %w", err)
		}

		return sc.tx.CreateParticipant(ctx, newParticipant(ev.ID, params.CreatorID, pool.ParticipantActive, decimal.Zero, sc))
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

type JoinParams struct {
	EventID uuid.UUID
	UserID  uuid.UUID
	Deposit decimal.Decimal
}

// Join adds the user to the event with a pledged deposit. The money itself
// arrives later as a confirmed payment.
func (s *Service) Join(ctx context.Context, params JoinParams) (*pool.Participant, error) {
	var p *pool.Participant

	err := s.run(ctx, func(sc *scope) error {
		ev, err := sc.lockedEvent(ctx, params.EventID)
		if err != nil {
			return err
		}

		if !ev.Active() {
			return apperr.StateConflict("event %s is %s", ev.ID, ev.Status)
		}

		if existing, err := sc.tx.GetParticipant(ctx, ev.ID, params.UserID); err == nil {
			return apperr.StateConflict("user is already %s in event %s", existing.Status, ev.ID)
		} else if !isNotFound(err) {
			return err
		}

		effective, _, err := sc.effectiveRules(ctx, ev, params.UserID)
		if err != nil {
			return err
		}

		if err := sc.debts.CheckRestrictions(ctx, params.UserID, effective.MaxDebtAllowed); err != nil {
			return err
		}

		_, list, err := sc.participants(ctx, ev.ID)
		if err != nil {
			return err
		}

		res := rules.ValidateJoin(effective, rules.DepositInput{
			Amount:       params.Deposit,
			GroupAverage: averagePledge(list),
		})
		if !res.Valid {
			return res.Err
		}

		status := pool.ParticipantApproved
		if res.RequiresApproval {
			status = pool.ParticipantPending
		}

		p = newParticipant(ev.ID, params.UserID, status, params.Deposit, sc)
		if err := sc.tx.CreateParticipant(ctx, p); err != nil {
			return fmt.Errorf("creating participant: %w", err)
		}

		sc.notify(notify.TypeParticipantJoined, ev.CreatorID,
			notify.WithEvent(ev.ID), notify.WithAmount(params.Deposit), notify.WithText(string(status)))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// ApproveParticipant admits a pending participant.
func (s *Service) ApproveParticipant(ctx context.Context, eventID, userID, actorID uuid.UUID) (*pool.Participant, error) {
	return s.resolveParticipant(ctx, eventID, userID, actorID, pool.ParticipantApproved, notify.TypeParticipantApproved)
}

// RejectParticipant turns a pending participant away.
func (s *Service) RejectParticipant(ctx context.Context, eventID, userID, actorID uuid.UUID) (*pool.Participant, error) {
	return s.resolveParticipant(ctx, eventID, userID, actorID, pool.ParticipantRejected, notify.TypeParticipantRejected)
}

func (s *Service) resolveParticipant(ctx context.Context, eventID, userID, actorID uuid.UUID, to pool.ParticipantStatus, t notify.Type) (*pool.Participant, error) {
	var p *pool.Participant

	err := s.run(ctx, func(sc *scope) error {
		ev, err := sc.lockedEvent(ctx, eventID)
		if err != nil {
			return err
		}

		if ev.CreatorID != actorID {
			return apperr.Unauthorized("only the event creator can review join requests")
		}

		p, err = sc.tx.GetParticipant(ctx, eventID, userID)
		if err != nil {
			return err
		}

		if p.Status != pool.ParticipantPending {
			return apperr.StateConflict("participant is %s, not pending", p.Status)
		}

		p.Status = to

		if err := sc.saveParticipants(ctx, p); err != nil {
			return err
		}

		sc.notify(t, userID, notify.WithEvent(eventID))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

type EventDetails struct {
	Event        *pool.Event
	Participants []*pool.Participant
	Deposits     []*pool.Deposit
}

// GetEvent returns an event with its participants and deposit history.
// Only participants may read it.
func (s *Service) GetEvent(ctx context.Context, eventID, actorID uuid.UUID) (*EventDetails, error) {
	var details *EventDetails

	err := s.run(ctx, func(sc *scope) error {
		ev, err := sc.tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}

		byUser, list, err := sc.participants(ctx, eventID)
		if err != nil {
			return err
		}

		if _, ok := byUser[actorID]; !ok {
			return apperr.Unauthorized("only participants can view event %s", eventID)
		}

		deposits, err := sc.tx.ListDeposits(ctx, eventID)
		if err != nil {
			return fmt.Errorf("listing deposits: %w", err)
		}

		details = &EventDetails{Event: ev, Participants: list, Deposits: deposits}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

type ReliabilityReport struct {
	rules.Report
	EffectiveRules rules.Rules
}

// Reliability scores a user and shows the event's rules as they apply to
// that user.
func (s *Service) Reliability(ctx context.Context, eventID, userID uuid.UUID) (*ReliabilityReport, error) {
	var out *ReliabilityReport

	err := s.run(ctx, func(sc *scope) error {
		ev, err := sc.tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}

		effective, report, err := sc.effectiveRules(ctx, ev, userID)
		if err != nil {
			return err
		}

		out = &ReliabilityReport{Report: report, EffectiveRules: effective}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// EndEvent closes the event and returns the settlement plan. Pending
// expenses are rejected; whatever is left in the pool is refunded into the
// participants' wallets.
func (s *Service) EndEvent(ctx context.Context, eventID, actorID uuid.UUID) ([]settlement.Transfer, error) {
	var transfers []settlement.Transfer

	err := s.run(ctx, func(sc *scope) error {
		ev, err := sc.lockedEvent(ctx, eventID)
		if err != nil {
			return err
		}

		if ev.CreatorID != actorID {
			return apperr.Unauthorized("only the event creator can end the event")
		}

		if !ev.Active() {
			return apperr.StateConflict("event %s is already %s", ev.ID, ev.Status)
		}

		if err := sc.rejectPending(ctx, ev, actorID); err != nil {
			return err
		}

		byUser, list, err := sc.participants(ctx, ev.ID)
		if err != nil {
			return err
		}

		balances := make([]settlement.Balance, 0, len(list)+1)
		for _, p := range list {
			balances = append(balances, settlement.Balance{UserID: p.UserID, Amount: p.Balance})
		}

		balances = append(balances, settlement.Balance{UserID: settlement.Pool, Amount: pool.Available(ev).Neg()})

		transfers, err = settlement.Minimize(balances)
		if err != nil {
			return fmt.Errorf("settling event %s: %w", ev.ID, err)
		}

		if err := sc.tx.CreateSettlements(ctx, settlement.Records(ev.ID, transfers)); err != nil {
			return fmt.Errorf("recording settlements: %w", err)
		}

		completedAt := sc.now
		ev.Status = pool.StatusCompleted
		ev.CompletedAt = &completedAt

		if err := sc.refund(ctx, ev, byUser, transfers); err != nil {
			return err
		}

		if err := sc.saveEvent(ctx, ev); err != nil {
			return err
		}

		for _, p := range list {
			sc.notify(notify.TypeEventEnded, p.UserID, notify.WithEvent(ev.ID), notify.WithAmount(p.Balance))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return transfers, nil
}

func (sc *scope) rejectPending(ctx context.Context, ev *pool.Event, actorID uuid.UUID) error {
	expenses, err := sc.tx.ListExpenses(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("listing expenses: %w", err)
	}

	for _, e := range expenses {
		if e.ApprovalStatus != expense.ApprovalPending {
			continue
		}

		if err := sc.resolve(ctx, e, actorID, expense.ActionReject, "event ended"); err != nil {
			return err
		}

		e.Status = expense.StatusNotApplied

		if err := sc.tx.UpdateExpense(ctx, e); err != nil {
			return fmt.Errorf("updating expense %s: %w", e.ID, err)
		}
	}

	return nil
}

// refund takes the pool surplus out of the event and pays it into the
// recipients' wallets, which in turn pays down their open debts. ev must be
// locked and already completed, so debts of ev paid here go to settlement
// creditors.
func (sc *scope) refund(ctx context.Context, ev *pool.Event, byUser map[uuid.UUID]*pool.Participant, transfers []settlement.Transfer) error {
	var refunds []settlement.Transfer

	for _, t := range transfers {
		if t.From != settlement.Pool {
			continue
		}

		p := byUser[t.To]

		if err := pool.RefundSurplus(ev, p, t.Amount); err != nil {
			return fmt.Errorf("refunding %s: %w", t.To, err)
		}

		if err := sc.recordDeposit(ctx, ev, p, t.Amount.Neg(), pool.SourceRefund, ev.ID.String()); err != nil {
			return err
		}

		if err := sc.saveParticipants(ctx, p); err != nil {
			return err
		}

		refunds = append(refunds, t)
	}

	if len(refunds) == 0 {
		return nil
	}

	recipients := make([]uuid.UUID, len(refunds))
	for i, t := range refunds {
		recipients[i] = t.To
	}

	if err := sc.lockDebtEvents(ctx, recipients...); err != nil {
		return err
	}

	if err := sc.wallets.Lock(ctx, recipients...); err != nil {
		return err
	}

	for _, t := range refunds {
		res, err := sc.wallets.Credit(ctx, t.To, t.Amount, wallet.ReasonRefund, ev.ID.String())
		if err != nil {
			return fmt.Errorf("refunding %s: %w", t.To, err)
		}

		if err := sc.creditDebtEvents(ctx, res.Applied, ev); err != nil {
			return err
		}
	}

	return nil
}

func newParticipant(eventID, userID uuid.UUID, status pool.ParticipantStatus, pledge decimal.Decimal, sc *scope) *pool.Participant {
	return &pool.Participant{
		EventID:               eventID,
		UserID:                userID,
		Status:                status,
		PledgedDeposit:        pledge,
		DepositAmount:         decimal.Zero,
		TotalSpent:            decimal.Zero,
		Balance:               decimal.Zero,
		AvailableContribution: decimal.Zero,
		JoinedAt:              sc.now,
		UpdatedAt:             sc.now,
	}
}

// averagePledge is the mean pledge of members who pledged something.
func averagePledge(ps []*pool.Participant) decimal.Decimal {
	sum, n := decimal.Zero, 0

	for _, p := range ps {
		if p.Status == pool.ParticipantRejected || !p.PledgedDeposit.IsPositive() {
			continue
		}

		sum = sum.Add(p.PledgedDeposit)
		n++
	}

	if n == 0 {
		return decimal.Zero
	}

	return sum.Div(decimal.NewFromInt(int64(n)))
}
