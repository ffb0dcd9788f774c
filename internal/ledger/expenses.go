package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/audit"
	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/money"
	"github.com/MrJamesThe3rd/kitty/internal/notify"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
	"github.com/MrJamesThe3rd/kitty/internal/split"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

type CreateExpenseParams struct {
	EventID     uuid.UUID
	PayerID     uuid.UUID
	Amount      decimal.Decimal
	Description string
	Category    string
	Strategy    split.Strategy
	// Entries defaults to an equal split among every authorized
	// participant.
	Entries       []split.Entry
	DefaultMargin split.Margin
}

type CreateExpenseResult struct {
	Expense *expense.Expense
	Warning string
}

// CreateExpense records an expense. When the event's rules (tightened for
// the payer's reliability) require approval the expense waits for the
// creator; otherwise the pool is charged right away.
func (s *Service) CreateExpense(ctx context.Context, params CreateExpenseParams) (*CreateExpenseResult, error) {
	if !params.Amount.IsPositive() {
		return nil, apperr.Validation("expense amount must be positive")
	}

	if params.Strategy == "" {
		params.Strategy = split.StrategyEqual
	}

	if !params.Strategy.Valid() {
		return nil, apperr.Validation("unknown split strategy %q", params.Strategy)
	}

	var result *CreateExpenseResult

	err := s.run(ctx, func(sc *scope) error {
		var err error

		result, err = sc.createExpense(ctx, params)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (sc *scope) createExpense(ctx context.Context, params CreateExpenseParams) (*CreateExpenseResult, error) {
	ev, err := sc.lockedEvent(ctx, params.EventID)
	if err != nil {
		return nil, err
	}

	if !ev.Active() {
		return nil, apperr.StateConflict("event %s is %s", ev.ID, ev.Status)
	}

	byUser, list, err := sc.participants(ctx, ev.ID)
	if err != nil {
		return nil, err
	}

	payer, ok := byUser[params.PayerID]
	if !ok || !payer.Authorized() {
		return nil, apperr.Unauthorized("only active participants can add expenses")
	}

	effective, _, err := sc.effectiveRules(ctx, ev, payer.UserID)
	if err != nil {
		return nil, err
	}

	if err := sc.debts.CheckRestrictions(ctx, payer.UserID, effective.MaxDebtAllowed); err != nil {
		return nil, err
	}

	amount := money.Round(params.Amount)

	res := rules.ValidateExpense(effective, rules.ExpenseInput{
		Amount:        amount,
		Category:      params.Category,
		PayerSpent:    payer.TotalSpent,
		PoolAvailable: pool.Available(ev),
	})
	if !res.Valid {
		return nil, res.Err
	}

	authorized := make(map[uuid.UUID]bool, len(list))
	var members []uuid.UUID

	for _, p := range list {
		if p.Authorized() {
			authorized[p.UserID] = true
			members = append(members, p.UserID)
		}
	}

	entries := params.Entries
	if len(entries) == 0 {
		entries = split.EqualEntries(members)
	}

	shares, err := split.Calculate(split.Request{
		Total:         amount,
		Strategy:      params.Strategy,
		Entries:       entries,
		DefaultMargin: params.DefaultMargin,
	})
	if err != nil {
		return nil, err
	}

	if err := split.Validate(amount, shares, authorized); err != nil {
		return nil, err
	}

	action := expense.ActionAutoApprove
	if res.RequiresApproval {
		action = expense.ActionSubmit
	}

	approval, err := expense.Transition("", action)
	if err != nil {
		return nil, err
	}

	e := &expense.Expense{
		ID:             uuid.New(),
		EventID:        ev.ID,
		PayerID:        payer.UserID,
		Amount:         amount,
		Description:    strings.TrimSpace(params.Description),
		Category:       strings.TrimSpace(params.Category),
		SplitType:      params.Strategy,
		ApprovalStatus: approval,
		Status:         expense.StatusAwaitingApproval,
		CreatedAt:      sc.now.Truncate(audit.Precision),
		UpdatedAt:      sc.now,
	}

	for _, sh := range shares {
		e.Splits = append(e.Splits, expense.Split{
			UserID:        sh.UserID,
			Amount:        sh.Amount,
			Status:        expense.SplitPending,
			PoolDrawn:     decimal.Zero,
			WalletCovered: decimal.Zero,
			DebtCovered:   decimal.Zero,
		})
	}

	if e.LeafHash, err = e.Leaf().Hash(); err != nil {
		return nil, err
	}

	if err := sc.tx.CreateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("creating expense: %w", err)
	}

	if !res.RequiresApproval {
		if err := sc.deduct(ctx, ev, byUser, e); err != nil {
			return nil, err
		}

		if err := sc.tx.UpdateExpense(ctx, e); err != nil {
			return nil, fmt.Errorf("updating expense %s: %w", e.ID, err)
		}
	}

	reason := res.Trigger
	if res.RequiresApproval {
		r := &expense.ApprovalRequest{
			ID:            uuid.New(),
			ExpenseID:     e.ID,
			RequestedBy:   payer.UserID,
			Status:        expense.ApprovalPending,
			TriggerReason: res.Trigger,
			CreatedAt:     sc.now,
		}

		if err := sc.tx.CreateApprovalRequest(ctx, r); err != nil {
			return nil, fmt.Errorf("creating approval request: %w", err)
		}

		sc.notify(notify.TypeApprovalRequested, ev.CreatorID,
			notify.WithEvent(ev.ID), notify.WithExpense(e.ID), notify.WithAmount(amount), notify.WithText(res.Trigger))
	} else if res.Warning != "" {
		reason = res.Warning
	}

	if err := sc.record(ctx, e.ID, payer.UserID, action, reason); err != nil {
		return nil, err
	}

	if err := sc.recomputeRoot(ctx, ev); err != nil {
		return nil, err
	}

	if err := sc.saveEvent(ctx, ev); err != nil {
		return nil, err
	}

	for _, m := range list {
		if m.UserID != payer.UserID && authorized[m.UserID] {
			sc.notify(notify.TypeExpenseCreated, m.UserID,
				notify.WithEvent(ev.ID), notify.WithExpense(e.ID), notify.WithAmount(amount))
		}
	}

	return &CreateExpenseResult{Expense: e, Warning: res.Warning}, nil
}

// Approve applies a pending expense to the pool. Only the event creator
// may approve.
func (s *Service) Approve(ctx context.Context, expenseID, actorID uuid.UUID) (*expense.Expense, error) {
	return s.transition(ctx, expenseID, actorID, expense.ActionApprove, "")
}

// Reject closes a pending expense without touching the pool.
func (s *Service) Reject(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error) {
	return s.transition(ctx, expenseID, actorID, expense.ActionReject, reason)
}

// Cancel withdraws an expense. A deducted expense is reverted exactly,
// shortfall money goes back to the wallets it came from and the debts it
// created are forgiven.
func (s *Service) Cancel(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error) {
	return s.transition(ctx, expenseID, actorID, expense.ActionCancel, reason)
}

func (s *Service) transition(ctx context.Context, expenseID, actorID uuid.UUID, action expense.Action, reason string) (*expense.Expense, error) {
	var e *expense.Expense

	err := s.run(ctx, func(sc *scope) error {
		found, err := sc.tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}

		ev, err := sc.lockedEvent(ctx, found.EventID)
		if err != nil {
			return err
		}

		// Re-read under the lock.
		e, err = sc.tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}

		if err := expense.Authorize(action, actorID, ev.CreatorID, e.PayerID); err != nil {
			return err
		}

		if !ev.Active() {
			return apperr.StateConflict("event %s is %s", ev.ID, ev.Status)
		}

		wasDeducted := e.Deducted()

		if err := sc.resolve(ctx, e, actorID, action, reason); err != nil {
			return err
		}

		byUser, _, err := sc.participants(ctx, ev.ID)
		if err != nil {
			return err
		}

		var t notify.Type

		switch action {
		case expense.ActionApprove:
			t = notify.TypeExpenseApproved
			err = sc.deduct(ctx, ev, byUser, e)
		case expense.ActionReject:
			t = notify.TypeExpenseRejected
			e.Status = expense.StatusNotApplied
		case expense.ActionCancel:
			t = notify.TypeExpenseCancelled
			e.Status = expense.StatusNotApplied

			if wasDeducted {
				err = sc.revert(ctx, ev, byUser, e, actorID)
			}
		}

		if err != nil {
			return err
		}

		e.UpdatedAt = sc.now

		if err := sc.tx.UpdateExpense(ctx, e); err != nil {
			return fmt.Errorf("updating expense %s: %w", e.ID, err)
		}

		if err := sc.saveEvent(ctx, ev); err != nil {
			return err
		}

		sc.notify(t, e.PayerID, notify.WithEvent(ev.ID), notify.WithExpense(e.ID), notify.WithAmount(e.Amount))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return e, nil
}

// resolve moves the approval state machine, closes an open approval
// request and writes the audit record.
func (sc *scope) resolve(ctx context.Context, e *expense.Expense, actorID uuid.UUID, action expense.Action, reason string) error {
	next, err := expense.Transition(e.ApprovalStatus, action)
	if err != nil {
		return err
	}

	prev := e.ApprovalStatus
	e.ApprovalStatus = next

	if prev == expense.ApprovalPending {
		r, err := sc.tx.GetApprovalRequest(ctx, e.ID)
		if err != nil && !isNotFound(err) {
			return err
		}

		if r != nil && r.Status == expense.ApprovalPending {
			resolvedAt := sc.now
			r.Status = next
			r.ResolvedBy = &actorID
			r.ResolvedAt = &resolvedAt

			if err := sc.tx.UpdateApprovalRequest(ctx, r); err != nil {
				return fmt.Errorf("resolving approval request: %w", err)
			}
		}
	}

	return sc.record(ctx, e.ID, actorID, action, reason)
}

func (sc *scope) record(ctx context.Context, expenseID, actorID uuid.UUID, action expense.Action, reason string) error {
	r := &expense.AuditRecord{
		ID:        uuid.New(),
		ExpenseID: expenseID,
		ActorID:   actorID,
		Action:    action,
		Reason:    reason,
		CreatedAt: sc.now,
	}

	if err := sc.tx.CreateAuditRecord(ctx, r); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}

	return nil
}

// deduct charges e's splits to the pool. Shares a participant's liquid
// contribution cannot cover are first taken from their wallet, which is
// booked as a deposit, and the rest becomes a debt.
func (sc *scope) deduct(ctx context.Context, ev *pool.Event, byUser map[uuid.UUID]*pool.Participant, e *expense.Expense) error {
	if err := pool.ValidateOperation(ev, e.Amount); err != nil {
		return err
	}

	users := make([]uuid.UUID, 0, len(e.Splits))
	for _, sp := range e.Splits {
		if _, ok := byUser[sp.UserID]; !ok {
			return apperr.NotFound("user %s is not a participant of event %s", sp.UserID, ev.ID)
		}

		users = append(users, sp.UserID)
	}

	if err := sc.wallets.Lock(ctx, users...); err != nil {
		return err
	}

	charges := make([]pool.Charge, len(e.Splits))

	for i := range e.Splits {
		sp := &e.Splits[i]
		p := byUser[sp.UserID]

		cov, err := sc.wallets.CoverShortfall(ctx, wallet.Shortfall{
			UserID:    sp.UserID,
			EventID:   ev.ID,
			ExpenseID: e.ID,
			Required:  sp.Amount,
			Available: p.AvailableContribution,
		})
		if err != nil {
			return err
		}

		if cov.WalletCovered.IsPositive() {
			if err := sc.deposit(ctx, ev, p, cov.WalletCovered, pool.SourceWallet, e.ID.String()); err != nil {
				return err
			}

			sc.notify(notify.TypeWalletUsed, sp.UserID,
				notify.WithEvent(ev.ID), notify.WithExpense(e.ID), notify.WithAmount(cov.WalletCovered))
		}

		sp.WalletCovered = cov.WalletCovered
		sp.DebtCovered = decimal.Zero

		if cov.Debt != nil {
			sp.DebtCovered = cov.Debt.AmountOriginal

			sc.notify(notify.TypeDebtCreated, sp.UserID,
				notify.WithEvent(ev.ID), notify.WithExpense(e.ID), notify.WithDebt(cov.Debt.ID), notify.WithAmount(cov.Debt.AmountOriginal))
		}

		charges[i] = pool.Charge{UserID: sp.UserID, Amount: sp.Amount}
	}

	applied, err := pool.DeductExpense(ev, byUser, e.Amount, charges)
	if err != nil {
		return err
	}

	for i, c := range applied {
		e.Splits[i].PoolDrawn = c.PoolDrawn
		e.Splits[i].Status = expense.SplitCharged
	}

	e.Status = expense.StatusDeducted

	return sc.saveParticipants(ctx, participantsOf(byUser, users)...)
}

// revert undoes deduct for a cancelled expense.
func (sc *scope) revert(ctx context.Context, ev *pool.Event, byUser map[uuid.UUID]*pool.Participant, e *expense.Expense, actorID uuid.UUID) error {
	if _, err := sc.debts.ForgiveForExpense(ctx, e.ID, actorID); err != nil {
		return err
	}

	users := make([]uuid.UUID, 0, len(e.Splits))
	charges := make([]pool.Charge, len(e.Splits))

	for i, sp := range e.Splits {
		users = append(users, sp.UserID)
		charges[i] = pool.Charge{UserID: sp.UserID, Amount: sp.Amount, PoolDrawn: sp.PoolDrawn}
	}

	if err := pool.RevertExpense(ev, byUser, e.Amount, charges); err != nil {
		return err
	}

	if err := sc.wallets.Lock(ctx, users...); err != nil {
		return err
	}

	for i := range e.Splits {
		sp := &e.Splits[i]
		sp.Status = expense.SplitReverted

		if !sp.WalletCovered.IsPositive() {
			continue
		}

		p := byUser[sp.UserID]

		back := pool.WithdrawDeposit(ev, p, sp.WalletCovered)
		if !back.IsPositive() {
			continue
		}

		if err := sc.recordDeposit(ctx, ev, p, back.Neg(), pool.SourceWalletReversal, e.ID.String()); err != nil {
			return err
		}

		if _, err := sc.wallets.Reimburse(ctx, sp.UserID, back, e.ID.String()); err != nil {
			return err
		}
	}

	e.Status = expense.StatusReverted

	return sc.saveParticipants(ctx, participantsOf(byUser, users)...)
}

// recomputeRoot rebuilds the event's audit tree over all its expenses.
func (sc *scope) recomputeRoot(ctx context.Context, ev *pool.Event) error {
	expenses, err := sc.tx.ListExpenses(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("listing expenses: %w", err)
	}

	hashes, err := leafHashes(expenses)
	if err != nil {
		return err
	}

	ev.AuditRoot = audit.Build(hashes).Root()

	return nil
}

// leafHashes rebuilds each expense's leaf from its stored fields and checks
// it against the hash recorded at creation.
func leafHashes(expenses []*expense.Expense) ([]audit.Hash, error) {
	hashes := make([]audit.Hash, len(expenses))

	for i, e := range expenses {
		h, err := e.Leaf().Hash()
		if err != nil {
			return nil, err
		}

		if h != e.LeafHash {
			return nil, fmt.Errorf("%w: expense %s of event %s", audit.ErrLeafMismatch, e.ID, e.EventID)
		}

		hashes[i] = h
	}

	return hashes, nil
}

// ListExpenses returns an event's expenses. Only participants may list.
func (s *Service) ListExpenses(ctx context.Context, eventID, actorID uuid.UUID) ([]*expense.Expense, error) {
	var out []*expense.Expense

	err := s.run(ctx, func(sc *scope) error {
		if err := sc.requireParticipant(ctx, eventID, actorID); err != nil {
			return err
		}

		var err error

		out, err = sc.tx.ListExpenses(ctx, eventID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

type AuditProof struct {
	ExpenseID uuid.UUID
	EventID   uuid.UUID
	Index     int
	Leaf      audit.Hash
	Proof     []audit.Step
	Root      audit.Hash
}

// GetAuditProof returns the inclusion proof of an expense against its
// event's published audit root.
func (s *Service) GetAuditProof(ctx context.Context, expenseID, actorID uuid.UUID) (*AuditProof, error) {
	var out *AuditProof

	err := s.run(ctx, func(sc *scope) error {
		e, err := sc.tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}

		if err := sc.requireParticipant(ctx, e.EventID, actorID); err != nil {
			return err
		}

		ev, err := sc.tx.GetEvent(ctx, e.EventID)
		if err != nil {
			return err
		}

		expenses, err := sc.tx.ListExpenses(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("listing expenses: %w", err)
		}

		hashes, err := leafHashes(expenses)
		if err != nil {
			return err
		}

		index := slices.IndexFunc(expenses, func(x *expense.Expense) bool { return x.ID == e.ID })

		if index < 0 {
			return apperr.NotFound("expense %s is not in event %s", e.ID, e.EventID)
		}

		tree := audit.Build(hashes)

		proof, err := tree.Proof(index)
		if err != nil {
			return err
		}

		if tree.Root() != ev.AuditRoot {
			return fmt.Errorf("audit root of event %s does not match its expenses", ev.ID)
		}

		out = &AuditProof{
			ExpenseID: e.ID,
			EventID:   e.EventID,
			Index:     index,
			Leaf:      hashes[index],
			Proof:     proof,
			Root:      ev.AuditRoot,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (sc *scope) requireParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	if _, err := sc.tx.GetParticipant(ctx, eventID, userID); err != nil {
		if isNotFound(err) {
			return apperr.Unauthorized("only participants can access event %s", eventID)
		}

		return err
	}

	return nil
}

func participantsOf(byUser map[uuid.UUID]*pool.Participant, users []uuid.UUID) []*pool.Participant {
	out := make([]*pool.Participant, 0, len(users))
	for _, u := range users {
		out = append(out, byUser[u])
	}

	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
