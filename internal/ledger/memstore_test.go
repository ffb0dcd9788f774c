package ledger_test

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/debt"
	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/payment"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/settlement"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

type memberKey struct {
	event, user uuid.UUID
}

// memData is everything the store holds. Stored values are never mutated
// in place, so a shallow clone is a snapshot.
type memData struct {
	events       map[uuid.UUID]pool.Event
	participants map[memberKey]pool.Participant
	memberOrder  []memberKey
	deposits     []pool.Deposit
	expenses     map[uuid.UUID]expense.Expense
	expenseOrder []uuid.UUID
	approvals    map[uuid.UUID]expense.ApprovalRequest
	audits       []expense.AuditRecord
	settlements  map[uuid.UUID][]settlement.Record
	payments     map[string]payment.Kind
	debts        map[uuid.UUID]debt.Debt
	debtOrder    []uuid.UUID
	debtPayments []debt.Payment
	wallets      map[uuid.UUID]wallet.Wallet
	walletTxs    []wallet.Transaction
	usages       []wallet.Usage
}

func (d memData) clone() memData {
	return memData{
		events:       maps.Clone(d.events),
		participants: maps.Clone(d.participants),
		memberOrder:  slices.Clone(d.memberOrder),
		deposits:     slices.Clone(d.deposits),
		expenses:     maps.Clone(d.expenses),
		expenseOrder: slices.Clone(d.expenseOrder),
		approvals:    maps.Clone(d.approvals),
		audits:       slices.Clone(d.audits),
		settlements:  maps.Clone(d.settlements),
		payments:     maps.Clone(d.payments),
		debts:        maps.Clone(d.debts),
		debtOrder:    slices.Clone(d.debtOrder),
		debtPayments: slices.Clone(d.debtPayments),
		wallets:      maps.Clone(d.wallets),
		walletTxs:    slices.Clone(d.walletTxs),
		usages:       slices.Clone(d.usages),
	}
}

// memStore is an in-memory ledger.Repository. A transaction works on a
// copy of the data that replaces the committed state on Commit.
type memStore struct {
	data    memData
	commits int
	locks   []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{data: memData{
		events:       map[uuid.UUID]pool.Event{},
		participants: map[memberKey]pool.Participant{},
		expenses:     map[uuid.UUID]expense.Expense{},
		approvals:    map[uuid.UUID]expense.ApprovalRequest{},
		settlements:  map[uuid.UUID][]settlement.Record{},
		payments:     map[string]payment.Kind{},
		debts:        map[uuid.UUID]debt.Debt{},
		wallets:      map[uuid.UUID]wallet.Wallet{},
	}}
}

func (s *memStore) Begin(context.Context) (ledger.Tx, error) {
	return &memTx{
		store:   s,
		data:    s.data.clone(),
		events:  map[uuid.UUID]bool{},
		wallets: map[uuid.UUID]bool{},
	}, nil
}

// memTx fails writes that are not covered by the lock the real store
// relies on, and event locks taken after a wallet lock.
type memTx struct {
	store   *memStore
	data    memData
	done    bool
	events  map[uuid.UUID]bool
	wallets map[uuid.UUID]bool
}

func (t *memTx) requireEvent(eventID uuid.UUID) error {
	if !t.events[eventID] {
		return fmt.Errorf("write to event %s without holding its lock", eventID)
	}

	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return apperr.StateConflict("transaction already finished")
	}

	t.done = true
	t.store.data = t.data
	t.store.commits++

	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

func (t *memTx) LockEvent(_ context.Context, eventID uuid.UUID) error {
	if !t.events[eventID] && len(t.wallets) > 0 {
		return fmt.Errorf("event %s locked after a wallet", eventID)
	}

	t.events[eventID] = true
	t.store.locks = append(t.store.locks, eventID)

	return nil
}

func (t *memTx) CreateEvent(_ context.Context, ev *pool.Event) error {
	t.data.events[ev.ID] = *ev
	return nil
}

func (t *memTx) GetEvent(_ context.Context, id uuid.UUID) (*pool.Event, error) {
	ev, ok := t.data.events[id]
	if !ok {
		return nil, apperr.NotFound("event %s", id)
	}

	return &ev, nil
}

func (t *memTx) UpdateEvent(_ context.Context, ev *pool.Event) error {
	if err := t.requireEvent(ev.ID); err != nil {
		return err
	}

	if _, ok := t.data.events[ev.ID]; !ok {
		return apperr.NotFound("event %s", ev.ID)
	}

	t.data.events[ev.ID] = *ev

	return nil
}

func (t *memTx) CreateParticipant(_ context.Context, p *pool.Participant) error {
	k := memberKey{p.EventID, p.UserID}
	if _, ok := t.data.participants[k]; ok {
		return apperr.StateConflict("duplicate participant")
	}

	t.data.participants[k] = *p
	t.data.memberOrder = append(t.data.memberOrder, k)

	return nil
}

func (t *memTx) GetParticipant(_ context.Context, eventID, userID uuid.UUID) (*pool.Participant, error) {
	p, ok := t.data.participants[memberKey{eventID, userID}]
	if !ok {
		return nil, apperr.NotFound("participant %s", userID)
	}

	return &p, nil
}

func (t *memTx) ListParticipants(_ context.Context, eventID uuid.UUID) ([]*pool.Participant, error) {
	var out []*pool.Participant

	for _, k := range t.data.memberOrder {
		if k.event == eventID {
			p := t.data.participants[k]
			out = append(out, &p)
		}
	}

	return out, nil
}

func (t *memTx) UpdateParticipant(_ context.Context, p *pool.Participant) error {
	if err := t.requireEvent(p.EventID); err != nil {
		return err
	}

	k := memberKey{p.EventID, p.UserID}
	if _, ok := t.data.participants[k]; !ok {
		return apperr.NotFound("participant %s", p.UserID)
	}

	t.data.participants[k] = *p

	return nil
}

func (t *memTx) CreateDeposit(_ context.Context, d *pool.Deposit) error {
	if err := t.requireEvent(d.EventID); err != nil {
		return err
	}

	t.data.deposits = append(t.data.deposits, *d)

	return nil
}

func (t *memTx) ListDeposits(_ context.Context, eventID uuid.UUID) ([]*pool.Deposit, error) {
	var out []*pool.Deposit

	for _, d := range t.data.deposits {
		if d.EventID == eventID {
			out = append(out, &d)
		}
	}

	return out, nil
}

func storedExpense(e *expense.Expense) expense.Expense {
	c := *e
	c.Splits = slices.Clone(e.Splits)

	return c
}

func (t *memTx) CreateExpense(_ context.Context, e *expense.Expense) error {
	t.data.expenses[e.ID] = storedExpense(e)
	t.data.expenseOrder = append(t.data.expenseOrder, e.ID)

	return nil
}

func (t *memTx) GetExpense(_ context.Context, id uuid.UUID) (*expense.Expense, error) {
	e, ok := t.data.expenses[id]
	if !ok {
		return nil, apperr.NotFound("expense %s", id)
	}

	e = storedExpense(&e)

	return &e, nil
}

func (t *memTx) UpdateExpense(_ context.Context, e *expense.Expense) error {
	if _, ok := t.data.expenses[e.ID]; !ok {
		return apperr.NotFound("expense %s", e.ID)
	}

	t.data.expenses[e.ID] = storedExpense(e)

	return nil
}

func (t *memTx) ListExpenses(_ context.Context, eventID uuid.UUID) ([]*expense.Expense, error) {
	var out []*expense.Expense

	for _, id := range t.data.expenseOrder {
		if e := t.data.expenses[id]; e.EventID == eventID {
			e = storedExpense(&e)
			out = append(out, &e)
		}
	}

	return out, nil
}

func (t *memTx) CreateApprovalRequest(_ context.Context, r *expense.ApprovalRequest) error {
	t.data.approvals[r.ExpenseID] = *r
	return nil
}

func (t *memTx) GetApprovalRequest(_ context.Context, expenseID uuid.UUID) (*expense.ApprovalRequest, error) {
	r, ok := t.data.approvals[expenseID]
	if !ok {
		return nil, apperr.NotFound("approval request for %s", expenseID)
	}

	return &r, nil
}

func (t *memTx) UpdateApprovalRequest(_ context.Context, r *expense.ApprovalRequest) error {
	t.data.approvals[r.ExpenseID] = *r
	return nil
}

func (t *memTx) CreateAuditRecord(_ context.Context, r *expense.AuditRecord) error {
	t.data.audits = append(t.data.audits, *r)
	return nil
}

func (t *memTx) CreateSettlements(_ context.Context, records []*settlement.Record) error {
	for _, r := range records {
		if err := t.requireEvent(r.EventID); err != nil {
			return err
		}

		t.data.settlements[r.EventID] = append(slices.Clone(t.data.settlements[r.EventID]), *r)
	}

	return nil
}

func (t *memTx) ListSettlements(_ context.Context, eventID uuid.UUID) ([]*settlement.Record, error) {
	var out []*settlement.Record

	for _, r := range t.data.settlements[eventID] {
		out = append(out, &r)
	}

	return out, nil
}

func (t *memTx) UpdateSettlement(_ context.Context, r *settlement.Record) error {
	if err := t.requireEvent(r.EventID); err != nil {
		return err
	}

	records := slices.Clone(t.data.settlements[r.EventID])
	if r.Position < 0 || r.Position >= len(records) {
		return apperr.NotFound("settlement %d", r.Position)
	}

	records[r.Position] = *r
	t.data.settlements[r.EventID] = records

	return nil
}

func (t *memTx) MarkPaymentProcessed(_ context.Context, paymentID string, kind payment.Kind) (bool, error) {
	if _, ok := t.data.payments[paymentID]; ok {
		return false, nil
	}

	t.data.payments[paymentID] = kind

	return true, nil
}

func storedDebt(d *debt.Debt) debt.Debt {
	c := *d
	c.Payments = slices.Clone(d.Payments)

	return c
}

func (t *memTx) CreateDebt(_ context.Context, d *debt.Debt) error {
	t.data.debts[d.ID] = storedDebt(d)
	t.data.debtOrder = append(t.data.debtOrder, d.ID)

	return nil
}

func (t *memTx) GetDebt(_ context.Context, id uuid.UUID) (*debt.Debt, error) {
	d, ok := t.data.debts[id]
	if !ok {
		return nil, apperr.NotFound("debt %s", id)
	}

	d = storedDebt(&d)

	return &d, nil
}

func (t *memTx) UpdateDebt(_ context.Context, d *debt.Debt) error {
	if err := t.requireEvent(d.EventID); err != nil {
		return err
	}

	if _, ok := t.data.debts[d.ID]; !ok {
		return apperr.NotFound("debt %s", d.ID)
	}

	t.data.debts[d.ID] = storedDebt(d)

	return nil
}

func (t *memTx) CreateDebtPayment(_ context.Context, p *debt.Payment) error {
	t.data.debtPayments = append(t.data.debtPayments, *p)
	return nil
}

func (t *memTx) ListDebts(_ context.Context, f debt.ListFilter) ([]*debt.Debt, error) {
	var out []*debt.Debt

	for _, id := range t.data.debtOrder {
		d := t.data.debts[id]
		d = storedDebt(&d)

		switch {
		case f.UserID != nil && d.UserID != *f.UserID,
			f.EventID != nil && d.EventID != *f.EventID,
			f.ExpenseID != nil && d.ExpenseID != *f.ExpenseID,
			f.OpenOnly && !d.Open():
			continue
		}

		out = append(out, &d)
	}

	return out, nil
}

func (t *memTx) LockWallets(_ context.Context, userIDs []uuid.UUID) error {
	for _, id := range userIDs {
		t.wallets[id] = true

		if _, ok := t.data.wallets[id]; !ok {
			t.data.wallets[id] = wallet.Wallet{UserID: id}
		}
	}

	return nil
}

func (t *memTx) GetWallet(_ context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	w, ok := t.data.wallets[userID]
	if !ok {
		w = wallet.Wallet{UserID: userID}
	}

	return &w, nil
}

func (t *memTx) SaveWallet(_ context.Context, w *wallet.Wallet) error {
	if !t.wallets[w.UserID] {
		return fmt.Errorf("write to wallet %s without holding its lock", w.UserID)
	}

	t.data.wallets[w.UserID] = *w

	return nil
}

func (t *memTx) CreateWalletTransaction(_ context.Context, tx *wallet.Transaction) error {
	t.data.walletTxs = append(t.data.walletTxs, *tx)
	return nil
}

func (t *memTx) ListWalletTransactions(_ context.Context, userID uuid.UUID, limit int) ([]*wallet.Transaction, error) {
	var out []*wallet.Transaction

	for i := len(t.data.walletTxs) - 1; i >= 0 && len(out) < limit; i-- {
		if tx := t.data.walletTxs[i]; tx.UserID == userID {
			out = append(out, &tx)
		}
	}

	return out, nil
}

func (t *memTx) CreateUsage(_ context.Context, u *wallet.Usage) error {
	t.data.usages = append(t.data.usages, *u)
	return nil
}

func (t *memTx) CountUsages(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0

	for _, u := range t.data.usages {
		if u.UserID == userID {
			n++
		}
	}

	return n, nil
}
