// Package ledger runs every pool operation as one transaction against the
// store: rules and reliability gate the request, splits are computed, the
// approval gate decides whether money moves now, the pool is mutated, and
// shortfalls cascade into wallets and debts. Notifications go out only
// after commit.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/debt"
	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/notify"
	"github.com/MrJamesThe3rd/kitty/internal/payment"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
	"github.com/MrJamesThe3rd/kitty/internal/settlement"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

type Repository interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one store transaction. LockEvent serializes every ledger mutation
// on an event until the transaction ends.
type Tx interface {
	debt.Repository
	wallet.Repository

	LockEvent(ctx context.Context, eventID uuid.UUID) error

	CreateEvent(ctx context.Context, ev *pool.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*pool.Event, error)
	UpdateEvent(ctx context.Context, ev *pool.Event) error

	CreateParticipant(ctx context.Context, p *pool.Participant) error
	GetParticipant(ctx context.Context, eventID, userID uuid.UUID) (*pool.Participant, error)
	ListParticipants(ctx context.Context, eventID uuid.UUID) ([]*pool.Participant, error)
	UpdateParticipant(ctx context.Context, p *pool.Participant) error
	CreateDeposit(ctx context.Context, d *pool.Deposit) error
	ListDeposits(ctx context.Context, eventID uuid.UUID) ([]*pool.Deposit, error)

	CreateExpense(ctx context.Context, e *expense.Expense) error
	GetExpense(ctx context.Context, id uuid.UUID) (*expense.Expense, error)
	UpdateExpense(ctx context.Context, e *expense.Expense) error
	// ListExpenses returns an event's expenses in insertion order.
	ListExpenses(ctx context.Context, eventID uuid.UUID) ([]*expense.Expense, error)
	CreateApprovalRequest(ctx context.Context, r *expense.ApprovalRequest) error
	GetApprovalRequest(ctx context.Context, expenseID uuid.UUID) (*expense.ApprovalRequest, error)
	UpdateApprovalRequest(ctx context.Context, r *expense.ApprovalRequest) error
	CreateAuditRecord(ctx context.Context, r *expense.AuditRecord) error

	CreateSettlements(ctx context.Context, records []*settlement.Record) error
	// ListSettlements returns an ended event's transfers in plan order.
	ListSettlements(ctx context.Context, eventID uuid.UUID) ([]*settlement.Record, error)
	UpdateSettlement(ctx context.Context, r *settlement.Record) error

	// MarkPaymentProcessed records a payment id and reports false when it
	// was already recorded.
	MarkPaymentProcessed(ctx context.Context, paymentID string, kind payment.Kind) (bool, error)

	Commit() error
	Rollback() error
}

type Config struct {
	DebtDueIn       time.Duration
	CriticalDebtAge int
}

type Service struct {
	repo     Repository
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func NewService(repo Repository, notifier notify.Notifier, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: notifier,
		cfg: Config{
			DebtDueIn:       debt.DefaultDueIn,
			CriticalDebtAge: debt.DefaultCriticalAge,
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// scope is the state of one running operation.
type scope struct {
	tx      Tx
	debts   *debt.Service
	wallets *wallet.Service
	msgs    []notify.Message
	now     time.Time
}

func (sc *scope) notify(t notify.Type, userID uuid.UUID, opts ...notify.MessageOption) {
	msg := notify.New(t, userID, opts...)
	msg.CreatedAt = sc.now
	sc.msgs = append(sc.msgs, msg)
}

// run executes fn in a transaction, committing when fn succeeds and
// notifying afterwards. Any error rolls everything back.
func (s *Service) run(ctx context.Context, fn func(sc *scope) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	debts := debt.NewService(tx,
		debt.WithClock(s.now),
		debt.WithDueIn(s.cfg.DebtDueIn),
		debt.WithCriticalAge(s.cfg.CriticalDebtAge),
	)

	sc := &scope{
		tx:      tx,
		debts:   debts,
		wallets: wallet.NewService(tx, debts, wallet.WithClock(s.now)),
		now:     s.now(),
	}

	if err := fn(sc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if len(sc.msgs) > 0 {
		s.notifier.Notify(sc.msgs...)
	}

	return nil
}

// lockedEvent locks and loads an event.
func (sc *scope) lockedEvent(ctx context.Context, eventID uuid.UUID) (*pool.Event, error) {
	if err := sc.tx.LockEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("locking event %s: %w", eventID, err)
	}

	return sc.tx.GetEvent(ctx, eventID)
}

func (sc *scope) participants(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]*pool.Participant, []*pool.Participant, error) {
	list, err := sc.tx.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing participants: %w", err)
	}

	byUser := make(map[uuid.UUID]*pool.Participant, len(list))
	for _, p := range list {
		byUser[p.UserID] = p
	}

	return byUser, list, nil
}

func (sc *scope) saveEvent(ctx context.Context, ev *pool.Event) error {
	ev.UpdatedAt = sc.now

	if err := sc.tx.UpdateEvent(ctx, ev); err != nil {
		return fmt.Errorf("updating event %s: %w", ev.ID, err)
	}

	return nil
}

func (sc *scope) saveParticipants(ctx context.Context, ps ...*pool.Participant) error {
	for _, p := range ps {
		p.UpdatedAt = sc.now

		if err := sc.tx.UpdateParticipant(ctx, p); err != nil {
			return fmt.Errorf("updating participant %s: %w", p.UserID, err)
		}
	}

	return nil
}

// deposit credits amount to p and records it in the event's history.
func (sc *scope) deposit(ctx context.Context, ev *pool.Event, p *pool.Participant, amount decimal.Decimal, source pool.DepositSource, reference string) error {
	if err := pool.ConfirmDeposit(ev, p, amount); err != nil {
		return err
	}

	return sc.recordDeposit(ctx, ev, p, amount, source, reference)
}

func (sc *scope) recordDeposit(ctx context.Context, ev *pool.Event, p *pool.Participant, amount decimal.Decimal, source pool.DepositSource, reference string) error {
	d := &pool.Deposit{
		ID:        uuid.New(),
		EventID:   ev.ID,
		UserID:    p.UserID,
		Amount:    amount,
		Source:    source,
		Reference: reference,
		CreatedAt: sc.now,
	}

	if err := sc.tx.CreateDeposit(ctx, d); err != nil {
		return fmt.Errorf("recording deposit: %w", err)
	}

	return nil
}

// reliability scores a user from their shortfalls and debts.
func (sc *scope) reliability(ctx context.Context, userID uuid.UUID) (rules.Report, error) {
	shortfalls, err := sc.wallets.ShortfallCount(ctx, userID)
	if err != nil {
		return rules.Report{}, fmt.Errorf("counting shortfalls: %w", err)
	}

	h, err := sc.debts.History(ctx, userID)
	if err != nil {
		return rules.Report{}, err
	}

	return rules.Assess(rules.History{
		ShortfallCount:      shortfalls,
		DebtAgeDays:         h.DebtAgeDays,
		LateSettlementCount: h.LateSettlementCount,
	}), nil
}

// effectiveRules are the event's rules tightened for userID.
func (sc *scope) effectiveRules(ctx context.Context, ev *pool.Event, userID uuid.UUID) (rules.Rules, rules.Report, error) {
	report, err := sc.reliability(ctx, userID)
	if err != nil {
		return rules.Rules{}, rules.Report{}, err
	}

	return rules.ApplyReliabilityAdjustments(ev.Rules, report.Policy), report, nil
}
