package debt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/money"
)

const (
	DefaultDueIn       = 7 * 24 * time.Hour
	DefaultCriticalAge = 30
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=debt
type Repository interface {
	CreateDebt(ctx context.Context, d *Debt) error
	GetDebt(ctx context.Context, id uuid.UUID) (*Debt, error)
	UpdateDebt(ctx context.Context, d *Debt) error
	CreateDebtPayment(ctx context.Context, p *Payment) error
	// ListDebts returns matching debts oldest first.
	ListDebts(ctx context.Context, filter ListFilter) ([]*Debt, error)
}

type ListFilter struct {
	UserID    *uuid.UUID
	EventID   *uuid.UUID
	ExpenseID *uuid.UUID
	OpenOnly  bool
}

type Service struct {
	repo        Repository
	now         func() time.Time
	dueIn       time.Duration
	criticalAge int
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDueIn sets how long after creation a debt falls due.
func WithDueIn(d time.Duration) Option {
	return func(s *Service) { s.dueIn = d }
}

// WithCriticalAge sets the age in days at which a single debt blocks its
// holder regardless of amount.
func WithCriticalAge(days int) Option {
	return func(s *Service) { s.criticalAge = days }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		now:         time.Now,
		dueIn:       DefaultDueIn,
		criticalAge: DefaultCriticalAge,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CreateParams struct {
	UserID    uuid.UUID
	EventID   uuid.UUID
	ExpenseID uuid.UUID
	Amount    decimal.Decimal
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Debt, error) {
	if !params.Amount.IsPositive() {
		return nil, apperr.Validation("debt amount must be positive, got %s", params.Amount.StringFixed(2))
	}

	now := s.now()

	d := &Debt{
		ID:              uuid.New(),
		UserID:          params.UserID,
		EventID:         params.EventID,
		ExpenseID:       params.ExpenseID,
		AmountOriginal:  money.Round(params.Amount),
		AmountRemaining: money.Round(params.Amount),
		AmountPaid:      decimal.Zero,
		Status:          StatusOutstanding,
		DueAt:           now.Add(s.dueIn),
		CreatedAt:       now,
	}

	if err := s.repo.CreateDebt(ctx, d); err != nil {
		return nil, fmt.Errorf("creating debt: %w", err)
	}

	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Debt, error) {
	return s.repo.GetDebt(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Debt, error) {
	return s.repo.ListDebts(ctx, filter)
}

// Settle applies a payment to a debt. Paying more than what remains is
// rejected; callers that hold a larger credit use ApplyCredit.
func (s *Service) Settle(ctx context.Context, id uuid.UUID, amount decimal.Decimal, reference string) (*Debt, error) {
	d, err := s.repo.GetDebt(ctx, id)
	if err != nil {
		return nil, err
	}

	if !d.Open() {
		return nil, apperr.StateConflict("debt %s is %s", d.ID, d.Status)
	}

	if !amount.IsPositive() {
		return nil, apperr.Validation("payment must be positive, got %s", amount.StringFixed(2))
	}

	if amount.Sub(d.AmountRemaining).GreaterThan(money.Tolerance) {
		return nil, apperr.Validation("payment %s exceeds remaining %s",
			amount.StringFixed(2), d.AmountRemaining.StringFixed(2))
	}

	if err := s.pay(ctx, d, money.Min(amount, d.AmountRemaining), reference); err != nil {
		return nil, err
	}

	return d, nil
}

// Forgive zeroes what remains of a debt. Only the event's creator may
// forgive.
func (s *Service) Forgive(ctx context.Context, id, actorID, creatorID uuid.UUID) (*Debt, error) {
	d, err := s.repo.GetDebt(ctx, id)
	if err != nil {
		return nil, err
	}

	if actorID != creatorID {
		return nil, apperr.Unauthorized("only the event creator can forgive debts")
	}

	if !d.Open() {
		return nil, apperr.StateConflict("debt %s is %s", d.ID, d.Status)
	}

	if err := s.forgive(ctx, d, actorID); err != nil {
		return nil, err
	}

	return d, nil
}

// ForgiveForExpense forgives every open debt created for an expense. The
// caller has already authorized actorID for the expense.
func (s *Service) ForgiveForExpense(ctx context.Context, expenseID, actorID uuid.UUID) ([]*Debt, error) {
	debts, err := s.repo.ListDebts(ctx, ListFilter{ExpenseID: &expenseID, OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("listing debts for expense %s: %w", expenseID, err)
	}

	for _, d := range debts {
		if err := s.forgive(ctx, d, actorID); err != nil {
			return nil, err
		}
	}

	return debts, nil
}

// ApplyCredit pays down a user's open debts oldest first until the credit
// or the debts run out. It returns the per-debt applications.
func (s *Service) ApplyCredit(ctx context.Context, userID uuid.UUID, credit decimal.Decimal, reference string) ([]Application, error) {
	if !credit.IsPositive() {
		return nil, nil
	}

	debts, err := s.repo.ListDebts(ctx, ListFilter{UserID: &userID, OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("listing debts for user %s: %w", userID, err)
	}

	var applied []Application

	left := credit

	for _, d := range debts {
		if !left.GreaterThan(money.Zero) {
			break
		}

		amount := money.Min(left, d.AmountRemaining)
		if err := s.pay(ctx, d, amount, reference); err != nil {
			return nil, err
		}

		left = left.Sub(amount)
		applied = append(applied, Application{
			DebtID:  d.ID,
			EventID: d.EventID,
			Amount:  amount,
			Settled: d.Status == StatusSettled,
		})
	}

	return applied, nil
}

// CheckRestrictions fails when the user's outstanding debt has reached
// maxAllowed, or when any single debt has reached the critical age.
func (s *Service) CheckRestrictions(ctx context.Context, userID uuid.UUID, maxAllowed *decimal.Decimal) error {
	debts, err := s.repo.ListDebts(ctx, ListFilter{UserID: &userID, OpenOnly: true})
	if err != nil {
		return fmt.Errorf("listing debts for user %s: %w", userID, err)
	}

	now := s.now()
	total := decimal.Zero

	for _, d := range debts {
		if age := d.AgeDays(now); age >= s.criticalAge {
			return apperr.Validation("debt %s is %d days old", d.ID, age)
		}

		total = total.Add(d.AmountRemaining)
	}

	if maxAllowed != nil && total.IsPositive() && total.GreaterThanOrEqual(*maxAllowed) {
		return apperr.Validation("outstanding debt %s reaches the allowed maximum %s",
			total.StringFixed(2), maxAllowed.StringFixed(2))
	}

	return nil
}

// History is the debt part of a user's reliability history.
type History struct {
	DebtAgeDays         int
	LateSettlementCount int
	Outstanding         decimal.Decimal
}

func (s *Service) History(ctx context.Context, userID uuid.UUID) (History, error) {
	debts, err := s.repo.ListDebts(ctx, ListFilter{UserID: &userID})
	if err != nil {
		return History{}, fmt.Errorf("listing debts for user %s: %w", userID, err)
	}

	now := s.now()
	h := History{Outstanding: decimal.Zero}

	for _, d := range debts {
		switch {
		case d.Open():
			h.DebtAgeDays += d.AgeDays(now)
			h.Outstanding = h.Outstanding.Add(d.AmountRemaining)
		case d.Late():
			h.LateSettlementCount++
		}
	}

	return h, nil
}

// Critical returns every open debt that has reached the critical age.
func (s *Service) Critical(ctx context.Context) ([]*Debt, error) {
	debts, err := s.repo.ListDebts(ctx, ListFilter{OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("listing open debts: %w", err)
	}

	now := s.now()

	var critical []*Debt

	for _, d := range debts {
		if d.AgeDays(now) >= s.criticalAge {
			critical = append(critical, d)
		}
	}

	return critical, nil
}

func (s *Service) pay(ctx context.Context, d *Debt, amount decimal.Decimal, reference string) error {
	now := s.now()

	p := Payment{
		ID:        uuid.New(),
		DebtID:    d.ID,
		Amount:    amount,
		Reference: reference,
		CreatedAt: now,
	}

	d.AmountRemaining = d.AmountRemaining.Sub(amount)
	d.AmountPaid = d.AmountPaid.Add(amount)
	d.Payments = append(d.Payments, p)

	if d.AmountRemaining.LessThanOrEqual(money.Tolerance) {
		d.Status = StatusSettled
		d.SettledAt = &now
	} else {
		d.Status = StatusPartiallyPaid
	}

	if err := s.repo.CreateDebtPayment(ctx, &p); err != nil {
		return fmt.Errorf("recording payment on debt %s: %w", d.ID, err)
	}

	if err := s.repo.UpdateDebt(ctx, d); err != nil {
		return fmt.Errorf("updating debt %s: %w", d.ID, err)
	}

	return nil
}

func (s *Service) forgive(ctx context.Context, d *Debt, actorID uuid.UUID) error {
	d.AmountRemaining = decimal.Zero
	d.Status = StatusForgiven
	d.ForgivenBy = &actorID

	if err := s.repo.UpdateDebt(ctx, d); err != nil {
		return fmt.Errorf("forgiving debt %s: %w", d.ID, err)
	}

	return nil
}
