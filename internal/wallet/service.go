package wallet

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/debt"
	"github.com/MrJamesThe3rd/kitty/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=wallet
type Repository interface {
	// LockWallets takes row locks on the given wallets, creating empty ones
	// where missing. Callers pass ids in ascending order.
	LockWallets(ctx context.Context, userIDs []uuid.UUID) error
	GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	SaveWallet(ctx context.Context, w *Wallet) error
	CreateWalletTransaction(ctx context.Context, t *Transaction) error
	ListWalletTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error)
	CreateUsage(ctx context.Context, u *Usage) error
	CountUsages(ctx context.Context, userID uuid.UUID) (int, error)
}

type Service struct {
	repo  Repository
	debts *debt.Service
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, debts *debt.Service, opts ...Option) *Service {
	s := &Service{repo: repo, debts: debts, now: time.Now}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Lock serializes access to the given users' wallets for the rest of the
// surrounding transaction. Ids are sorted so concurrent callers always lock
// in the same order.
func (s *Service) Lock(ctx context.Context, userIDs ...uuid.UUID) error {
	ids := slices.Clone(userIDs)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	if err := s.repo.LockWallets(ctx, ids); err != nil {
		return fmt.Errorf("locking wallets: %w", err)
	}

	return nil
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting wallet: %w", err)
	}

	return w.Balance, nil
}

func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]*Transaction, error) {
	return s.repo.ListWalletTransactions(ctx, userID, limit)
}

func (s *Service) ShortfallCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUsages(ctx, userID)
}

type CreditResult struct {
	Wallet  *Wallet
	Applied []debt.Application
}

// Credit adds amount to the user's wallet and then pays down their open
// debts oldest first with whatever the wallet now holds.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason Reason, reference string) (*CreditResult, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("credit must be positive, got %s", amount.StringFixed(2))
	}

	if err := s.Lock(ctx, userID); err != nil {
		return nil, err
	}

	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting wallet: %w", err)
	}

	if err := s.apply(ctx, w, KindCredit, reason, amount, reference); err != nil {
		return nil, err
	}

	applied, err := s.debts.ApplyCredit(ctx, userID, w.Balance, reference)
	if err != nil {
		return nil, fmt.Errorf("applying credit to debts: %w", err)
	}

	for _, a := range applied {
		if err := s.apply(ctx, w, KindDebit, ReasonDebtPayment, a.Amount, a.DebtID.String()); err != nil {
			return nil, err
		}
	}

	return &CreditResult{Wallet: w, Applied: applied}, nil
}

// Reimburse returns money taken by CoverShortfall. Unlike Credit it never
// touches debts. The wallet must already be locked.
func (s *Service) Reimburse(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (*Wallet, error) {
	return s.Receive(ctx, userID, amount, ReasonRefund, reference)
}

// Receive adds amount to the wallet without paying down debts. The wallet
// must already be locked.
func (s *Service) Receive(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason Reason, reference string) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("credit must be positive, got %s", amount.StringFixed(2))
	}

	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting wallet: %w", err)
	}

	if err := s.apply(ctx, w, KindCredit, reason, amount, reference); err != nil {
		return nil, err
	}

	return w, nil
}

// Debit takes amount out of the wallet. The wallet must already be locked.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason Reason, reference string) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("debit must be positive, got %s", amount.StringFixed(2))
	}

	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting wallet: %w", err)
	}

	if w.Balance.LessThan(amount) {
		return nil, apperr.InsufficientWallet("wallet holds %s, need %s",
			w.Balance.StringFixed(2), amount.StringFixed(2))
	}

	if err := s.apply(ctx, w, KindDebit, reason, amount, reference); err != nil {
		return nil, err
	}

	return w, nil
}

type Shortfall struct {
	UserID    uuid.UUID
	EventID   uuid.UUID
	ExpenseID uuid.UUID
	Required  decimal.Decimal
	Available decimal.Decimal
}

// Coverage is how a shortfall was covered.
type Coverage struct {
	Shortfall     decimal.Decimal
	WalletCovered decimal.Decimal
	Debt          *debt.Debt
}

// CoverShortfall covers what the participant's pool contribution cannot:
// first from their wallet, and whatever the wallet cannot cover becomes a
// debt. The wallet must already be locked.
func (s *Service) CoverShortfall(ctx context.Context, sf Shortfall) (*Coverage, error) {
	shortfall := money.Max(sf.Required.Sub(money.Max(sf.Available, decimal.Zero)), decimal.Zero)
	if shortfall.IsZero() {
		return &Coverage{Shortfall: decimal.Zero, WalletCovered: decimal.Zero}, nil
	}

	w, err := s.repo.GetWallet(ctx, sf.UserID)
	if err != nil {
		return nil, fmt.Errorf("getting wallet: %w", err)
	}

	cov := &Coverage{
		Shortfall:     shortfall,
		WalletCovered: money.Min(money.Max(w.Balance, decimal.Zero), shortfall),
	}

	if cov.WalletCovered.IsPositive() {
		if err := s.apply(ctx, w, KindDebit, ReasonShortfallCoverage, cov.WalletCovered, sf.ExpenseID.String()); err != nil {
			return nil, err
		}
	}

	usage := &Usage{
		ID:        uuid.New(),
		UserID:    sf.UserID,
		EventID:   sf.EventID,
		ExpenseID: sf.ExpenseID,
		Kind:      UsageShortfallCoverage,
		Amount:    cov.WalletCovered,
		CreatedAt: s.now(),
	}

	if remainder := shortfall.Sub(cov.WalletCovered); remainder.IsPositive() {
		usage.Kind = UsagePartialCoverage

		cov.Debt, err = s.debts.Create(ctx, debt.CreateParams{
			UserID:    sf.UserID,
			EventID:   sf.EventID,
			ExpenseID: sf.ExpenseID,
			Amount:    remainder,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.CreateUsage(ctx, usage); err != nil {
		return nil, fmt.Errorf("recording wallet usage: %w", err)
	}

	return cov, nil
}

func (s *Service) apply(ctx context.Context, w *Wallet, kind Kind, reason Reason, amount decimal.Decimal, reference string) error {
	now := s.now()

	if kind == KindCredit {
		w.Balance = w.Balance.Add(amount)
	} else {
		w.Balance = w.Balance.Sub(amount)
	}

	w.UpdatedAt = now

	t := &Transaction{
		ID:           uuid.New(),
		UserID:       w.UserID,
		Kind:         kind,
		Reason:       reason,
		Amount:       amount,
		BalanceAfter: w.Balance,
		Reference:    reference,
		CreatedAt:    now,
	}

	if err := s.repo.SaveWallet(ctx, w); err != nil {
		return fmt.Errorf("saving wallet: %w", err)
	}

	if err := s.repo.CreateWalletTransaction(ctx, t); err != nil {
		return fmt.Errorf("recording wallet transaction: %w", err)
	}

	return nil
}
