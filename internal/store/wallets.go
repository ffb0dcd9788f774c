package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

func (t *Tx) LockWallets(ctx context.Context, userIDs []uuid.UUID) error {
	for _, id := range userIDs {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, 0, NOW()) ON CONFLICT (user_id) DO NOTHING`,
			id,
		)
		if err != nil {
			return fmt.Errorf("ensuring wallet: %w", err)
		}

		var locked uuid.UUID
		if err := t.tx.QueryRowContext(ctx, `SELECT user_id FROM wallets WHERE user_id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return fmt.Errorf("locking wallet: %w", err)
		}
	}

	return nil
}

// GetWallet returns an empty wallet for users who never held a balance.
func (t *Tx) GetWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	w := wallet.Wallet{UserID: userID, Balance: decimal.Zero}

	err := t.tx.QueryRowContext(ctx,
		`SELECT balance, updated_at FROM wallets WHERE user_id = $1`, userID,
	).Scan(&w.Balance, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &w, nil
	}

	if err != nil {
		return nil, fmt.Errorf("getting wallet: %w", err)
	}

	return &w, nil
}

func (t *Tx) SaveWallet(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (user_id, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`

	if _, err := t.tx.ExecContext(ctx, query, w.UserID, w.Balance, w.UpdatedAt); err != nil {
		return fmt.Errorf("saving wallet: %w", err)
	}

	return nil
}

func (t *Tx) CreateWalletTransaction(ctx context.Context, tr *wallet.Transaction) error {
	query := `
		INSERT INTO wallet_transactions (id, user_id, kind, reason, amount, balance_after, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := t.tx.ExecContext(ctx, query,
		tr.ID, tr.UserID, tr.Kind, tr.Reason, tr.Amount, tr.BalanceAfter, tr.Reference, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating wallet transaction: %w", err)
	}

	return nil
}

// ListWalletTransactions returns the most recent transactions first.
func (t *Tx) ListWalletTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*wallet.Transaction, error) {
	query := `
		SELECT id, user_id, kind, reason, amount, balance_after, reference, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`

	rows, err := t.tx.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing wallet transactions: %w", err)
	}
	defer rows.Close()

	var ts []*wallet.Transaction

	for rows.Next() {
		var tr wallet.Transaction

		var kind, reason string

		if err := rows.Scan(
			&tr.ID, &tr.UserID, &kind, &reason, &tr.Amount, &tr.BalanceAfter, &tr.Reference, &tr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning wallet transaction: %w", err)
		}

		tr.Kind = wallet.Kind(kind)
		tr.Reason = wallet.Reason(reason)
		ts = append(ts, &tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wallet transactions: %w", err)
	}

	return ts, nil
}

func (t *Tx) CreateUsage(ctx context.Context, u *wallet.Usage) error {
	query := `
		INSERT INTO wallet_usages (id, user_id, event_id, expense_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := t.tx.ExecContext(ctx, query, u.ID, u.UserID, u.EventID, u.ExpenseID, u.Kind, u.Amount, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating wallet usage: %w", err)
	}

	return nil
}

func (t *Tx) CountUsages(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM wallet_usages WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting wallet usages: %w", err)
	}

	return n, nil
}
