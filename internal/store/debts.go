package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/kitty/internal/debt"
)

const selectDebtColumns = `
	id, user_id, event_id, expense_id, amount_original, amount_remaining, amount_paid,
	status, due_at, created_at, settled_at, forgiven_by
`

func scanDebt(s scanner) (*debt.Debt, error) {
	var d debt.Debt

	var status string

	var settledAt sql.NullTime

	var forgivenBy *uuid.UUID

	if err := s.Scan(
		&d.ID, &d.UserID, &d.EventID, &d.ExpenseID, &d.AmountOriginal, &d.AmountRemaining, &d.AmountPaid,
		&status, &d.DueAt, &d.CreatedAt, &settledAt, &forgivenBy,
	); err != nil {
		return nil, err
	}

	d.Status = debt.Status(status)
	d.SettledAt = timePtr(settledAt)
	d.ForgivenBy = forgivenBy

	return &d, nil
}

func (t *Tx) CreateDebt(ctx context.Context, d *debt.Debt) error {
	query := `
		INSERT INTO debts (` + selectDebtColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := t.tx.ExecContext(ctx, query,
		d.ID, d.UserID, d.EventID, d.ExpenseID, d.AmountOriginal, d.AmountRemaining, d.AmountPaid,
		d.Status, d.DueAt, d.CreatedAt, nullTime(d.SettledAt), d.ForgivenBy,
	)
	if err != nil {
		return fmt.Errorf("creating debt: %w", err)
	}

	return nil
}

func (t *Tx) GetDebt(ctx context.Context, id uuid.UUID) (*debt.Debt, error) {
	query := `SELECT ` + selectDebtColumns + ` FROM debts WHERE id = $1`

	d, err := scanDebt(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "getting debt", "debt %s not found", id)
	}

	payments, err := t.listDebtPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	d.Payments = payments

	return d, nil
}

func (t *Tx) UpdateDebt(ctx context.Context, d *debt.Debt) error {
	query := `
		UPDATE debts
		SET amount_remaining = $1, amount_paid = $2, status = $3, settled_at = $4, forgiven_by = $5
		WHERE id = $6
	`

	res, err := t.tx.ExecContext(ctx, query,
		d.AmountRemaining, d.AmountPaid, d.Status, nullTime(d.SettledAt), d.ForgivenBy, d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating debt: %w", err)
	}

	return expectRow(res, "debt %s not found", d.ID)
}

func (t *Tx) CreateDebtPayment(ctx context.Context, p *debt.Payment) error {
	query := `
		INSERT INTO debt_payments (id, debt_id, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.ExecContext(ctx, query, p.ID, p.DebtID, p.Amount, p.Reference, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating debt payment: %w", err)
	}

	return nil
}

func (t *Tx) listDebtPayments(ctx context.Context, debtID uuid.UUID) ([]debt.Payment, error) {
	query := `
		SELECT id, debt_id, amount, reference, created_at
		FROM debt_payments
		WHERE debt_id = $1
		ORDER BY created_at ASC
	`

	rows, err := t.tx.QueryContext(ctx, query, debtID)
	if err != nil {
		return nil, fmt.Errorf("listing debt payments: %w", err)
	}
	defer rows.Close()

	var ps []debt.Payment

	for rows.Next() {
		var p debt.Payment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.Reference, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning debt payment: %w", err)
		}

		ps = append(ps, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating debt payments: %w", err)
	}

	return ps, nil
}

// ListDebts does not load payments; use GetDebt for the full history.
func (t *Tx) ListDebts(ctx context.Context, filter debt.ListFilter) ([]*debt.Debt, error) {
	query := `SELECT ` + selectDebtColumns + ` FROM debts`

	var conditions []string

	var args []any

	argIdx := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}

	if filter.EventID != nil {
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", argIdx))
		args = append(args, *filter.EventID)
		argIdx++
	}

	if filter.ExpenseID != nil {
		conditions = append(conditions, fmt.Sprintf("expense_id = $%d", argIdx))
		args = append(args, *filter.ExpenseID)
		argIdx++
	}

	if filter.OpenOnly {
		conditions = append(conditions, fmt.Sprintf("status IN ($%d, $%d)", argIdx, argIdx+1))
		args = append(args, debt.StatusOutstanding, debt.StatusPartiallyPaid)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at ASC, seq ASC"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing debts: %w", err)
	}
	defer rows.Close()

	var ds []*debt.Debt

	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning debt: %w", err)
		}

		ds = append(ds, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating debts: %w", err)
	}

	return ds, nil
}
