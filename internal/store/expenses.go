package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/split"
)

const selectExpenseColumns = `
	id, event_id, payer_id, amount, description, category, split_type,
	approval_status, status, leaf_hash, created_at, updated_at
`

func scanExpense(s scanner) (*expense.Expense, error) {
	var e expense.Expense

	var splitType, approval, status string

	var leaf []byte

	if err := s.Scan(
		&e.ID, &e.EventID, &e.PayerID, &e.Amount, &e.Description, &e.Category, &splitType,
		&approval, &status, &leaf, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.SplitType = split.Strategy(splitType)
	e.ApprovalStatus = expense.ApprovalStatus(approval)
	e.Status = expense.Status(status)
	copy(e.LeafHash[:], leaf)

	return &e, nil
}

func (t *Tx) CreateExpense(ctx context.Context, e *expense.Expense) error {
	query := `
		INSERT INTO expenses (` + selectExpenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := t.tx.ExecContext(ctx, query,
		e.ID, e.EventID, e.PayerID, e.Amount, e.Description, e.Category, e.SplitType,
		e.ApprovalStatus, e.Status, e.LeafHash[:], e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating expense: %w", err)
	}

	return t.saveSplits(ctx, e)
}

func (t *Tx) GetExpense(ctx context.Context, id uuid.UUID) (*expense.Expense, error) {
	query := `SELECT ` + selectExpenseColumns + ` FROM expenses WHERE id = $1`

	e, err := scanExpense(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "getting expense", "expense %s not found", id)
	}

	if err := t.loadSplits(ctx, []*expense.Expense{e}); err != nil {
		return nil, err
	}

	return e, nil
}

// UpdateExpense writes the expense's state and splits. Amount, payer and
// leaf hash never change.
func (t *Tx) UpdateExpense(ctx context.Context, e *expense.Expense) error {
	query := `
		UPDATE expenses
		SET approval_status = $1, status = $2, updated_at = $3
		WHERE id = $4
	`

	res, err := t.tx.ExecContext(ctx, query, e.ApprovalStatus, e.Status, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("updating expense: %w", err)
	}

	if err := expectRow(res, "expense %s not found", e.ID); err != nil {
		return err
	}

	return t.saveSplits(ctx, e)
}

func (t *Tx) ListExpenses(ctx context.Context, eventID uuid.UUID) ([]*expense.Expense, error) {
	query := `SELECT ` + selectExpenseColumns + `
		FROM expenses
		WHERE event_id = $1
		ORDER BY seq ASC`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	var es []*expense.Expense

	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning expense: %w", err)
		}

		es = append(es, e)
	}

	err = rows.Err()
	rows.Close()

	if err != nil {
		return nil, fmt.Errorf("iterating expenses: %w", err)
	}

	if err := t.loadSplits(ctx, es); err != nil {
		return nil, err
	}

	return es, nil
}

func (t *Tx) saveSplits(ctx context.Context, e *expense.Expense) error {
	query := `
		INSERT INTO expense_splits (expense_id, position, user_id, amount, status, pool_drawn, wallet_covered, debt_covered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (expense_id, position) DO UPDATE
		SET status = EXCLUDED.status, pool_drawn = EXCLUDED.pool_drawn,
			wallet_covered = EXCLUDED.wallet_covered, debt_covered = EXCLUDED.debt_covered
	`

	for i, sp := range e.Splits {
		_, err := t.tx.ExecContext(ctx, query,
			e.ID, i, sp.UserID, sp.Amount, sp.Status, sp.PoolDrawn, sp.WalletCovered, sp.DebtCovered,
		)
		if err != nil {
			return fmt.Errorf("saving split: %w", err)
		}
	}

	return nil
}

func (t *Tx) loadSplits(ctx context.Context, es []*expense.Expense) error {
	if len(es) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*expense.Expense, len(es))
	for _, e := range es {
		byID[e.ID] = e
	}

	query := `
		SELECT s.expense_id, s.user_id, s.amount, s.status, s.pool_drawn, s.wallet_covered, s.debt_covered
		FROM expense_splits s
		JOIN expenses e ON e.id = s.expense_id
		WHERE e.event_id = $1
		ORDER BY s.expense_id, s.position ASC
	`

	rows, err := t.tx.QueryContext(ctx, query, es[0].EventID)
	if err != nil {
		return fmt.Errorf("loading splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID uuid.UUID

		var sp expense.Split

		var status string

		if err := rows.Scan(&expenseID, &sp.UserID, &sp.Amount, &status, &sp.PoolDrawn, &sp.WalletCovered, &sp.DebtCovered); err != nil {
			return fmt.Errorf("scanning split: %w", err)
		}

		e, ok := byID[expenseID]
		if !ok {
			continue
		}

		sp.Status = expense.SplitStatus(status)
		e.Splits = append(e.Splits, sp)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating splits: %w", err)
	}

	return nil
}

func (t *Tx) CreateApprovalRequest(ctx context.Context, r *expense.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (id, expense_id, requested_by, status, trigger_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := t.tx.ExecContext(ctx, query, r.ID, r.ExpenseID, r.RequestedBy, r.Status, r.TriggerReason, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating approval request: %w", err)
	}

	return nil
}

func (t *Tx) GetApprovalRequest(ctx context.Context, expenseID uuid.UUID) (*expense.ApprovalRequest, error) {
	query := `
		SELECT id, expense_id, requested_by, status, trigger_reason, resolved_by, resolved_at, created_at
		FROM approval_requests
		WHERE expense_id = $1
	`

	var r expense.ApprovalRequest

	var status string

	var resolvedBy *uuid.UUID

	var resolvedAt sql.NullTime

	err := t.tx.QueryRowContext(ctx, query, expenseID).Scan(
		&r.ID, &r.ExpenseID, &r.RequestedBy, &status, &r.TriggerReason, &resolvedBy, &resolvedAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "getting approval request", "no approval request for expense %s", expenseID)
	}

	r.Status = expense.ApprovalStatus(status)
	r.ResolvedBy = resolvedBy
	r.ResolvedAt = timePtr(resolvedAt)

	return &r, nil
}

func (t *Tx) UpdateApprovalRequest(ctx context.Context, r *expense.ApprovalRequest) error {
	query := `
		UPDATE approval_requests
		SET status = $1, resolved_by = $2, resolved_at = $3
		WHERE id = $4
	`

	res, err := t.tx.ExecContext(ctx, query, r.Status, r.ResolvedBy, nullTime(r.ResolvedAt), r.ID)
	if err != nil {
		return fmt.Errorf("updating approval request: %w", err)
	}

	return expectRow(res, "approval request %s not found", r.ID)
}

func (t *Tx) CreateAuditRecord(ctx context.Context, r *expense.AuditRecord) error {
	query := `
		INSERT INTO audit_records (id, expense_id, actor_id, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := t.tx.ExecContext(ctx, query, r.ID, r.ExpenseID, r.ActorID, r.Action, r.Reason, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating audit record: %w", err)
	}

	return nil
}
