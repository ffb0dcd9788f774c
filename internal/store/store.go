// Package store implements the ledger's transactional repository on
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/payment"
	"github.com/MrJamesThe3rd/kitty/internal/settlement"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Tx is one ledger transaction. It is not safe for concurrent use.
type Tx struct {
	tx *sql.Tx
}

var _ ledger.Tx = (*Tx)(nil)

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger tx: %w", err)
	}

	return &Tx{tx: dbTx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func eventLockKey(eventID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("event"))
	h.Write([]byte{0})
	h.Write(eventID[:])

	return int64(h.Sum64())
}

// LockEvent takes a transaction-scoped advisory lock on the event. Locks
// are reentrant within the transaction.
func (t *Tx) LockEvent(ctx context.Context, eventID uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", eventLockKey(eventID)); err != nil {
		return fmt.Errorf("acquiring event lock: %w", err)
	}

	return nil
}

func (t *Tx) CreateSettlements(ctx context.Context, records []*settlement.Record) error {
	query := `
		INSERT INTO settlements (event_id, position, from_user, to_user, amount, paid)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, r := range records {
		if _, err := t.tx.ExecContext(ctx, query, r.EventID, r.Position, r.From, r.To, r.Amount, r.Paid); err != nil {
			return fmt.Errorf("creating settlement: %w", err)
		}
	}

	return nil
}

func (t *Tx) ListSettlements(ctx context.Context, eventID uuid.UUID) ([]*settlement.Record, error) {
	query := `
		SELECT event_id, position, from_user, to_user, amount, paid
		FROM settlements
		WHERE event_id = $1
		ORDER BY position ASC
	`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing settlements: %w", err)
	}
	defer rows.Close()

	var records []*settlement.Record

	for rows.Next() {
		var r settlement.Record

		if err := rows.Scan(&r.EventID, &r.Position, &r.From, &r.To, &r.Amount, &r.Paid); err != nil {
			return nil, fmt.Errorf("scanning settlement: %w", err)
		}

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settlements: %w", err)
	}

	return records, nil
}

func (t *Tx) UpdateSettlement(ctx context.Context, r *settlement.Record) error {
	query := `UPDATE settlements SET paid = $1 WHERE event_id = $2 AND position = $3`

	res, err := t.tx.ExecContext(ctx, query, r.Paid, r.EventID, r.Position)
	if err != nil {
		return fmt.Errorf("updating settlement: %w", err)
	}

	return expectRow(res, "settlement %d of event %s not found", r.Position, r.EventID)
}

func (t *Tx) MarkPaymentProcessed(ctx context.Context, paymentID string, kind payment.Kind) (bool, error) {
	query := `
		INSERT INTO processed_payments (payment_id, kind, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (payment_id) DO NOTHING
	`

	res, err := t.tx.ExecContext(ctx, query, paymentID, kind)
	if err != nil {
		return false, fmt.Errorf("marking payment processed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking payment processed: %w", err)
	}

	return n == 1, nil
}

// notFound maps sql.ErrNoRows onto the ledger's not-found error and wraps
// anything else with the operation.
func notFound(err error, op string, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(format, args...)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	v := t.Time

	return &v
}

// expectRow fails when an UPDATE touched nothing.
func expectRow(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return apperr.NotFound(format, args...)
	}

	return nil
}
