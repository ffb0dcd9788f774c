package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/kitty/internal/audit"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
)

// Expected column order: id, creator_id, name, status, total_pool, total_spent, rules, audit_root, created_at, updated_at, completed_at
func scanEvent(s scanner) (*pool.Event, error) {
	var ev pool.Event

	var status string

	var rules, root []byte

	var completedAt sql.NullTime

	if err := s.Scan(
		&ev.ID, &ev.CreatorID, &ev.Name, &status, &ev.TotalPool, &ev.TotalSpent,
		&rules, &root, &ev.CreatedAt, &ev.UpdatedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	ev.Status = pool.Status(status)
	ev.CompletedAt = timePtr(completedAt)

	if err := json.Unmarshal(rules, &ev.Rules); err != nil {
		return nil, fmt.Errorf("decoding rules of event %s: %w", ev.ID, err)
	}

	copy(ev.AuditRoot[:], root)

	return &ev, nil
}

func rootBytes(h audit.Hash) []byte {
	if h.IsZero() {
		return nil
	}

	return h[:]
}

func (t *Tx) CreateEvent(ctx context.Context, ev *pool.Event) error {
	rules, err := json.Marshal(ev.Rules)
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}

	query := `
		INSERT INTO events (id, creator_id, name, status, total_pool, total_spent, rules, audit_root, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = t.tx.ExecContext(ctx, query,
		ev.ID, ev.CreatorID, ev.Name, ev.Status, ev.TotalPool, ev.TotalSpent,
		rules, rootBytes(ev.AuditRoot), ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}

	return nil
}

func (t *Tx) GetEvent(ctx context.Context, id uuid.UUID) (*pool.Event, error) {
	query := `
		SELECT id, creator_id, name, status, total_pool, total_spent, rules, audit_root, created_at, updated_at, completed_at
		FROM events
		WHERE id = $1
	`

	ev, err := scanEvent(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "getting event", "event %s not found", id)
	}

	return ev, nil
}

func (t *Tx) UpdateEvent(ctx context.Context, ev *pool.Event) error {
	query := `
		UPDATE events
		SET status = $1, total_pool = $2, total_spent = $3, audit_root = $4, updated_at = $5, completed_at = $6
		WHERE id = $7
	`

	res, err := t.tx.ExecContext(ctx, query,
		ev.Status, ev.TotalPool, ev.TotalSpent, rootBytes(ev.AuditRoot), ev.UpdatedAt, nullTime(ev.CompletedAt), ev.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}

	return expectRow(res, "event %s not found", ev.ID)
}

const selectParticipantColumns = `
	event_id, user_id, status, pledged_deposit, deposit_amount, total_spent, balance,
	available_contribution, joined_at, updated_at
`

func scanParticipant(s scanner) (*pool.Participant, error) {
	var p pool.Participant

	var status string

	if err := s.Scan(
		&p.EventID, &p.UserID, &status, &p.PledgedDeposit, &p.DepositAmount, &p.TotalSpent, &p.Balance,
		&p.AvailableContribution, &p.JoinedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Status = pool.ParticipantStatus(status)

	return &p, nil
}

func (t *Tx) CreateParticipant(ctx context.Context, p *pool.Participant) error {
	query := `
		INSERT INTO participants (` + selectParticipantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := t.tx.ExecContext(ctx, query,
		p.EventID, p.UserID, p.Status, p.PledgedDeposit, p.DepositAmount, p.TotalSpent, p.Balance,
		p.AvailableContribution, p.JoinedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating participant: %w", err)
	}

	return nil
}

func (t *Tx) GetParticipant(ctx context.Context, eventID, userID uuid.UUID) (*pool.Participant, error) {
	query := `SELECT ` + selectParticipantColumns + ` FROM participants WHERE event_id = $1 AND user_id = $2`

	p, err := scanParticipant(t.tx.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		return nil, notFound(err, "getting participant", "user %s is not part of event %s", userID, eventID)
	}

	return p, nil
}

func (t *Tx) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]*pool.Participant, error) {
	query := `SELECT ` + selectParticipantColumns + `
		FROM participants
		WHERE event_id = $1
		ORDER BY joined_at ASC, user_id ASC`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var ps []*pool.Participant

	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}

		ps = append(ps, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}

	return ps, nil
}

func (t *Tx) UpdateParticipant(ctx context.Context, p *pool.Participant) error {
	query := `
		UPDATE participants
		SET status = $1, deposit_amount = $2, total_spent = $3, balance = $4, available_contribution = $5, updated_at = $6
		WHERE event_id = $7 AND user_id = $8
	`

	res, err := t.tx.ExecContext(ctx, query,
		p.Status, p.DepositAmount, p.TotalSpent, p.Balance, p.AvailableContribution, p.UpdatedAt,
		p.EventID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating participant: %w", err)
	}

	return expectRow(res, "user %s is not part of event %s", p.UserID, p.EventID)
}

func (t *Tx) CreateDeposit(ctx context.Context, d *pool.Deposit) error {
	query := `
		INSERT INTO deposits (id, event_id, user_id, amount, source, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := t.tx.ExecContext(ctx, query, d.ID, d.EventID, d.UserID, d.Amount, d.Source, d.Reference, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating deposit: %w", err)
	}

	return nil
}

func (t *Tx) ListDeposits(ctx context.Context, eventID uuid.UUID) ([]*pool.Deposit, error) {
	query := `
		SELECT id, event_id, user_id, amount, source, reference, created_at
		FROM deposits
		WHERE event_id = $1
		ORDER BY created_at ASC
	`

	rows, err := t.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing deposits: %w", err)
	}
	defer rows.Close()

	var ds []*pool.Deposit

	for rows.Next() {
		var d pool.Deposit

		var source string

		if err := rows.Scan(&d.ID, &d.EventID, &d.UserID, &d.Amount, &source, &d.Reference, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning deposit: %w", err)
		}

		d.Source = pool.DepositSource(source)
		ds = append(ds, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deposits: %w", err)
	}

	return ds, nil
}
