// Package notify carries outbound messages about ledger changes to an
// external notifier. The ledger only enqueues; delivery happens on a
// background worker after the ledger transaction has committed.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeParticipantJoined   Type = "participant.joined"
	TypeParticipantApproved Type = "participant.approved"
	TypeParticipantRejected Type = "participant.rejected"
	TypeDepositConfirmed    Type = "deposit.confirmed"
	TypeExpenseCreated      Type = "expense.created"
	TypeApprovalRequested   Type = "expense.approval_requested"
	TypeExpenseApproved     Type = "expense.approved"
	TypeExpenseRejected     Type = "expense.rejected"
	TypeExpenseCancelled    Type = "expense.cancelled"
	TypeWalletUsed          Type = "wallet.shortfall_covered"
	TypeDebtCreated         Type = "debt.created"
	TypeDebtSettled         Type = "debt.settled"
	TypeDebtForgiven        Type = "debt.forgiven"
	TypeDebtCritical        Type = "debt.critical"
	TypeSettlementReceived  Type = "settlement.received"
	TypePaymentFailed       Type = "payment.failed"
	TypeEventEnded          Type = "event.ended"
)

// Message is one notification. UserID is the recipient; zero ids mean
// the field does not apply.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Type      Type            `json:"type"`
	UserID    uuid.UUID       `json:"user_id"`
	EventID   uuid.UUID       `json:"event_id,omitzero"`
	ExpenseID uuid.UUID       `json:"expense_id,omitzero"`
	DebtID    uuid.UUID       `json:"debt_id,omitzero"`
	Amount    decimal.Decimal `json:"amount,omitzero"`
	Text      string          `json:"text,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notifier accepts messages without blocking.
type Notifier interface {
	Notify(msgs ...Message)
}

// Publisher delivers one message to its destination.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type MessageOption func(*Message)

func WithEvent(id uuid.UUID) MessageOption {
	return func(m *Message) { m.EventID = id }
}

func WithExpense(id uuid.UUID) MessageOption {
	return func(m *Message) { m.ExpenseID = id }
}

func WithDebt(id uuid.UUID) MessageOption {
	return func(m *Message) { m.DebtID = id }
}

func WithAmount(amount decimal.Decimal) MessageOption {
	return func(m *Message) { m.Amount = amount }
}

func WithText(text string) MessageOption {
	return func(m *Message) { m.Text = text }
}

func New(t Type, userID uuid.UUID, opts ...MessageOption) Message {
	m := Message{
		ID:        uuid.New(),
		Type:      t,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

// Discard drops every message.
type Discard struct{}

func (Discard) Notify(...Message) {}
