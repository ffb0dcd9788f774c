package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/audit"
	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/split"
)

type splitResponse struct {
	UserID        uuid.UUID           `json:"user_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Status        expense.SplitStatus `json:"status"`
	PoolDrawn     decimal.Decimal     `json:"pool_drawn"`
	WalletCovered decimal.Decimal     `json:"wallet_covered"`
	DebtCovered   decimal.Decimal     `json:"debt_covered"`
}

type Response struct {
	ID             uuid.UUID              `json:"id"`
	EventID        uuid.UUID              `json:"event_id"`
	PayerID        uuid.UUID              `json:"payer_id"`
	Amount         decimal.Decimal        `json:"amount"`
	Description    string                 `json:"description"`
	Category       string                 `json:"category,omitempty"`
	SplitType      split.Strategy         `json:"split_type"`
	Splits         []splitResponse        `json:"splits"`
	ApprovalStatus expense.ApprovalStatus `json:"approval_status"`
	Status         expense.Status         `json:"status"`
	LeafHash       string                 `json:"leaf_hash"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

type createdResponse struct {
	Response
	Warning string `json:"warning,omitempty"`
}

type proofResponse struct {
	ExpenseID uuid.UUID    `json:"expense_id"`
	EventID   uuid.UUID    `json:"event_id"`
	Index     int          `json:"index"`
	Leaf      string       `json:"leaf"`
	Proof     []audit.Step `json:"proof"`
	Root      string       `json:"root"`
}

// ToResponse renders an expense the way every expense route returns it.
func ToResponse(e *expense.Expense) Response {
	resp := Response{
		ID:             e.ID,
		EventID:        e.EventID,
		PayerID:        e.PayerID,
		Amount:         e.Amount,
		Description:    e.Description,
		Category:       e.Category,
		SplitType:      e.SplitType,
		Splits:         make([]splitResponse, 0, len(e.Splits)),
		ApprovalStatus: e.ApprovalStatus,
		Status:         e.Status,
		LeafHash:       e.LeafHash.String(),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}

	for _, s := range e.Splits {
		resp.Splits = append(resp.Splits, splitResponse{
			UserID:        s.UserID,
			Amount:        s.Amount,
			Status:        s.Status,
			PoolDrawn:     s.PoolDrawn,
			WalletCovered: s.WalletCovered,
			DebtCovered:   s.DebtCovered,
		})
	}

	return resp
}

func toResponseList(es []*expense.Expense) []Response {
	out := make([]Response, 0, len(es))
	for _, e := range es {
		out = append(out, ToResponse(e))
	}

	return out
}
