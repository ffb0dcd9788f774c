package wallet

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/http/respond"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/wallet"
)

type Ledger interface {
	WalletSummary(ctx context.Context, userID uuid.UUID) (*ledger.WalletSummary, error)
}

type Handler struct {
	svc Ledger
}

func NewHandler(svc Ledger) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.get)
}

type transactionResponse struct {
	ID           uuid.UUID       `json:"id"`
	Kind         wallet.Kind     `json:"kind"`
	Reason       wallet.Reason   `json:"reason"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reference    string          `json:"reference,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type walletResponse struct {
	Balance         decimal.Decimal       `json:"balance"`
	OutstandingDebt decimal.Decimal       `json:"outstanding_debt"`
	ShortfallCount  int                   `json:"shortfall_count"`
	Transactions    []transactionResponse `json:"transactions"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	sum, err := h.svc.WalletSummary(r.Context(), actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := walletResponse{
		Balance:         sum.Balance,
		OutstandingDebt: sum.Outstanding,
		ShortfallCount:  sum.ShortfallCount,
		Transactions:    make([]transactionResponse, 0, len(sum.Transactions)),
	}

	for _, t := range sum.Transactions {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			ID:           t.ID,
			Kind:         t.Kind,
			Reason:       t.Reason,
			Amount:       t.Amount,
			BalanceAfter: t.BalanceAfter,
			Reference:    t.Reference,
			CreatedAt:    t.CreatedAt,
		})
	}

	respond.JSON(w, http.StatusOK, resp)
}
