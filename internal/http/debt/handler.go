package debt

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/debt"
	"github.com/MrJamesThe3rd/kitty/internal/http/respond"
)

type Ledger interface {
	ListDebts(ctx context.Context, userID uuid.UUID, openOnly bool) ([]*debt.Debt, error)
	SettleDebt(ctx context.Context, debtID, actorID uuid.UUID, amount decimal.Decimal, reference string) (*debt.Debt, error)
	ForgiveDebt(ctx context.Context, debtID, actorID uuid.UUID) (*debt.Debt, error)
}

type Handler struct {
	svc Ledger
	now func() time.Time
}

func NewHandler(svc Ledger) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/{id}/settle", h.settle)
	r.Post("/{id}/forgive", h.forgive)
}

// list returns the caller's debts. ?open=true hides settled and forgiven ones.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	openOnly := false

	if s := r.URL.Query().Get("open"); s != "" {
		openOnly, err = strconv.ParseBool(s)
		if err != nil {
			http.Error(w, "invalid open flag", http.StatusBadRequest)
			return
		}
	}

	ds, err := h.svc.ListDebts(r.Context(), actor, openOnly)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(ds, h.now()))
}

type settleRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	id, err := respond.ID(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req settleRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	d, err := h.svc.SettleDebt(r.Context(), id, actor, req.Amount, req.Reference)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(d, h.now()))
}

func (h *Handler) forgive(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	id, err := respond.ID(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	d, err := h.svc.ForgiveDebt(r.Context(), id, actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(d, h.now()))
}
