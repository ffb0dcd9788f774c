package expense

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/http/respond"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/split"
)

type Ledger interface {
	CreateExpense(ctx context.Context, params ledger.CreateExpenseParams) (*ledger.CreateExpenseResult, error)
	ListExpenses(ctx context.Context, eventID, actorID uuid.UUID) ([]*expense.Expense, error)
	Approve(ctx context.Context, expenseID, actorID uuid.UUID) (*expense.Expense, error)
	Reject(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error)
	Cancel(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error)
	GetAuditProof(ctx context.Context, expenseID, actorID uuid.UUID) (*ledger.AuditProof, error)
}

type Handler struct {
	svc Ledger
}

func NewHandler(svc Ledger) *Handler {
	return &Handler{svc: svc}
}

// EventRoutes are mounted under /events/{id}/expenses.
func (h *Handler) EventRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
}

// Routes are mounted under /expenses.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
	r.Get("/{id}/proof", h.proof)
}

type marginDTO struct {
	Mode  split.MarginMode `json:"mode"`
	Value decimal.Decimal  `json:"value"`
}

type entryDTO struct {
	UserID     uuid.UUID       `json:"user_id"`
	Weight     decimal.Decimal `json:"weight"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       split.Kind      `json:"kind"`
	Margin     *marginDTO      `json:"margin,omitempty"`
}

type createExpenseRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	SplitType     split.Strategy  `json:"split_type"`
	Splits        []entryDTO      `json:"splits"`
	DefaultMargin *marginDTO      `json:"default_margin,omitempty"`
}

func (req createExpenseRequest) params(eventID, payerID uuid.UUID) ledger.CreateExpenseParams {
	params := ledger.CreateExpenseParams{
		EventID:     eventID,
		PayerID:     payerID,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Strategy:    req.SplitType,
	}

	if req.DefaultMargin != nil {
		params.DefaultMargin = split.Margin{Mode: req.DefaultMargin.Mode, Value: req.DefaultMargin.Value}
	}

	for _, e := range req.Splits {
		entry := split.Entry{
			UserID:     e.UserID,
			Weight:     e.Weight,
			Percentage: e.Percentage,
			Amount:     e.Amount,
			Kind:       e.Kind,
		}

		if e.Margin != nil {
			entry.Margin = &split.Margin{Mode: e.Margin.Mode, Value: e.Margin.Value}
		}

		params.Entries = append(params.Entries, entry)
	}

	return params
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	eventID, err := respond.ID(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req createExpenseRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	result, err := h.svc.CreateExpense(r.Context(), req.params(eventID, actor))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Expense.Status == expense.StatusAwaitingApproval {
		status = http.StatusAccepted
	}

	respond.JSON(w, status, createdResponse{
		Response: ToResponse(result.Expense),
		Warning:  result.Warning,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	eventID, err := respond.ID(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	es, err := h.svc.ListExpenses(r.Context(), eventID, actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(es))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id, actor uuid.UUID, _ string) (*expense.Expense, error) {
		return h.svc.Approve(ctx, id, actor)
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Reject)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

// transition reads an optional reason from the body.
func (h *Handler) transition(
	w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, expenseID, actorID uuid.UUID, reason string) (*expense.Expense, error),
) {
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

	var req reasonRequest
	if r.ContentLength != 0 {
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
	}

	e, err := fn(r.Context(), id, actor, req.Reason)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(e))
}

func (h *Handler) proof(w http.ResponseWriter, r *http.Request) {
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

	p, err := h.svc.GetAuditProof(r.Context(), id, actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, proofResponse{
		ExpenseID: p.ExpenseID,
		EventID:   p.EventID,
		Index:     p.Index,
		Leaf:      p.Leaf.String(),
		Proof:     p.Proof,
		Root:      p.Root.String(),
	})
}
