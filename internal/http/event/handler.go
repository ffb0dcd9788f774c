package event

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/http/respond"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
	"github.com/MrJamesThe3rd/kitty/internal/settlement"
)

// Ledger is the part of the ledger the event routes use.
type Ledger interface {
	CreateEvent(ctx context.Context, params ledger.CreateEventParams) (*pool.Event, error)
	GetEvent(ctx context.Context, eventID, actorID uuid.UUID) (*ledger.EventDetails, error)
	Join(ctx context.Context, params ledger.JoinParams) (*pool.Participant, error)
	ApproveParticipant(ctx context.Context, eventID, userID, actorID uuid.UUID) (*pool.Participant, error)
	RejectParticipant(ctx context.Context, eventID, userID, actorID uuid.UUID) (*pool.Participant, error)
	ConfirmDeposit(ctx context.Context, eventID, userID, actorID uuid.UUID, amount decimal.Decimal, reference string) (*pool.Participant, error)
	Reliability(ctx context.Context, eventID, userID uuid.UUID) (*ledger.ReliabilityReport, error)
	EndEvent(ctx context.Context, eventID, actorID uuid.UUID) ([]settlement.Transfer, error)
}

type Handler struct {
	svc Ledger
}

func NewHandler(svc Ledger) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/join", h.join)
	r.Post("/{id}/participants/{userID}/approve", h.approve)
	r.Post("/{id}/participants/{userID}/reject", h.reject)
	r.Post("/{id}/participants/{userID}/deposits", h.deposit)
	r.Get("/{id}/reliability", h.reliability)
	r.Post("/{id}/end", h.end)
}

type createEventRequest struct {
	Name  string      `json:"name"`
	Rules rules.Rules `json:"rules"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req createEventRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	ev, err := h.svc.CreateEvent(r.Context(), ledger.CreateEventParams{
		CreatorID: actor,
		Name:      req.Name,
		Rules:     req.Rules,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toEventResponse(ev))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, eventID, err := actorAndEvent(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	details, err := h.svc.GetEvent(r.Context(), eventID, actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toDetailsResponse(details))
}

type joinRequest struct {
	Deposit decimal.Decimal `json:"deposit"`
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	actor, eventID, err := actorAndEvent(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req joinRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	p, err := h.svc.Join(r.Context(), ledger.JoinParams{EventID: eventID, UserID: actor, Deposit: req.Deposit})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toParticipantResponse(p))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.svc.ApproveParticipant)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.svc.RejectParticipant)
}

func (h *Handler) resolve(
	w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, eventID, userID, actorID uuid.UUID) (*pool.Participant, error),
) {
	actor, eventID, err := actorAndEvent(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	userID, err := respond.ID(r, "userID")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	p, err := fn(r.Context(), eventID, userID, actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toParticipantResponse(p))
}

type depositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	actor, eventID, err := actorAndEvent(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	userID, err := respond.ID(r, "userID")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req depositRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	p, err := h.svc.ConfirmDeposit(r.Context(), eventID, userID, actor, req.Amount, req.Reference)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toParticipantResponse(p))
}

// reliability reports on the user named by ?user_id, or the caller.
func (h *Handler) reliability(w http.ResponseWriter, r *http.Request) {
	actor, eventID, err := actorAndEvent(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	userID := actor

	if s := r.URL.Query().Get("user_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}

		userID = id
	}

	report, err := h.svc.Reliability(r.Context(), eventID, userID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toReliabilityResponse(userID, report))
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	actor, eventID, err := actorAndEvent(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	transfers, err := h.svc.EndEvent(r.Context(), eventID, actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, settlementResponse{EventID: eventID, Transfers: toTransfers(transfers)})
}

func actorAndEvent(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	actor, err := respond.Actor(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	eventID, err := respond.ID(r, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	return actor, eventID, nil
}
