// Package payment receives payment outcomes from the gateway layer, which
// has already verified them.
package payment

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/kitty/internal/http/respond"
	"github.com/MrJamesThe3rd/kitty/internal/payment"
)

const maxBody = 1 << 20

type Ledger interface {
	HandlePayment(ctx context.Context, c payment.Confirmation) (bool, error)
	HandlePaymentFailure(ctx context.Context, f payment.Failure) error
}

type Handler struct {
	svc Ledger
}

func NewHandler(svc Ledger) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/confirmed", h.confirmed)
	r.Post("/failed", h.failed)
}

type confirmedResponse struct {
	PaymentID string `json:"payment_id"`
	Duplicate bool   `json:"duplicate"`
}

func (h *Handler) confirmed(w http.ResponseWriter, r *http.Request) {
	raw, err := decode(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	c, err := payment.ParseConfirmation(raw)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	fresh, err := h.svc.HandlePayment(r.Context(), c)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if !fresh {
		slog.Info("ignoring duplicate payment", "payment_id", c.PaymentID)
	}

	respond.JSON(w, http.StatusOK, confirmedResponse{PaymentID: c.PaymentID, Duplicate: !fresh})
}

func (h *Handler) failed(w http.ResponseWriter, r *http.Request) {
	raw, err := decode(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	f, err := payment.ParseFailure(raw)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.svc.HandlePaymentFailure(r.Context(), f); err != nil {
		respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decode(r *http.Request) (payment.Raw, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return payment.Raw{}, err
	}

	return payment.Decode(body)
}
