// Package respond writes handler responses and maps ledger errors onto
// HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/http/auth"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Status is the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInsufficientPool),
		errors.Is(err, apperr.ErrInsufficientWallet),
		errors.Is(err, apperr.ErrStateConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err. Internal failures are logged and hidden behind a
// generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}

// Decode reads a JSON body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}

	return nil
}

// ID parses the named URL parameter as a uuid.
func ID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}

	return id, nil
}

// Actor is the authenticated user. Routes are mounted behind auth.Middleware,
// so a missing user is an internal wiring error.
func Actor(r *http.Request) (uuid.UUID, error) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		return uuid.Nil, errors.New("no authenticated user in request context")
	}

	return id, nil
}
