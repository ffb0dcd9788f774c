package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/kitty/internal/http/auth"
	"github.com/MrJamesThe3rd/kitty/internal/http/debt"
	"github.com/MrJamesThe3rd/kitty/internal/http/event"
	"github.com/MrJamesThe3rd/kitty/internal/http/expense"
	"github.com/MrJamesThe3rd/kitty/internal/http/importcsv"
	"github.com/MrJamesThe3rd/kitty/internal/http/payment"
	"github.com/MrJamesThe3rd/kitty/internal/http/wallet"
)

type Handlers struct {
	Events   *event.Handler
	Expenses *expense.Handler
	Import   *importcsv.Handler
	Debts    *debt.Handler
	Wallet   *wallet.Handler
	Payments *payment.Handler
}

func New(jwtSecret []byte, timeout time.Duration, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		r.Route("/events", func(r chi.Router) {
			r.Route("/{id}/expenses", func(r chi.Router) {
				h.Import.Routes(r)

				r.Group(func(r chi.Router) {
					r.Use(middleware.AllowContentType("application/json"))
					h.Expenses.EventRoutes(r)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Events.Routes(r)
			})
		})

		r.Route("/expenses", h.Expenses.Routes)
		r.Route("/debts", h.Debts.Routes)
		r.Route("/wallet", h.Wallet.Routes)

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Payments.Routes(r)
		})
	})

	return router
}
