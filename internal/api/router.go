/**
 * @description
 * This file sets up the HTTP router for the ledger service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware such as session authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LedgerRoutes creates and returns a new router for the ledger service. The
// optional metricsHandler is mounted at /metrics when non-nil.
func LedgerRoutes(h *LedgerHandlers, jwtSecret string, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// Card authentication opens a session; deposits and history lookups do
	// not require one.
	r.Post("/cards/auth", h.CardAuthHandler)
	r.Post("/transactions/top_up", h.TopUpHandler)
	r.Post("/transactions/get_transactions", h.RecentTransactionsHandler)

	// Group routes that require an authenticated card session.
	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(jwtSecret))

		r.Post("/transactions/withdraw", h.WithdrawHandler)
		r.Post("/transactions/balance", h.BalanceHandler)

		// Back-office provisioning endpoints.
		r.Post("/cards", h.CreateCardHandler)
		r.Get("/cards", h.ListCardsHandler)
		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/accounts", h.ListAccountsHandler)
		r.Post("/customers", h.CreateCustomerHandler)
		r.Get("/customers", h.ListCustomersHandler)
		r.Put("/customers/{id}", h.UpdateCustomerHandler)
	})

	return r
}
