package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GalaDe/payment-portal/internal/metrics"
)

func RegisterRoutes(h *HttpServer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check or default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Payment portal is running"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Plaid routes
		r.Post("/plaid/create-link-session", h.CreateLinkSession)
		r.Post("/plaid/exchange-link-token", h.ExchangeLinkToken)
		r.Post("/plaid/accounts", h.ListAccounts)

		// Payment routes
		r.Post("/payments", h.CreatePayment)
		r.Get("/payments/history", h.GetPaymentHistory)
	})

	return r
}
