/**
 * @description
 * This file sets up the HTTP router for the checkout-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, timeouts and internal
 * authentication.
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

// CheckoutRoutes creates and returns a new router for the checkout service.
func CheckoutRoutes(h *CheckoutHandlers, internalAPIKey string) http.Handler {
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

	// Public checkout surface.
	r.Post("/checkout", h.CheckoutHandler)
	r.Get("/sales/{saleID}/status", h.SaleStatusHandler)
	r.Get("/checkouts/{reference}/status", h.CheckoutStatusHandler)
	r.Post("/sales/{saleID}/attribution", h.MergeAttributionHandler)
	r.Post("/webhooks/gateway", h.GatewayWebhookHandler)

	// Operator-facing endpoints behind the shared internal key.
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Post("/sales/{saleID}/cancel", h.CancelSaleHandler)
		r.Post("/payouts", h.PayoutHandler)
		r.Get("/sellers/{sellerID}/balance", h.SellerBalanceHandler)
		r.Post("/sellers/{sellerID}/recompute", h.RecomputeAggregatesHandler)
	})

	return r
}
