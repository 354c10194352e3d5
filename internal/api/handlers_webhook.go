/**
 * @description
 * This file contains the HTTP handler for the mobile-money gateway's webhook.
 * The gateway retries deliveries aggressively, so the handler is built to be
 * boring under replay: duplicates and already-terminal references both come
 * back 200 so the gateway stops retrying, and only unknown references get a
 * 404.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/domain, internal/store: For models and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
)

// GatewayWebhookHandler processes asynchronous payment status notifications.
func (h *CheckoutHandlers) GatewayWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowRate(r, "webhook", clientIP(r), h.webhookRateLimitPerMinute, w) {
		return
	}

	var webhook domain.GatewayWebhook
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid webhook payload.")
		return
	}
	webhook.Reference = strings.TrimSpace(webhook.Reference)
	if webhook.Reference == "" {
		h.writeError(w, http.StatusBadRequest, "Webhook reference is required.")
		return
	}

	if err := h.service.HandleGatewayWebhook(r.Context(), webhook); err != nil {
		if errors.Is(err, store.ErrSaleNotFound) {
			h.writeError(w, http.StatusNotFound, "Unknown payment reference.")
			return
		}
		log.Printf("level=error component=api endpoint=gateway_webhook msg=\"webhook processing failed\" reference=%s err=%v", webhook.Reference, err)
		h.writeError(w, http.StatusInternalServerError, "Could not process webhook.")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// clientIP extracts the caller's address, honoring the proxy header set by
// the ingress.
func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
