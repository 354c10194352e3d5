/**
 * @description
 * This file contains the HTTP handlers for the internal (operator-facing) API
 * endpoints: cancelling stuck sales, initiating payout debits, reading seller
 * balances and recomputing cached aggregates. All of these sit behind the
 * internal API key middleware.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/google/uuid.
 * - internal/store: For custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/store"
)

type cancelSaleRequest struct {
	Reason string `json:"reason,omitempty"`
}

type payoutRequest struct {
	SellerID  string `json:"seller_id"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // centavos
}

// CancelSaleHandler moves a pending sale to cancelled on behalf of an
// operator. Cancelling an already-terminal sale reports rows=0 instead of
// failing.
func (h *CheckoutHandlers) CancelSaleHandler(w http.ResponseWriter, r *http.Request) {
	saleID := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "saleID")))

	var req cancelSaleRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	rows, err := h.service.CancelSale(r.Context(), saleID, strings.TrimSpace(req.Reason))
	if err != nil {
		if errors.Is(err, store.ErrSaleNotFound) {
			h.writeError(w, http.StatusNotFound, "Sale not found.")
			return
		}
		log.Printf("level=error component=api endpoint=cancel_sale msg=\"cancel failed\" sale_id=%s err=%v", saleID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not cancel sale.")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"sales_cancelled": rows})
}

// PayoutHandler debits a seller's balance for a payout. The payout reference
// is the idempotency key, so retrying a payout request is safe.
func (h *CheckoutHandlers) PayoutHandler(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}
	sellerID, err := uuid.Parse(strings.TrimSpace(req.SellerID))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid seller id.")
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		h.writeError(w, http.StatusBadRequest, "Payout reference is required.")
		return
	}
	if req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "Payout amount must be positive.")
		return
	}

	applied, err := h.balance.ProcessPayout(r.Context(), sellerID, strings.TrimSpace(req.Reference), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, "Seller balance does not cover the payout.")
		case errors.Is(err, store.ErrSellerNotFound):
			h.writeError(w, http.StatusNotFound, "Seller has no balance record.")
		default:
			log.Printf("level=error component=api endpoint=payout msg=\"payout failed\" seller_id=%s reference=%s err=%v", sellerID, req.Reference, err)
			h.writeError(w, http.StatusInternalServerError, "Could not process payout.")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// SellerBalanceHandler returns the cached aggregate row for a seller.
func (h *CheckoutHandlers) SellerBalanceHandler(w http.ResponseWriter, r *http.Request) {
	sellerID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "sellerID")))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid seller id.")
		return
	}

	balance, err := h.balance.GetBalance(r.Context(), sellerID)
	if err != nil {
		if errors.Is(err, store.ErrSellerNotFound) {
			h.writeError(w, http.StatusNotFound, "Seller has no balance record.")
			return
		}
		log.Printf("level=error component=api endpoint=seller_balance msg=\"balance lookup failed\" seller_id=%s err=%v", sellerID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve seller balance.")
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

// RecomputeAggregatesHandler rebuilds a seller's cached aggregates from the
// movement log and returns the fresh row.
func (h *CheckoutHandlers) RecomputeAggregatesHandler(w http.ResponseWriter, r *http.Request) {
	sellerID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "sellerID")))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid seller id.")
		return
	}

	balance, err := h.balance.RecomputeAggregates(r.Context(), sellerID)
	if err != nil {
		log.Printf("level=error component=api endpoint=recompute_aggregates msg=\"recompute failed\" seller_id=%s err=%v", sellerID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not recompute seller aggregates.")
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}
