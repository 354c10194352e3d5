/**
 * @description
 * This file contains the HTTP handlers for the checkout-service's public API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendapay/checkout-service/internal/app"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
)

// rateLimitWindow is the fixed window all per-minute limits are counted in.
const rateLimitWindow = time.Minute

// CheckoutHandlers holds the application services that handlers use.
type CheckoutHandlers struct {
	service *app.Service
	balance *app.BalanceService
	limiter *app.RedisRateLimiter

	checkoutRateLimitPerMinute int
	webhookRateLimitPerMinute  int
}

// NewCheckoutHandlers creates a new instance of CheckoutHandlers. limiter may
// be nil, which disables rate limiting.
func NewCheckoutHandlers(service *app.Service, balance *app.BalanceService, limiter *app.RedisRateLimiter, checkoutLimit, webhookLimit int) *CheckoutHandlers {
	return &CheckoutHandlers{
		service:                    service,
		balance:                    balance,
		limiter:                    limiter,
		checkoutRateLimitPerMinute: checkoutLimit,
		webhookRateLimitPerMinute:  webhookLimit,
	}
}

// saleStatusResponse is what the checkout page polls while the customer
// confirms on their handset.
type saleStatusResponse struct {
	SaleID        string  `json:"sale_id"`
	Status        string  `json:"status"`
	GrossAmount   int64   `json:"gross_amount"`
	FailureReason *string `json:"failure_reason,omitempty"`
	FailureCode   *string `json:"failure_code,omitempty"`
}

// CheckoutHandler handles checkout submissions.
func (h *CheckoutHandlers) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if !h.allowRate(r, "checkout", strings.TrimSpace(req.Phone), h.checkoutRateLimitPerMinute, w) {
		return
	}

	result, err := h.service.ProcessCheckout(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPhone):
			h.writeError(w, http.StatusBadRequest, "Phone number is not a valid Mozambican number.")
		case errors.Is(err, app.ErrUnsupportedMethod):
			h.writeError(w, http.StatusBadRequest, "Unsupported payment method.")
		case errors.Is(err, app.ErrPhoneMethodMismatch):
			h.writeError(w, http.StatusBadRequest, "Phone number does not match the selected wallet.")
		case errors.Is(err, store.ErrProductNotFound):
			h.writeError(w, http.StatusNotFound, "Product not found.")
		case errors.Is(err, store.ErrProductInactive):
			h.writeError(w, http.StatusConflict, "Product is not available for purchase.")
		default:
			log.Printf("level=error component=api endpoint=checkout msg=\"checkout failed\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Could not process checkout.")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// SaleStatusHandler returns the current status of a sale by its public id,
// re-querying the gateway when the sale is still pending.
func (h *CheckoutHandlers) SaleStatusHandler(w http.ResponseWriter, r *http.Request) {
	saleID := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "saleID")))
	if saleID == "" {
		h.writeError(w, http.StatusBadRequest, "Sale id is required.")
		return
	}

	sale, err := h.service.GetSaleStatus(r.Context(), saleID)
	if err != nil {
		if errors.Is(err, store.ErrSaleNotFound) {
			h.writeError(w, http.StatusNotFound, "Sale not found.")
			return
		}
		log.Printf("level=error component=api endpoint=sale_status msg=\"status lookup failed\" sale_id=%s err=%v", saleID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve sale status.")
		return
	}

	h.writeJSON(w, http.StatusOK, saleStatusResponse{
		SaleID:        sale.PublicID,
		Status:        string(sale.Status),
		GrossAmount:   sale.GrossAmount,
		FailureReason: sale.FailureReason,
		FailureCode:   sale.FailureCode,
	})
}

// checkoutStatusResponse mirrors saleStatusResponse for a whole checkout,
// looked up by payment reference instead of sale id.
type checkoutStatusResponse struct {
	PaymentReference string               `json:"payment_reference"`
	Status           string               `json:"status"`
	Sales            []saleStatusResponse `json:"sales"`
}

// CheckoutStatusHandler returns the status of every sale under a payment
// reference, re-querying the gateway when the checkout is still pending.
func (h *CheckoutHandlers) CheckoutStatusHandler(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		h.writeError(w, http.StatusBadRequest, "Payment reference is required.")
		return
	}

	sales, err := h.service.GetCheckoutStatus(r.Context(), reference)
	if err != nil {
		if errors.Is(err, store.ErrSaleNotFound) {
			h.writeError(w, http.StatusNotFound, "Checkout not found.")
			return
		}
		log.Printf("level=error component=api endpoint=checkout_status msg=\"status lookup failed\" reference=%s err=%v", reference, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve checkout status.")
		return
	}

	resp := checkoutStatusResponse{
		PaymentReference: reference,
		Status:           string(sales[0].Status),
	}
	for _, sale := range sales {
		resp.Sales = append(resp.Sales, saleStatusResponse{
			SaleID:        sale.PublicID,
			Status:        string(sale.Status),
			GrossAmount:   sale.GrossAmount,
			FailureReason: sale.FailureReason,
			FailureCode:   sale.FailureCode,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// MergeAttributionHandler accepts late-arriving tracking parameters from the
// checkout page and merges them into the sale, filling only empty fields.
func (h *CheckoutHandlers) MergeAttributionHandler(w http.ResponseWriter, r *http.Request) {
	saleID := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "saleID")))

	var attribution domain.Attribution
	if err := json.NewDecoder(r.Body).Decode(&attribution); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if err := h.service.MergeAttribution(r.Context(), saleID, attribution); err != nil {
		if errors.Is(err, store.ErrSaleNotFound) {
			h.writeError(w, http.StatusNotFound, "Sale not found.")
			return
		}
		log.Printf("level=error component=api endpoint=merge_attribution msg=\"attribution merge failed\" sale_id=%s err=%v", saleID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not record attribution.")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// allowRate consumes a rate-limit token and writes the 429 itself when the
// limit is exceeded. Redis being down fails open: checkouts keep working.
func (h *CheckoutHandlers) allowRate(r *http.Request, scope, subject string, limit int, w http.ResponseWriter) bool {
	if h.limiter == nil || limit <= 0 || subject == "" {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), scope, subject, limit, rateLimitWindow)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" scope=%s err=%v", scope, err)
		return true
	}
	if count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
		return false
	}
	return true
}

// writeJSON is a helper for writing JSON responses.
func (h *CheckoutHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *CheckoutHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
