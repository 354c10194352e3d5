/**
 * @description
 * This file contains the core business logic for the checkout-service. The
 * `Service` struct orchestrates the checkout fan-out (one sale row per
 * purchased product, all sharing one payment reference), the synchronous
 * gateway charge attempt, webhook reconciliation and the status-poll
 * reconciliation path.
 *
 * Key features:
 * - Fans a checkout with order bumps into N+1 pending sale rows in one transaction.
 * - Validates the customer MSISDN against the chosen wallet's operator prefixes.
 * - Routes every terminal outcome through the Reconciler so first-commit-wins
 *   holds across all discovery paths.
 * - Treats webhook replays as no-ops via the reconciler's pending-only update,
 *   recording each applied delivery with the idempotency guard.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/gatewayclient: For mobile-money gateway communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
	"github.com/tendapay/checkout-service/pkg/gatewayclient"
)

// GatewayClient is the surface of the mobile-money gateway this service uses.
type GatewayClient interface {
	Charge(ctx context.Context, req gatewayclient.ChargeRequest) (*gatewayclient.ChargeResponse, error)
	QueryStatus(ctx context.Context, reference string) (*gatewayclient.StatusResponse, error)
}

// Service provides the core business logic for checkouts.
type Service struct {
	repo       store.Repository
	gateway    GatewayClient
	reconciler *Reconciler
}

// NewService creates a new checkout service instance.
func NewService(repo store.Repository, gateway GatewayClient, reconciler *Reconciler) *Service {
	return &Service{
		repo:       repo,
		gateway:    gateway,
		reconciler: reconciler,
	}
}

// ProcessCheckout handles a checkout submission end to end: price the cart
// server-side, persist the pending sale rows, then attempt the synchronous
// gateway charge. A definitive gateway answer is reconciled immediately; a
// transport failure leaves the sales pending for the webhook to settle.
func (s *Service) ProcessCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	phone, err := ValidatePhoneForMethod(req.Phone, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))

	primary, err := s.repo.FindProductByPublicID(ctx, req.ProductPublicID)
	if err != nil {
		return nil, err
	}
	if !primary.Active {
		return nil, store.ErrProductInactive
	}

	products := []*domain.Product{primary}
	for _, bumpID := range req.OrderBumpIDs {
		bump, err := s.repo.FindProductByPublicID(ctx, bumpID)
		if err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				log.Printf("level=warn component=app op=checkout msg=\"order bump not found; dropping\" bump_id=%s", bumpID)
				continue
			}
			return nil, err
		}
		if !bump.Active {
			log.Printf("level=warn component=app op=checkout msg=\"order bump inactive; dropping\" bump_id=%s", bumpID)
			continue
		}
		if bump.SellerID != primary.SellerID {
			log.Printf("level=warn component=app op=checkout msg=\"order bump belongs to another seller; dropping\" bump_id=%s primary_seller=%s bump_seller=%s", bumpID, primary.SellerID, bump.SellerID)
			continue
		}
		products = append(products, bump)
	}

	var total int64
	for _, p := range products {
		total += discountedPrice(p)
	}
	// A pre-computed client total, when present and positive, is the amount
	// the customer saw and the amount we charge. Per-line splits stay
	// server-computed either way.
	if req.Total != nil && *req.Total > 0 {
		if *req.Total != total {
			log.Printf("level=warn component=app op=checkout msg=\"client total differs from server-side computation\" client_total=%d server_total=%d product_id=%s", *req.Total, total, req.ProductPublicID)
		}
		total = *req.Total
	}

	paymentReference := strings.ReplaceAll(uuid.New().String(), "-", "")
	sales := make([]domain.Sale, 0, len(products))
	for i, p := range products {
		gross := discountedPrice(p)
		sellerShare, platformFee := SellerShare(gross)
		saleID := uuid.New()
		sale := domain.Sale{
			ID:               saleID,
			PublicID:         publicSaleID(saleID),
			PaymentReference: paymentReference,
			ProductID:        p.ID,
			SellerID:         p.SellerID,
			CustomerName:     strings.TrimSpace(req.CustomerName),
			CustomerEmail:    strings.TrimSpace(req.CustomerEmail),
			CustomerPhone:    phone,
			PaymentMethod:    method,
			IsOrderBump:      i > 0,
			GrossAmount:      gross,
			SellerAmount:     sellerShare,
			PlatformFee:      platformFee,
			Status:           domain.StatusPending,
		}
		if i == 0 {
			sale.Attribution = req.Attribution
		}
		sales = append(sales, sale)
	}

	if err := s.repo.CreateSales(ctx, sales); err != nil {
		return nil, fmt.Errorf("failed to persist checkout sales: %w", err)
	}

	log.Printf("level=info component=app op=checkout msg=\"sales created\" reference=%s products=%d total=%d", paymentReference, len(sales), total)

	result := &domain.CheckoutResult{
		Status:           domain.StatusPending,
		SaleID:           sales[0].PublicID,
		SellerAmount:     sales[0].SellerAmount,
		GrossAmount:      total,
		GatewayReference: paymentReference,
	}

	chargeResp, err := s.gateway.Charge(ctx, gatewayclient.ChargeRequest{
		Reference: paymentReference,
		Phone:     phone,
		Method:    method,
		Amount:    total,
	})
	if err != nil {
		var bizErr *gatewayclient.BusinessError
		if errors.As(err, &bizErr) {
			// A definitive rejection: reconcile now instead of waiting for
			// the webhook to say the same thing.
			reason := bizErr.Message
			code := bizErr.Code
			if _, rErr := s.reconciler.ApplyStatus(ctx, paymentReference, domain.StatusRejected, &reason, &code); rErr != nil {
				log.Printf("level=error component=app op=checkout msg=\"failed to reconcile gateway rejection\" reference=%s err=%v", paymentReference, rErr)
			}
			result.Status = domain.StatusRejected
			return result, nil
		}
		// Transport failure: the charge may or may not have gone through.
		// The sales stay pending and the webhook (or status poll) settles it.
		log.Printf("level=warn component=app op=checkout msg=\"gateway unreachable; leaving sales pending\" reference=%s err=%v", paymentReference, err)
		result.Success = true
		return result, nil
	}

	canonical := CanonicalStatus(chargeResp.Status)
	if canonical.Terminal() {
		var reason, code *string
		if chargeResp.ErrorMessage != "" {
			reason = &chargeResp.ErrorMessage
		}
		if chargeResp.ErrorCode != "" {
			code = &chargeResp.ErrorCode
		}
		if _, rErr := s.reconciler.ApplyStatus(ctx, paymentReference, canonical, reason, code); rErr != nil {
			log.Printf("level=error component=app op=checkout msg=\"failed to reconcile synchronous outcome\" reference=%s status=%s err=%v", paymentReference, canonical, rErr)
		}
	}
	result.Status = canonical
	result.Success = canonical == domain.StatusApproved || canonical == domain.StatusPending
	return result, nil
}

// HandleGatewayWebhook processes an asynchronous status notification from the
// gateway. Replays of an already-committed transition are safe because the
// reconciler only touches pending rows; a failed apply returns the error so
// the gateway's retry is not swallowed. A pending-vocabulary webhook is
// recorded but changes nothing.
func (s *Service) HandleGatewayWebhook(ctx context.Context, webhook domain.GatewayWebhook) error {
	sales, err := s.repo.FindSalesByPaymentReference(ctx, webhook.Reference)
	if err != nil {
		return err
	}

	if webhook.Amount != nil {
		var expected int64
		for _, sale := range sales {
			expected += sale.GrossAmount
		}
		if *webhook.Amount != expected {
			log.Printf("level=warn component=app op=webhook msg=\"webhook amount differs from checkout total\" reference=%s webhook_amount=%d expected=%d", webhook.Reference, *webhook.Amount, expected)
		}
	}

	canonical := CanonicalStatus(webhook.Status)
	if !canonical.Terminal() {
		log.Printf("level=info component=app op=webhook msg=\"non-terminal webhook recorded; no transition\" reference=%s status=%s", webhook.Reference, webhook.Status)
		return nil
	}

	var reason, code *string
	if webhook.ErrorMessage != "" {
		reason = &webhook.ErrorMessage
	}
	if webhook.ErrorCode != "" {
		code = &webhook.ErrorCode
	}
	rows, err := s.reconciler.ApplyStatus(ctx, webhook.Reference, canonical, reason, code)
	if err != nil {
		// Nothing was claimed or committed; the gateway will redeliver and
		// the retry must look brand new.
		return err
	}
	if rows == 0 {
		log.Printf("level=info component=app op=webhook msg=\"duplicate webhook delivery dropped\" reference=%s status=%s", webhook.Reference, webhook.Status)
		return nil
	}

	// Record the delivery only after the transition committed. This is an
	// audit record; the pending-only UPDATE is what makes replays no-ops.
	if _, cErr := s.repo.ClaimIdempotencyKey(ctx, webhook.Reference, "gateway_webhook", webhookDedupReference(webhook)); cErr != nil {
		log.Printf("level=warn component=app op=webhook msg=\"failed to record webhook delivery\" reference=%s err=%v", webhook.Reference, cErr)
	}
	return nil
}

// GetSaleStatus returns the current view of a sale. When the sale is still
// pending it also re-queries the gateway, so a lost webhook gets reconciled
// the next time anyone polls.
func (s *Service) GetSaleStatus(ctx context.Context, publicID string) (*domain.Sale, error) {
	sale, err := s.repo.FindSaleByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if sale.Status != domain.StatusPending {
		return sale, nil
	}
	if !s.reconcileFromPoll(ctx, sale.PaymentReference) {
		return sale, nil
	}
	return s.repo.FindSaleByPublicID(ctx, publicID)
}

// GetCheckoutStatus returns every sale of a checkout, looked up by the shared
// payment reference. Like GetSaleStatus it re-queries the gateway while the
// checkout is still pending.
func (s *Service) GetCheckoutStatus(ctx context.Context, paymentReference string) ([]domain.Sale, error) {
	sales, err := s.repo.FindSalesByPaymentReference(ctx, paymentReference)
	if err != nil {
		return nil, err
	}
	if sales[0].Status != domain.StatusPending {
		return sales, nil
	}
	if !s.reconcileFromPoll(ctx, paymentReference) {
		return sales, nil
	}
	return s.repo.FindSalesByPaymentReference(ctx, paymentReference)
}

// reconcileFromPoll asks the gateway for the current status of a pending
// reference and applies a terminal answer. Reports whether a transition was
// committed; poll failures never surface to the caller, the stored view wins.
func (s *Service) reconcileFromPoll(ctx context.Context, paymentReference string) bool {
	statusResp, err := s.gateway.QueryStatus(ctx, paymentReference)
	if err != nil {
		log.Printf("level=warn component=app op=status_poll msg=\"gateway status query failed; returning stored status\" reference=%s err=%v", paymentReference, err)
		return false
	}

	canonical := CanonicalStatus(statusResp.Status)
	if !canonical.Terminal() {
		return false
	}
	if _, err := s.reconciler.ApplyStatus(ctx, paymentReference, canonical, nil, nil); err != nil {
		log.Printf("level=error component=app op=status_poll msg=\"failed to reconcile polled status\" reference=%s status=%s err=%v", paymentReference, canonical, err)
		return false
	}
	return true
}

// CancelSale moves a still-pending sale to cancelled on behalf of an
// operator. Already-terminal sales are a no-op, reported via rows=0.
func (s *Service) CancelSale(ctx context.Context, publicID, reason string) (int64, error) {
	sale, err := s.repo.FindSaleByPublicID(ctx, publicID)
	if err != nil {
		return 0, err
	}
	if reason == "" {
		reason = "cancelled_by_operator"
	}
	return s.reconciler.ApplyStatus(ctx, sale.PaymentReference, domain.StatusCancelled, &reason, nil)
}

// MergeAttribution merges late-arriving attribution parameters into a sale,
// filling only fields that are still empty.
func (s *Service) MergeAttribution(ctx context.Context, publicID string, attribution domain.Attribution) error {
	sale, err := s.repo.FindSaleByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	return s.repo.MergeSaleAttribution(ctx, sale.ID, attribution)
}

// discountedPrice applies the product's discount, rounding half up.
func discountedPrice(p *domain.Product) int64 {
	if p.DiscountPercent <= 0 {
		return p.Price
	}
	return (p.Price*int64(100-p.DiscountPercent) + 50) / 100
}

// publicSaleID derives the short customer-facing id from the sale's UUID.
func publicSaleID(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:8]
}

// webhookDedupReference builds the idempotency reference for one webhook
// delivery: same status and amount means same delivery.
func webhookDedupReference(webhook domain.GatewayWebhook) string {
	amount := int64(-1)
	if webhook.Amount != nil {
		amount = *webhook.Amount
	}
	return fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(webhook.Status)), amount)
}
