/**
 * @description
 * This file contains the consumer for sale lifecycle events. It performs the
 * side effects of a terminal status transition: crediting seller ledgers,
 * sending the order confirmation, forwarding attribution for conversion
 * tracking, and enqueueing remarketing for abandoned checkouts.
 *
 * Handlers return true to acknowledge and false to requeue. Every side
 * effect behind them is idempotent (ledger keys, the confirmation guard key,
 * the monotonic forwarded flag, same-day remarketing dedup), so redelivery
 * after a partial failure is safe.
 *
 * @dependencies
 * - context, encoding/json, log, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/attributionclient, pkg/notifyclient: Downstream payload types.
 */

package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
	"github.com/tendapay/checkout-service/pkg/attributionclient"
	"github.com/tendapay/checkout-service/pkg/notifyclient"
)

// OrderNotifier sends the customer-facing order confirmation.
type OrderNotifier interface {
	SendOrderConfirmation(ctx context.Context, confirmation notifyclient.OrderConfirmation) error
}

// ConversionForwarder sends approved-sale attribution to the marketing
// pipeline.
type ConversionForwarder interface {
	Forward(ctx context.Context, conversion attributionclient.Conversion) error
}

// SaleEventConsumer handles sale lifecycle events from the message broker.
type SaleEventConsumer struct {
	repo        store.Repository
	balance     *BalanceService
	notifier    OrderNotifier
	forwarder   ConversionForwarder
	remarketing *RemarketingService
	timeout     time.Duration
}

// NewSaleEventConsumer creates a new SaleEventConsumer.
func NewSaleEventConsumer(repo store.Repository, balance *BalanceService, notifier OrderNotifier, forwarder ConversionForwarder, remarketing *RemarketingService) *SaleEventConsumer {
	return &SaleEventConsumer{
		repo:        repo,
		balance:     balance,
		notifier:    notifier,
		forwarder:   forwarder,
		remarketing: remarketing,
		timeout:     30 * time.Second,
	}
}

// Bindings returns the routing-key handler map for ConsumeWithBindings.
func (c *SaleEventConsumer) Bindings() map[string]func([]byte) bool {
	return map[string]func([]byte) bool{
		domain.EventSaleApproved:  c.HandleSaleApproved,
		domain.EventSaleRejected:  c.HandleSaleNotCompleted,
		domain.EventSaleCancelled: c.HandleSaleNotCompleted,
	}
}

// HandleSaleApproved credits every sale of the checkout, then performs the
// once-per-checkout side effects off the primary sale.
func (c *SaleEventConsumer) HandleSaleApproved(body []byte) bool {
	event, ok := decodeSaleEvent(body)
	if !ok {
		return true // malformed payload will never parse; drop it
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	sales, err := c.repo.FindSalesByPaymentReference(ctx, event.PaymentReference)
	if err != nil {
		log.Printf("level=error component=consumer event=%s msg=\"failed to load sales\" reference=%s err=%v", domain.EventSaleApproved, event.PaymentReference, err)
		return false
	}

	for _, sale := range sales {
		applied, err := c.balance.CreditSale(ctx, sale)
		if err != nil {
			log.Printf("level=error component=consumer event=%s msg=\"ledger credit failed; requeueing\" sale_id=%s err=%v", domain.EventSaleApproved, sale.PublicID, err)
			return false
		}
		if !applied {
			log.Printf("level=info component=consumer event=%s msg=\"sale already credited\" sale_id=%s", domain.EventSaleApproved, sale.PublicID)
		}
	}

	primary := primarySale(sales)
	if primary == nil {
		log.Printf("level=warn component=consumer event=%s msg=\"no primary sale under reference\" reference=%s", domain.EventSaleApproved, event.PaymentReference)
		return true
	}

	c.sendOrderConfirmation(ctx, primary)
	c.forwardAttribution(ctx, primary)
	return true
}

// HandleSaleNotCompleted enqueues remarketing for a rejected or cancelled
// checkout, keyed off the primary sale.
func (c *SaleEventConsumer) HandleSaleNotCompleted(body []byte) bool {
	event, ok := decodeSaleEvent(body)
	if !ok {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	sales, err := c.repo.FindSalesByPaymentReference(ctx, event.PaymentReference)
	if err != nil {
		log.Printf("level=error component=consumer event=%s msg=\"failed to load sales\" reference=%s err=%v", event.Status, event.PaymentReference, err)
		return false
	}

	primary := primarySale(sales)
	if primary == nil {
		return true
	}

	cancelledAt := event.OccurredAt
	if cancelledAt.IsZero() {
		cancelledAt = time.Now().UTC()
	}

	result, err := c.remarketing.EnqueueForCancelledSale(ctx, *primary, cancelledAt)
	if err != nil {
		log.Printf("level=error component=consumer event=%s msg=\"remarketing enqueue failed; requeueing\" sale_id=%s err=%v", event.Status, primary.PublicID, err)
		return false
	}
	if !result.Enqueued {
		log.Printf("level=info component=consumer event=%s msg=\"remarketing item ignored\" sale_id=%s reason=%q", event.Status, primary.PublicID, result.Reason)
	}
	return true
}

// sendOrderConfirmation sends the confirmation at most once per checkout. The
// guard key is claimed before sending, so a crash after the claim loses the
// confirmation rather than ever mailing the customer twice on redelivery.
// Delivery itself is best effort: the notification service owns its own
// retries and a confirmation miss must not block crediting.
func (c *SaleEventConsumer) sendOrderConfirmation(ctx context.Context, primary *domain.Sale) {
	claimed, err := c.repo.ClaimIdempotencyKey(ctx, primary.ID.String(), "order_confirmation", primary.PaymentReference)
	if err != nil {
		log.Printf("level=warn component=consumer msg=\"failed to claim order confirmation; skipping\" sale_id=%s err=%v", primary.PublicID, err)
		return
	}
	if !claimed {
		return
	}

	product, err := c.repo.FindProductByID(ctx, primary.ProductID)
	if err != nil {
		log.Printf("level=warn component=consumer msg=\"product lookup failed; skipping order confirmation\" sale_id=%s err=%v", primary.PublicID, err)
		return
	}
	confirmation := notifyclient.OrderConfirmation{
		SaleID:        primary.PublicID,
		CustomerName:  primary.CustomerName,
		CustomerEmail: primary.CustomerEmail,
		CustomerPhone: primary.CustomerPhone,
		ProductName:   product.Name,
		Amount:        primary.GrossAmount,
	}
	if err := c.notifier.SendOrderConfirmation(ctx, confirmation); err != nil {
		log.Printf("level=warn component=consumer msg=\"order confirmation failed\" sale_id=%s err=%v", primary.PublicID, err)
	}
}

// forwardAttribution forwards the primary sale's marketing parameters at most
// once. The forwarded flag is claimed before sending, so a crash after the
// claim loses the forward rather than ever double-counting a conversion.
func (c *SaleEventConsumer) forwardAttribution(ctx context.Context, primary *domain.Sale) {
	if primary.Attribution == nil {
		return
	}

	claimed, err := c.repo.MarkAttributionForwarded(ctx, primary.ID)
	if err != nil {
		log.Printf("level=error component=consumer msg=\"failed to claim attribution forward\" sale_id=%s err=%v", primary.PublicID, err)
		return
	}
	if !claimed {
		return
	}

	a := primary.Attribution
	conversion := attributionclient.Conversion{
		SaleID:      primary.PublicID,
		Amount:      primary.GrossAmount,
		UTMSource:   a.UTMSource,
		UTMMedium:   a.UTMMedium,
		UTMCampaign: a.UTMCampaign,
		UTMContent:  a.UTMContent,
		UTMTerm:     a.UTMTerm,
		Src:         a.Src,
		Sck:         a.Sck,
		IP:          a.IP,
	}
	if err := c.forwarder.Forward(ctx, conversion); err != nil {
		log.Printf("level=error component=consumer msg=\"attribution forward failed after claim\" sale_id=%s err=%v", primary.PublicID, err)
	}
}

func primarySale(sales []domain.Sale) *domain.Sale {
	for i := range sales {
		if !sales[i].IsOrderBump {
			return &sales[i]
		}
	}
	return nil
}

func decodeSaleEvent(body []byte) (domain.SaleStatusEvent, bool) {
	var event domain.SaleStatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=error component=consumer msg=\"failed to decode sale status event; dropping\" err=%v", err)
		return event, false
	}
	if event.PaymentReference == "" {
		log.Printf("level=error component=consumer msg=\"sale status event missing payment reference; dropping\"")
		return event, false
	}
	return event, true
}
