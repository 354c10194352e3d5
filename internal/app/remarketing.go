/**
 * @description
 * This file implements the remarketing queue business logic. A cancelled
 * checkout enqueues one scheduled re-engagement message, deduplicated per
 * (customer, product, local calendar day). The drain delivers due messages
 * over email first and WhatsApp as the fallback channel, finalizing every
 * item it touches so nothing is processed twice.
 *
 * @dependencies
 * - context, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/notifyclient: Message payload types.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
	"github.com/tendapay/checkout-service/pkg/notifyclient"
)

// Ignore reasons recorded on items that are finalized without delivery.
const (
	IgnoreReasonDisabled  = "remarketing disabled for product"
	IgnoreReasonDuplicate = "duplicate for customer and product on same day"
)

// ReengagementMessenger delivers remarketing messages over the two supported
// channels.
type ReengagementMessenger interface {
	SendReengagementEmail(ctx context.Context, msg notifyclient.Reengagement) error
	SendReengagementWhatsApp(ctx context.Context, msg notifyclient.Reengagement) error
}

// EnqueueResult reports what happened to an enqueue attempt.
type EnqueueResult struct {
	ItemID   uuid.UUID
	Enqueued bool
	Reason   string // set when not enqueued as pending
}

// DrainStats summarizes one drain pass over the due queue.
type DrainStats struct {
	Processed int
	Sent      int
	Ignored   int
	Failed    int
}

// RemarketingService owns the remarketing queue.
type RemarketingService struct {
	repo      store.Repository
	messenger ReengagementMessenger
	loc       *time.Location
}

// NewRemarketingService creates a new RemarketingService. loc defines the
// calendar day used for deduplication.
func NewRemarketingService(repo store.Repository, messenger ReengagementMessenger, loc *time.Location) *RemarketingService {
	if loc == nil {
		loc = time.UTC
	}
	return &RemarketingService{repo: repo, messenger: messenger, loc: loc}
}

// EnqueueForCancelledSale records a remarketing item for a cancelled primary
// sale. Items for products with remarketing off, or duplicating another item
// for the same customer, product and day, are recorded as ignored so the
// decision is auditable.
func (r *RemarketingService) EnqueueForCancelledSale(ctx context.Context, sale domain.Sale, cancelledAt time.Time) (*EnqueueResult, error) {
	product, err := r.repo.FindProductByID(ctx, sale.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product for remarketing: %w", err)
	}

	item := domain.RemarketingItem{
		ID:            uuid.New(),
		CustomerName:  sale.CustomerName,
		CustomerEmail: sale.CustomerEmail,
		CustomerPhone: sale.CustomerPhone,
		ProductID:     sale.ProductID,
		CancelledAt:   cancelledAt,
	}

	if !product.RemarketingEnabled || product.RemarketingDelayMinutes <= 0 {
		item.Status = domain.RemarketingIgnored
		reason := IgnoreReasonDisabled
		item.IgnoreReason = &reason
		item.ScheduledAt = cancelledAt
		if err := r.repo.CreateRemarketingItem(ctx, &item); err != nil {
			return nil, err
		}
		return &EnqueueResult{ItemID: item.ID, Reason: reason}, nil
	}

	duplicate, err := r.repo.HasRemarketingItemSameDay(ctx, item, cancelledAt.In(r.loc), uuid.Nil)
	if err != nil {
		return nil, err
	}
	if duplicate {
		item.Status = domain.RemarketingIgnored
		reason := IgnoreReasonDuplicate
		item.IgnoreReason = &reason
		item.ScheduledAt = cancelledAt
		if err := r.repo.CreateRemarketingItem(ctx, &item); err != nil {
			return nil, err
		}
		return &EnqueueResult{ItemID: item.ID, Reason: reason}, nil
	}

	item.Status = domain.RemarketingPending
	item.ScheduledAt = cancelledAt.Add(time.Duration(product.RemarketingDelayMinutes) * time.Minute)
	if err := r.repo.CreateRemarketingItem(ctx, &item); err != nil {
		return nil, err
	}
	log.Printf("level=info component=remarketing msg=\"item enqueued\" item_id=%s product_id=%s scheduled_at=%s", item.ID, item.ProductID, item.ScheduledAt.Format(time.RFC3339))
	return &EnqueueResult{ItemID: item.ID, Enqueued: true}, nil
}

// Drain processes due pending items, oldest first, up to limit. Each item is
// re-checked against the same-day duplicate rule (another item may have been
// sent since it was enqueued), then delivered over email with WhatsApp as the
// fallback. Both channels failing finalizes the item as ignored with the
// combined delivery errors, so the queue never wedges on one bad address.
func (r *RemarketingService) Drain(ctx context.Context, now time.Time, limit int) (*DrainStats, error) {
	items, err := r.repo.FindDueRemarketingItems(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load due remarketing items: %w", err)
	}

	stats := &DrainStats{}
	for _, item := range items {
		stats.Processed++

		duplicate, err := r.repo.HasRemarketingItemSameDay(ctx, item, item.CancelledAt.In(r.loc), item.ID)
		if err != nil {
			log.Printf("level=error component=remarketing msg=\"duplicate re-check failed; leaving item pending\" item_id=%s err=%v", item.ID, err)
			stats.Failed++
			continue
		}
		if duplicate {
			if err := r.repo.MarkRemarketingItemIgnored(ctx, item.ID, IgnoreReasonDuplicate); err != nil {
				log.Printf("level=error component=remarketing msg=\"failed to ignore duplicate item\" item_id=%s err=%v", item.ID, err)
				stats.Failed++
				continue
			}
			stats.Ignored++
			continue
		}

		if err := r.deliver(ctx, item); err != nil {
			if markErr := r.repo.MarkRemarketingItemIgnored(ctx, item.ID, err.Error()); markErr != nil {
				log.Printf("level=error component=remarketing msg=\"failed to finalize undeliverable item\" item_id=%s err=%v", item.ID, markErr)
				stats.Failed++
				continue
			}
			stats.Ignored++
			continue
		}

		if err := r.repo.MarkRemarketingItemSent(ctx, item.ID); err != nil {
			log.Printf("level=error component=remarketing msg=\"delivered but failed to mark sent\" item_id=%s err=%v", item.ID, err)
			stats.Failed++
			continue
		}
		stats.Sent++
	}

	return stats, nil
}

// deliver tries email first, then WhatsApp. It returns nil when either
// channel accepted the message.
func (r *RemarketingService) deliver(ctx context.Context, item domain.RemarketingItem) error {
	product, err := r.repo.FindProductByID(ctx, item.ProductID)
	if err != nil {
		return fmt.Errorf("product lookup failed: %w", err)
	}

	msg := notifyclient.Reengagement{
		CustomerName:  item.CustomerName,
		CustomerEmail: item.CustomerEmail,
		CustomerPhone: item.CustomerPhone,
		ProductName:   product.Name,
		CheckoutLink:  product.CheckoutLink,
	}

	var emailErr error
	if item.CustomerEmail != "" {
		if emailErr = r.messenger.SendReengagementEmail(ctx, msg); emailErr == nil {
			return nil
		}
		log.Printf("level=warn component=remarketing msg=\"email delivery failed; trying whatsapp\" item_id=%s err=%v", item.ID, emailErr)
	}

	var whatsappErr error
	if item.CustomerPhone != "" {
		if whatsappErr = r.messenger.SendReengagementWhatsApp(ctx, msg); whatsappErr == nil {
			return nil
		}
	}

	return fmt.Errorf("all delivery channels failed: email=%v whatsapp=%v", emailErr, whatsappErr)
}
