/**
 * @description
 * This file implements the single funnel through which every terminal status
 * transition flows, regardless of which path discovered it (synchronous
 * gateway response, asynchronous webhook, status-poll re-query or admin
 * cancellation). The funnel makes the first-commit-wins guarantee hold: the
 * database transition is conditional on the sale still being pending, and the
 * lifecycle event is published only for the call that actually transitioned
 * rows.
 *
 * @dependencies
 * - context, log, time: Standard Go libraries.
 * - github.com/google/uuid: For event id generation.
 * - internal/domain, internal/store, pkg/rabbitmq.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
	"github.com/tendapay/checkout-service/pkg/rabbitmq"
)

// Reconciler applies terminal status transitions and publishes the resulting
// lifecycle events.
type Reconciler struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
}

// NewReconciler creates a new Reconciler.
func NewReconciler(repo store.Repository, producer rabbitmq.Publisher) *Reconciler {
	return &Reconciler{repo: repo, eventProducer: producer}
}

// ApplyStatus transitions every pending sale under the payment reference to
// the given terminal status. It returns the number of rows transitioned; zero
// means the reference was already terminal and nothing happened, including no
// event. A non-terminal status is refused as a no-op so no caller can ever
// move a sale back to pending through this path.
func (r *Reconciler) ApplyStatus(ctx context.Context, paymentReference string, status domain.Status, failureReason, failureCode *string) (int64, error) {
	if !status.Terminal() {
		log.Printf("level=warn component=reconciler msg=\"refusing non-terminal transition\" reference=%s status=%s", paymentReference, status)
		return 0, nil
	}

	rows, err := r.repo.ApplySaleStatus(ctx, paymentReference, status, failureReason, failureCode)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		log.Printf("level=info component=reconciler msg=\"reference already terminal; transition is a no-op\" reference=%s status=%s", paymentReference, status)
		return 0, nil
	}

	log.Printf("level=info component=reconciler msg=\"sales transitioned\" reference=%s status=%s rows=%d", paymentReference, status, rows)

	event := domain.SaleStatusEvent{
		EventID:          uuid.New().String(),
		PaymentReference: paymentReference,
		Status:           string(status),
		OccurredAt:       time.Now().UTC(),
	}
	if failureReason != nil {
		event.Reason = *failureReason
	}
	// Publishing is best effort: the database transition already committed
	// and consumers tolerate replays, so an event loss here only delays the
	// side effects until the next reconciliation touchpoint.
	if err := r.eventProducer.PublishSaleStatusEvent(ctx, event); err != nil {
		log.Printf("level=error component=reconciler msg=\"failed to publish sale status event\" reference=%s status=%s err=%v", paymentReference, status, err)
	}

	return rows, nil
}
