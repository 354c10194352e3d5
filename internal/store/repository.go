/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the checkout-service. By
 * defining an interface, we decouple the application's business logic from
 * the specific database implementation (e.g., PostgreSQL), making the code
 * more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Product catalog (read-only view)
	FindProductByPublicID(ctx context.Context, publicID string) (*domain.Product, error)
	FindProductByID(ctx context.Context, productID uuid.UUID) (*domain.Product, error)

	// Sale methods
	// CreateSales persists every row of one checkout in a single transaction,
	// in slice order (primary first, then order bumps). Partial failure rolls
	// back the whole checkout.
	CreateSales(ctx context.Context, sales []domain.Sale) error
	FindSalesByPaymentReference(ctx context.Context, paymentReference string) ([]domain.Sale, error)
	FindSaleByPublicID(ctx context.Context, publicID string) (*domain.Sale, error)
	// ApplySaleStatus moves every pending sale under the reference to the
	// given status atomically and returns the number of rows transitioned.
	// Zero means the reference was already terminal: callers treat that as a
	// no-op, never as an error.
	ApplySaleStatus(ctx context.Context, paymentReference string, status domain.Status, failureReason, failureCode *string) (int64, error)
	FindStalePendingSales(ctx context.Context, olderThan time.Time, limit int) ([]domain.Sale, error)

	// Attribution methods
	MergeSaleAttribution(ctx context.Context, saleID uuid.UUID, attribution domain.Attribution) error
	// MarkAttributionForwarded flips the monotonic forwarded flag. It returns
	// true only for the call that performed the flip, which is what keeps
	// forwarding at most-once across both reconciliation paths.
	MarkAttributionForwarded(ctx context.Context, saleID uuid.UUID) (bool, error)

	// Ledger methods. Both "Once" methods claim an idempotency key for the
	// movement's (seller, origin, reference) triple inside the same
	// transaction as the insert; a replay returns applied=false.
	CreditSellerOnce(ctx context.Context, movement domain.BalanceMovement) (bool, error)
	DebitSellerOnce(ctx context.Context, movement domain.BalanceMovement) (bool, error)
	GetSellerBalance(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error)
	SumCreditMovements(ctx context.Context, sellerID uuid.UUID, from, to time.Time) (int64, error)
	SumNetMovements(ctx context.Context, sellerID uuid.UUID) (int64, error)
	StoreSellerAggregates(ctx context.Context, balance *domain.SellerBalance) error

	// Idempotency guard, reusable outside the ledger (webhook delivery
	// records, order confirmation).
	ClaimIdempotencyKey(ctx context.Context, actor, origin, reference string) (bool, error)

	// Remarketing queue methods
	HasRemarketingItemSameDay(ctx context.Context, item domain.RemarketingItem, day time.Time, excludeID uuid.UUID) (bool, error)
	CreateRemarketingItem(ctx context.Context, item *domain.RemarketingItem) error
	FindDueRemarketingItems(ctx context.Context, now time.Time, limit int) ([]domain.RemarketingItem, error)
	MarkRemarketingItemSent(ctx context.Context, itemID uuid.UUID) error
	MarkRemarketingItemIgnored(ctx context.Context, itemID uuid.UUID, reason string) error
}
