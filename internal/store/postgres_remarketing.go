/**
 * @description
 * PostgreSQL implementation of the remarketing queue. The interesting query
 * is the same-day duplicate check: customer identity is an OR over id, email,
 * phone and name (case-insensitive, trimmed), and "same day" is a calendar
 * day in the service's local timezone, not a rolling 24-hour window.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Remarketing domain models.
 */

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
)

// HasRemarketingItemSameDay reports whether another pending-or-sent item for
// the same customer and product was already cancelled on the same local
// calendar day. excludeID lets the drain re-check an item without matching
// itself.
func (r *PostgresRepository) HasRemarketingItemSameDay(ctx context.Context, item domain.RemarketingItem, day time.Time, excludeID uuid.UUID) (bool, error) {
	name := strings.ToLower(strings.TrimSpace(item.CustomerName))
	email := strings.ToLower(strings.TrimSpace(item.CustomerEmail))
	phone := strings.TrimSpace(item.CustomerPhone)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM remarketing_items
			WHERE product_id = $1
			  AND status IN ('pending', 'sent')
			  AND id <> $2
			  AND (cancelled_at AT TIME ZONE $3)::date = ($4::timestamptz AT TIME ZONE $3)::date
			  AND (
			        ($5::uuid IS NOT NULL AND customer_id = $5)
			     OR ($6 <> '' AND LOWER(TRIM(customer_email)) = $6)
			     OR ($7 <> '' AND TRIM(customer_phone) = $7)
			     OR ($8 <> '' AND LOWER(TRIM(customer_name)) = $8)
			  )
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query,
		item.ProductID, excludeID, r.timezone, day,
		item.CustomerID, email, phone, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check remarketing duplicate: %w", err)
	}
	return exists, nil
}

// CreateRemarketingItem inserts a new item. The caller sets status; ID and
// CreatedAt are filled in here when zero.
func (r *PostgresRepository) CreateRemarketingItem(ctx context.Context, item *domain.RemarketingItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	query := `
		INSERT INTO remarketing_items (
			id, customer_id, customer_name, customer_email, customer_phone,
			product_id, cancelled_at, scheduled_at, status, ignore_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := r.db.Exec(ctx, query,
		item.ID, item.CustomerID, item.CustomerName, item.CustomerEmail,
		item.CustomerPhone, item.ProductID, item.CancelledAt, item.ScheduledAt,
		item.Status, item.IgnoreReason,
	)
	return err
}

// FindDueRemarketingItems returns pending items whose scheduled time has
// passed, earliest first, capped at limit.
func (r *PostgresRepository) FindDueRemarketingItems(ctx context.Context, now time.Time, limit int) ([]domain.RemarketingItem, error) {
	query := `
		SELECT id, customer_id, customer_name, customer_email, customer_phone,
		       product_id, cancelled_at, scheduled_at, status, ignore_reason,
		       created_at, processed_at
		FROM remarketing_items
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.RemarketingItem
	for rows.Next() {
		var i domain.RemarketingItem
		if err := rows.Scan(
			&i.ID, &i.CustomerID, &i.CustomerName, &i.CustomerEmail,
			&i.CustomerPhone, &i.ProductID, &i.CancelledAt, &i.ScheduledAt,
			&i.Status, &i.IgnoreReason, &i.CreatedAt, &i.ProcessedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// MarkRemarketingItemSent finalizes a delivered item.
func (r *PostgresRepository) MarkRemarketingItemSent(ctx context.Context, itemID uuid.UUID) error {
	query := `
		UPDATE remarketing_items
		SET status = 'sent', processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.db.Exec(ctx, query, itemID)
	return err
}

// MarkRemarketingItemIgnored finalizes an item without delivery, recording
// why it was skipped.
func (r *PostgresRepository) MarkRemarketingItemIgnored(ctx context.Context, itemID uuid.UUID, reason string) error {
	query := `
		UPDATE remarketing_items
		SET status = 'ignored', ignore_reason = $2, processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.db.Exec(ctx, query, itemID, reason)
	return err
}
