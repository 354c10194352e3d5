/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface for the product and sale tables. It contains all the necessary
 * SQL queries to create checkout fan-out rows, reconcile statuses and manage
 * attribution payloads.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendapay/checkout-service/internal/domain"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrProductInactive     = errors.New("product is not active")
	ErrSaleNotFound        = errors.New("sale not found")
	ErrSellerNotFound      = errors.New("seller balance not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db       *pgxpool.Pool
	timezone string
}

// NewPostgresRepository creates a new instance of PostgresRepository. The
// timezone name is used for calendar-day comparisons (remarketing dedup).
func NewPostgresRepository(db *pgxpool.Pool, timezone string) *PostgresRepository {
	if timezone == "" {
		timezone = "UTC"
	}
	return &PostgresRepository{db: db, timezone: timezone}
}

// FindProductByPublicID retrieves a product by its 6-digit checkout id.
func (r *PostgresRepository) FindProductByPublicID(ctx context.Context, publicID string) (*domain.Product, error) {
	query := `
		SELECT id, public_id, seller_id, name, price, discount_percent, active,
		       remarketing_enabled, remarketing_delay_minutes, checkout_link
		FROM products
		WHERE public_id = $1
	`
	return r.scanProduct(r.db.QueryRow(ctx, query, publicID))
}

// FindProductByID retrieves a product by its internal id.
func (r *PostgresRepository) FindProductByID(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, public_id, seller_id, name, price, discount_percent, active,
		       remarketing_enabled, remarketing_delay_minutes, checkout_link
		FROM products
		WHERE id = $1
	`
	return r.scanProduct(r.db.QueryRow(ctx, query, productID))
}

func (r *PostgresRepository) scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.PublicID, &p.SellerID, &p.Name, &p.Price, &p.DiscountPercent,
		&p.Active, &p.RemarketingEnabled, &p.RemarketingDelayMinutes, &p.CheckoutLink,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

const saleColumns = `
	id, public_id, payment_reference, product_id, seller_id,
	customer_name, customer_email, customer_phone, payment_method,
	is_order_bump, gross_amount, seller_amount, platform_fee, status,
	failure_reason, failure_code, attribution, attribution_forwarded,
	attribution_forwarded_at, created_at, approved_at
`

// CreateSales inserts every sale row of one checkout inside one transaction,
// preserving slice order so the primary row is always created first.
func (r *PostgresRepository) CreateSales(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return errors.New("no sales to create")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sales (
			id, public_id, payment_reference, product_id, seller_id,
			customer_name, customer_email, customer_phone, payment_method,
			is_order_bump, gross_amount, seller_amount, platform_fee, status,
			attribution, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	`
	for i := range sales {
		s := &sales[i]
		attribution, err := marshalAttribution(s.Attribution)
		if err != nil {
			return fmt.Errorf("marshal attribution for sale %s: %w", s.ID, err)
		}
		if _, err := tx.Exec(ctx, query,
			s.ID, s.PublicID, s.PaymentReference, s.ProductID, s.SellerID,
			s.CustomerName, s.CustomerEmail, s.CustomerPhone, s.PaymentMethod,
			s.IsOrderBump, s.GrossAmount, s.SellerAmount, s.PlatformFee, s.Status,
			attribution,
		); err != nil {
			return fmt.Errorf("insert sale %s: %w", s.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// FindSalesByPaymentReference returns every sale of one checkout, primary
// row first.
func (r *PostgresRepository) FindSalesByPaymentReference(ctx context.Context, paymentReference string) ([]domain.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE payment_reference = $1
		ORDER BY is_order_bump ASC, created_at ASC
	`
	rows, err := r.db.Query(ctx, query, paymentReference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, ErrSaleNotFound
	}
	return sales, nil
}

// FindSaleByPublicID retrieves a single sale by its short display id.
func (r *PostgresRepository) FindSaleByPublicID(ctx context.Context, publicID string) (*domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE public_id = $1`
	sale, err := scanSale(r.db.QueryRow(ctx, query, publicID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return sale, nil
}

// ApplySaleStatus transitions every pending sale under the reference in one
// statement. The `status = 'pending'` predicate is the terminal-state guard:
// a replayed or racing transition simply matches zero rows.
func (r *PostgresRepository) ApplySaleStatus(ctx context.Context, paymentReference string, status domain.Status, failureReason, failureCode *string) (int64, error) {
	query := `
		UPDATE sales
		SET status = $2,
		    failure_reason = COALESCE($3, failure_reason),
		    failure_code = COALESCE($4, failure_code),
		    approved_at = CASE WHEN $2 = 'approved' AND approved_at IS NULL THEN NOW() ELSE approved_at END
		WHERE payment_reference = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, paymentReference, status, failureReason, failureCode)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FindStalePendingSales lists primary sales that have sat in pending since
// before the cutoff. Used by the report-only reaper job; nothing here mutates.
func (r *PostgresRepository) FindStalePendingSales(ctx context.Context, olderThan time.Time, limit int) ([]domain.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE status = 'pending' AND is_order_bump = FALSE AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

// MergeSaleAttribution applies the fill-nulls-only merge under a row lock so
// concurrent merges cannot clobber populated fields.
func (r *PostgresRepository) MergeSaleAttribution(ctx context.Context, saleID uuid.UUID, attribution domain.Attribution) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin attribution tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT attribution FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrSaleNotFound
		}
		return err
	}

	current := domain.Attribution{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode stored attribution: %w", err)
		}
	}
	current.Merge(&attribution)

	merged, err := json.Marshal(&current)
	if err != nil {
		return fmt.Errorf("encode merged attribution: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE sales SET attribution = $2 WHERE id = $1`, saleID, merged); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// MarkAttributionForwarded flips the monotonic forwarded flag and reports
// whether this call performed the flip.
func (r *PostgresRepository) MarkAttributionForwarded(ctx context.Context, saleID uuid.UUID) (bool, error) {
	query := `
		UPDATE sales
		SET attribution_forwarded = TRUE, attribution_forwarded_at = NOW()
		WHERE id = $1 AND attribution_forwarded = FALSE
	`
	tag, err := r.db.Exec(ctx, query, saleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanSale(row pgx.Row) (*domain.Sale, error) {
	var s domain.Sale
	var attribution []byte
	err := row.Scan(
		&s.ID, &s.PublicID, &s.PaymentReference, &s.ProductID, &s.SellerID,
		&s.CustomerName, &s.CustomerEmail, &s.CustomerPhone, &s.PaymentMethod,
		&s.IsOrderBump, &s.GrossAmount, &s.SellerAmount, &s.PlatformFee, &s.Status,
		&s.FailureReason, &s.FailureCode, &attribution, &s.Forwarded,
		&s.ForwardedAt, &s.CreatedAt, &s.ApprovedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attribution) > 0 {
		var a domain.Attribution
		if err := json.Unmarshal(attribution, &a); err != nil {
			return nil, fmt.Errorf("decode attribution for sale %s: %w", s.ID, err)
		}
		s.Attribution = &a
	}
	return &s, nil
}

func marshalAttribution(a *domain.Attribution) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}
