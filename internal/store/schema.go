/**
 * @description
 * Idempotent schema bootstrap. Run at startup so a fresh database is usable
 * without a separate migration step; every statement is a no-op when the
 * object already exists.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    public_id TEXT NOT NULL UNIQUE,
    seller_id UUID NOT NULL,
    name TEXT NOT NULL,
    price BIGINT NOT NULL,
    discount_percent INT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    remarketing_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    remarketing_delay_minutes INT NOT NULL DEFAULT 0,
    checkout_link TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sales (
    id UUID PRIMARY KEY,
    public_id TEXT NOT NULL UNIQUE,
    payment_reference TEXT NOT NULL,
    product_id UUID NOT NULL,
    seller_id UUID NOT NULL,
    customer_name TEXT NOT NULL DEFAULT '',
    customer_email TEXT NOT NULL DEFAULT '',
    customer_phone TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    is_order_bump BOOLEAN NOT NULL DEFAULT FALSE,
    gross_amount BIGINT NOT NULL,
    seller_amount BIGINT NOT NULL,
    platform_fee BIGINT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    failure_reason TEXT,
    failure_code TEXT,
    attribution JSONB,
    attribution_forwarded BOOLEAN NOT NULL DEFAULT FALSE,
    attribution_forwarded_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    approved_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sales_payment_reference ON sales (payment_reference);
CREATE INDEX IF NOT EXISTS idx_sales_pending_created ON sales (created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS balance_movements (
    id UUID PRIMARY KEY,
    seller_id UUID NOT NULL,
    direction TEXT NOT NULL,
    origin TEXT NOT NULL,
    origin_reference TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_balance_movements_seller ON balance_movements (seller_id, created_at);

CREATE TABLE IF NOT EXISTS seller_balances (
    seller_id UUID PRIMARY KEY,
    current_balance BIGINT NOT NULL DEFAULT 0,
    lifetime_revenue BIGINT NOT NULL DEFAULT 0,
    today_revenue BIGINT NOT NULL DEFAULT 0,
    yesterday_revenue BIGINT NOT NULL DEFAULT 0,
    week_revenue BIGINT NOT NULL DEFAULT 0,
    month_revenue BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS idempotency_keys (
    actor TEXT NOT NULL,
    origin TEXT NOT NULL,
    reference TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (actor, origin, reference)
);

CREATE TABLE IF NOT EXISTS remarketing_items (
    id UUID PRIMARY KEY,
    customer_id UUID,
    customer_name TEXT NOT NULL DEFAULT '',
    customer_email TEXT NOT NULL DEFAULT '',
    customer_phone TEXT NOT NULL DEFAULT '',
    product_id UUID NOT NULL,
    cancelled_at TIMESTAMPTZ NOT NULL,
    scheduled_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    ignore_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_remarketing_due ON remarketing_items (scheduled_at) WHERE status = 'pending';
`

// EnsureSchema creates the service's tables and indexes when missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schemaSQL)
	return err
}
