/**
 * @description
 * PostgreSQL implementation of the seller ledger. Movements are append-only;
 * the seller_balances row is an incrementally-maintained cache over them.
 * Both write paths pair the movement insert with an idempotency key claim in
 * the same transaction, so a replayed credit or payout is a clean no-op.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Ledger domain models.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendapay/checkout-service/internal/domain"
)

// CreditSellerOnce appends a credit movement and bumps the cached balance.
// The (seller, origin, reference) key makes the operation replay-safe: the
// second and later calls for the same sale return applied=false without
// touching the ledger.
func (r *PostgresRepository) CreditSellerOnce(ctx context.Context, movement domain.BalanceMovement) (bool, error) {
	if movement.Amount <= 0 {
		return false, fmt.Errorf("credit amount must be positive, got %d", movement.Amount)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := claimIdempotencyKey(ctx, tx, movement.SellerID.String(), movement.Origin, movement.OriginReference)
	if err != nil {
		return false, fmt.Errorf("claim credit key: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := insertMovement(ctx, tx, &movement, domain.MovementCredit); err != nil {
		return false, err
	}

	upsert := `
		INSERT INTO seller_balances (seller_id, current_balance, lifetime_revenue, updated_at)
		VALUES ($1, $2, $2, NOW())
		ON CONFLICT (seller_id) DO UPDATE SET
			current_balance = seller_balances.current_balance + $2,
			lifetime_revenue = seller_balances.lifetime_revenue + $2,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, upsert, movement.SellerID, movement.Amount); err != nil {
		return false, fmt.Errorf("upsert seller balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DebitSellerOnce appends a debit movement after checking funds under a row
// lock. ErrInsufficientBalance is returned before any write happens, and a
// replayed payout reference returns applied=false.
func (r *PostgresRepository) DebitSellerOnce(ctx context.Context, movement domain.BalanceMovement) (bool, error) {
	if movement.Amount <= 0 {
		return false, fmt.Errorf("debit amount must be positive, got %d", movement.Amount)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentBalance int64
	err = tx.QueryRow(ctx,
		`SELECT current_balance FROM seller_balances WHERE seller_id = $1 FOR UPDATE`,
		movement.SellerID,
	).Scan(&currentBalance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, ErrSellerNotFound
		}
		return false, err
	}
	if currentBalance < movement.Amount {
		return false, ErrInsufficientBalance
	}

	claimed, err := claimIdempotencyKey(ctx, tx, movement.SellerID.String(), movement.Origin, movement.OriginReference)
	if err != nil {
		return false, fmt.Errorf("claim debit key: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := insertMovement(ctx, tx, &movement, domain.MovementDebit); err != nil {
		return false, err
	}

	decrement := `
		UPDATE seller_balances
		SET current_balance = current_balance - $2, updated_at = NOW()
		WHERE seller_id = $1
	`
	if _, err := tx.Exec(ctx, decrement, movement.SellerID, movement.Amount); err != nil {
		return false, fmt.Errorf("decrement seller balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func insertMovement(ctx context.Context, exec pgxExecutor, movement *domain.BalanceMovement, direction string) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	query := `
		INSERT INTO balance_movements (
			id, seller_id, direction, origin, origin_reference, amount, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	if _, err := exec.Exec(ctx, query,
		movement.ID, movement.SellerID, direction, movement.Origin,
		movement.OriginReference, movement.Amount, movement.Description,
	); err != nil {
		return fmt.Errorf("insert %s movement: %w", direction, err)
	}
	return nil
}

// GetSellerBalance retrieves the cached aggregate row for a seller.
func (r *PostgresRepository) GetSellerBalance(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	query := `
		SELECT seller_id, current_balance, lifetime_revenue, today_revenue,
		       yesterday_revenue, week_revenue, month_revenue, updated_at
		FROM seller_balances
		WHERE seller_id = $1
	`
	var b domain.SellerBalance
	err := r.db.QueryRow(ctx, query, sellerID).Scan(
		&b.SellerID, &b.CurrentBalance, &b.LifetimeRevenue, &b.TodayRevenue,
		&b.YesterdayRevenue, &b.WeekRevenue, &b.MonthRevenue, &b.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}
	return &b, nil
}

// SumCreditMovements totals the credits a seller earned inside [from, to).
func (r *PostgresRepository) SumCreditMovements(ctx context.Context, sellerID uuid.UUID, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM balance_movements
		WHERE seller_id = $1 AND direction = 'credit'
		  AND created_at >= $2 AND created_at < $3
	`
	var total int64
	if err := r.db.QueryRow(ctx, query, sellerID, from, to).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// SumNetMovements folds the whole movement log into credits minus debits.
// This is the ground truth the cached current_balance must agree with.
func (r *PostgresRepository) SumNetMovements(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0)
		FROM balance_movements
		WHERE seller_id = $1
	`
	var total int64
	if err := r.db.QueryRow(ctx, query, sellerID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// StoreSellerAggregates writes a recomputed aggregate row wholesale.
func (r *PostgresRepository) StoreSellerAggregates(ctx context.Context, balance *domain.SellerBalance) error {
	query := `
		INSERT INTO seller_balances (
			seller_id, current_balance, lifetime_revenue, today_revenue,
			yesterday_revenue, week_revenue, month_revenue, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (seller_id) DO UPDATE SET
			current_balance = EXCLUDED.current_balance,
			lifetime_revenue = EXCLUDED.lifetime_revenue,
			today_revenue = EXCLUDED.today_revenue,
			yesterday_revenue = EXCLUDED.yesterday_revenue,
			week_revenue = EXCLUDED.week_revenue,
			month_revenue = EXCLUDED.month_revenue,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		balance.SellerID, balance.CurrentBalance, balance.LifetimeRevenue,
		balance.TodayRevenue, balance.YesterdayRevenue, balance.WeekRevenue,
		balance.MonthRevenue,
	)
	return err
}
