/**
 * @description
 * This file implements the idempotency guard on top of the idempotency_keys
 * table. The guard is a single conditional insert: the first caller to claim
 * an (actor, origin, reference) triple wins, everyone replaying it afterwards
 * gets claimed=false. Ledger writes claim inside their own transaction so the
 * key and the movement commit or roll back together; the webhook handler uses
 * the pool-level ClaimIdempotencyKey for duplicate delivery detection.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgxExecutor is satisfied by both *pgxpool.Pool and pgx.Tx, so the claim can
// run standalone or inside a ledger transaction.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func claimIdempotencyKey(ctx context.Context, exec pgxExecutor, actor, origin, reference string) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (actor, origin, reference, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (actor, origin, reference) DO NOTHING
	`
	tag, err := exec.Exec(ctx, query, actor, origin, reference)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimIdempotencyKey records that the triple has been seen. It returns true
// exactly once per triple, for the call that inserted the key.
func (r *PostgresRepository) ClaimIdempotencyKey(ctx context.Context, actor, origin, reference string) (bool, error) {
	return claimIdempotencyKey(ctx, r.db, actor, origin, reference)
}
