/**
 * @description
 * This file contains the seller ledger business logic: the revenue split for
 * an approved sale, idempotent crediting and payout debiting, and the
 * wholesale recomputation of a seller's cached aggregates from the movement
 * log.
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendapay/checkout-service/internal/domain"
	"github.com/tendapay/checkout-service/internal/store"
)

// PlatformFeePercent is the marketplace's cut of every sale. The remaining
// 90% is the seller's share.
const PlatformFeePercent = 10

// SellerShare splits a gross amount in centavos into the seller's share and
// the platform fee. The seller share is rounded half up; the fee is the exact
// remainder, so the two always sum back to the gross amount.
func SellerShare(gross int64) (sellerShare, platformFee int64) {
	sellerShare = (gross*(100-PlatformFeePercent) + 50) / 100
	platformFee = gross - sellerShare
	return sellerShare, platformFee
}

// BalanceService owns all writes and aggregate reads of the seller ledger.
type BalanceService struct {
	repo store.Repository
	loc  *time.Location
}

// NewBalanceService creates a new BalanceService. loc is the local timezone
// used for the calendar revenue windows.
func NewBalanceService(repo store.Repository, loc *time.Location) *BalanceService {
	if loc == nil {
		loc = time.UTC
	}
	return &BalanceService{repo: repo, loc: loc}
}

// CreditSale credits the seller's share of an approved sale. Keyed on the
// sale id, so replays (duplicate webhook, requeued event) apply exactly once.
func (b *BalanceService) CreditSale(ctx context.Context, sale domain.Sale) (bool, error) {
	movement := domain.BalanceMovement{
		SellerID:        sale.SellerID,
		Origin:          domain.OriginSaleCredit,
		OriginReference: sale.ID.String(),
		Amount:          sale.SellerAmount,
		Description:     fmt.Sprintf("Sale credit for %s", sale.PublicID),
	}
	return b.repo.CreditSellerOnce(ctx, movement)
}

// ProcessPayout debits a seller's balance for a payout, keyed on the payout
// reference. Returns store.ErrInsufficientBalance when funds do not cover it.
func (b *BalanceService) ProcessPayout(ctx context.Context, sellerID uuid.UUID, payoutReference string, amount int64) (bool, error) {
	movement := domain.BalanceMovement{
		SellerID:        sellerID,
		Origin:          domain.OriginPayoutDebit,
		OriginReference: payoutReference,
		Amount:          amount,
		Description:     fmt.Sprintf("Payout %s", payoutReference),
	}
	return b.repo.DebitSellerOnce(ctx, movement)
}

// GetBalance returns the cached aggregate row for a seller.
func (b *BalanceService) GetBalance(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	return b.repo.GetSellerBalance(ctx, sellerID)
}

// RecomputeAggregates rebuilds a seller's cached balance row from the
// movement log. The calendar windows (today, yesterday, this week, this
// month) are bounded in the service's local timezone; the week starts on
// Monday.
func (b *BalanceService) RecomputeAggregates(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	now := time.Now().In(b.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.loc)
	yesterday := today.AddDate(0, 0, -1)
	weekStart := today.AddDate(0, 0, -mondayOffset(today.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, b.loc)
	epoch := time.Unix(0, 0)
	horizon := today.AddDate(0, 0, 1)

	balance := &domain.SellerBalance{SellerID: sellerID}

	var err error
	if balance.CurrentBalance, err = b.repo.SumNetMovements(ctx, sellerID); err != nil {
		return nil, fmt.Errorf("recompute current balance: %w", err)
	}
	if balance.LifetimeRevenue, err = b.repo.SumCreditMovements(ctx, sellerID, epoch, horizon); err != nil {
		return nil, fmt.Errorf("recompute lifetime revenue: %w", err)
	}
	if balance.TodayRevenue, err = b.repo.SumCreditMovements(ctx, sellerID, today, horizon); err != nil {
		return nil, fmt.Errorf("recompute today revenue: %w", err)
	}
	if balance.YesterdayRevenue, err = b.repo.SumCreditMovements(ctx, sellerID, yesterday, today); err != nil {
		return nil, fmt.Errorf("recompute yesterday revenue: %w", err)
	}
	if balance.WeekRevenue, err = b.repo.SumCreditMovements(ctx, sellerID, weekStart, horizon); err != nil {
		return nil, fmt.Errorf("recompute week revenue: %w", err)
	}
	if balance.MonthRevenue, err = b.repo.SumCreditMovements(ctx, sellerID, monthStart, horizon); err != nil {
		return nil, fmt.Errorf("recompute month revenue: %w", err)
	}

	if err := b.repo.StoreSellerAggregates(ctx, balance); err != nil {
		return nil, fmt.Errorf("store recomputed aggregates: %w", err)
	}
	return balance, nil
}

// mondayOffset returns how many days back the ISO week started.
func mondayOffset(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - 1
}
