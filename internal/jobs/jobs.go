/**
 * @description
 * Scheduled job implementations for the checkout-service: draining the
 * remarketing queue and reporting sales stuck in pending.
 */
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/tendapay/checkout-service/internal/app"
	"github.com/tendapay/checkout-service/internal/config"
	"github.com/tendapay/checkout-service/internal/domain"
)

// RemarketingDrainer is the surface of the remarketing service the drain job
// needs.
type RemarketingDrainer interface {
	Drain(ctx context.Context, now time.Time, limit int) (*app.DrainStats, error)
}

// SaleStore defines the database operations needed by the stale-pending
// report.
type SaleStore interface {
	FindStalePendingSales(ctx context.Context, olderThan time.Time, limit int) ([]domain.Sale, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	drainer RemarketingDrainer
	sales   SaleStore
	logger  *slog.Logger
	config  config.Config
}

// NewJobs creates a new Jobs runner.
func NewJobs(drainer RemarketingDrainer, sales SaleStore, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		drainer: drainer,
		sales:   sales,
		logger:  logger,
		config:  cfg,
	}
}

// DrainRemarketingQueue delivers due remarketing messages in one batch.
func (j *Jobs) DrainRemarketingQueue() {
	j.logger.Info("starting remarketing drain job")
	ctx := context.Background()

	stats, err := j.drainer.Drain(ctx, time.Now(), j.config.RemarketingDrainBatchSize)
	if err != nil {
		j.logger.Error("remarketing drain failed", "error", err)
		return
	}

	if stats.Processed == 0 {
		j.logger.Info("no due remarketing items to process")
		return
	}
	j.logger.Info("remarketing drain job finished", "processed", stats.Processed, "sent", stats.Sent, "ignored", stats.Ignored, "failed", stats.Failed)
}

// ReportStalePendingSales logs sales that have been pending longer than the
// configured threshold. Report-only: cancelling a stuck sale is an operator
// decision made through the internal cancel endpoint.
func (j *Jobs) ReportStalePendingSales() {
	j.logger.Info("starting stale pending report job")
	ctx := context.Background()

	cutoff := time.Now().Add(-time.Duration(j.config.StalePendingAfterMinutes) * time.Minute)
	sales, err := j.sales.FindStalePendingSales(ctx, cutoff, 100)
	if err != nil {
		j.logger.Error("failed to list stale pending sales", "error", err)
		return
	}

	if len(sales) == 0 {
		j.logger.Info("no stale pending sales")
		return
	}

	j.logger.Warn("found stale pending sales", "count", len(sales), "older_than_minutes", j.config.StalePendingAfterMinutes)
	for _, sale := range sales {
		j.logger.Warn("stale pending sale", "sale_id", sale.PublicID, "reference", sale.PaymentReference, "created_at", sale.CreatedAt.Format(time.RFC3339))
	}
}
