package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tendapay/checkout-service/internal/app"
	"github.com/tendapay/checkout-service/internal/config"
	"github.com/tendapay/checkout-service/internal/domain"
)

type drainerStub struct {
	stats     *app.DrainStats
	err       error
	lastLimit int
	calls     int
}

func (s *drainerStub) Drain(ctx context.Context, now time.Time, limit int) (*app.DrainStats, error) {
	s.calls++
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.stats, nil
}

type saleStoreStub struct {
	sales      []domain.Sale
	err        error
	lastCutoff time.Time
}

func (s *saleStoreStub) FindStalePendingSales(ctx context.Context, olderThan time.Time, limit int) ([]domain.Sale, error) {
	s.lastCutoff = olderThan
	if s.err != nil {
		return nil, s.err
	}
	return s.sales, nil
}

func newTestJobs(drainer RemarketingDrainer, sales SaleStore, cfg config.Config) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobs(drainer, sales, logger, cfg)
}

func TestDrainRemarketingQueue_UsesConfiguredBatchSize(t *testing.T) {
	drainer := &drainerStub{stats: &app.DrainStats{Processed: 3, Sent: 2, Ignored: 1}}
	jobs := newTestJobs(drainer, &saleStoreStub{}, config.Config{RemarketingDrainBatchSize: 25})

	jobs.DrainRemarketingQueue()

	if drainer.calls != 1 {
		t.Fatalf("expected one drain call, got %d", drainer.calls)
	}
	if drainer.lastLimit != 25 {
		t.Fatalf("expected configured batch size 25, got %d", drainer.lastLimit)
	}
}

func TestDrainRemarketingQueue_SurvivesDrainError(t *testing.T) {
	drainer := &drainerStub{err: errors.New("db unavailable")}
	jobs := newTestJobs(drainer, &saleStoreStub{}, config.Config{RemarketingDrainBatchSize: 50})

	// Must not panic; the next tick retries.
	jobs.DrainRemarketingQueue()
}

func TestReportStalePendingSales_UsesConfiguredCutoff(t *testing.T) {
	store := &saleStoreStub{sales: []domain.Sale{{PublicID: "AB12CD34", CreatedAt: time.Now().Add(-2 * time.Hour)}}}
	jobs := newTestJobs(&drainerStub{stats: &app.DrainStats{}}, store, config.Config{StalePendingAfterMinutes: 90})

	before := time.Now().Add(-90 * time.Minute)
	jobs.ReportStalePendingSales()
	after := time.Now().Add(-90 * time.Minute)

	if store.lastCutoff.Before(before.Add(-time.Second)) || store.lastCutoff.After(after.Add(time.Second)) {
		t.Fatalf("cutoff %v not within expected window around %v", store.lastCutoff, before)
	}
}
