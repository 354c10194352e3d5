/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/tendapay/checkout-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.RemarketingDrainSchedule, s.jobs.DrainRemarketingQueue); err != nil {
		s.logger.Error("failed to schedule remarketing drain job", "error", err)
	} else {
		s.logger.Info("scheduled remarketing drain job", "schedule", s.config.RemarketingDrainSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.StalePendingReportSchedule, s.jobs.ReportStalePendingSales); err != nil {
		s.logger.Error("failed to schedule stale pending report job", "error", err)
	} else {
		s.logger.Info("scheduled stale pending report job", "schedule", s.config.StalePendingReportSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
