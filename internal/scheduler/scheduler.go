package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/antifraude/url-sentinel/internal/config"
)

// HistoryPruner deletes stale history records
type HistoryPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs periodic maintenance jobs. Currently the single job prunes
// url history records not seen within the retention window, keeping the
// cache honest about URLs that may have changed hands.
type Scheduler struct {
	cron    *cron.Cron
	history HistoryPruner
	cfg     config.SchedulerConfig
	logger  *slog.Logger
}

// New creates a scheduler
func New(history HistoryPruner, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		history: history,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, s.pruneHistory); err != nil {
		return fmt.Errorf("registering history cleanup job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", "cleanup_schedule", s.cfg.CleanupSchedule, "retention_days", s.cfg.HistoryRetentionDays)
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) pruneHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.HistoryRetentionDays)
	deleted, err := s.history.PruneOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("History cleanup failed", "error", err)
		return
	}
	s.logger.Info("History cleanup completed", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
}
