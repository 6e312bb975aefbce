package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule = "@every 5m"
	jobTimeout      = 2 * time.Minute
)

// Purger removes expired entries from a local store.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Scheduler runs the reconciler, and optionally a purger, on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *Reconciler
	purger     Purger
	schedule   string
	logger     *slog.Logger
}

func NewScheduler(reconciler *Reconciler, purger Purger, schedule string, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		purger:     purger,
		schedule:   schedule,
		logger:     logger,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.ReconcileOrphans); err != nil {
		s.logger.Error("failed to schedule orphan reconciliation job", "error", err)
		return err
	}
	s.logger.Info("scheduled orphan reconciliation job", "schedule", s.schedule)

	if s.purger != nil {
		if _, err := s.cron.AddFunc("@hourly", s.PurgeIdempotencyKeys); err != nil {
			s.logger.Error("failed to schedule idempotency purge job", "error", err)
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) ReconcileOrphans() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := s.reconciler.Run(ctx)
	if err != nil {
		s.logger.Error("orphan reconciliation failed", "error", err)
		return
	}
	s.logger.Info("orphan reconciliation finished", "checked", result.Checked, "orphaned", result.Orphaned, "failed", result.Failed)
}

func (s *Scheduler) PurgeIdempotencyKeys() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("failed to purge idempotency keys", "error", err)
		return
	}
	s.logger.Info("purged expired idempotency keys", "removed", removed)
}
