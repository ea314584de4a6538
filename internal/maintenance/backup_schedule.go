// Package maintenance runs Hearth's scheduled background jobs.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MacJediWizard/hearth/internal/archive"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// scheduledRunTimeout bounds a single scheduled backup cycle.
const scheduledRunTimeout = 10 * time.Minute

// BackupArchiver creates and prunes archived backups.
type BackupArchiver interface {
	Create(ctx context.Context) (*archive.Object, error)
	Prune(ctx context.Context, policy archive.RetentionPolicy) ([]string, error)
}

// BackupScheduleConfig configures the backup scheduler.
type BackupScheduleConfig struct {
	// Schedule is a standard five-field cron expression.
	Schedule  string
	Retention archive.RetentionPolicy
}

// BackupRun describes the outcome of one backup cycle.
type BackupRun struct {
	Archive *archive.Object
	Pruned  []string
}

// BackupScheduler archives a backup on a cron schedule and prunes old archives.
type BackupScheduler struct {
	archiver BackupArchiver
	config   BackupScheduleConfig
	cron     *cron.Cron
	logger   zerolog.Logger
	mu       sync.Mutex
	running  bool
}

// NewBackupScheduler creates a new backup scheduler.
func NewBackupScheduler(archiver BackupArchiver, config BackupScheduleConfig, logger zerolog.Logger) *BackupScheduler {
	l := logger.With().Str("component", "backup_scheduler").Logger()
	return &BackupScheduler{
		archiver: archiver,
		config:   config,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(&l)),
			cron.SkipIfStillRunning(cron.PrintfLogger(&l)),
		)),
		logger: l,
	}
}

// ValidateSchedule reports whether expr is a usable cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", expr, err)
	}
	return nil
}

// Start begins running backups on the configured schedule.
func (s *BackupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("backup scheduler already running")
	}
	if err := ValidateSchedule(s.config.Schedule); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.runScheduled); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Dur("max_age", s.config.Retention.MaxAge).
		Int("max_count", s.config.Retention.MaxCount).
		Msg("backup scheduler started")

	return nil
}

// Stop stops the scheduler. The returned context is done once a running
// backup has finished.
func (s *BackupScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info().Msg("stopping backup scheduler")
	return s.cron.Stop()
}

func (s *BackupScheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()

	if _, err := s.RunNow(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled backup failed")
	}
}

// RunNow archives a backup and then prunes according to the retention policy.
// A prune failure is logged and does not fail the run.
func (s *BackupScheduler) RunNow(ctx context.Context) (*BackupRun, error) {
	start := time.Now()

	obj, err := s.archiver.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	run := &BackupRun{Archive: obj}
	pruned, err := s.archiver.Prune(ctx, s.config.Retention)
	if err != nil {
		s.logger.Warn().Err(err).Msg("pruning backup archives failed")
	}
	run.Pruned = pruned

	s.logger.Info().
		Str("archive", obj.Name).
		Int("pruned", len(pruned)).
		Dur("duration", time.Since(start)).
		Msg("backup cycle completed")

	return run, nil
}
