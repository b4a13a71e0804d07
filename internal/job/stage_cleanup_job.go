package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"room-ffe-api/internal/dto"
)

// StageCleaner runs one duplicate stage cleanup pass
type StageCleaner interface {
	RunCleanup(ctx context.Context, req *dto.StageCleanupRequest) (*dto.StageCleanupReport, error)
}

// StageCleanupJob merges duplicate stages on a schedule
type StageCleanupJob struct {
	cleaner StageCleaner
	// enforceIndex, when set, runs after a pass that left no conflicts
	enforceIndex func() error
	timeout      time.Duration
	logger       *zap.Logger
}

// NewStageCleanupJob creates a new StageCleanupJob instance
func NewStageCleanupJob(cleaner StageCleaner, enforceIndex func() error, timeout time.Duration, logger *zap.Logger) *StageCleanupJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &StageCleanupJob{
		cleaner:      cleaner,
		enforceIndex: enforceIndex,
		timeout:      timeout,
		logger:       logger,
	}
}

// Run executes the cleanup job. It satisfies cron.Job.
func (j *StageCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.logger.Info("Starting stage cleanup job")

	report, err := j.cleaner.RunCleanup(ctx, &dto.StageCleanupRequest{})
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if report != nil {
			fields = append(fields,
				zap.Int("merges_completed", len(report.Merges)),
				zap.Int("stages_removed", report.StagesRemoved),
			)
		}
		j.logger.Error("Stage cleanup job failed", fields...)
		return
	}

	if len(report.Conflicts) > 0 {
		j.logger.Warn("Stage cleanup left groups for manual review",
			zap.Int("conflicts", len(report.Conflicts)),
		)
		return
	}

	if j.enforceIndex != nil {
		if err := j.enforceIndex(); err != nil {
			j.logger.Warn("Failed to install stage unique index", zap.Error(err))
			return
		}
		j.logger.Info("Stage unique index in place")
	}

	j.logger.Info("Stage cleanup job completed",
		zap.Int("rooms_processed", report.RoomsProcessed),
		zap.Int("stages_removed", report.StagesRemoved),
	)
}

// NewScheduler registers job under spec and returns the (not yet started) cron scheduler.
// An empty spec returns nil.
func NewScheduler(spec string, job cron.Job, logger *zap.Logger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	if _, err := c.AddJob(spec, job); err != nil {
		return nil, fmt.Errorf("invalid stage cleanup schedule %q: %w", spec, err)
	}

	logger.Info("Stage cleanup scheduled", zap.String("spec", spec))
	return c, nil
}
