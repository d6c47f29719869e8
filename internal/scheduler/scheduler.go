package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Config holds the scheduler intervals.
type Config struct {
	SyncIntervalSeconds    int
	HistoryIntervalSeconds int
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// Scheduler drives the offer sync and the price history jobs from a single
// goroutine, so the two never run at the same time.
type Scheduler struct {
	sync            Job
	history         Job
	syncInterval    time.Duration
	historyInterval time.Duration
	log             *zap.Logger
}

func New(cfg Config, sync, history Job, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		sync:            sync,
		history:         history,
		syncInterval:    seconds(cfg.SyncIntervalSeconds, 60*time.Second),
		historyInterval: seconds(cfg.HistoryIntervalSeconds, 300*time.Second),
		log:             log.Named("scheduler"),
	}
}

// Run blocks until ctx is cancelled. The sync job runs once right away. A job
// already running when ctx is cancelled is allowed to finish.
func (s *Scheduler) Run(ctx context.Context) {
	syncTicker := time.NewTicker(s.syncInterval)
	defer syncTicker.Stop()
	historyTicker := time.NewTicker(s.historyInterval)
	defer historyTicker.Stop()

	s.log.Info("started",
		zap.Duration("sync_interval", s.syncInterval),
		zap.Duration("history_interval", s.historyInterval),
	)

	s.runJob(ctx, s.sync)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping due to context cancelled")
			return
		case <-syncTicker.C:
			s.runJob(ctx, s.sync)
		case <-historyTicker.C:
			s.runJob(ctx, s.history)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job.Run(context.WithoutCancel(ctx)); err != nil {
		s.log.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		return
	}
	s.log.Debug("job done", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
}
