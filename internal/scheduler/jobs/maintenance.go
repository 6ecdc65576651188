package jobs

import (
	"context"
	"time"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/logger"
)

// Pruner deletes stored candles older than a cutoff
type Pruner interface {
	Prune(ctx context.Context, interval contracts.Interval, before time.Time) (int64, error)
}

// HistoryPruneJob drops intraday candles past their retention
type HistoryPruneJob struct {
	store     Pruner
	retention time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewHistoryPruneJob creates a new prune job
func NewHistoryPruneJob(store Pruner, retention time.Duration, log *logger.Logger) *HistoryPruneJob {
	return &HistoryPruneJob{
		store:     store,
		retention: retention,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *HistoryPruneJob) Name() string {
	return "history_prune"
}

// Schedule returns the cron schedule (daily, before the session opens)
func (j *HistoryPruneJob) Schedule() string {
	return "0 30 3 * * *"
}

// Run deletes intraday candles older than the retention window
func (j *HistoryPruneJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled history prune")

	cutoff := j.now().In(contracts.Location).Add(-j.retention)

	var removed int64
	for _, interval := range RefreshIntervals {
		if !interval.Intraday() {
			continue
		}
		n, err := j.store.Prune(ctx, interval, cutoff)
		if err != nil {
			return err
		}
		removed += n
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"before":  cutoff.Format(contracts.TimestampLayout),
		}).Info("History prune completed")
	}

	return nil
}
