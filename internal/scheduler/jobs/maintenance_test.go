package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/logger"
)

type fakePruner struct {
	intervals []contracts.Interval
	before    time.Time
	removed   int64
	err       error
}

func (f *fakePruner) Prune(ctx context.Context, interval contracts.Interval, before time.Time) (int64, error) {
	f.intervals = append(f.intervals, interval)
	f.before = before
	return f.removed, f.err
}

func TestHistoryPruneJob(t *testing.T) {
	store := &fakePruner{removed: 42}
	job := NewHistoryPruneJob(store, 90*24*time.Hour, logger.Nop())
	job.now = func() time.Time { return at("2024-06-30 03:30:00") }

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, "history_prune", job.Name())
	assert.Equal(t, []contracts.Interval{contracts.Interval1H}, store.intervals, "only intraday intervals are pruned")
	assert.True(t, store.before.Equal(at("2024-04-01 03:30:00")))
}

func TestHistoryPruneJobError(t *testing.T) {
	store := &fakePruner{err: errors.New("relation does not exist")}
	job := NewHistoryPruneJob(store, time.Hour, logger.Nop())

	assert.ErrorContains(t, job.Run(context.Background()), "relation does not exist")
}
