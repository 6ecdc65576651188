package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/logger"
)

// schedules are the cron expressions (with seconds) per refreshed interval,
// evaluated in exchange time
var schedules = map[contracts.Interval]string{
	contracts.Interval1H: "0 */5 9-15 * * 1-5", // every 5 minutes during trading hours
	contracts.Interval1D: "0 0 16 * * 1-5",     // after the close, weekdays
	contracts.Interval1W: "0 0 16 * * 5",       // Friday after the close
	contracts.Interval1M: "0 0 16 28-31 * *",   // last day of month, checked in Run
}

// RefreshIntervals lists the intervals that have a refresh schedule
var RefreshIntervals = []contracts.Interval{
	contracts.Interval1H, contracts.Interval1D, contracts.Interval1W, contracts.Interval1M,
}

// Target is one watch-list entry
type Target struct {
	Symbol string               `json:"symbol"`
	Market contracts.MarketType `json:"market_type"`
}

// ParseTargets parses watch-list entries: "FPT" is a stock, "crypto:BTC" and
// "forex:USDVND" select another market
func ParseTargets(entries []string) ([]Target, error) {
	targets := make([]Target, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		t := Target{Symbol: entry, Market: contracts.MarketStock}
		if market, symbol, ok := strings.Cut(entry, ":"); ok {
			m, err := contracts.ParseMarketType(market)
			if err != nil {
				return nil, fmt.Errorf("watch-list entry %q: %w", entry, err)
			}
			t = Target{Symbol: symbol, Market: m}
		}
		t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
		if t.Symbol == "" {
			return nil, fmt.Errorf("%w: watch-list entry %q has no symbol", contracts.ErrInvalidArgument, entry)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Invalidator drops cached candles once newer ones are stored
type Invalidator interface {
	InvalidateHistory(ctx context.Context, market contracts.MarketType, symbol string, interval contracts.Interval)
}

// RefreshResult is the outcome for one target
type RefreshResult struct {
	Symbol   string               `json:"symbol"`
	Market   contracts.MarketType `json:"market_type"`
	Interval contracts.Interval   `json:"interval"`
	From     string               `json:"from,omitempty"`
	Saved    int                  `json:"saved"`
	Skipped  string               `json:"skipped,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// HistoryRefreshJob keeps the history store current for one interval
// ⭐ SSOT: 시세 이력 갱신 스케줄은 이 Job에서만
type HistoryRefreshJob struct {
	interval    contracts.Interval
	targets     []Target
	data        contracts.MarketData
	store       contracts.HistoryStore
	invalidator Invalidator
	logger      *logger.Logger
	now         func() time.Time
}

// NewHistoryRefreshJob creates a refresh job. invalidator may be nil.
func NewHistoryRefreshJob(interval contracts.Interval, targets []Target, data contracts.MarketData, store contracts.HistoryStore, invalidator Invalidator, log *logger.Logger) *HistoryRefreshJob {
	return &HistoryRefreshJob{
		interval:    interval,
		targets:     targets,
		data:        data,
		store:       store,
		invalidator: invalidator,
		logger:      log,
		now:         time.Now,
	}
}

// Name returns the job name
func (j *HistoryRefreshJob) Name() string {
	return "history_refresh_" + string(j.interval)
}

// Schedule returns the cron schedule for the interval
func (j *HistoryRefreshJob) Schedule() string {
	if s, ok := schedules[j.interval]; ok {
		return s
	}
	return schedules[contracts.Interval1D]
}

// Run refreshes every target; it fails when any target failed
func (j *HistoryRefreshJob) Run(ctx context.Context) error {
	now := j.now().In(contracts.Location)
	if j.interval == contracts.Interval1M && !lastDayOfMonth(now) {
		j.logger.WithField("job", j.Name()).Debug("Not the last day of month, skipping")
		return nil
	}

	results := j.RunOnce(ctx)

	failed := 0
	var firstErr string
	saved := 0
	for _, r := range results {
		saved += r.Saved
		if r.Error != "" {
			if failed == 0 {
				firstErr = r.Symbol + ": " + r.Error
			}
			failed++
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"job":     j.Name(),
		"targets": len(results),
		"saved":   saved,
		"failed":  failed,
	}).Info("History refresh finished")

	if failed > 0 {
		return fmt.Errorf("%d of %d symbols failed, first: %s", failed, len(results), firstErr)
	}
	return nil
}

// RunOnce refreshes every target and reports per-target results
func (j *HistoryRefreshJob) RunOnce(ctx context.Context) []RefreshResult {
	results := make([]RefreshResult, 0, len(j.targets))
	for _, t := range j.targets {
		if ctx.Err() != nil {
			break
		}
		results = append(results, j.refresh(ctx, t))
	}
	return results
}

func (j *HistoryRefreshJob) refresh(ctx context.Context, t Target) RefreshResult {
	res := RefreshResult{Symbol: t.Symbol, Market: t.Market, Interval: j.interval}
	log := j.logger.WithFields(map[string]interface{}{
		"symbol":   t.Symbol,
		"market":   string(t.Market),
		"interval": string(j.interval),
	})

	if t.Market != contracts.MarketStock && j.interval.Intraday() {
		res.Skipped = "intraday data is not available for " + string(t.Market)
		return res
	}

	now := j.now().In(contracts.Location)

	latest, err := j.store.Latest(ctx, t.Symbol, t.Market, j.interval)
	if err != nil {
		res.Error = err.Error()
		log.WithError(err).Error("Failed to read latest stored candle")
		return res
	}

	start := now.AddDate(-1, 0, 0)
	if latest != nil {
		start = nextCandle(latest.Time, j.interval)
	}
	if start.After(now) {
		res.Skipped = "up to date"
		return res
	}
	res.From = start.Format(contracts.TimestampLayout)

	candles, err := j.data.History(ctx, contracts.HistoryRequest{
		Symbol:   t.Symbol,
		Start:    start,
		End:      now,
		Interval: j.interval,
		Market:   t.Market,
	})
	if err != nil {
		res.Error = err.Error()
		log.WithError(err).Error("Failed to fetch history")
		return res
	}

	// Drop anything already stored
	fresh := candles[:0:0]
	for _, c := range candles {
		if latest == nil || c.Time.After(latest.Time) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		res.Skipped = "no new candles"
		return res
	}

	n, err := j.store.UpsertCandles(ctx, t.Symbol, t.Market, j.interval, fresh)
	res.Saved = n
	if err != nil {
		res.Error = err.Error()
		log.WithError(err).Error("Failed to store candles")
		return res
	}

	if j.invalidator != nil {
		j.invalidator.InvalidateHistory(ctx, t.Market, t.Symbol, j.interval)
	}

	log.WithField("saved", n).Debug("Stored candles")
	return res
}

// nextCandle is the open time of the candle after t
func nextCandle(t time.Time, interval contracts.Interval) time.Time {
	switch interval {
	case contracts.Interval1D:
		return t.AddDate(0, 0, 1)
	case contracts.Interval1W:
		return t.AddDate(0, 0, 7)
	case contracts.Interval1M:
		return t.AddDate(0, 1, 0)
	default:
		return t.Add(interval.Duration())
	}
}

// lastDayOfMonth reports whether t is the final calendar day of its month
func lastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}
