package market

import (
	"time"

	"github.com/wonny/vnmarket/internal/contracts"
)

// resampleSource maps an interval to the finer interval it is built from
var resampleSource = map[contracts.Interval]contracts.Interval{
	contracts.Interval5m:  contracts.Interval1m,
	contracts.Interval15m: contracts.Interval1m,
	contracts.Interval30m: contracts.Interval1m,
	contracts.Interval4H:  contracts.Interval1H,
	contracts.Interval1W:  contracts.Interval1D,
	contracts.Interval1M:  contracts.Interval1D,
}

// BucketStart returns the start of the interval bucket containing t, in
// exchange time. Weeks start on Monday.
func BucketStart(t time.Time, interval contracts.Interval) time.Time {
	t = t.In(contracts.Location)
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, contracts.Location)

	switch interval {
	case contracts.Interval1D:
		return midnight
	case contracts.Interval1W:
		offset := (int(t.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case contracts.Interval1M:
		return time.Date(y, m, 1, 0, 0, 0, 0, contracts.Location)
	default:
		step := interval.Duration()
		return midnight.Add(t.Sub(midnight) / step * step)
	}
}

// Resample aggregates ascending candles into interval buckets:
// open=first, high=max, low=min, close=last, volume=sum
func Resample(candles []contracts.Candle, interval contracts.Interval) []contracts.Candle {
	out := make([]contracts.Candle, 0, len(candles))

	for _, c := range candles {
		start := BucketStart(c.Time, interval)

		if n := len(out); n > 0 && out[n-1].Time.Equal(start) {
			bar := &out[n-1]
			if c.High > bar.High {
				bar.High = c.High
			}
			if c.Low < bar.Low {
				bar.Low = c.Low
			}
			bar.Close = c.Close
			bar.Volume += c.Volume
			continue
		}

		c.Time = start
		out = append(out, c)
	}

	return out
}
