package msn

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/wonny/vnmarket/internal/contracts"
)

// rangeLayout is the UTC timestamp format expected by Charts/TimeRange
const rangeLayout = "2006-01-02T15:04:05.000Z"

type chartSeries struct {
	TimeStamps []string  `json:"timeStamps"`
	Open       []float64 `json:"openPrices"`
	High       []float64 `json:"pricesHigh"`
	Low        []float64 `json:"pricesLow"`
	Close      []float64 `json:"prices"`
	Volume     []float64 `json:"volumes"` // absent for currency pairs
}

type chart struct {
	ID     string      `json:"id"`
	Series chartSeries `json:"series"`
}

// FetchOHLCV fetches daily candles for a crypto asset or currency pair
// ⭐ SSOT: MSN 시세 API 호출은 이 함수에서만
func (c *Client) FetchOHLCV(ctx context.Context, market contracts.MarketType, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.Candle, error) {
	if interval != contracts.Interval1D {
		return nil, fmt.Errorf("%w: interval %s is not served by MSN (daily only)", contracts.ErrUnsupported, interval)
	}

	inst, err := Lookup(market, symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ids", inst.ID)
	params.Set("StartTime", start.UTC().Format(rangeLayout))
	params.Set("EndTime", end.UTC().Format(rangeLayout))
	params.Set("timeframe", "1")
	params.Set("type", "All")
	params.Set("wrapodata", "false")

	var charts []chart
	if err := c.getJSON(ctx, "Charts/TimeRange", params, &charts); err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", inst.Symbol, err)
	}
	if len(charts) == 0 || len(charts[0].Series.TimeStamps) == 0 {
		return nil, fmt.Errorf("%w: no price data for symbol %s", contracts.ErrNotFound, inst.Symbol)
	}

	candles, err := parseSeries(charts[0].Series)
	if err != nil {
		return nil, fmt.Errorf("parse %s candles: %w", inst.Symbol, err)
	}

	filtered := candles[:0]
	for _, cd := range candles {
		if !cd.Time.Before(start) && !cd.Time.After(end) {
			filtered = append(filtered, cd)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":  inst.Symbol,
		"market":  string(market),
		"fetched": len(candles),
		"count":   len(filtered),
	}).Debug("Fetched MSN candles")

	return filtered, nil
}

// parseSeries zips the column arrays into daily candles dated in exchange time
func parseSeries(s chartSeries) ([]contracts.Candle, error) {
	n := len(s.TimeStamps)
	if len(s.Open) != n || len(s.High) != n || len(s.Low) != n || len(s.Close) != n {
		return nil, fmt.Errorf("%w: ragged OHLC columns (t=%d o=%d h=%d l=%d c=%d)",
			contracts.ErrProvider, n, len(s.Open), len(s.High), len(s.Low), len(s.Close))
	}
	if len(s.Volume) != 0 && len(s.Volume) != n {
		return nil, fmt.Errorf("%w: ragged volume column (t=%d v=%d)", contracts.ErrProvider, n, len(s.Volume))
	}

	candles := make([]contracts.Candle, 0, n)
	for i, raw := range s.TimeStamps {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", contracts.ErrProvider, raw)
		}

		// Daily bars are stamped at UTC midnight; keep the calendar date
		y, m, d := ts.UTC().Date()
		cd := contracts.Candle{
			Time:  time.Date(y, m, d, 0, 0, 0, 0, contracts.Location),
			Open:  s.Open[i],
			High:  s.High[i],
			Low:   s.Low[i],
			Close: s.Close[i],
		}
		if len(s.Volume) == n {
			cd.Volume = s.Volume[i]
		}
		candles = append(candles, cd)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}
