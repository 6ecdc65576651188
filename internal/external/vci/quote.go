package vci

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/vnmarket/internal/contracts"
)

// timeFrames maps the intervals VCI serves natively
var timeFrames = map[contracts.Interval]string{
	contracts.Interval1m: "ONE_MINUTE",
	contracts.Interval1H: "ONE_HOUR",
	contracts.Interval1D: "ONE_DAY",
}

// barsPerDay is a generous upper bound of candles per trading day
var barsPerDay = map[contracts.Interval]int{
	contracts.Interval1m: 300, // 09:00-15:00 minus lunch is ~270
	contracts.Interval1H: 7,
	contracts.Interval1D: 1,
}

// Native reports whether VCI serves interval without resampling
func Native(interval contracts.Interval) bool {
	_, ok := timeFrames[interval]
	return ok
}

type gapChartRequest struct {
	TimeFrame string   `json:"timeFrame"`
	Symbols   []string `json:"symbols"`
	To        int64    `json:"to"`
	CountBack int      `json:"countBack"`
}

// gapChartSeries is the column-oriented OHLCV payload
type gapChartSeries struct {
	Symbol string        `json:"symbol"`
	Open   []float64     `json:"o"`
	High   []float64     `json:"h"`
	Low    []float64     `json:"l"`
	Close  []float64     `json:"c"`
	Volume []float64     `json:"v"`
	Time   []json.Number `json:"t"` // unix seconds, sometimes quoted
}

// FetchOHLCV fetches candles for a stock, index or ETF in [start, end]
// ⭐ SSOT: VCI 시세 API 호출은 이 함수에서만
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.Candle, error) {
	timeFrame, ok := timeFrames[interval]
	if !ok {
		return nil, fmt.Errorf("%w: interval %s is not served by VCI", contracts.ErrUnsupported, interval)
	}

	symbol = normalizeSymbol(symbol)
	req := gapChartRequest{
		TimeFrame: timeFrame,
		Symbols:   []string{symbol},
		To:        end.Unix(),
		CountBack: countBack(start, end, interval),
	}

	var series []gapChartSeries
	if err := c.postJSON(ctx, c.baseURL+"chart/OHLCChart/gap-chart", req, &series); err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", symbol, err)
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no price data for symbol %s", contracts.ErrNotFound, symbol)
	}

	candles, err := parseSeries(series[0])
	if err != nil {
		return nil, fmt.Errorf("parse %s candles: %w", symbol, err)
	}

	// countBack over-fetches; keep the requested window only
	filtered := candles[:0]
	for _, cd := range candles {
		if !cd.Time.Before(start) && !cd.Time.After(end) {
			filtered = append(filtered, cd)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"interval": string(interval),
		"fetched":  len(candles),
		"count":    len(filtered),
	}).Debug("Fetched VCI candles")

	return filtered, nil
}

// parseSeries zips the column arrays into candles sorted by time
func parseSeries(s gapChartSeries) ([]contracts.Candle, error) {
	n := len(s.Time)
	if len(s.Open) != n || len(s.High) != n || len(s.Low) != n || len(s.Close) != n || len(s.Volume) != n {
		return nil, fmt.Errorf("%w: ragged OHLCV columns (t=%d o=%d h=%d l=%d c=%d v=%d)",
			contracts.ErrProvider, n, len(s.Open), len(s.High), len(s.Low), len(s.Close), len(s.Volume))
	}

	candles := make([]contracts.Candle, 0, n)
	for i := 0; i < n; i++ {
		sec, err := s.Time[i].Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", contracts.ErrProvider, s.Time[i])
		}
		candles = append(candles, contracts.Candle{
			Time:   time.Unix(sec, 0).In(contracts.Location),
			Open:   s.Open[i],
			High:   s.High[i],
			Low:    s.Low[i],
			Close:  s.Close[i],
			Volume: s.Volume[i],
		})
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

// countBack estimates how many candles cover [start, end] from business days
func countBack(start, end time.Time, interval contracts.Interval) int {
	days := businessDays(start, end)
	if days < 1 {
		days = 1
	}
	return days*barsPerDay[interval] + 1
}

// businessDays counts Monday-Friday dates in [start, end]
func businessDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	count := 0
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}
