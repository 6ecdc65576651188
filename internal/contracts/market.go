package contracts

import (
	"fmt"
	"strings"
	"time"
)

// Layouts shared by every output surface
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Location is the exchange time zone; all timestamps are rendered in it
var Location = loadLocation("Asia/Ho_Chi_Minh")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// No tzdata on the host; Vietnam has no DST
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

// MarketType selects the data source for historical quotes
// ⭐ SSOT: 시장 구분은 여기서만 정의
type MarketType string

const (
	MarketStock  MarketType = "stock"
	MarketCrypto MarketType = "crypto"
	MarketForex  MarketType = "forex"
)

// ParseMarketType validates a market type argument
func ParseMarketType(s string) (MarketType, error) {
	switch m := MarketType(strings.ToLower(s)); m {
	case MarketStock, MarketCrypto, MarketForex:
		return m, nil
	}
	return "", fmt.Errorf("%w: invalid market type %q (valid: stock, crypto, forex)", ErrInvalidArgument, s)
}

// Interval is a candle resolution
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1H  Interval = "1H"
	Interval4H  Interval = "4H"
	Interval1D  Interval = "1D"
	Interval1W  Interval = "1W"
	Interval1M  Interval = "1M"
)

// Intervals lists every accepted interval in ascending resolution
var Intervals = []Interval{
	Interval1m, Interval5m, Interval15m, Interval30m,
	Interval1H, Interval4H, Interval1D, Interval1W, Interval1M,
}

// ParseInterval validates an interval argument. Case matters: 1m is a minute, 1M a month.
func ParseInterval(s string) (Interval, error) {
	for _, iv := range Intervals {
		if string(iv) == s {
			return iv, nil
		}
	}

	valid := make([]string, len(Intervals))
	for i, iv := range Intervals {
		valid[i] = string(iv)
	}
	return "", fmt.Errorf("%w: invalid interval %q (valid: %s)", ErrInvalidArgument, s, strings.Join(valid, ", "))
}

// Duration returns the nominal length of one candle (30 days for 1M)
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1H:
		return time.Hour
	case Interval4H:
		return 4 * time.Hour
	case Interval1W:
		return 7 * 24 * time.Hour
	case Interval1M:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Intraday reports whether candles are shorter than a trading day
func (i Interval) Intraday() bool {
	return i.Duration() < 24*time.Hour
}

// PeriodType is the reporting period of a financial statement
type PeriodType string

const (
	PeriodYear    PeriodType = "year"
	PeriodQuarter PeriodType = "quarter"
)

// ParsePeriodType validates a period argument
func ParsePeriodType(s string) (PeriodType, error) {
	switch p := PeriodType(strings.ToLower(s)); p {
	case PeriodYear, PeriodQuarter:
		return p, nil
	}
	return "", fmt.Errorf("%w: invalid period type %q (valid: year, quarter)", ErrInvalidArgument, s)
}

// StatementType selects a financial statement
type StatementType string

const (
	StatementBalance  StatementType = "balance"
	StatementIncome   StatementType = "income"
	StatementCashflow StatementType = "cashflow"
)

// ParseStatementType validates a statement argument
func ParseStatementType(s string) (StatementType, error) {
	switch st := StatementType(strings.ToLower(s)); st {
	case StatementBalance, StatementIncome, StatementCashflow:
		return st, nil
	}
	return "", fmt.Errorf("%w: invalid statement type %q (valid: balance, income, cashflow)", ErrInvalidArgument, s)
}

// ParseDate parses a YYYY-MM-DD argument as midnight exchange time
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrInvalidArgument, s)
	}
	return t, nil
}

// Candle is one OHLCV bar
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is the serialized form of a Candle
type Quote struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Quote converts the candle to its output record
func (c Candle) Quote() Quote {
	return Quote{
		Timestamp: c.Time.In(Location).Format(TimestampLayout),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// Quotes converts candles to output records; never returns nil
func Quotes(candles []Candle) []Quote {
	out := make([]Quote, len(candles))
	for i, c := range candles {
		out[i] = c.Quote()
	}
	return out
}

// HistoryRequest describes one historical quote query
type HistoryRequest struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval Interval
	Market   MarketType
}

// EndOfRange returns the last instant included by End (end of that day)
func (r HistoryRequest) EndOfRange() time.Time {
	y, m, d := r.End.In(Location).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, Location)
}

// Validate checks the request before any provider call
func (r HistoryRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidArgument)
	}
	if r.EndOfRange().Before(r.Start) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidArgument, r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	if _, err := ParseInterval(string(r.Interval)); err != nil {
		return err
	}
	if _, err := ParseMarketType(string(r.Market)); err != nil {
		return err
	}
	return nil
}
