// Package indicators computes technical indicators over closing prices.
//
// Every series is tail-aligned with its input: result i belongs to input
// len(values)-len(result)+i. Inputs shorter than the warm-up window produce
// an empty series.
package indicators

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/vnmarket/internal/contracts"
)

// Name identifies an indicator
type Name string

const (
	NameEMA       Name = "ema"
	NameRSI       Name = "rsi"
	NameMACD      Name = "macd"
	NameBollinger Name = "bollinger"
)

// Names lists the supported indicators
var Names = []Name{NameEMA, NameRSI, NameMACD, NameBollinger}

// ParseName validates an indicator name (case-insensitive)
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Names {
		if n == v {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: invalid indicator %q (valid: ema, rsi, macd, bollinger)", contracts.ErrInvalidArgument, s)
}

// Params carries indicator settings; zero values take the defaults
type Params struct {
	Period       int     `json:"period,omitempty"`
	FastPeriod   int     `json:"fastPeriod,omitempty"`
	SlowPeriod   int     `json:"slowPeriod,omitempty"`
	SignalPeriod int     `json:"signalPeriod,omitempty"`
	StdDev       float64 `json:"stdDev,omitempty"`
}

// Defaults: EMA 20, RSI 14, MACD 12/26/9, Bollinger 14 x 2
func (p Params) withDefaults(name Name) Params {
	if p.Period == 0 {
		switch name {
		case NameEMA:
			p.Period = 20
		case NameRSI, NameBollinger:
			p.Period = 14
		}
	}
	if p.FastPeriod == 0 {
		p.FastPeriod = 12
	}
	if p.SlowPeriod == 0 {
		p.SlowPeriod = 26
	}
	if p.SignalPeriod == 0 {
		p.SignalPeriod = 9
	}
	if p.StdDev == 0 {
		p.StdDev = 2
	}
	return p
}

// MACDPoint is one MACD value; Signal and Histogram are nil until the
// signal line has warmed up
type MACDPoint struct {
	MACD      float64  `json:"MACD"`
	Signal    *float64 `json:"signal"`
	Histogram *float64 `json:"histogram"`
}

// Band is one Bollinger band value
type Band struct {
	Middle float64 `json:"middle"`
	Upper  float64 `json:"upper"`
	Lower  float64 `json:"lower"`
}

func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s period must be positive, got %d", contracts.ErrInvalidArgument, name, period)
	}
	return nil
}

// EMA is the exponential moving average seeded with the SMA of the first
// period values
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	out := []float64{}
	if len(values) < period {
		return out, nil
	}

	k := 2 / float64(period+1)
	ema := mean(values[:period])
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
		out = append(out, ema)
	}
	return out, nil
}

// RSI is Wilder's relative strength index
func RSI(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("RSI", period); err != nil {
		return nil, err
	}
	out := []float64{}
	if len(values) <= period {
		return out, nil
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := change(values[i-1], values[i])
		gain += g
		loss += l
	}
	gain /= float64(period)
	loss /= float64(period)
	out = append(out, rsi(gain, loss))

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		g, l := change(values[i-1], values[i])
		gain = (gain*(p-1) + g) / p
		loss = (loss*(p-1) + l) / p
		out = append(out, rsi(gain, loss))
	}
	return out, nil
}

// MACD is fast EMA minus slow EMA with an EMA signal line
func MACD(values []float64, fast, slow, signal int) ([]MACDPoint, error) {
	if err := checkPeriod("MACD fast", fast); err != nil {
		return nil, err
	}
	if err := checkPeriod("MACD slow", slow); err != nil {
		return nil, err
	}
	if err := checkPeriod("MACD signal", signal); err != nil {
		return nil, err
	}
	if fast >= slow {
		return nil, fmt.Errorf("%w: MACD fast period %d must be below slow period %d", contracts.ErrInvalidArgument, fast, slow)
	}

	out := []MACDPoint{}
	if len(values) < slow {
		return out, nil
	}

	fastEMA, _ := EMA(values, fast)
	slowEMA, _ := EMA(values, slow)

	// align fast to slow: both end on the last input
	fastEMA = fastEMA[len(fastEMA)-len(slowEMA):]
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signals, _ := EMA(line, signal)
	offset := len(line) - len(signals)
	for i, m := range line {
		p := MACDPoint{MACD: m}
		if i >= offset {
			s := signals[i-offset]
			h := m - s
			p.Signal, p.Histogram = &s, &h
		}
		out = append(out, p)
	}
	return out, nil
}

// Bollinger is an SMA band at stdDev population standard deviations
func Bollinger(values []float64, period int, stdDev float64) ([]Band, error) {
	if err := checkPeriod("Bollinger", period); err != nil {
		return nil, err
	}
	if stdDev <= 0 {
		return nil, fmt.Errorf("%w: Bollinger stdDev must be positive, got %g", contracts.ErrInvalidArgument, stdDev)
	}

	out := []Band{}
	for end := period; end <= len(values); end++ {
		window := values[end-period : end]
		m := mean(window)

		var sq float64
		for _, v := range window {
			sq += (v - m) * (v - m)
		}
		sd := math.Sqrt(sq / float64(period))

		out = append(out, Band{Middle: m, Upper: m + stdDev*sd, Lower: m - stdDev*sd})
	}
	return out, nil
}

// Compute runs the named indicator with defaults applied and returns one
// record per output point
func Compute(name Name, values []float64, p Params) ([]contracts.Record, error) {
	p = p.withDefaults(name)
	records := []contracts.Record{}

	switch name {
	case NameEMA, NameRSI:
		fn := EMA
		if name == NameRSI {
			fn = RSI
		}
		series, err := fn(values, p.Period)
		if err != nil {
			return nil, err
		}
		for _, v := range series {
			records = append(records, contracts.Record{"value": v})
		}
	case NameMACD:
		series, err := MACD(values, p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
		if err != nil {
			return nil, err
		}
		for _, v := range series {
			rec := contracts.Record{"MACD": v.MACD, "signal": nil, "histogram": nil}
			if v.Signal != nil {
				rec["signal"], rec["histogram"] = *v.Signal, *v.Histogram
			}
			records = append(records, rec)
		}
	case NameBollinger:
		series, err := Bollinger(values, p.Period, p.StdDev)
		if err != nil {
			return nil, err
		}
		for _, v := range series {
			records = append(records, contracts.Record{"middle": v.Middle, "upper": v.Upper, "lower": v.Lower})
		}
	default:
		return nil, fmt.Errorf("%w: invalid indicator %q", contracts.ErrInvalidArgument, name)
	}

	return records, nil
}

// Closes extracts closing prices in candle order
func Closes(candles []contracts.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// WithTimestamps stamps each record with the time of the candle it was
// computed on. records must come from Compute over Closes(candles).
func WithTimestamps(records []contracts.Record, candles []contracts.Candle) []contracts.Record {
	offset := len(candles) - len(records)
	for i, rec := range records {
		if j := offset + i; j >= 0 {
			rec["timestamp"] = candles[j].Time.In(contracts.Location).Format(contracts.TimestampLayout)
		}
	}
	return records
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsi(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}
