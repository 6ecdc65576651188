package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnmarket/internal/contracts"
)

const delta = 1e-6

func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "index %d", i)
	}
}

func TestEMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   []float64
	}{
		{"linear", []float64{1, 2, 3, 4, 5}, 3, []float64{2, 3, 4}},
		{"seeded with sma", []float64{2, 4, 8}, 2, []float64{3, 6.333333}},
		{"period equals length", []float64{5, 7}, 2, []float64{6}},
		{"too short", []float64{1, 2}, 3, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EMA(tt.values, tt.period)
			require.NoError(t, err)
			assertSeries(t, tt.want, got)
		})
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   []float64
	}{
		{"wilder smoothing", []float64{1, 2, 1, 2, 3}, 2, []float64{50, 75, 87.5}},
		{"only gains", []float64{1, 2, 3}, 2, []float64{100}},
		{"only losses", []float64{3, 2, 1}, 2, []float64{0}},
		{"flat", []float64{4, 4, 4}, 2, []float64{50}},
		{"too short", []float64{1, 2}, 2, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RSI(tt.values, tt.period)
			require.NoError(t, err)
			assertSeries(t, tt.want, got)
		})
	}
}

func TestMACD(t *testing.T) {
	got, err := MACD([]float64{1, 2, 4, 8, 16}, 2, 3, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.InDelta(t, 5.0/6, got[0].MACD, delta)
	assert.Nil(t, got[0].Signal, "signal line still warming up")
	assert.Nil(t, got[0].Histogram)

	assert.InDelta(t, 11.0/9, got[1].MACD, delta)
	require.NotNil(t, got[1].Signal)
	assert.InDelta(t, 37.0/36, *got[1].Signal, delta)
	assert.InDelta(t, 7.0/36, *got[1].Histogram, delta)

	assert.InDelta(t, 239.0/108, got[2].MACD, delta)
	assert.InDelta(t, 589.0/324, *got[2].Signal, delta)
	assert.InDelta(t, 128.0/324, *got[2].Histogram, delta)
}

func TestMACDLinearTrendIsConstant(t *testing.T) {
	got, err := MACD([]float64{1, 2, 3, 4, 5, 6}, 2, 3, 2)
	require.NoError(t, err)
	require.Len(t, got, 4)

	for i, p := range got {
		assert.InDelta(t, 0.5, p.MACD, delta, "index %d", i)
	}
	require.NotNil(t, got[3].Histogram)
	assert.InDelta(t, 0, *got[3].Histogram, delta)
}

func TestBollinger(t *testing.T) {
	got, err := Bollinger([]float64{1, 2, 3, 4}, 3, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.InDelta(t, 2, got[0].Middle, delta)
	assert.InDelta(t, 3.632993, got[0].Upper, delta)
	assert.InDelta(t, 0.367007, got[0].Lower, delta)
	assert.InDelta(t, 3, got[1].Middle, delta)
	assert.InDelta(t, 4.632993, got[1].Upper, delta)
}

func TestInvalidParams(t *testing.T) {
	_, err := EMA([]float64{1}, 0)
	assert.ErrorIs(t, err, contracts.ErrInvalidArgument)

	_, err = RSI([]float64{1}, -1)
	assert.ErrorIs(t, err, contracts.ErrInvalidArgument)

	_, err = MACD([]float64{1}, 26, 12, 9)
	assert.ErrorIs(t, err, contracts.ErrInvalidArgument)

	_, err = Bollinger([]float64{1}, 3, 0)
	assert.ErrorIs(t, err, contracts.ErrInvalidArgument)
}

func TestParseName(t *testing.T) {
	n, err := ParseName(" RSI ")
	require.NoError(t, err)
	assert.Equal(t, NameRSI, n)

	_, err = ParseName("stoch")
	assert.ErrorIs(t, err, contracts.ErrInvalidArgument)
}

func TestComputeAppliesDefaults(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(100 + i%5)
	}

	tests := []struct {
		name   Name
		length int
		fields []string
	}{
		{NameEMA, 40 - 20 + 1, []string{"value"}},
		{NameRSI, 40 - 14, []string{"value"}},
		{NameMACD, 40 - 26 + 1, []string{"MACD", "signal", "histogram"}},
		{NameBollinger, 40 - 14 + 1, []string{"middle", "upper", "lower"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			records, err := Compute(tt.name, values, Params{})
			require.NoError(t, err)
			require.Len(t, records, tt.length)
			for _, f := range tt.fields {
				assert.Contains(t, records[len(records)-1], f)
			}
		})
	}
}

func TestComputeShortInputIsEmpty(t *testing.T) {
	records, err := Compute(NameMACD, []float64{1, 2, 3}, Params{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	records, err = Compute(NameRSI, []float64{1, 2, 3}, Params{Period: 2})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 100.0, records[0]["value"])
}

func TestWithTimestamps(t *testing.T) {
	candles := make([]contracts.Candle, 4)
	for i := range candles {
		candles[i] = contracts.Candle{
			Time:  time.Date(2024, 1, 2+i, 0, 0, 0, 0, contracts.Location),
			Close: float64(i + 1),
		}
	}

	records, err := Compute(NameEMA, Closes(candles), Params{Period: 3})
	require.NoError(t, err)
	records = WithTimestamps(records, candles)

	require.Len(t, records, 2)
	assert.Equal(t, "2024-01-04 00:00:00", records[0]["timestamp"], "first EMA lands on the third candle")
	assert.Equal(t, "2024-01-05 00:00:00", records[1]["timestamp"])
	assert.InDelta(t, 3.0, records[1]["value"], delta)
}

func TestCloses(t *testing.T) {
	got := Closes([]contracts.Candle{{Close: 1.5}, {Close: 2.5}})
	assert.Equal(t, []float64{1.5, 2.5}, got)
}
