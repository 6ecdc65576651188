package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/config"
	"github.com/wonny/vnmarket/pkg/logger"
)

// stubData records the calls the commands make
type stubData struct {
	req       contracts.HistoryRequest
	symbol    string
	period    contracts.PeriodType
	statement contracts.StatementType

	candles []contracts.Candle
	company contracts.Record
	records []contracts.Record
	err     error
}

func (s *stubData) History(ctx context.Context, req contracts.HistoryRequest) ([]contracts.Candle, error) {
	s.req = req
	return s.candles, s.err
}

func (s *stubData) Company(ctx context.Context, symbol string) (contracts.Record, error) {
	s.symbol = symbol
	return s.company, s.err
}

func (s *stubData) Financial(ctx context.Context, symbol string, period contracts.PeriodType, statement contracts.StatementType) ([]contracts.Record, error) {
	s.symbol, s.period, s.statement = symbol, period, statement
	return s.records, s.err
}

func (s *stubData) Indices(ctx context.Context) ([]contracts.Record, error) {
	return s.records, s.err
}

func (s *stubData) Symbols(ctx context.Context) ([]contracts.Record, error) {
	return s.records, s.err
}

type result struct {
	code   int
	stdout string
	stderr string
	built  int
}

func run(t *testing.T, stub *stubData, args ...string) result {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REFRESH_ENABLED", "false")
	t.Setenv("LOG_FORMAT", "json")

	var stdout, stderr bytes.Buffer
	var built int
	code := Run(Options{
		Stdout: &stdout,
		Stderr: &stderr,
		NewData: func(cfg *config.Config, log *logger.Logger) (contracts.MarketData, func(), error) {
			built++
			return stub, nil, nil
		},
	}, args)

	return result{code: code, stdout: stdout.String(), stderr: stderr.String(), built: built}
}

func decodeError(t *testing.T, stdout string) string {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload), "stdout: %s", stdout)
	require.Len(t, payload, 1)
	msg, ok := payload["error"].(string)
	require.True(t, ok, "error must be a string: %v", payload)
	return msg
}

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, contracts.Location)
	if err != nil {
		panic(err)
	}
	return t
}

func TestArgumentErrorsSkipDataLayer(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing command", nil, "missing command"},
		{"unknown command", []string{"quotes", "FPT"}, `unknown command "quotes"`},
		{"ohlcv too few args", []string{"ohlcv", "FPT", "2024-01-01"}, "accepts between 3 and 5 arg(s)"},
		{"ohlcv too many args", []string{"ohlcv", "FPT", "2024-01-01", "2024-01-31", "1D", "stock", "x"}, "accepts between 3 and 5 arg(s)"},
		{"ohlcv bad date", []string{"ohlcv", "FPT", "01/01/2024", "2024-01-31"}, "invalid date"},
		{"ohlcv reversed range", []string{"ohlcv", "FPT", "2024-02-01", "2024-01-31"}, "before start date"},
		{"ohlcv bad interval", []string{"ohlcv", "FPT", "2024-01-01", "2024-01-31", "2D"}, "invalid interval"},
		{"ohlcv bad market", []string{"ohlcv", "FPT", "2024-01-01", "2024-01-31", "1D", "bond"}, "invalid market type"},
		{"company no symbol", []string{"company"}, "accepts 1 arg(s)"},
		{"financial bad statement", []string{"financial", "VCB", "year", "equity"}, "invalid statement type"},
		{"financial bad period", []string{"financial", "VCB", "month", "balance"}, "invalid period type"},
		{"indices with args", []string{"indices", "VN30"}, "unknown command"},
		{"unknown flag", []string{"ohlcv", "FPT", "2024-01-01", "2024-01-31", "--bogus"}, "unknown flag"},
		{"sync no symbols", []string{"sync"}, "requires at least 1 arg(s)"},
		{"indicator unknown", []string{"indicator", "stoch", "FPT", "2024-01-01", "2024-01-31"}, "invalid indicator"},
		{"indicator bad period", []string{"indicator", "rsi", "FPT", "2024-01-01", "2024-01-31", "--period=-3"}, "period must be positive"},
		{"indicator macd fast above slow", []string{"indicator", "macd", "FPT", "2024-01-01", "2024-01-31", "--fast", "30"}, "must be below slow period"},
		{"indicator too few args", []string{"indicator", "ema", "FPT", "2024-01-01"}, "accepts between 4 and 6 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, &stubData{}, tt.args...)

			assert.Equal(t, 1, res.code)
			assert.Contains(t, decodeError(t, res.stdout), tt.want)
			assert.Contains(t, res.stderr, `"kind":"invalid_argument"`)
			assert.Zero(t, res.built, "data layer must not be built")
		})
	}
}

func TestOHLCV(t *testing.T) {
	stub := &stubData{candles: []contracts.Candle{
		{Time: day("2024-01-02"), Open: 95.5, High: 97, Low: 95, Close: 96.8, Volume: 1200000},
		{Time: day("2024-01-03"), Open: 96.8, High: 98.2, Low: 96.1, Close: 97.9, Volume: 980000},
		{Time: day("2024-01-04"), Open: 97.9, High: 98, Low: 96, Close: 96.4, Volume: 1500000},
	}}

	res := run(t, stub, "ohlcv", "fpt", "2024-01-01", "2024-01-31")
	require.Equal(t, 0, res.code, res.stdout)
	assert.Equal(t, 1, res.built)

	assert.Equal(t, "fpt", stub.req.Symbol)
	assert.Equal(t, contracts.Interval1D, stub.req.Interval)
	assert.Equal(t, contracts.MarketStock, stub.req.Market)
	assert.True(t, stub.req.Start.Equal(day("2024-01-01")))
	assert.True(t, stub.req.End.Equal(day("2024-01-31")))

	assert.True(t, strings.HasSuffix(res.stdout, "\n"))

	var quotes []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &quotes))
	require.Len(t, quotes, 3)

	for _, q := range quotes {
		assert.Len(t, q, 6)
		assert.IsType(t, "", q["timestamp"])
		for _, field := range []string{"open", "high", "low", "close", "volume"} {
			assert.IsType(t, float64(0), q[field], field)
		}
	}
	assert.Equal(t, "2024-01-02 00:00:00", quotes[0]["timestamp"])
	assert.Equal(t, 96.8, quotes[0]["close"])
	assert.Equal(t, float64(1200000), quotes[0]["volume"])
}

func TestOHLCVIntervalAndMarket(t *testing.T) {
	stub := &stubData{}

	res := run(t, stub, "ohlcv", "BTC", "2024-01-01", "2024-03-31", "1W", "crypto")
	require.Equal(t, 0, res.code, res.stdout)

	assert.Equal(t, contracts.Interval1W, stub.req.Interval)
	assert.Equal(t, contracts.MarketCrypto, stub.req.Market)
	assert.Equal(t, "[]\n", res.stdout, "no rows is an empty array")
}

func TestIndicator(t *testing.T) {
	closes := []float64{1, 2, 1, 2, 3}
	stub := &stubData{}
	for i, c := range closes {
		stub.candles = append(stub.candles, contracts.Candle{Time: day("2024-01-02").AddDate(0, 0, i), Close: c})
	}

	res := run(t, stub, "indicator", "RSI", "FPT", "2024-01-01", "2024-01-31", "1D", "stock", "--period", "2")
	require.Equal(t, 0, res.code, res.stdout)
	assert.Equal(t, "FPT", stub.req.Symbol)

	var points []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &points))
	require.Len(t, points, 3)
	assert.Equal(t, "2024-01-04 00:00:00", points[0]["timestamp"])
	assert.InDelta(t, 50.0, points[0]["value"], 1e-9)
	assert.InDelta(t, 87.5, points[2]["value"], 1e-9)
}

func TestIndicatorShortRangeIsEmpty(t *testing.T) {
	stub := &stubData{candles: []contracts.Candle{{Time: day("2024-01-02"), Close: 10}}}

	res := run(t, stub, "indicator", "macd", "FPT", "2024-01-01", "2024-01-31")
	require.Equal(t, 0, res.code, res.stdout)
	assert.Equal(t, "[]\n", res.stdout)
}

func TestCompany(t *testing.T) {
	stub := &stubData{company: contracts.Record{
		"symbol":             "VCB",
		"organName":          "Vietcombank",
		"listingDate":        day("2009-06-30"),
		"issueShare":         int64(5589091262),
		"financialRatio_roe": 0.21,
		"website":            nil,
	}}

	res := run(t, stub, "company", "VCB")
	require.Equal(t, 0, res.code, res.stdout)
	assert.Equal(t, "VCB", stub.symbol)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &record), "company must print one object")

	assert.Equal(t, "2009-06-30 00:00:00", record["listingDate"])
	assert.Equal(t, float64(5589091262), record["issueShare"])
	assert.Equal(t, 0.21, record["financialRatio_roe"])
	assert.Nil(t, record["website"])
	for key, v := range record {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			t.Errorf("field %s is not flat: %v", key, v)
		}
	}
}

func TestFinancial(t *testing.T) {
	stub := &stubData{records: []contracts.Record{
		{"yearReport": int64(2023), "Total assets": json.Number("1839613")},
		{"yearReport": int64(2022), "Total assets": json.Number("1813815")},
	}}

	res := run(t, stub, "financial", "VCB", "Quarter", "INCOME")
	require.Equal(t, 0, res.code, res.stdout)

	assert.Equal(t, contracts.PeriodQuarter, stub.period)
	assert.Equal(t, contracts.StatementIncome, stub.statement)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &records))
	require.Len(t, records, 2)
	assert.Equal(t, float64(2023), records[0]["yearReport"])
	assert.Equal(t, float64(1839613), records[0]["Total assets"])
}

func TestListings(t *testing.T) {
	for _, command := range []string{"indices", "symbols"} {
		t.Run(command, func(t *testing.T) {
			stub := &stubData{records: []contracts.Record{
				{"symbol": "VNINDEX", "price": int64(1250)},
			}}

			res := run(t, stub, command)
			require.Equal(t, 0, res.code, res.stdout)
			assert.JSONEq(t, `[{"symbol":"VNINDEX","price":1250}]`, res.stdout)
		})
	}

	t.Run("empty", func(t *testing.T) {
		res := run(t, &stubData{}, "symbols")
		require.Equal(t, 0, res.code)
		assert.Equal(t, "[]\n", res.stdout)
	})
}

func TestProviderErrorGoesToStdoutPayloadAndStderrTrace(t *testing.T) {
	upstream := errors.New("connection reset by peer")
	stub := &stubData{err: fmt.Errorf("%w: fetch gap chart: %w", contracts.ErrProvider, upstream)}

	res := run(t, stub, "ohlcv", "FPT", "2024-01-01", "2024-01-31")

	assert.Equal(t, 1, res.code)
	assert.Equal(t, stub.err.Error(), decodeError(t, res.stdout))
	assert.Equal(t, 1, strings.Count(res.stdout, "\n"), "stdout holds only the payload")

	assert.Contains(t, res.stderr, "Command failed")
	assert.Contains(t, res.stderr, `"kind":"provider"`)
	assert.Contains(t, res.stderr, "connection reset by peer")
}

func TestDataLayerInitFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(Options{
		Stdout: &stdout,
		Stderr: &stderr,
		NewData: func(cfg *config.Config, log *logger.Logger) (contracts.MarketData, func(), error) {
			return nil, nil, errors.New("redis: dial tcp: refused")
		},
	}, []string{"indices"})

	assert.Equal(t, 1, code)
	assert.Contains(t, decodeError(t, stdout.String()), "initialize data layer")
}

func TestSyncRequiresDatabase(t *testing.T) {
	res := run(t, &stubData{}, "sync", "FPT")

	assert.Equal(t, 1, res.code)
	assert.Contains(t, decodeError(t, res.stdout), "DATABASE_URL")
}

func TestSyncRejectsBadFlags(t *testing.T) {
	res := run(t, &stubData{}, "sync", "FPT", "--interval", "2D")

	assert.Equal(t, 1, res.code)
	assert.Contains(t, decodeError(t, res.stdout), "invalid interval")
}

func TestHelpTextIsASCII(t *testing.T) {
	root := (&app{opts: Options{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}}).rootCmd()

	ascii := func(s string) bool {
		for _, r := range s {
			if r > 127 {
				return false
			}
		}
		return true
	}

	for _, cmd := range append(root.Commands(), root) {
		assert.True(t, ascii(cmd.Short), "%s short: %q", cmd.Name(), cmd.Short)
		assert.True(t, ascii(cmd.Flags().FlagUsages()), "%s flags:\n%s", cmd.Name(), cmd.Flags().FlagUsages())
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bad", contracts.ErrInvalidArgument), "invalid_argument"},
		{fmt.Errorf("lookup: %w", contracts.ErrNotFound), "not_found"},
		{fmt.Errorf("%w: 1m", contracts.ErrUnsupported), "unsupported"},
		{fmt.Errorf("%w: 502", contracts.ErrProvider), "provider"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}
}
