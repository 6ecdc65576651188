package msn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/config"
	"github.com/wonny/vnmarket/pkg/httputil"
	"github.com/wonny/vnmarket/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{HTTP: config.HTTPConfig{Timeout: 5 * time.Second}}
	return NewClient(httputil.New(cfg, logger.Nop()), config.MSNConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, logger.Nop())
}

func day(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFetchOHLCV(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Charts/TimeRange", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "c2111", q.Get("ids"))
		assert.Equal(t, "test-key", q.Get("apikey"))
		assert.Equal(t, "2023-12-31T17:00:00.000Z", q.Get("StartTime"))

		w.Write([]byte(`[{"id":"c2111","series":{
			"timeStamps":["2024-01-03T00:00:00Z","2024-01-02T00:00:00Z","2024-02-05T00:00:00Z"],
			"openPrices":[44100,42800,43000],
			"pricesHigh":[45500,44200,43500],
			"pricesLow":[43900,42600,42000],
			"prices":[45000,44100,42500],
			"volumes":[21000,18000,9000]
		}}]`))
	})

	candles, err := client.FetchOHLCV(context.Background(), contracts.MarketCrypto, "btc", day("2024-01-01"), day("2024-01-31"), contracts.Interval1D)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, "2024-01-02 00:00:00", candles[0].Quote().Timestamp)
	assert.Equal(t, 42800.0, candles[0].Open)
	assert.Equal(t, 45000.0, candles[1].Close)
	assert.Equal(t, 21000.0, candles[1].Volume)
}

func TestFetchOHLCVForexWithoutVolume(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "avyufr", r.URL.Query().Get("ids"))
		w.Write([]byte(`[{"series":{
			"timeStamps":["2024-01-02T00:00:00Z"],
			"openPrices":[24250],"pricesHigh":[24300],"pricesLow":[24200],"prices":[24280]
		}}]`))
	})

	candles, err := client.FetchOHLCV(context.Background(), contracts.MarketForex, "USD/VND", day("2024-01-01"), day("2024-01-31"), contracts.Interval1D)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 0.0, candles[0].Volume)
}

func TestFetchOHLCVRejectsIntraday(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := client.FetchOHLCV(context.Background(), contracts.MarketCrypto, "BTC", day("2024-01-01"), day("2024-01-31"), contracts.Interval1H)
	assert.ErrorIs(t, err, contracts.ErrUnsupported)
}

func TestFetchOHLCVUnknownSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	})

	_, err := client.FetchOHLCV(context.Background(), contracts.MarketCrypto, "DOGE", day("2024-01-01"), day("2024-01-31"), contracts.Interval1D)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestFetchOHLCVEmptySeries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.FetchOHLCV(context.Background(), contracts.MarketCrypto, "ETH", day("2024-01-01"), day("2024-01-31"), contracts.Interval1D)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestFetchOHLCVUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.FetchOHLCV(context.Background(), contracts.MarketCrypto, "ETH", day("2024-01-01"), day("2024-01-31"), contracts.Interval1D)
	assert.ErrorIs(t, err, contracts.ErrProvider)
}

func TestLookupAndCatalog(t *testing.T) {
	inst, err := Lookup(contracts.MarketForex, " eurusd ")
	require.NoError(t, err)
	assert.Equal(t, "av932w", inst.ID)
	assert.Equal(t, contracts.MarketForex, inst.Market)

	_, err = Lookup(contracts.MarketStock, "FPT")
	assert.ErrorIs(t, err, contracts.ErrUnsupported)

	crypto := Catalog(contracts.MarketCrypto)
	require.NotEmpty(t, crypto)
	for i := 1; i < len(crypto); i++ {
		assert.Less(t, crypto[i-1].Symbol, crypto[i].Symbol)
	}
	assert.Empty(t, Catalog(contracts.MarketStock))
}
