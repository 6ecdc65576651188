package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/external/msn"
	"github.com/wonny/vnmarket/internal/external/vci"
	"github.com/wonny/vnmarket/internal/frame"
	"github.com/wonny/vnmarket/pkg/logger"
	"github.com/wonny/vnmarket/pkg/redis"
)

// StockSource serves Vietnamese stocks, indices and ETFs (VCI)
type StockSource interface {
	FetchOHLCV(ctx context.Context, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.Candle, error)
	FetchCompanyOverview(ctx context.Context, symbol string) (*frame.Frame, error)
	FetchFinancialStatement(ctx context.Context, symbol string, period contracts.PeriodType, statement contracts.StatementType) (*frame.Frame, error)
	FetchIndices(ctx context.Context) (*frame.Frame, error)
	FetchSymbols(ctx context.Context) (*frame.Frame, error)
}

// QuoteSource serves crypto assets and currency pairs (MSN)
type QuoteSource interface {
	FetchOHLCV(ctx context.Context, market contracts.MarketType, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.Candle, error)
}

// Service is the data layer behind every command and endpoint
// ⭐ SSOT: 시장 데이터 조회는 이 서비스를 통해서만
type Service struct {
	stocks StockSource
	quotes QuoteSource
	cache  *Cache
	logger *logger.Logger
}

var _ contracts.MarketData = (*Service)(nil)

// NewService creates a new market data service. cache may be nil.
func NewService(stocks StockSource, quotes QuoteSource, cache *Cache, log *logger.Logger) *Service {
	return &Service{
		stocks: stocks,
		quotes: quotes,
		cache:  cache,
		logger: log,
	}
}

// History returns candles in [Start, End 23:59:59], ascending
func (s *Service) History(ctx context.Context, req contracts.HistoryRequest) ([]contracts.Candle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	end := req.EndOfRange()
	key := redis.HistoryKey(string(req.Market), req.Symbol, string(req.Interval), req.Start, end)

	var cached []contracts.Candle
	if s.cache.Get(ctx, key, &cached) {
		s.logger.WithField("key", key).Debug("History cache hit")
		return cached, nil
	}

	source, err := s.sourceInterval(req.Market, req.Interval)
	if err != nil {
		return nil, err
	}

	start := req.Start
	if source != req.Interval {
		// Widen to the bucket boundary so the first bucket is complete
		start = BucketStart(start, req.Interval)
	}

	candles, err := s.fetch(ctx, req.Market, req.Symbol, start, end, source)
	if err != nil {
		return nil, err
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	if source != req.Interval {
		candles = Resample(candles, req.Interval)
	}
	if candles == nil {
		candles = []contracts.Candle{}
	}

	s.cache.Set(ctx, key, candles, historyTTL(req.Interval))

	s.logger.WithFields(map[string]interface{}{
		"symbol":   req.Symbol,
		"market":   string(req.Market),
		"interval": string(req.Interval),
		"source":   string(source),
		"count":    len(candles),
	}).Info("Fetched history")

	return candles, nil
}

// sourceInterval picks the interval requested from the provider
func (s *Service) sourceInterval(market contracts.MarketType, interval contracts.Interval) (contracts.Interval, error) {
	switch market {
	case contracts.MarketStock:
		if vci.Native(interval) {
			return interval, nil
		}
		return resampleSource[interval], nil
	default:
		if interval.Intraday() {
			return "", fmt.Errorf("%w: %s data is daily only, interval %s is not available",
				contracts.ErrUnsupported, market, interval)
		}
		if interval == contracts.Interval1D {
			return interval, nil
		}
		return resampleSource[interval], nil
	}
}

func (s *Service) fetch(ctx context.Context, market contracts.MarketType, symbol string, start, end time.Time, interval contracts.Interval) ([]contracts.Candle, error) {
	if market == contracts.MarketStock {
		return s.stocks.FetchOHLCV(ctx, symbol, start, end, interval)
	}
	return s.quotes.FetchOHLCV(ctx, market, symbol, start, end, interval)
}

// Company returns the first company overview record
func (s *Service) Company(ctx context.Context, symbol string) (contracts.Record, error) {
	symbol, err := requireSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := redis.CompanyKey(symbol)
	var cached contracts.Record
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	f, err := s.stocks.FetchCompanyOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	records := f.Records(frame.CoerceAll)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no company overview for symbol %s", contracts.ErrNotFound, symbol)
	}

	s.cache.Set(ctx, key, records[0], redis.TTLLong)
	return records[0], nil
}

// Financial returns one record per reporting period
func (s *Service) Financial(ctx context.Context, symbol string, period contracts.PeriodType, statement contracts.StatementType) ([]contracts.Record, error) {
	symbol, err := requireSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if _, err := contracts.ParsePeriodType(string(period)); err != nil {
		return nil, err
	}
	if _, err := contracts.ParseStatementType(string(statement)); err != nil {
		return nil, err
	}

	key := redis.FinancialKey(symbol, string(period), string(statement))
	var cached []contracts.Record
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	f, err := s.stocks.FetchFinancialStatement(ctx, symbol, period, statement)
	if err != nil {
		return nil, err
	}

	records := f.Records(frame.CoerceAll)
	s.cache.Set(ctx, key, records, redis.TTLLong)
	return records, nil
}

// Indices returns the market index listing
func (s *Service) Indices(ctx context.Context) ([]contracts.Record, error) {
	return s.listing(ctx, "indices", s.stocks.FetchIndices)
}

// Symbols returns the tradable symbol listing
func (s *Service) Symbols(ctx context.Context) ([]contracts.Record, error) {
	return s.listing(ctx, "symbols", s.stocks.FetchSymbols)
}

func (s *Service) listing(ctx context.Context, kind string, fetch func(context.Context) (*frame.Frame, error)) ([]contracts.Record, error) {
	key := redis.ListingKey(kind)
	var cached []contracts.Record
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	f, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	records := f.Records(frame.NumericOnly)
	s.cache.Set(ctx, key, records, redis.TTLMedium)
	return records, nil
}

// Instruments lists the crypto or forex symbols that History accepts
func (s *Service) Instruments(market contracts.MarketType) ([]msn.Instrument, error) {
	if market != contracts.MarketCrypto && market != contracts.MarketForex {
		return nil, fmt.Errorf("%w: no instrument catalogue for market type %s", contracts.ErrUnsupported, market)
	}
	return msn.Catalog(market), nil
}

// Instrument describes one crypto asset or currency pair
func (s *Service) Instrument(market contracts.MarketType, symbol string) (msn.Instrument, error) {
	if market != contracts.MarketCrypto && market != contracts.MarketForex {
		return msn.Instrument{}, fmt.Errorf("%w: no instrument catalogue for market type %s", contracts.ErrUnsupported, market)
	}
	return msn.Lookup(market, symbol)
}

// InvalidateHistory drops cached candles after the store was refreshed
func (s *Service) InvalidateHistory(ctx context.Context, market contracts.MarketType, symbol string, interval contracts.Interval) {
	s.cache.InvalidateHistory(ctx, string(market), strings.ToUpper(symbol), string(interval))
}

func requireSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("%w: symbol is required", contracts.ErrInvalidArgument)
	}
	return symbol, nil
}
