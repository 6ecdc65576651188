package contracts

import "context"

// Record is one flat output row: string keys, JSON-ready values
type Record = map[string]interface{}

// MarketData is the data layer every command talks to
// ⭐ SSOT: 데이터 계층 인터페이스는 여기서만 정의
type MarketData interface {
	// History returns candles in ascending time order
	History(ctx context.Context, req HistoryRequest) ([]Candle, error)

	// Company returns the first company overview record
	Company(ctx context.Context, symbol string) (Record, error)

	// Financial returns one record per reporting period
	Financial(ctx context.Context, symbol string, period PeriodType, statement StatementType) ([]Record, error)

	// Indices returns the market index listing
	Indices(ctx context.Context) ([]Record, error)

	// Symbols returns the tradable symbol listing
	Symbols(ctx context.Context) ([]Record, error)
}

// HistoryStore persists candles between runs
type HistoryStore interface {
	UpsertCandles(ctx context.Context, symbol string, market MarketType, interval Interval, candles []Candle) (int, error)
	Range(ctx context.Context, req HistoryRequest) ([]Candle, error)
	Latest(ctx context.Context, symbol string, market MarketType, interval Interval) (*Candle, error)
}
