// Package history persists candles fetched by the refresh jobs.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vnmarket/internal/contracts"
)

// upsertBatchSize bounds rows per transaction
const upsertBatchSize = 500

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS market;

	CREATE TABLE IF NOT EXISTS market.ohlcv_history (
		symbol      TEXT             NOT NULL,
		market_type TEXT             NOT NULL,
		interval    TEXT             NOT NULL,
		ts          TIMESTAMPTZ      NOT NULL,
		open        DOUBLE PRECISION NOT NULL,
		high        DOUBLE PRECISION NOT NULL,
		low         DOUBLE PRECISION NOT NULL,
		close       DOUBLE PRECISION NOT NULL,
		volume      DOUBLE PRECISION NOT NULL,
		updated_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, market_type, interval, ts)
	);
`

// Repository implements contracts.HistoryStore
// ⭐ SSOT: 시세 이력 저장소는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

var _ contracts.HistoryStore = (*Repository)(nil)

// NewRepository creates a new history repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the history table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// UpsertCandles inserts or replaces candles keyed by symbol, market, interval and time
func (r *Repository) UpsertCandles(ctx context.Context, symbol string, market contracts.MarketType, interval contracts.Interval, candles []contracts.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO market.ohlcv_history (symbol, market_type, interval, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, market_type, interval, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			updated_at = NOW()
	`

	symbol = strings.ToUpper(symbol)
	saved := 0

	for i := 0; i < len(candles); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(candles) {
			end = len(candles)
		}

		batch := &pgx.Batch{}
		for _, c := range candles[i:end] {
			batch.Queue(query, symbol, string(market), string(interval), c.Time, c.Open, c.High, c.Low, c.Close, c.Volume)
		}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return saved, fmt.Errorf("begin transaction (batch %d): %w", i/upsertBatchSize, err)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			tx.Rollback(ctx)
			return saved, fmt.Errorf("upsert %s %s candles (batch %d): %w", symbol, interval, i/upsertBatchSize, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return saved, fmt.Errorf("commit transaction (batch %d): %w", i/upsertBatchSize, err)
		}

		saved += end - i
	}

	return saved, nil
}

// Range returns stored candles in [Start, End 23:59:59], ascending
func (r *Repository) Range(ctx context.Context, req contracts.HistoryRequest) ([]contracts.Candle, error) {
	query := `
		SELECT ts, open, high, low, close, volume
		FROM market.ohlcv_history
		WHERE symbol = $1 AND market_type = $2 AND interval = $3 AND ts BETWEEN $4 AND $5
		ORDER BY ts ASC
	`

	rows, err := r.pool.Query(ctx, query,
		strings.ToUpper(req.Symbol), string(req.Market), string(req.Interval), req.Start, req.EndOfRange())
	if err != nil {
		return nil, fmt.Errorf("query %s history: %w", req.Symbol, err)
	}
	defer rows.Close()

	candles := []contracts.Candle{}
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Latest returns the most recent stored candle, or nil when none exists
func (r *Repository) Latest(ctx context.Context, symbol string, market contracts.MarketType, interval contracts.Interval) (*contracts.Candle, error) {
	query := `
		SELECT ts, open, high, low, close, volume
		FROM market.ohlcv_history
		WHERE symbol = $1 AND market_type = $2 AND interval = $3
		ORDER BY ts DESC
		LIMIT 1
	`

	c, err := scanCandle(r.pool.QueryRow(ctx, query, strings.ToUpper(symbol), string(market), string(interval)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Prune deletes candles of interval older than before and reports how many went
func (r *Repository) Prune(ctx context.Context, interval contracts.Interval, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM market.ohlcv_history WHERE interval = $1 AND ts < $2`,
		string(interval), before)
	if err != nil {
		return 0, fmt.Errorf("prune %s history: %w", interval, err)
	}
	return tag.RowsAffected(), nil
}

func scanCandle(row pgx.Row) (contracts.Candle, error) {
	var c contracts.Candle
	var ts time.Time
	if err := row.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
		return c, fmt.Errorf("scan candle: %w", err)
	}
	c.Time = ts.In(contracts.Location)
	return c, nil
}
