package store

import (
	"context"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// KlineRepo — candle rows keyed by (symbol, timeframe, open_time).
type KlineRepo struct {
	db *db.PgTxManager
}

func NewKlineRepo(m *db.PgTxManager) *KlineRepo {
	return &KlineRepo{db: m}
}

// ExistingKeys reports which of the given keys already have rows, so a flush
// can partition its buffer into inserts and updates.
func (r *KlineRepo) ExistingKeys(ctx context.Context, tx db.Transaction, keys []models.CandleKey) (map[models.CandleKey]bool, error) {
	if len(keys) == 0 {
		return map[models.CandleKey]bool{}, nil
	}
	symbols := make([]string, len(keys))
	timeframes := make([]string, len(keys))
	opens := make([]int64, len(keys))
	for i, k := range keys {
		symbols[i] = k.Symbol
		timeframes[i] = string(k.Timeframe)
		opens[i] = k.OpenTime
	}

	rows, err := tx.Query(ctx, `
		SELECT k.symbol, k.timeframe, k.open_time
		FROM klines k
		JOIN unnest($1::text[], $2::text[], $3::bigint[]) AS q(symbol, timeframe, open_time)
		  ON k.symbol = q.symbol AND k.timeframe = q.timeframe AND k.open_time = q.open_time`,
		symbols, timeframes, opens)
	if err != nil {
		return nil, errors.Wrap(err, "query existing kline keys")
	}
	defer rows.Close()

	out := make(map[models.CandleKey]bool, len(keys))
	for rows.Next() {
		var k models.CandleKey
		var tf string
		if err := rows.Scan(&k.Symbol, &tf, &k.OpenTime); err != nil {
			return nil, errors.Wrap(err, "scan kline key")
		}
		k.Timeframe = models.Timeframe(tf)
		out[k] = true
	}
	return out, rows.Err()
}

// InsertMany bulk-inserts new candle rows in one batch.
func (r *KlineRepo) InsertMany(ctx context.Context, tx db.Transaction, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO klines (symbol, timeframe, open_time, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.Symbol, string(c.Timeframe), c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return errors.Wrap(tx.SendBatch(ctx, batch).Close(), "insert klines")
}

// UpdateMany bulk-updates existing candle rows in one batch.
func (r *KlineRepo) UpdateMany(ctx context.Context, tx db.Transaction, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			UPDATE klines SET open = $4, high = $5, low = $6, close = $7, volume = $8
			WHERE symbol = $1 AND timeframe = $2 AND open_time = $3`,
			c.Symbol, string(c.Timeframe), c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return errors.Wrap(tx.SendBatch(ctx, batch).Close(), "update klines")
}

// UpsertMany writes candles idempotently on the primary key. Used by the
// backfill and the aggregator, where partitioning buys nothing.
func (r *KlineRepo) UpsertMany(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO klines (symbol, timeframe, open_time, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, timeframe, open_time)
			DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			              close = EXCLUDED.close, volume = EXCLUDED.volume`,
			c.Symbol, string(c.Timeframe), c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return errors.Wrap(r.db.Conn().SendBatch(ctx, batch).Close(), "upsert klines")
}

// Latest returns the newest candle for (symbol, timeframe).
func (r *KlineRepo) Latest(ctx context.Context, symbol string, tf models.Timeframe) (models.Candle, error) {
	var c models.Candle
	var stf string
	err := r.db.Conn().QueryRow(ctx, `
		SELECT symbol, timeframe, open_time, open, high, low, close, volume
		FROM klines WHERE symbol = $1 AND timeframe = $2
		ORDER BY open_time DESC LIMIT 1`,
		symbol, string(tf)).
		Scan(&c.Symbol, &stf, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
	if err != nil {
		return models.Candle{}, errors.Wrap(err, "latest kline")
	}
	c.Timeframe = models.Timeframe(stf)
	return c, nil
}

// Range returns candles from fromTs (ms, inclusive) onward, chronological.
func (r *KlineRepo) Range(ctx context.Context, symbol string, tf models.Timeframe, fromTs int64) ([]models.Candle, error) {
	rows, err := r.db.Conn().Query(ctx, `
		SELECT symbol, timeframe, open_time, open, high, low, close, volume
		FROM klines WHERE symbol = $1 AND timeframe = $2 AND open_time >= $3
		ORDER BY open_time`,
		symbol, string(tf), fromTs)
	if err != nil {
		return nil, errors.Wrap(err, "range klines")
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		var stf string
		if err := rows.Scan(&c.Symbol, &stf, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, errors.Wrap(err, "scan kline")
		}
		c.Timeframe = models.Timeframe(stf)
		out = append(out, c)
	}
	return out, rows.Err()
}
