package store

import (
	"context"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// IndicatorRepo — persisted indicator snapshots, one row per closed candle.
type IndicatorRepo struct {
	db *db.PgTxManager
}

func NewIndicatorRepo(m *db.PgTxManager) *IndicatorRepo {
	return &IndicatorRepo{db: m}
}

func (r *IndicatorRepo) UpsertMany(ctx context.Context, snaps []models.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range snaps {
		batch.Queue(`
			INSERT INTO indicators (symbol, timeframe, open_time, rsi, stoch_rsi,
			                        macd, macd_signal, bollinger_upper, bollinger_middle, bollinger_lower)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (symbol, timeframe, open_time)
			DO UPDATE SET rsi = EXCLUDED.rsi, stoch_rsi = EXCLUDED.stoch_rsi,
			              macd = EXCLUDED.macd, macd_signal = EXCLUDED.macd_signal,
			              bollinger_upper = EXCLUDED.bollinger_upper,
			              bollinger_middle = EXCLUDED.bollinger_middle,
			              bollinger_lower = EXCLUDED.bollinger_lower`,
			s.Symbol, string(s.Timeframe), s.OpenTime, s.RSI, s.StochRSI,
			s.MACD, s.MACDSignal, s.BollingerUpper, s.BollingerMid, s.BollingerLower)
	}
	return errors.Wrap(r.db.Conn().SendBatch(ctx, batch).Close(), "upsert indicators")
}
