package store

import (
	"context"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"

	"github.com/pkg/errors"
)

// TradeRepo — the trade log plus per-symbol performance counters.
type TradeRepo struct {
	db *db.PgTxManager
}

func NewTradeRepo(m *db.PgTxManager) *TradeRepo {
	return &TradeRepo{db: m}
}

func (r *TradeRepo) InsertOpen(ctx context.Context, p *models.Position) error {
	err := r.db.Conn().QueryRow(ctx, `
		INSERT INTO trade_logs (symbol, strategy, entry_price, quantity, investment_amount, entry_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.Symbol, p.Strategy, p.EntryPrice, p.Quantity, p.Invested, p.EntryTime, string(p.Status)).
		Scan(&p.ID)
	return errors.Wrap(err, "insert trade")
}

func (r *TradeRepo) UpdateClose(ctx context.Context, p *models.Position) error {
	_, err := r.db.Conn().Exec(ctx, `
		UPDATE trade_logs
		SET exit_price = $2, exit_time = $3, duration = $4, trade_result = $5, status = $6
		WHERE id = $1 AND status = 'open'`,
		p.ID, p.ExitPrice, p.ExitTime, p.DurationMin, p.ResultPct, string(p.Status))
	return errors.Wrap(err, "close trade")
}

func (r *TradeRepo) UpdatePerformance(ctx context.Context, symbol string, perf models.Performance) error {
	_, err := r.db.Conn().Exec(ctx, `
		UPDATE symbols
		SET wins = $2, losses = $3, total_profit = $4, win_rate = $5
		WHERE symbol = $1`,
		symbol, perf.Wins, perf.Losses, perf.TotalProfit, perf.WinRate())
	return errors.Wrap(err, "update performance")
}
