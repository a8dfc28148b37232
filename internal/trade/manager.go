package trade

import (
	"context"
	"errors"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/runtime"
	"trade_engine/pkg/logger"
)

var (
	// ErrPositionOpen — a buy fired while a position is already open.
	// Rejected at this boundary, never mutates state.
	ErrPositionOpen = errors.New("position already open")
	// ErrPositionClosed — close requested with no open position.
	ErrPositionClosed = errors.New("no open position")
	// ErrInvalidPrice — a buy fired with a non-positive price.
	ErrInvalidPrice = errors.New("invalid price")
)

// Repo persists the trade log and the per-symbol counters.
type Repo interface {
	InsertOpen(ctx context.Context, p *models.Position) error
	UpdateClose(ctx context.Context, p *models.Position) error
	UpdatePerformance(ctx context.Context, symbol string, perf models.Performance) error
}

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Manager drives the per-symbol NoPosition -> Open -> Closed state machine.
type Manager struct {
	invest        float64
	maxLossStreak int
	repo          Repo
	n             ServiceNotifier

	// onSuspend tells the regulator to deprioritize a symbol after a
	// configured streak of consecutive losses.
	onSuspend func(symbol string)
}

func NewManager(invest float64, maxLossStreak int, repo Repo, n ServiceNotifier) *Manager {
	return &Manager{
		invest:        invest,
		maxLossStreak: maxLossStreak,
		repo:          repo,
		n:             n,
	}
}

// OnSuspend registers the loss-streak callback.
func (m *Manager) OnSuspend(fn func(symbol string)) { m.onSuspend = fn }

// Open creates a simulated position at price. At most one open position per
// symbol is allowed; a duplicate buy is rejected without mutation.
func (m *Manager) Open(ctx context.Context, state *runtime.SymbolState, strategyName string, price float64, now time.Time) (*models.Position, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	if cur := state.Position(); cur != nil && cur.Status == models.PositionOpen {
		return nil, ErrPositionOpen
	}

	pos := &models.Position{
		Symbol:       state.Symbol,
		Strategy:     strategyName,
		EntryPrice:   price,
		CurrentPrice: price,
		MaxPrice:     price,
		Quantity:     m.invest / price,
		Invested:     m.invest,
		EntryTime:    now,
		Status:       models.PositionOpen,
	}
	if m.repo != nil {
		if err := m.repo.InsertOpen(ctx, pos); err != nil {
			return nil, err
		}
	}
	state.SetPosition(pos)

	if m.n != nil {
		m.n.SendService(ctx, "[TRADE] BUY %s @ %.6f qty=%.6f", pos.Symbol, pos.EntryPrice, pos.Quantity)
	}
	return pos, nil
}

// Touch refreshes the current price and the running maximum on every tick
// while the position is open, independent of sell evaluation.
func (m *Manager) Touch(state *runtime.SymbolState, price float64) {
	pos := state.Position()
	if pos == nil || pos.Status != models.PositionOpen {
		return
	}
	pos.CurrentPrice = price
	if price > pos.MaxPrice {
		pos.MaxPrice = price
	}
}

// Close settles the open position at price. Closing is terminal: a second
// attempt returns ErrPositionClosed and alters nothing.
func (m *Manager) Close(ctx context.Context, state *runtime.SymbolState, price float64, now time.Time) (*models.Position, error) {
	pos := state.Position()
	if pos == nil || pos.Status != models.PositionOpen {
		return nil, ErrPositionClosed
	}

	pos.ExitPrice = price
	pos.ExitTime = now
	pos.DurationMin = now.Sub(pos.EntryTime).Minutes()
	pos.ResultPct = (price - pos.EntryPrice) / pos.EntryPrice * 100
	pos.Status = models.PositionClosed

	if m.repo != nil {
		if err := m.repo.UpdateClose(ctx, pos); err != nil {
			// the trade is settled in memory either way; the row catches
			// up on the next write
			logger.Error("close trade persist %s: %v", pos.Symbol, err)
		}
	}

	perf := state.RecordTrade(pos.ResultPct)
	state.SetPosition(nil)

	if m.repo != nil {
		if err := m.repo.UpdatePerformance(ctx, state.Symbol, perf); err != nil {
			logger.Error("performance persist %s: %v", state.Symbol, err)
		}
	}

	if m.n != nil {
		m.n.SendService(ctx, "[TRADE] SELL %s @ %.6f result=%+.2f%% duration=%.1fmin",
			pos.Symbol, pos.ExitPrice, pos.ResultPct, pos.DurationMin)
	}

	if m.maxLossStreak > 0 && perf.LossStreak >= m.maxLossStreak {
		state.SetSuspended(true)
		logger.Warn("symbol %s suspended after %d consecutive losses", state.Symbol, perf.LossStreak)
		if m.onSuspend != nil {
			m.onSuspend(state.Symbol)
		}
	}
	return pos, nil
}
