package store

import (
	"context"

	"trade_engine/internal/strategy"
	"trade_engine/pkg/db"
	"trade_engine/pkg/logger"

	"github.com/pkg/errors"
)

// StrategyRepo — read-only access to stored strategy definitions and
// per-symbol assignments. Definitions are compiled on load; a definition
// that fails to compile is skipped with a log line rather than taking the
// whole set down.
type StrategyRepo struct {
	db *db.PgTxManager
}

func NewStrategyRepo(m *db.PgTxManager) *StrategyRepo {
	return &StrategyRepo{db: m}
}

func (r *StrategyRepo) Definitions(ctx context.Context) (map[string]*strategy.Strategy, error) {
	rows, err := r.db.Conn().Query(ctx, `SELECT name, definition FROM strategies`)
	if err != nil {
		return nil, errors.Wrap(err, "query strategies")
	}
	defer rows.Close()

	out := make(map[string]*strategy.Strategy)
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, errors.Wrap(err, "scan strategy")
		}
		def, err := strategy.ParseDefinition(raw)
		if err != nil {
			logger.Error("strategy %s: %v", name, err)
			continue
		}
		def.Name = name
		compiled, err := strategy.Compile(def)
		if err != nil {
			logger.Error("strategy %s: %v", name, err)
			continue
		}
		out[name] = compiled
	}
	return out, rows.Err()
}

// Assignments maps symbol -> assigned strategy name for active assignments.
func (r *StrategyRepo) Assignments(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Conn().Query(ctx, `
		SELECT symbol, strategy FROM symbol_strategies WHERE active`)
	if err != nil {
		return nil, errors.Wrap(err, "query assignments")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var symbol, name string
		if err := rows.Scan(&symbol, &name); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		out[symbol] = name
	}
	return out, rows.Err()
}

// Symbols lists every known symbol in configured order.
func (r *StrategyRepo) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.Conn().Query(ctx, `SELECT symbol FROM symbols ORDER BY symbol`)
	if err != nil {
		return nil, errors.Wrap(err, "query symbols")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scan symbol")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
