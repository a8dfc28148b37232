package pipeline

import (
	"context"

	"trade_engine/pkg/logger"
)

// ReloadStrategies re-reads strategy definitions and per-symbol
// assignments, recompiles requirement sets, and flags every affected active
// symbol for re-backfill. This is the explicit entry point for the
// configuration-update path: editing a test tree changes which indicators
// and timeframes a symbol needs, so its history must be rebuilt before it
// trades again.
func (p *Pipeline) ReloadStrategies(ctx context.Context) error {
	defs, err := p.strategies.Definitions(ctx)
	if err != nil {
		return err
	}
	assignments, err := p.strategies.Assignments(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.compiled = defs
	p.mu.Unlock()

	for symbol, name := range assignments {
		strat, ok := defs[name]
		if !ok {
			logger.Error("symbol %s assigned unknown strategy %q", symbol, name)
			continue
		}
		st := p.reg.Ensure(symbol)
		st.SetStrategy(strat) // drops the ready flag

		if p.reg.IsActive(symbol) && p.Bootstrap != nil {
			go func(symbol string) {
				if err := p.Bootstrap(ctx, symbol); err != nil {
					logger.Error("re-backfill %s: %v", symbol, err)
				}
			}(symbol)
		}
	}
	logger.Info("strategies reloaded: %d definitions, %d assignments", len(defs), len(assignments))
	return nil
}
