package regulator

import (
	"context"
	"sort"
	"sync"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/runtime"
	"trade_engine/pkg/logger"
)

const windowSize = 1000

type Backfiller interface {
	Bootstrap(ctx context.Context, symbol string) error
}

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Regulator — the admission-control loop. It samples flush processing
// times, watches (min, max) over a sliding window, and grows or shrinks
// the active symbol set when a load condition holds long enough.
type Regulator struct {
	cfg      config.RegulatorConfig
	reg      *runtime.Registry
	backfill Backfiller
	n        ServiceNotifier

	mu      sync.Mutex
	samples []float64 // seconds

	// sustained-condition timers: zero while the condition does not hold
	criticalSince time.Time
	highSince     time.Time
	lowSince      time.Time
}

func New(cfg config.RegulatorConfig, reg *runtime.Registry, backfill Backfiller, n ServiceNotifier) *Regulator {
	return &Regulator{cfg: cfg, reg: reg, backfill: backfill, n: n}
}

// Observe records one end-to-end flush latency sample.
func (r *Regulator) Observe(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, d.Seconds())
	if len(r.samples) > windowSize {
		r.samples = r.samples[len(r.samples)-windowSize:]
	}
}

// Start runs the loop on its own timer, independent of tick volume.
func (r *Regulator) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cycle(ctx, time.Now())
		}
	}
}

func (r *Regulator) window() (min, max float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == 0 {
		return 0, 0, false
	}
	min, max = r.samples[0], r.samples[0]
	for _, s := range r.samples[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max, true
}

// cycle evaluates the three load states in priority order. Admission and
// removal are mutually exclusive within one pass.
func (r *Regulator) cycle(ctx context.Context, now time.Time) {
	min, max, ok := r.window()
	if !ok {
		r.criticalSince, r.highSince, r.lowSince = time.Time{}, time.Time{}, time.Time{}
		return
	}

	r.criticalSince = holdTimer(r.criticalSince, now, max > r.cfg.CriticalThreshold)
	r.highSince = holdTimer(r.highSince, now, max > r.cfg.MaxThreshold)
	r.lowSince = holdTimer(r.lowSince, now, min <= r.cfg.MinThreshold && max <= r.cfg.MaxThreshold)

	switch {
	case sustained(r.criticalSince, now, r.cfg.CriticalDuration):
		logger.Warn("regulator: critical overload (max=%.2fs)", max)
		r.remove(ctx, 2*r.cfg.ReductionStep)
		r.criticalSince = time.Time{}

	case sustained(r.highSince, now, r.cfg.MaxDuration):
		logger.Warn("regulator: high load (max=%.2fs)", max)
		r.remove(ctx, r.cfg.ReductionStep)
		r.highSince = time.Time{}

	case sustained(r.lowSince, now, r.cfg.MinDuration) && r.reg.ActiveCount() < r.cfg.MaxSymbols:
		r.admit(ctx)
		r.lowSince = time.Time{}
	}
}

func holdTimer(since, now time.Time, holds bool) time.Time {
	if !holds {
		return time.Time{}
	}
	if since.IsZero() {
		return now
	}
	return since
}

func sustained(since, now time.Time, d time.Duration) bool {
	return !since.IsZero() && now.Sub(since) >= d
}

// remove deactivates up to n of the worst-performing active symbols. A
// symbol with an open position is never evicted, and the active set never
// shrinks below the configured minimum.
func (r *Regulator) remove(ctx context.Context, n int) {
	var candidates []*runtime.SymbolState
	for _, st := range r.reg.States() {
		if !r.reg.IsActive(st.Symbol) {
			continue
		}
		if pos := st.Position(); pos != nil && pos.Status == models.PositionOpen {
			continue
		}
		candidates = append(candidates, st)
	}
	sortByPerformance(candidates, false)

	removed := 0
	for _, st := range candidates {
		if removed >= n || r.reg.ActiveCount() <= r.cfg.MinSymbols {
			break
		}
		r.reg.Deactivate(st.Symbol)
		removed++
		logger.Info("regulator: removed %s (win rate %.1f%%)", st.Symbol, st.Performance().WinRate())
	}
	if removed > 0 && r.n != nil {
		r.n.SendService(ctx, "[REGULATOR] load shedding: removed %d symbols, %d active", removed, r.reg.ActiveCount())
	}
}

// admit picks the best-performing inactive symbol, bootstraps its history,
// and only then activates it. One admission per cycle.
func (r *Regulator) admit(ctx context.Context) {
	var candidates []*runtime.SymbolState
	for _, symbol := range r.reg.InactiveSymbols() {
		st, ok := r.reg.Get(symbol)
		if !ok || st.Suspended() || st.Strategy() == nil {
			continue
		}
		candidates = append(candidates, st)
	}
	if len(candidates) == 0 {
		return
	}
	sortByPerformance(candidates, true)

	st := candidates[0]
	go func() {
		if err := r.backfill.Bootstrap(ctx, st.Symbol); err != nil {
			logger.Error("regulator: bootstrap %s: %v", st.Symbol, err)
			return
		}
		r.reg.Activate(st.Symbol)
		logger.Info("regulator: admitted %s, %d active", st.Symbol, r.reg.ActiveCount())
		if r.n != nil {
			r.n.SendService(ctx, "[REGULATOR] admitted %s, %d active", st.Symbol, r.reg.ActiveCount())
		}
	}()
}

// Suspend drops a symbol after a loss streak; called by the trade manager.
func (r *Regulator) Suspend(symbol string) {
	r.reg.Deactivate(symbol)
	logger.Warn("regulator: suspended %s", symbol)
}

// sortByPerformance orders by win rate then cumulative result; best first
// when best is true, worst first otherwise. Ties fall back to symbol name
// so ordering is deterministic.
func sortByPerformance(states []*runtime.SymbolState, best bool) {
	sort.Slice(states, func(i, j int) bool {
		pi, pj := states[i].Performance(), states[j].Performance()
		if pi.WinRate() != pj.WinRate() {
			if best {
				return pi.WinRate() > pj.WinRate()
			}
			return pi.WinRate() < pj.WinRate()
		}
		if pi.TotalProfit != pj.TotalProfit {
			if best {
				return pi.TotalProfit > pj.TotalProfit
			}
			return pi.TotalProfit < pj.TotalProfit
		}
		return states[i].Symbol < states[j].Symbol
	})
}
