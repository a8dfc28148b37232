package runtime

import (
	"sync"

	"trade_engine/internal/models"
	"trade_engine/internal/strategy"
)

// SymbolState — mutable runtime state of one monitored symbol. Candle
// series and indicator values are written by whichever worker currently
// processes the symbol's tick; the ready flag and strategy assignment are
// also touched by the regulator and the configuration path, so everything
// goes through the state mutex.
type SymbolState struct {
	Symbol string

	// tickMu serializes tick handling for the symbol: a worker holds it
	// for the full span of one tick, so series folds, indicator updates
	// and position mutation stay ordered even with a shared worker pool.
	tickMu sync.Mutex

	mu          sync.RWMutex
	ready       bool
	suspended   bool
	strat       *strategy.Strategy
	lastPrice   float64
	lastHigh    float64
	lastLow     float64
	seriesLimit int
	series      map[models.Timeframe]*Series
	indicators  map[models.IndicatorKey]float64
	position    *models.Position
	perf        models.Performance
}

func newSymbolState(symbol string, seriesLimit int) *SymbolState {
	return &SymbolState{
		Symbol:      symbol,
		seriesLimit: seriesLimit,
		series:      make(map[models.Timeframe]*Series),
		indicators:  make(map[models.IndicatorKey]float64),
	}
}

func (s *SymbolState) LockTicks()   { s.tickMu.Lock() }
func (s *SymbolState) UnlockTicks() { s.tickMu.Unlock() }

func (s *SymbolState) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *SymbolState) SetReady(v bool) {
	s.mu.Lock()
	s.ready = v
	s.mu.Unlock()
}

func (s *SymbolState) Suspended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suspended
}

func (s *SymbolState) SetSuspended(v bool) {
	s.mu.Lock()
	s.suspended = v
	s.mu.Unlock()
}

func (s *SymbolState) Strategy() *strategy.Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strat
}

// SetStrategy reassigns the strategy and drops the ready flag: the symbol
// must re-backfill history for the new requirement set before trading again.
func (s *SymbolState) SetStrategy(st *strategy.Strategy) {
	s.mu.Lock()
	s.strat = st
	s.ready = false
	s.mu.Unlock()
}

// SetLatest updates the dashboard price fields on every tick, closed or not.
func (s *SymbolState) SetLatest(price, high, low float64) {
	s.mu.Lock()
	s.lastPrice = price
	s.lastHigh = high
	s.lastLow = low
	s.mu.Unlock()
}

func (s *SymbolState) LastPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrice
}

// Series returns the candle history for tf, creating it on first use.
func (s *SymbolState) Series(tf models.Timeframe) *Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	ser, ok := s.series[tf]
	if !ok {
		ser = NewSeries(s.seriesLimit)
		s.series[tf] = ser
	}
	return ser
}

func (s *SymbolState) Indicator(key models.IndicatorKey) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.indicators[key]
	return v, ok
}

// SetIndicators replaces the live values for one timeframe. Kinds absent
// from values are removed, so an indicator that fell back below its
// lookback stops serving a stale reading to the evaluator.
func (s *SymbolState) SetIndicators(tf models.Timeframe, values map[models.IndicatorKind]float64) {
	s.mu.Lock()
	for key := range s.indicators {
		if key.Timeframe != tf {
			continue
		}
		if _, ok := values[key.Kind]; !ok {
			delete(s.indicators, key)
		}
	}
	for kind, v := range values {
		s.indicators[models.IndicatorKey{Kind: kind, Timeframe: tf}] = v
	}
	s.mu.Unlock()
}

func (s *SymbolState) Position() *models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

func (s *SymbolState) SetPosition(p *models.Position) {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
}

func (s *SymbolState) Performance() models.Performance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perf
}

// RecordTrade folds a closed trade result into the aggregate counters and
// returns the updated counters.
func (s *SymbolState) RecordTrade(resultPct float64) models.Performance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resultPct > 0 {
		s.perf.Wins++
		s.perf.LossStreak = 0
	} else {
		s.perf.Losses++
		s.perf.LossStreak++
	}
	s.perf.TotalProfit += resultPct
	return s.perf
}
