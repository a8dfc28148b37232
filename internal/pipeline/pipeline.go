package pipeline

import (
	"context"
	"sync"
	"time"

	"trade_engine/internal/aggregate"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/runtime"
	"trade_engine/internal/strategy"
	"trade_engine/internal/trade"
	"trade_engine/pkg/db"
	"trade_engine/pkg/logger"

	"trade_engine/internal/indicator"

	"github.com/jackc/pgx/v5"
	"github.com/opentracing/opentracing-go"
)

// LatencySink receives one end-to-end processing-time sample per flush.
// Implemented by the regulator.
type LatencySink interface {
	Observe(d time.Duration)
}

// KlineStore persists candle rows.
type KlineStore interface {
	ExistingKeys(ctx context.Context, tx db.Transaction, keys []models.CandleKey) (map[models.CandleKey]bool, error)
	InsertMany(ctx context.Context, tx db.Transaction, candles []models.Candle) error
	UpdateMany(ctx context.Context, tx db.Transaction, candles []models.Candle) error
	UpsertMany(ctx context.Context, candles []models.Candle) error
}

// IndicatorStore persists indicator snapshots for closed candles.
type IndicatorStore interface {
	UpsertMany(ctx context.Context, snaps []models.IndicatorSnapshot) error
}

// StrategyStore reads strategy definitions and symbol assignments.
type StrategyStore interface {
	Definitions(ctx context.Context) (map[string]*strategy.Strategy, error)
	Assignments(ctx context.Context) (map[string]string, error)
}

// Pipeline — bounded tick queue drained by a fixed worker pool. Each worker
// drives price update -> aggregation -> indicators -> strategy evaluation ->
// trade lifecycle for one tick at a time, so per-symbol processing of a tick
// completes before the next tick of that symbol is handled.
type Pipeline struct {
	cfg *config.Config
	reg *runtime.Registry

	queue chan models.Tick
	buf   *flushBuffer

	txm        db.TxManager
	klines     KlineStore
	indicators IndicatorStore
	strategies StrategyStore

	trades *trade.Manager
	sink   LatencySink
	ladder []aggregate.Step

	// Bootstrap is invoked for symbols flagged for re-backfill after a
	// strategy edit. Set by the module wiring.
	Bootstrap func(ctx context.Context, symbol string) error

	mu       sync.Mutex // guards loaded strategy set
	compiled map[string]*strategy.Strategy
}

func New(
	cfg *config.Config,
	reg *runtime.Registry,
	txm db.TxManager,
	klines KlineStore,
	indicators IndicatorStore,
	strategies StrategyStore,
	trades *trade.Manager,
	sink LatencySink,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		reg:        reg,
		queue:      make(chan models.Tick, cfg.Regulator.QueueSize),
		buf:        newFlushBuffer(),
		txm:        txm,
		klines:     klines,
		indicators: indicators,
		strategies: strategies,
		trades:     trades,
		sink:       sink,
		ladder:     aggregate.DefaultLadder,
		compiled:   map[string]*strategy.Strategy{},
	}
}

// Enqueue pushes a normalized tick from the socket fan-in. Blocks while the
// queue is full, which backpressures the connection read loop.
func (p *Pipeline) Enqueue(ctx context.Context, tick models.Tick) {
	select {
	case p.queue <- tick:
	case <-ctx.Done():
	}
}

// QueueDepth — current backlog, used for intrabar load shedding.
func (p *Pipeline) QueueDepth() int { return len(p.queue) }

// Start launches the worker pool plus the age-based flush timer.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Regulator.Workers; i++ {
		go p.worker(ctx)
	}
	go p.ageLoop(ctx)
	logger.Info("pipeline started: %d workers, queue=%d", p.cfg.Regulator.Workers, p.cfg.Regulator.QueueSize)
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-p.queue:
			p.processTick(ctx, tick)
		}
	}
}

// ageLoop fires flushes for buffers that age past the max-flush-age
// threshold during quiet periods.
func (p *Pipeline) ageLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Regulator.FlushMaxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

func (p *Pipeline) processTick(ctx context.Context, tick models.Tick) {
	st, ok := p.reg.Get(tick.Symbol)
	if !ok || !st.Ready() {
		// backfill incomplete: dropping the tick is a no-op, not an error
		return
	}
	if !p.reg.IsActive(tick.Symbol) {
		// evicted symbols keep streaming until their shard reconnects
		return
	}
	if p.handleTick(ctx, st, tick) {
		p.flush(ctx)
	}
}

// handleTick runs the per-symbol span of one tick under the symbol's tick
// lock and reports whether a flush is due. The flush itself runs after the
// lock is released; it re-acquires each affected symbol's lock in turn.
func (p *Pipeline) handleTick(ctx context.Context, st *runtime.SymbolState, tick models.Tick) bool {
	st.LockTicks()
	defer st.UnlockTicks()

	c := tick.Candle
	st.SetLatest(c.Close, c.High, c.Low)
	p.trades.Touch(st, c.Close)

	strat := st.Strategy()
	if strat == nil {
		return false
	}

	if !tick.IsClosed {
		p.intrabar(ctx, st, strat, c)
		return false
	}

	st.Series(models.BaseTimeframe).Upsert(c)

	count, oldest := p.buf.append(c, tick.ReceivedAt)
	return count >= p.cfg.Regulator.FlushMessages || time.Since(oldest) >= p.cfg.Regulator.FlushMaxAge
}

// intrabar recomputes indicator estimates with the in-progress candle
// applied and, when the queue backlog allows it, runs the sell
// evaluator. Buy evaluation waits for the candle to close.
func (p *Pipeline) intrabar(ctx context.Context, st *runtime.SymbolState, strat *strategy.Strategy, live models.Candle) {
	for _, tf := range strat.Requirements.Timeframes() {
		series := st.Series(tf)
		var closes []float64
		if tf == models.BaseTimeframe {
			closes = series.ClosesWith(live)
		} else {
			closes = series.Closes()
		}
		values := indicator.Compute(closes, tf, strat.Requirements)
		st.SetIndicators(tf, values)
	}

	// shed intrabar sell evaluation when the queue is falling behind
	if p.QueueDepth() > p.cfg.Regulator.QueueSize/2 {
		return
	}
	pos := st.Position()
	if pos == nil {
		return
	}
	evalCtx := strategy.EvalContext{Indicators: st.Indicator, Position: pos, Price: live.Close}
	if strat.EvaluateSell(evalCtx) {
		if _, err := p.trades.Close(ctx, st, live.Close, time.Now()); err != nil && err != trade.ErrPositionClosed {
			logger.Error("intrabar close %s: %v", st.Symbol, err)
		}
	}
}

// flush swaps the pending buffer out under the timed lock, partitions it
// into inserts and updates against existing rows, bulk-writes both, then
// runs aggregation and evaluation for every affected symbol. On lock
// contention the attempt is skipped; the data stays pending.
func (p *Pipeline) flush(ctx context.Context) {
	if !p.buf.tryLock(p.cfg.Regulator.FlushLockWait) {
		logger.Warn("flush skipped: lock busy")
		return
	}
	items := p.buf.drain()
	p.buf.unlock()
	if len(items) == 0 {
		return
	}

	span := opentracing.StartSpan("pipeline.flush")
	span.SetTag("candles", len(items))
	defer span.Finish()

	start := time.Now()
	earliest := items[0].added
	for _, it := range items {
		if it.added.Before(earliest) {
			earliest = it.added
		}
	}

	candles := make([]models.Candle, len(items))
	keys := make([]models.CandleKey, len(items))
	for i, it := range items {
		candles[i] = it.candle
		keys[i] = it.candle.Key()
	}

	err := p.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		existing, err := p.klines.ExistingKeys(ctxTx, tx, keys)
		if err != nil {
			return err
		}
		var inserts, updates []models.Candle
		for _, c := range candles {
			if existing[c.Key()] {
				updates = append(updates, c)
			} else {
				inserts = append(inserts, c)
			}
		}
		if err := p.klines.InsertMany(ctxTx, tx, inserts); err != nil {
			return err
		}
		return p.klines.UpdateMany(ctxTx, tx, updates)
	})
	if err != nil {
		// candles stay in symbol series; persistence retries on next flush
		logger.Error("flush write: %v", err)
	}

	bySymbol := map[string][]models.Candle{}
	for _, c := range candles {
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c)
	}
	for symbol, cs := range bySymbol {
		p.processClosed(ctx, symbol, cs)
	}

	if p.sink != nil {
		p.sink.Observe(start.Sub(earliest))
	}
	logger.Info("flush: %d candles, %d symbols, backlog age %.2fs",
		len(candles), len(bySymbol), start.Sub(earliest).Seconds())
}

// processClosed cascades one symbol's freshly closed base candles up the
// timeframe ladder, refreshes indicators and snapshots, and runs the
// buy/sell decision. A failure here is logged with context and never
// aborts the batch.
func (p *Pipeline) processClosed(ctx context.Context, symbol string, baseCandles []models.Candle) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("processing %s: panic: %v", symbol, r)
		}
	}()

	st, ok := p.reg.Get(symbol)
	if !ok || !st.Ready() {
		return
	}
	st.LockTicks()
	defer st.UnlockTicks()

	strat := st.Strategy()
	if strat == nil {
		return
	}

	required := map[models.Timeframe]bool{}
	for _, tf := range strat.Requirements.Timeframes() {
		required[tf] = true
	}

	closed := append([]models.Candle{}, baseCandles...)
	for _, base := range baseCandles {
		closed = append(closed, aggregate.Run(st, base, required, p.ladder)...)
	}

	var snaps []models.IndicatorSnapshot
	var higher []models.Candle
	for _, c := range closed {
		if c.Timeframe != models.BaseTimeframe {
			higher = append(higher, c)
		}
		if !required[c.Timeframe] {
			continue
		}
		values := indicator.Compute(st.Series(c.Timeframe).Closes(), c.Timeframe, strat.Requirements)
		st.SetIndicators(c.Timeframe, values)
		snaps = append(snaps, snapshotFrom(c, values))
	}
	if err := p.klines.UpsertMany(ctx, higher); err != nil {
		logger.Error("processing %s: persist aggregates: %v", symbol, err)
	}
	if err := p.indicators.UpsertMany(ctx, snaps); err != nil {
		logger.Error("processing %s: persist indicators: %v", symbol, err)
	}

	price := st.LastPrice()
	pos := st.Position()
	evalCtx := strategy.EvalContext{Indicators: st.Indicator, Position: pos, Price: price}

	switch {
	case pos == nil && !st.Suspended():
		if strat.EvaluateBuy(evalCtx) {
			if _, err := p.trades.Open(ctx, st, strat.Name, price, time.Now()); err != nil {
				logger.Error("processing %s: open: %v", symbol, err)
			}
		}
	case pos != nil:
		if strat.EvaluateSell(evalCtx) {
			if _, err := p.trades.Close(ctx, st, price, time.Now()); err != nil && err != trade.ErrPositionClosed {
				logger.Error("processing %s: close: %v", symbol, err)
			}
		}
	}
}

func snapshotFrom(c models.Candle, values map[models.IndicatorKind]float64) models.IndicatorSnapshot {
	snap := models.IndicatorSnapshot{
		Symbol:    c.Symbol,
		Timeframe: c.Timeframe,
		OpenTime:  c.OpenTime,
	}
	opt := func(kind models.IndicatorKind) *float64 {
		if v, ok := values[kind]; ok {
			out := v
			return &out
		}
		return nil
	}
	snap.RSI = opt(models.IndRSI)
	snap.StochRSI = opt(models.IndStochRSI)
	snap.MACD = opt(models.IndMACD)
	snap.MACDSignal = opt(models.IndMACDSignal)
	snap.BollingerUpper = opt(models.IndBollingerUp)
	snap.BollingerMid = opt(models.IndBollingerMid)
	snap.BollingerLower = opt(models.IndBollingerLow)
	return snap
}
