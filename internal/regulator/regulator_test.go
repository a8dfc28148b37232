package regulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/runtime"
	"trade_engine/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackfill struct {
	mu      sync.Mutex
	symbols []string
}

func (f *fakeBackfill) Bootstrap(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbol)
	return nil
}

func testCfg() config.RegulatorConfig {
	return config.RegulatorConfig{
		MinThreshold:      0.5,
		MinDuration:       30 * time.Second,
		MaxThreshold:      3.0,
		MaxDuration:       60 * time.Second,
		CriticalThreshold: 5.0,
		CriticalDuration:  30 * time.Second,
		MaxSymbols:        50,
		MinSymbols:        2,
		ReductionStep:     3,
		Interval:          10 * time.Second,
	}
}

func anyStrategy(t *testing.T) *strategy.Strategy {
	t.Helper()
	v := 30.0
	s, err := strategy.Compile(&strategy.Definition{
		Name: "test",
		Buy:  &strategy.TestDef{Indicator: "rsi", Operator: "<", Value: &v},
	})
	require.NoError(t, err)
	return s
}

func seedPerf(st *runtime.SymbolState, wins, losses int) {
	for i := 0; i < wins; i++ {
		st.RecordTrade(1)
	}
	for i := 0; i < losses; i++ {
		st.RecordTrade(-1)
	}
}

func TestWindowMinMax(t *testing.T) {
	r := New(testCfg(), runtime.NewRegistry(100), &fakeBackfill{}, nil)

	_, _, ok := r.window()
	assert.False(t, ok, "empty window never acts")

	for _, s := range []float64{0.2, 0.9, 0.1, 0.4} {
		r.Observe(time.Duration(s * float64(time.Second)))
	}
	min, max, ok := r.window()
	require.True(t, ok)
	assert.InDelta(t, 0.1, min, 1e-9)
	assert.InDelta(t, 0.9, max, 1e-9)
}

func TestSustainedLowAdmitsExactlyOne(t *testing.T) {
	reg := runtime.NewRegistry(100)
	bf := &fakeBackfill{}
	r := New(testCfg(), reg, bf, nil)
	strat := anyStrategy(t)

	// two idle candidates, the better performer should win
	good := reg.Ensure("GOODUSDT")
	good.SetStrategy(strat)
	seedPerf(good, 3, 1)
	bad := reg.Ensure("BADUSDT")
	bad.SetStrategy(strat)
	seedPerf(bad, 1, 3)

	// a suspended symbol is never admitted
	sus := reg.Ensure("SUSUSDT")
	sus.SetStrategy(strat)
	sus.SetSuspended(true)

	for _, s := range []float64{0.2, 0.3, 0.1} {
		r.Observe(time.Duration(s * float64(time.Second)))
	}

	now := time.Now()
	r.cycle(context.Background(), now)
	assert.Zero(t, reg.ActiveCount(), "low load must hold before admitting")

	r.cycle(context.Background(), now.Add(31*time.Second))
	require.Eventually(t, func() bool { return reg.ActiveCount() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, reg.IsActive("GOODUSDT"))
	assert.Equal(t, []string{"GOODUSDT"}, bf.symbols, "history is bootstrapped before activation")
}

func TestCriticalOverloadRemovesDoubleStep(t *testing.T) {
	reg := runtime.NewRegistry(100)
	r := New(testCfg(), reg, &fakeBackfill{}, nil)

	symbols := []string{"AUSDT", "BUSDT", "CUSDT", "DUSDT", "EUSDT", "FUSDT", "GUSDT", "HUSDT", "IUSDT", "JUSDT"}
	for i, s := range symbols {
		st := reg.Ensure(s)
		seedPerf(st, i, len(symbols)-i)
		reg.Activate(s)
	}
	// the worst performer holds an open position and must survive
	reg.Ensure("AUSDT").SetPosition(&models.Position{Symbol: "AUSDT", Status: models.PositionOpen})

	r.Observe(6 * time.Second)

	now := time.Now()
	r.cycle(context.Background(), now)
	assert.Equal(t, len(symbols), reg.ActiveCount(), "critical must be sustained first")

	r.cycle(context.Background(), now.Add(31*time.Second))
	assert.Equal(t, len(symbols)-6, reg.ActiveCount(), "2x reduction step removed")
	assert.True(t, reg.IsActive("AUSDT"), "open positions are never evicted")
	assert.True(t, reg.IsActive("JUSDT"), "the best performer survives")
}

func TestRemoveRespectsMinSymbols(t *testing.T) {
	reg := runtime.NewRegistry(100)
	r := New(testCfg(), reg, &fakeBackfill{}, nil)

	for _, s := range []string{"AUSDT", "BUSDT", "CUSDT"} {
		reg.Ensure(s)
		reg.Activate(s)
	}
	r.remove(context.Background(), 10)
	assert.Equal(t, 2, reg.ActiveCount(), "never below the configured minimum")
}

func TestHighLoadTimerResetsWhenLoadDrops(t *testing.T) {
	reg := runtime.NewRegistry(100)
	r := New(testCfg(), reg, &fakeBackfill{}, nil)
	for _, s := range []string{"AUSDT", "BUSDT", "CUSDT", "DUSDT"} {
		reg.Ensure(s)
		reg.Activate(s)
	}

	r.Observe(4 * time.Second)
	now := time.Now()
	r.cycle(context.Background(), now)

	// load recovers before MaxDuration elapses
	for i := 0; i < windowSize; i++ {
		r.Observe(time.Second)
	}
	r.cycle(context.Background(), now.Add(30*time.Second))
	r.cycle(context.Background(), now.Add(61*time.Second))
	assert.Equal(t, 4, reg.ActiveCount(), "a reset condition never acts")
}

func TestSuspendDeactivates(t *testing.T) {
	reg := runtime.NewRegistry(100)
	r := New(testCfg(), reg, &fakeBackfill{}, nil)
	reg.Ensure("BTCUSDT")
	reg.Activate("BTCUSDT")

	r.Suspend("BTCUSDT")
	assert.False(t, reg.IsActive("BTCUSDT"))
}
