package runtime

import (
	"testing"

	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryEnsureIsIdempotent(t *testing.T) {
	r := NewRegistry(100)
	a := r.Ensure("BTCUSDT")
	b := r.Ensure("BTCUSDT")
	assert.Same(t, a, b)

	got, ok := r.Get("BTCUSDT")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Get("ETHUSDT")
	assert.False(t, ok)
}

func TestRegistryActiveSet(t *testing.T) {
	r := NewRegistry(100)
	for _, s := range []string{"ETHUSDT", "BTCUSDT", "SOLUSDT"} {
		r.Ensure(s)
	}
	r.Activate("ETHUSDT")
	r.Activate("BTCUSDT")

	assert.Equal(t, 2, r.ActiveCount())
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, r.ActiveSymbols(), "sorted order")
	assert.Equal(t, []string{"SOLUSDT"}, r.InactiveSymbols())
	assert.True(t, r.IsActive("BTCUSDT"))

	r.Deactivate("BTCUSDT")
	assert.False(t, r.IsActive("BTCUSDT"))
	assert.Equal(t, 1, r.ActiveCount())
}

func TestSymbolStateStrategyResetDropsReady(t *testing.T) {
	r := NewRegistry(100)
	st := r.Ensure("BTCUSDT")
	st.SetReady(true)
	require.True(t, st.Ready())

	st.SetStrategy(nil)
	assert.False(t, st.Ready(), "a strategy change forces re-backfill")
}

func TestSetIndicatorsDropsStaleKinds(t *testing.T) {
	r := NewRegistry(100)
	st := r.Ensure("BTCUSDT")

	st.SetIndicators(models.TF1m, map[models.IndicatorKind]float64{
		models.IndRSI:  40,
		models.IndMACD: 1.5,
	})
	st.SetIndicators(models.TF3m, map[models.IndicatorKind]float64{
		models.IndRSI: 60,
	})

	// the series fell back below the RSI lookback on 1m
	st.SetIndicators(models.TF1m, map[models.IndicatorKind]float64{
		models.IndMACD: 1.6,
	})

	_, ok := st.Indicator(models.IndicatorKey{Kind: models.IndRSI, Timeframe: models.TF1m})
	assert.False(t, ok, "a kind missing from the update is no longer served")

	v, ok := st.Indicator(models.IndicatorKey{Kind: models.IndMACD, Timeframe: models.TF1m})
	require.True(t, ok)
	assert.Equal(t, 1.6, v)

	v, ok = st.Indicator(models.IndicatorKey{Kind: models.IndRSI, Timeframe: models.TF3m})
	require.True(t, ok, "other timeframes are untouched")
	assert.Equal(t, 60.0, v)
}

func TestRecordTradeCounters(t *testing.T) {
	r := NewRegistry(100)
	st := r.Ensure("BTCUSDT")

	st.RecordTrade(2.5)
	st.RecordTrade(-1.0)
	perf := st.RecordTrade(-0.5)

	assert.Equal(t, 1, perf.Wins)
	assert.Equal(t, 2, perf.Losses)
	assert.Equal(t, 2, perf.LossStreak)
	assert.InDelta(t, 1.0, perf.TotalProfit, 1e-9)

	perf = st.RecordTrade(0.3)
	assert.Equal(t, 0, perf.LossStreak, "a win resets the streak")
	assert.InDelta(t, 50.0, perf.WinRate(), 1e-9)
}
