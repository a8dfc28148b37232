package pipeline

import (
	"testing"
	"time"

	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushBufferAppendReportsCountAndOldest(t *testing.T) {
	b := newFlushBuffer()
	t0 := time.Now()

	count, oldest := b.append(models.Candle{Symbol: "A"}, t0)
	assert.Equal(t, 1, count)
	assert.Equal(t, t0, oldest)

	count, oldest = b.append(models.Candle{Symbol: "B"}, t0.Add(time.Second))
	assert.Equal(t, 2, count)
	assert.Equal(t, t0, oldest, "oldest stays at the first pending item")
}

func TestFlushBufferDrainEmpties(t *testing.T) {
	b := newFlushBuffer()
	b.append(models.Candle{Symbol: "A"}, time.Now())
	b.append(models.Candle{Symbol: "B"}, time.Now())

	b.lock()
	items := b.drain()
	b.unlock()
	require.Len(t, items, 2)

	b.lock()
	assert.Empty(t, b.drain())
	b.unlock()
}

func TestFlushBufferTryLockTimesOut(t *testing.T) {
	b := newFlushBuffer()
	b.lock()

	start := time.Now()
	ok := b.tryLock(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	b.unlock()
	require.True(t, b.tryLock(20*time.Millisecond))
	b.unlock()
}

func TestSnapshotFromKeepsAbsentValuesNil(t *testing.T) {
	c := models.Candle{Symbol: "BTCUSDT", Timeframe: models.TF3m, OpenTime: 180_000}
	snap := snapshotFrom(c, map[models.IndicatorKind]float64{
		models.IndRSI:  42.5,
		models.IndMACD: -0.3,
	})

	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, models.TF3m, snap.Timeframe)
	require.NotNil(t, snap.RSI)
	assert.Equal(t, 42.5, *snap.RSI)
	require.NotNil(t, snap.MACD)
	assert.Equal(t, -0.3, *snap.MACD)
	assert.Nil(t, snap.StochRSI)
	assert.Nil(t, snap.BollingerUpper)
}
