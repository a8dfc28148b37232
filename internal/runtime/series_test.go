package runtime

import (
	"testing"

	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleAt(open int64, close float64) models.Candle {
	return models.Candle{Symbol: "BTCUSDT", Timeframe: models.TF1m, OpenTime: open, Close: close}
}

func TestSeriesUpsertReplacesSamePeriod(t *testing.T) {
	s := NewSeries(10)
	s.Upsert(candleAt(60_000, 100))
	s.Upsert(candleAt(60_000, 101))

	require.Equal(t, 1, s.Len())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 101.0, last.Close)
}

func TestSeriesUpsertDropsOlderPeriods(t *testing.T) {
	s := NewSeries(10)
	s.Upsert(candleAt(120_000, 100))
	s.Upsert(candleAt(60_000, 99))

	require.Equal(t, 1, s.Len())
	last, _ := s.Last()
	assert.Equal(t, int64(120_000), last.OpenTime)
}

func TestSeriesTrimsToLimit(t *testing.T) {
	s := NewSeries(3)
	for i := int64(0); i < 5; i++ {
		s.Upsert(candleAt(i*60_000, float64(i)))
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{2, 3, 4}, s.Closes())
}

func TestSeriesClosesWith(t *testing.T) {
	s := NewSeries(10)
	s.Upsert(candleAt(0, 1))
	s.Upsert(candleAt(60_000, 2))

	// same period: live close replaces the last slot without mutation
	got := s.ClosesWith(candleAt(60_000, 2.5))
	assert.Equal(t, []float64{1, 2.5}, got)
	assert.Equal(t, []float64{1, 2}, s.Closes())

	// new period: live close appends
	got = s.ClosesWith(candleAt(120_000, 3))
	assert.Equal(t, []float64{1, 2, 3}, got)
	assert.Equal(t, 2, s.Len())
}
