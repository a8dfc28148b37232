package indicator

import (
	"testing"

	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closesRising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestRSIInsufficientHistory(t *testing.T) {
	// period+1 closes are the minimum; one less must stay absent
	_, ok := RSI(closesRising(14), 14)
	assert.False(t, ok)

	_, ok = RSI(closesRising(15), 14)
	assert.True(t, ok)
}

func TestRSIMonotonicSeries(t *testing.T) {
	v, ok := RSI(closesRising(30), 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v, "only gains means RSI 100")

	falling := make([]float64, 30)
	for i := range falling {
		falling[i] = 200 - float64(i)
	}
	v, ok = RSI(falling, 14)
	require.True(t, ok)
	assert.Equal(t, 0.0, v, "only losses means RSI 0")
}

func TestRSIFlatSeries(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 42
	}
	v, ok := RSI(flat, 14)
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}

func TestRSIKnownSequence(t *testing.T) {
	closes := []float64{10, 11, 10, 12, 11, 13}
	v, ok := RSI(closes, 2)
	require.True(t, ok)
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 100.0)
}

func TestStochRSIRange(t *testing.T) {
	closes := []float64{
		44, 47, 45, 50, 48, 52, 49, 55, 53, 58,
		54, 60, 57, 63, 59, 66, 62, 70, 65, 72,
		68, 75, 71, 78, 74, 80, 76, 82, 79, 85,
		81, 88, 84, 90,
	}
	v, ok := StochRSI(closes, 14, 14, 3)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)

	_, ok = StochRSI(closes[:30], 14, 14, 3)
	assert.False(t, ok, "needs rsiLen+stochLen+smoothK closes")
}

func TestMACDLookback(t *testing.T) {
	_, _, ok := MACD(closesRising(34), 12, 26, 9)
	assert.False(t, ok)

	macd, sig, ok := MACD(closesRising(35), 12, 26, 9)
	require.True(t, ok)
	// a steadily rising series keeps the fast EMA above the slow one
	assert.Greater(t, macd, 0.0)
	assert.Greater(t, sig, 0.0)
}

func TestBollingerBands(t *testing.T) {
	up, mid, low, ok := Bollinger(closesRising(25), 20, 2.0)
	require.True(t, ok)
	assert.Greater(t, up, mid)
	assert.Greater(t, mid, low)

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 10
	}
	up, mid, low, ok = Bollinger(flat, 20, 2.0)
	require.True(t, ok)
	assert.Equal(t, 10.0, up)
	assert.Equal(t, 10.0, mid)
	assert.Equal(t, 10.0, low)
}

func TestComputeOnlyRequiredKinds(t *testing.T) {
	reqs := Requirements{
		{Kind: models.IndRSI, Timeframe: models.TF1m}: {Period: 14},
	}
	out := Compute(closesRising(50), models.TF1m, reqs)
	assert.Contains(t, out, models.IndRSI)
	assert.NotContains(t, out, models.IndMACD)
	assert.NotContains(t, out, models.IndBollingerMid)

	// a requirement on another timeframe computes nothing here
	out = Compute(closesRising(50), models.TF5m, reqs)
	assert.Empty(t, out)
}

func TestComputeAbsentBelowLookback(t *testing.T) {
	reqs := Requirements{
		{Kind: models.IndRSI, Timeframe: models.TF1m}:  {Period: 14},
		{Kind: models.IndMACD, Timeframe: models.TF1m}: {},
	}
	out := Compute(closesRising(10), models.TF1m, reqs)
	assert.Empty(t, out, "insufficient history is an absent value, not an error")
}

func TestRequirementsMergeKeepsLargerPeriod(t *testing.T) {
	key := models.IndicatorKey{Kind: models.IndRSI, Timeframe: models.TF3m}
	r := Requirements{key: {Period: 7}}
	r.Merge(Requirements{key: {Period: 14}})
	assert.Equal(t, 14, r[key].Period)

	r.Merge(Requirements{key: {Period: 2}})
	assert.Equal(t, 14, r[key].Period, "smaller lookback never shrinks the merged set")
}

func TestRequirementsTimeframes(t *testing.T) {
	r := Requirements{
		{Kind: models.IndRSI, Timeframe: models.TF1m}:      {},
		{Kind: models.IndStochRSI, Timeframe: models.TF1m}: {},
		{Kind: models.IndRSI, Timeframe: models.TF1h}:      {},
	}
	tfs := r.Timeframes()
	assert.Len(t, tfs, 2)
	assert.Contains(t, tfs, models.TF1m)
	assert.Contains(t, tfs, models.TF1h)
}
