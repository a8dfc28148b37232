package service

import (
	"testing"

	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func klineFrame(closed bool) []byte {
	flag := "false"
	if closed {
		flag = "true"
	}
	return []byte(`{
		"e": "kline", "E": 1672515782136, "s": "BTCUSDT",
		"k": {
			"t": 1672515780000, "T": 1672515839999, "s": "BTCUSDT", "i": "1m",
			"o": "16500.10", "c": "16510.25", "h": "16512.00", "l": "16499.50",
			"v": "12.5", "x": ` + flag + `
		}
	}`)
}

func TestDecodeKlineEvent(t *testing.T) {
	tick, ok := decodeKlineEvent(klineFrame(true))
	require.True(t, ok)

	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.True(t, tick.IsClosed)
	assert.Equal(t, models.BaseTimeframe, tick.Candle.Timeframe)
	assert.Equal(t, int64(1672515780000), tick.Candle.OpenTime)
	assert.Equal(t, 16500.10, tick.Candle.Open)
	assert.Equal(t, 16512.00, tick.Candle.High)
	assert.Equal(t, 16499.50, tick.Candle.Low)
	assert.Equal(t, 16510.25, tick.Candle.Close)
	assert.Equal(t, 12.5, tick.Candle.Volume)
	assert.False(t, tick.ReceivedAt.IsZero())

	tick, ok = decodeKlineEvent(klineFrame(false))
	require.True(t, ok)
	assert.False(t, tick.IsClosed)
}

func TestDecodeIgnoresNonKlineFrames(t *testing.T) {
	for _, frame := range [][]byte{
		[]byte(`{"result": null, "id": 1}`),
		[]byte(`{"e": "trade", "s": "BTCUSDT"}`),
		[]byte(`not json`),
		[]byte(`{"e": "kline", "s": "BTCUSDT", "k": {"o": "not-a-number"}}`),
	} {
		_, ok := decodeKlineEvent(frame)
		assert.False(t, ok, "frame %s", frame)
	}
}

func TestSubscribeMessage(t *testing.T) {
	msg := subscribeMessage([]string{"BTCUSDT", "ethusdt"}, 2)
	assert.Equal(t, "SUBSCRIBE", msg.Method)
	assert.Equal(t, []string{"btcusdt@kline_1m", "ethusdt@kline_1m"}, msg.Params)
	assert.Equal(t, 3, msg.ID)
}

func TestShardOf(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E", "F", "G"}

	assert.Equal(t, []string{"A", "B", "C"}, shardOf(symbols, 0, 3))
	assert.Equal(t, []string{"D", "E", "F"}, shardOf(symbols, 1, 3))
	assert.Equal(t, []string{"G"}, shardOf(symbols, 2, 3))
	assert.Nil(t, shardOf(symbols, 3, 3))
}
