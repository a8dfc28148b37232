package models

import "time"

// Timeframe — candle resolution supported by the pipeline.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// BaseTimeframe is the stream resolution everything else is folded from.
const BaseTimeframe = TF1m

var timeframeDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF3m:  3 * time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// Duration returns the span of one candle, 0 for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Millis returns the span in milliseconds, matching exchange timestamps.
func (tf Timeframe) Millis() int64 {
	return timeframeDurations[tf].Milliseconds()
}

// AlignMillis maps a ms timestamp to the period start containing it.
func (tf Timeframe) AlignMillis(ts int64) int64 {
	span := tf.Millis()
	if span <= 0 {
		return ts
	}
	return ts - ts%span
}

// Candle — OHLCV aggregate uniquely identified by (Symbol, Timeframe, OpenTime).
// OpenTime is the ms period start, aligned to the timeframe boundary.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Key identifies a candle row in the store.
type CandleKey struct {
	Symbol    string
	Timeframe Timeframe
	OpenTime  int64
}

func (c Candle) Key() CandleKey {
	return CandleKey{Symbol: c.Symbol, Timeframe: c.Timeframe, OpenTime: c.OpenTime}
}

// Tick — normalized stream event pushed by the socket fan-in onto the queue.
// IsClosed marks the final update of the candle's period.
type Tick struct {
	Symbol     string
	Candle     Candle
	IsClosed   bool
	ReceivedAt time.Time
}

// IndicatorKind enumerates the indicators the engine can compute.
type IndicatorKind string

const (
	IndRSI            IndicatorKind = "rsi"
	IndStochRSI       IndicatorKind = "stoch_rsi"
	IndMACD           IndicatorKind = "macd"
	IndMACDSignal     IndicatorKind = "macd_signal"
	IndBollingerUp    IndicatorKind = "bollinger_upper"
	IndBollingerMid   IndicatorKind = "bollinger_middle"
	IndBollingerLow   IndicatorKind = "bollinger_lower"
)

// IndicatorKey addresses one live indicator value on a symbol.
type IndicatorKey struct {
	Kind      IndicatorKind
	Timeframe Timeframe
}

// IndicatorSnapshot — persisted indicator values for one closed candle.
// Absent values stay nil.
type IndicatorSnapshot struct {
	Symbol         string
	Timeframe      Timeframe
	OpenTime       int64
	RSI            *float64
	StochRSI       *float64
	MACD           *float64
	MACDSignal     *float64
	BollingerUpper *float64
	BollingerMid   *float64
	BollingerLower *float64
}
