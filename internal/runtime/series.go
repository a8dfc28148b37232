package runtime

import "trade_engine/internal/models"

// Series — bounded chronological candle history for one (symbol, timeframe).
// The last element may be the in-progress candle of the current period.
type Series struct {
	limit   int
	candles []models.Candle
}

func NewSeries(limit int) *Series {
	if limit <= 0 {
		limit = 100
	}
	return &Series{limit: limit}
}

// Upsert replaces the last candle when the period matches, appends
// otherwise, and trims to the history limit. Out-of-order candles older
// than the last period are dropped.
func (s *Series) Upsert(c models.Candle) {
	n := len(s.candles)
	if n > 0 {
		last := s.candles[n-1].OpenTime
		if c.OpenTime == last {
			s.candles[n-1] = c
			return
		}
		if c.OpenTime < last {
			return
		}
	}
	s.candles = append(s.candles, c)
	if len(s.candles) > s.limit {
		s.candles = s.candles[len(s.candles)-s.limit:]
	}
}

func (s *Series) Len() int { return len(s.candles) }

func (s *Series) Last() (models.Candle, bool) {
	if len(s.candles) == 0 {
		return models.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Closes returns the chronological close prices.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.Close
	}
	return out
}

// ClosesWith returns the close series as if live were the freshest candle:
// replacing the last entry when the period matches, appended otherwise.
// Used for intrabar indicator estimates without mutating history.
func (s *Series) ClosesWith(live models.Candle) []float64 {
	n := len(s.candles)
	if n > 0 && s.candles[n-1].OpenTime == live.OpenTime {
		out := s.Closes()
		out[n-1] = live.Close
		return out
	}
	out := make([]float64, 0, n+1)
	for _, c := range s.candles {
		out = append(out, c.Close)
	}
	return append(out, live.Close)
}
