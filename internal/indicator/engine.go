package indicator

import (
	"trade_engine/internal/models"
)

// Params tunes one required indicator. Zero values fall back to defaults.
type Params struct {
	Period int // RSI / StochRSI base period
}

func (p Params) rsiPeriod() int {
	if p.Period > 0 {
		return p.Period
	}
	return DefaultRSIPeriod
}

// Requirements — the (kind, timeframe) pairs one strategy needs, derived by
// walking its test trees. Gates all indicator work on the hot path.
type Requirements map[models.IndicatorKey]Params

// Timeframes returns every timeframe named by at least one requirement.
func (r Requirements) Timeframes() []models.Timeframe {
	seen := map[models.Timeframe]bool{}
	out := []models.Timeframe{}
	for k := range r {
		if !seen[k.Timeframe] {
			seen[k.Timeframe] = true
			out = append(out, k.Timeframe)
		}
	}
	return out
}

// Merge folds other into r. Conflicting periods for the same key keep the
// larger lookback so every declaring strategy gets enough history.
func (r Requirements) Merge(other Requirements) {
	for k, p := range other {
		if cur, ok := r[k]; !ok || p.Period > cur.Period {
			r[k] = p
		}
	}
}

// Compute evaluates the required indicator kinds for one timeframe over a
// chronological close series. Kinds without enough history are simply
// absent from the result — that is a normal "not yet" state, never an error.
func Compute(closes []float64, tf models.Timeframe, reqs Requirements) map[models.IndicatorKind]float64 {
	out := make(map[models.IndicatorKind]float64)

	need := func(kind models.IndicatorKind) (Params, bool) {
		p, ok := reqs[models.IndicatorKey{Kind: kind, Timeframe: tf}]
		return p, ok
	}

	if p, ok := need(models.IndRSI); ok {
		if v, ok := RSI(closes, p.rsiPeriod()); ok {
			out[models.IndRSI] = v
		}
	}
	if p, ok := need(models.IndStochRSI); ok {
		if v, ok := StochRSI(closes, p.rsiPeriod(), DefaultStochLen, DefaultSmoothK); ok {
			out[models.IndStochRSI] = v
		}
	}
	_, needMACD := need(models.IndMACD)
	_, needSignal := need(models.IndMACDSignal)
	if needMACD || needSignal {
		if line, sig, ok := MACD(closes, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal); ok {
			out[models.IndMACD] = line
			out[models.IndMACDSignal] = sig
		}
	}
	_, needUp := need(models.IndBollingerUp)
	_, needMid := need(models.IndBollingerMid)
	_, needLow := need(models.IndBollingerLow)
	if needUp || needMid || needLow {
		if up, mid, low, ok := Bollinger(closes, DefaultBollWindow, DefaultBollMult); ok {
			out[models.IndBollingerUp] = up
			out[models.IndBollingerMid] = mid
			out[models.IndBollingerLow] = low
		}
	}
	return out
}
