package aggregate

import (
	"trade_engine/internal/models"
	"trade_engine/internal/runtime"
)

// Step builds one higher timeframe from a fixed number of candles of the
// immediately lower one, so each tick costs O(ladder depth) instead of
// re-reading the whole base-resolution span.
type Step struct {
	Source models.Timeframe
	Target models.Timeframe
	Factor int
}

// DefaultLadder covers the persisted timeframes, 1m upward.
var DefaultLadder = []Step{
	{Source: models.TF1m, Target: models.TF3m, Factor: 3},
	{Source: models.TF1m, Target: models.TF5m, Factor: 5},
	{Source: models.TF3m, Target: models.TF15m, Factor: 5},
	{Source: models.TF15m, Target: models.TF1h, Factor: 4},
	{Source: models.TF1h, Target: models.TF4h, Factor: 4},
	{Source: models.TF4h, Target: models.TF1d, Factor: 6},
}

// Fold extends (or seeds) the target-timeframe candle covering src and
// reports whether that candle is now complete: it is, exactly when the next
// expected source period aligns to a different target period.
func Fold(series *runtime.Series, step Step, src models.Candle) (models.Candle, bool) {
	periodStart := step.Target.AlignMillis(src.OpenTime)

	cur, ok := series.Last()
	if !ok || cur.OpenTime != periodStart {
		cur = models.Candle{
			Symbol:    src.Symbol,
			Timeframe: step.Target,
			OpenTime:  periodStart,
			Open:      src.Open,
			High:      src.High,
			Low:       src.Low,
			Close:     src.Close,
			Volume:    src.Volume,
		}
	} else {
		if src.High > cur.High {
			cur.High = src.High
		}
		if src.Low < cur.Low {
			cur.Low = src.Low
		}
		cur.Close = src.Close
		cur.Volume += src.Volume
	}
	series.Upsert(cur)

	nextStart := src.OpenTime + step.Source.Millis()
	closed := step.Target.AlignMillis(nextStart) != periodStart
	return cur, closed
}

// NeededTimeframes closes required over ladder dependencies: a timeframe is
// needed when a strategy requires it or when a needed timeframe is built
// from it.
func NeededTimeframes(required map[models.Timeframe]bool, ladder []Step) map[models.Timeframe]bool {
	needed := make(map[models.Timeframe]bool, len(required))
	for tf, v := range required {
		if v {
			needed[tf] = true
		}
	}
	// ladder is ordered low to high, so walk it backwards to propagate
	for i := len(ladder) - 1; i >= 0; i-- {
		if needed[ladder[i].Target] {
			needed[ladder[i].Source] = true
		}
	}
	return needed
}

// Run folds one closed base candle up the ladder and returns every higher
// timeframe candle that closed as a result, in ladder order. Steps whose
// target serves no required timeframe are skipped.
func Run(state *runtime.SymbolState, base models.Candle, required map[models.Timeframe]bool, ladder []Step) []models.Candle {
	needed := NeededTimeframes(required, ladder)

	closedBy := map[models.Timeframe][]models.Candle{
		base.Timeframe: {base},
	}
	var out []models.Candle
	for _, step := range ladder {
		if !needed[step.Target] {
			continue
		}
		series := state.Series(step.Target)
		for _, src := range closedBy[step.Source] {
			if cur, done := Fold(series, step, src); done {
				closedBy[step.Target] = append(closedBy[step.Target], cur)
				out = append(out, cur)
			}
		}
	}
	return out
}
