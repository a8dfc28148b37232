package indicator

import "math"

// Default lookbacks. Comparisons may override the RSI period per
// (indicator, timeframe) through the strategy requirement set.
const (
	DefaultRSIPeriod  = 14
	DefaultStochLen   = 14
	DefaultSmoothK    = 3
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
	DefaultBollWindow = 20
	DefaultBollMult   = 2.0
)

// RSI computes the Wilder-smoothed relative strength index over the last
// values of closes. The first average is a simple mean of the first period
// deltas, every following value uses exponential smoothing. Not defined
// with fewer than period+1 closes.
func RSI(closes []float64, period int) (float64, bool) {
	rs := rsiSeries(closes, period)
	if len(rs) == 0 {
		return 0, false
	}
	return rs[len(rs)-1], true
}

// rsiSeries returns the RSI value for every index >= period, chronological.
func rsiSeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(closes)-period)
	out = append(out, rsiFromAverages(avgGain, avgLoss))

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiFromAverages(avgGain, avgLoss))
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// StochRSI min-max normalizes a rolling-window RSI series over stochLen and
// smooths the result with a smoothK-period simple moving average. Returns a
// 0-100 percentage. Needs rsiLen+stochLen+smoothK closes (one delta extra
// for the first RSI point).
func StochRSI(closes []float64, rsiLen, stochLen, smoothK int) (float64, bool) {
	if rsiLen <= 0 || stochLen <= 0 || smoothK <= 0 {
		return 0, false
	}
	if len(closes) < rsiLen+stochLen+smoothK {
		return 0, false
	}
	rs := rsiSeries(closes, rsiLen)
	if len(rs) < stochLen+smoothK-1 {
		return 0, false
	}

	// stochastic value for each of the last smoothK RSI points
	sum := 0.0
	for k := 0; k < smoothK; k++ {
		end := len(rs) - k
		window := rs[end-stochLen : end]
		lo, hi := window[0], window[0]
		for _, v := range window {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi == lo {
			sum += 100
			continue
		}
		sum += (window[stochLen-1] - lo) / (hi - lo) * 100
	}
	return sum / float64(smoothK), true
}

// emaSeries seeds with the first value, alpha = 2/(span+1).
func emaSeries(values []float64, span int) []float64 {
	if len(values) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD returns the MACD line (fast EMA - slow EMA) and its signal line.
// Needs at least slow+signal closes for the signal EMA to settle.
func MACD(closes []float64, fast, slow, signal int) (macd, sig float64, ok bool) {
	if len(closes) < slow+signal {
		return 0, 0, false
	}
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sigSeries := emaSeries(line, signal)
	return line[len(line)-1], sigSeries[len(sigSeries)-1], true
}

// Bollinger returns upper/middle/lower bands: SMA(window) ± mult*stddev.
func Bollinger(closes []float64, window int, mult float64) (upper, middle, lower float64, ok bool) {
	if window <= 0 || len(closes) < window {
		return 0, 0, 0, false
	}
	tail := closes[len(closes)-window:]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	mean := sum / float64(window)

	variance := 0.0
	for _, v := range tail {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(window))

	return mean + mult*std, mean, mean - mult*std, true
}
