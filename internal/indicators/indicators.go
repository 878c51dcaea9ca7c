// Package indicators provides pure, stateless technical indicator
// calculations over candle closes/highs/lows. Every function is a function
// of the slice passed to it alone; none retain state between calls, so
// callers are responsible for re-slicing candles[:i+1] to respect a
// strategy's "no peeking ahead" rule.
package indicators

import (
	"math"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func toF(d decimal.Decimal) float64 { return d.InexactFloat64() }

// SMA returns the simple moving average of the last `period` closes ending
// at index i (inclusive). Returns (0, false) if there isn't enough history.
func SMA(closes []float64, period, i int) (float64, bool) {
	if period <= 0 || i+1 < period {
		return 0, false
	}
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += closes[j]
	}
	return sum / float64(period), true
}

// EMASeries computes the exponential moving average over the full series,
// seeded by the SMA of the first `period` values (Wilder-compatible seed).
// Entries before the seed index are zero and should be treated unavailable.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[period-1] = seed
	multiplier := 2.0 / float64(period+1)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*multiplier + prev
		out[i] = prev
	}
	return out
}

// ATRSeries holds the true range, ATR (Wilder-smoothed) and a 5-bar SMA of
// ATR, all aligned to the input candle slice.
type ATRSeries struct {
	ATR     []float64
	ATRSMA5 []float64
}

// ComputeATRSeries computes Wilder-smoothed ATR over period, plus a 5-bar
// simple moving average of the ATR values, as required by the ATR strategy.
func ComputeATRSeries(candles []types.Candle, period int) ATRSeries {
	n := len(candles)
	series := ATRSeries{ATR: make([]float64, n), ATRSMA5: make([]float64, n)}
	if n == 0 || period <= 0 {
		return series
	}

	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		high := toF(candles[i].High)
		low := toF(candles[i].Low)
		if i == 0 {
			tr[i] = high - low
			continue
		}
		prevClose := toF(candles[i-1].Close)
		tr[i] = math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	}

	if n < period {
		return series
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	series.ATR[period-1] = atr
	for i := period; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		series.ATR[i] = atr
	}

	for i := period - 1; i < n; i++ {
		if v, ok := SMA(series.ATR[:i+1], 5, i); ok {
			series.ATRSMA5[i] = v
		}
	}
	return series
}

// ADXOutput is the ADX indicator's output at one index: the ADX value plus
// its constituent +DI/-DI.
type ADXOutput struct {
	ADX float64
	PDI float64
	MDI float64
}

// ADX computes Wilder's ADX/+DI/-DI over the whole series; entries before
// 2*period are zero-valued and unavailable.
func ADX(highs, lows, closes []float64, period int) []ADXOutput {
	n := len(highs)
	out := make([]ADXOutput, n)
	if period <= 0 || n <= period {
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}

	smoothedTR := wilderSmooth(tr, period)
	smoothedPlusDM := wilderSmooth(plusDM, period)
	smoothedMinusDM := wilderSmooth(minusDM, period)

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if smoothedTR[i] == 0 {
			continue
		}
		pdi := 100 * smoothedPlusDM[i] / smoothedTR[i]
		mdi := 100 * smoothedMinusDM[i] / smoothedTR[i]
		out[i].PDI = pdi
		out[i].MDI = mdi
		denom := pdi + mdi
		if denom != 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / denom
		}
	}

	start := 2 * period
	if start >= n {
		return out
	}
	sum := 0.0
	for i := period; i < start; i++ {
		sum += dx[i]
	}
	adx := sum / float64(period)
	out[start-1].ADX = adx
	for i := start; i < n; i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		out[i].ADX = adx
	}
	return out
}

func wilderSmooth(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n <= period {
		return out
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += values[i]
	}
	out[period] = sum
	for i := period + 1; i < n; i++ {
		out[i] = out[i-1] - out[i-1]/float64(period) + values[i]
	}
	return out
}

// RSIAt computes the Wilder RSI ending at index i (inclusive), given period.
// Returns (50, false) when there isn't enough history (the caller's
// min_data_points gate is expected to have already filtered this case;
// 50 is the neutral midpoint fallback).
func RSIAt(candles []types.Candle, period, i int) (float64, bool) {
	if i+1 < period+1 {
		return 50, false
	}
	var gainSum, lossSum float64
	for j := 1; j <= period; j++ {
		change := toF(candles[j].Close) - toF(candles[j-1].Close)
		if change > 0 {
			gainSum += change
		} else {
			lossSum += -change
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for j := period + 1; j <= i; j++ {
		change := toF(candles[j].Close) - toF(candles[j-1].Close)
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// MACD computes the MACD line, signal line, and histogram for the given
// closing-price series (12/26/9 default periods).
func MACD(closes []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64) {
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	if len(closes) < slow {
		return nil, nil, nil
	}

	macd := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macd = append(macd, fastEMA[i]-slowEMA[i])
	}
	sig := EMASeries(macd, signal)
	if len(macd) < signal {
		return macd, nil, nil
	}
	sigAligned := sig[signal-1:]
	macdAligned := macd[signal-1:]
	hist := make([]float64, len(macdAligned))
	for i := range macdAligned {
		hist[i] = macdAligned[i] - sigAligned[i]
	}
	return macdAligned, sigAligned, hist
}

// ROC returns the rate of change over period ending at index i, as a
// fraction (not a percentage).
func ROC(closes []float64, period, i int) (float64, bool) {
	if period <= 0 || i < period {
		return 0, false
	}
	past := closes[i-period]
	if past == 0 {
		return 0, false
	}
	return (closes[i] - past) / past, true
}
