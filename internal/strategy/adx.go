package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// adxStrategy trades trend strength and direction: buys when ADX confirms a
// strong uptrend (+DI above -DI) and, if enabled, price is above its EMA
// trend filter; sells on the symmetric downtrend case, or as a "weakness
// exit" once ADX has stayed below trendThreshold for weaknessBars
// consecutive candles, signaling a trend that has run out of steam.
type adxStrategy struct {
	singleTicker
	period          int
	trendThreshold  float64
	minConfidence   float64
	emaFilterPeriod int // 0 disables the EMA trend filter
	weaknessBars    int // 0 disables the weakness exit
}

func newADXStrategy(p types.ParameterSet) *adxStrategy {
	return &adxStrategy{
		period:          params.GetUsizeMin(p, "adxPeriod", 14, 2),
		trendThreshold:  params.GetClamped(p, "adxTrendThreshold", 25, 0, 100),
		minConfidence:   params.GetClamped(p, "minConfidence", 0, 0, 1),
		emaFilterPeriod: params.GetUsizeMin(p, "adxEmaFilterPeriod", 0, 0),
		weaknessBars:    params.GetUsizeMin(p, "adxWeaknessBars", 3, 0),
	}
}

func (s *adxStrategy) TemplateID() string { return "adx" }

// MinDataPoints requires enough history for ADX's 2*period warm-up, plus
// the EMA filter's own warm-up when enabled, plus the weakness lookback so
// a full run of weaknessBars consecutive ADX values is always available
// once MinDataPoints is satisfied.
func (s *adxStrategy) MinDataPoints() int {
	min := 2*s.period + 1 + s.weaknessBars
	if s.emaFilterPeriod > min {
		min = s.emaFilterPeriod
	}
	return min
}

func (s *adxStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	highs, lows, closes := highsLowsClosesUpTo(candles, i)
	out := indicators.ADX(highs, lows, closes, s.period)
	current := out[i]

	if weak := s.weaknessExit(out, i); weak {
		return types.SellSignal(s.minConfidence)
	}

	if current.ADX == 0 || current.ADX < s.trendThreshold {
		return types.HoldSignal()
	}

	confidence := (current.ADX - s.trendThreshold) / (100 - s.trendThreshold)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	if s.emaFilterPeriod > 0 && !s.passesEMAFilter(closes, i, current.PDI > current.MDI) {
		return types.HoldSignal()
	}

	switch {
	case current.PDI > current.MDI:
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	case current.MDI > current.PDI:
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}

// weaknessExit reports whether ADX has printed weaknessBars consecutive
// values below trendThreshold ending at i. A zero ADX entry means "ADX not
// yet available" (indicators.ADX's unavailable-prefix sentinel), so any
// overlap between that prefix and the lookback window is treated as "not
// weak" rather than a false exit signal.
func (s *adxStrategy) weaknessExit(out []indicators.ADXOutput, i int) bool {
	if s.weaknessBars <= 0 {
		return false
	}
	if i+1 < s.weaknessBars {
		return false
	}
	for j := i - s.weaknessBars + 1; j <= i; j++ {
		if out[j].ADX == 0 {
			return false
		}
		if out[j].ADX >= s.trendThreshold {
			return false
		}
	}
	return true
}

// passesEMAFilter confirms the candidate direction against price's position
// relative to its EMA: a buy requires close above the EMA, a sell requires
// close below it.
func (s *adxStrategy) passesEMAFilter(closes []float64, i int, wantUptrend bool) bool {
	ema := indicators.EMASeries(closes, s.emaFilterPeriod)
	if i >= len(ema) || ema[i] == 0 {
		return true
	}
	if wantUptrend {
		return closes[i] >= ema[i]
	}
	return closes[i] <= ema[i]
}
