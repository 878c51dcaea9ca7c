package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// macdStrategy buys on a bullish MACD/signal-line crossover and sells on a
// bearish one.
type macdStrategy struct {
	singleTicker
	fast          int
	slow          int
	signal        int
	minConfidence float64
}

func newMACDStrategy(p types.ParameterSet) *macdStrategy {
	return &macdStrategy{
		fast:          params.GetUsizeMin(p, "macdFast", 12, 2),
		slow:          params.GetUsizeMin(p, "macdSlow", 26, 3),
		signal:        params.GetUsizeMin(p, "macdSignal", 9, 1),
		minConfidence: params.GetClamped(p, "minConfidence", 0, 0, 1),
	}
}

func (s *macdStrategy) TemplateID() string { return "macd" }

func (s *macdStrategy) MinDataPoints() int { return s.slow + s.signal + 1 }

func (s *macdStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	closes := closesUpTo(candles, i)
	_, _, hist := indicators.MACD(closes, s.fast, s.slow, s.signal)
	if len(hist) < 2 {
		return types.HoldSignal()
	}

	curr := hist[len(hist)-1]
	prev := hist[len(hist)-2]

	switch {
	case prev <= 0 && curr > 0:
		confidence := confidenceFromMagnitude(curr, closes[len(closes)-1])
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	case prev >= 0 && curr < 0:
		confidence := confidenceFromMagnitude(-curr, closes[len(closes)-1])
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}

// confidenceFromMagnitude expresses a histogram delta as 20 times its
// fraction of the current close, clamped to [0, 1].
func confidenceFromMagnitude(delta, price float64) float64 {
	if price == 0 {
		return 0
	}
	c := delta / price * 20
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
