package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// rsiStrategy buys oversold and sells overbought, confidence scaling with
// distance past the threshold.
type rsiStrategy struct {
	singleTicker
	period        int
	oversold      float64
	overbought    float64
	minConfidence float64
}

func newRSIStrategy(p types.ParameterSet) *rsiStrategy {
	return &rsiStrategy{
		period:        params.GetUsizeMin(p, "rsiPeriod", 14, 2),
		oversold:      params.GetClamped(p, "rsiOversold", 30, 0, 100),
		overbought:    params.GetClamped(p, "rsiOverbought", 70, 0, 100),
		minConfidence: params.GetClamped(p, "minConfidence", 0, 0, 1),
	}
}

func (s *rsiStrategy) TemplateID() string { return "rsi" }

func (s *rsiStrategy) MinDataPoints() int { return s.period + 1 }

func (s *rsiStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	rsi, ok := indicators.RSIAt(candles, s.period, i)
	if !ok {
		return types.HoldSignal()
	}

	switch {
	case rsi < s.oversold:
		confidence := 1.0
		if s.oversold > 0 {
			confidence = (s.oversold-rsi)/s.oversold + 0.5
		}
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	case rsi > s.overbought:
		span := 100 - s.overbought
		confidence := 1.0
		if span > 0 {
			confidence = (rsi-s.overbought)/span + 0.5
		}
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}
