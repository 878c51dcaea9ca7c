package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// atrStrategy treats a volatility expansion (ATR rising above its 5-bar
// average by breakoutMultiplier) alongside the day's price direction as a
// breakout signal.
type atrStrategy struct {
	singleTicker
	period             int
	breakoutMultiplier float64
	minConfidence      float64
}

func newATRStrategy(p types.ParameterSet) *atrStrategy {
	return &atrStrategy{
		period:             params.GetUsizeMin(p, "atrPeriod", 14, 2),
		breakoutMultiplier: params.GetClamped(p, "atrBreakoutMultiplier", 1.5, 1.0, 5.0),
		minConfidence:      params.GetClamped(p, "minConfidence", 0, 0, 1),
	}
}

func (s *atrStrategy) TemplateID() string { return "atr" }

func (s *atrStrategy) MinDataPoints() int { return s.period + 5 }

func (s *atrStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	series := indicators.ComputeATRSeries(candles, s.period)
	atr := series.ATR[i]
	baseline := series.ATRSMA5[i]
	if atr == 0 || baseline == 0 {
		return types.HoldSignal()
	}
	if atr < baseline*s.breakoutMultiplier {
		return types.HoldSignal()
	}

	confidence := (atr/baseline - s.breakoutMultiplier) / s.breakoutMultiplier
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	open := candles[i].Open.InexactFloat64()
	close := candles[i].Close.InexactFloat64()
	switch {
	case close > open:
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	case close < open:
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}
