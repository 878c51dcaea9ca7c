package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// williamsRStrategy buys when %R signals oversold and sells when it signals
// overbought. %R ranges over [-100, 0].
type williamsRStrategy struct {
	singleTicker
	period        int
	oversold      float64
	overbought    float64
	minConfidence float64
}

func newWilliamsRStrategy(p types.ParameterSet) *williamsRStrategy {
	return &williamsRStrategy{
		period:        params.GetUsizeMin(p, "williamsRPeriod", 14, 2),
		oversold:      params.GetClamped(p, "williamsROversold", -80, -100, 0),
		overbought:    params.GetClamped(p, "williamsROverbought", -20, -100, 0),
		minConfidence: params.GetClamped(p, "minConfidence", 0, 0, 1),
	}
}

func (s *williamsRStrategy) TemplateID() string { return "williams_r" }

func (s *williamsRStrategy) MinDataPoints() int { return s.period }

func (s *williamsRStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	highest := candles[i].High.InexactFloat64()
	lowest := candles[i].Low.InexactFloat64()
	for j := i - s.period + 1; j <= i; j++ {
		h := candles[j].High.InexactFloat64()
		l := candles[j].Low.InexactFloat64()
		if h > highest {
			highest = h
		}
		if l < lowest {
			lowest = l
		}
	}
	denom := highest - lowest
	if denom == 0 {
		return types.HoldSignal()
	}
	close := candles[i].Close.InexactFloat64()
	r := (highest - close) / denom * -100

	switch {
	case r <= s.oversold:
		confidence := (s.oversold - r) / (s.oversold - (-100))
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	case r >= s.overbought:
		confidence := (r - s.overbought) / (0 - s.overbought)
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}
