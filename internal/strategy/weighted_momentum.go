package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// weightedMomentumStrategy blends rate-of-change over several lookback
// windows into a single weighted momentum score, weighting shorter windows
// more heavily.
type weightedMomentumStrategy struct {
	singleTicker
	shortPeriod   int
	mediumPeriod  int
	longPeriod    int
	buyThreshold  float64
	sellThreshold float64
	minConfidence float64
}

func newWeightedMomentumStrategy(p types.ParameterSet) *weightedMomentumStrategy {
	return &weightedMomentumStrategy{
		shortPeriod:   params.GetUsizeMin(p, "momentumShortPeriod", 10, 1),
		mediumPeriod:  params.GetUsizeMin(p, "momentumMediumPeriod", 30, 2),
		longPeriod:    params.GetUsizeMin(p, "momentumLongPeriod", 90, 3),
		buyThreshold:  params.GetClamped(p, "momentumBuyThreshold", 0.03, 0, 1),
		sellThreshold: params.GetClamped(p, "momentumSellThreshold", -0.03, -1, 0),
		minConfidence: params.GetClamped(p, "minConfidence", 0, 0, 1),
	}
}

func (s *weightedMomentumStrategy) TemplateID() string { return "weighted_momentum" }

func (s *weightedMomentumStrategy) MinDataPoints() int { return s.longPeriod + 1 }

func (s *weightedMomentumStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	closes := closesUpTo(candles, i)

	shortROC, shortOK := indicators.ROC(closes, s.shortPeriod, i)
	mediumROC, mediumOK := indicators.ROC(closes, s.mediumPeriod, i)
	longROC, longOK := indicators.ROC(closes, s.longPeriod, i)
	if !shortOK || !mediumOK || !longOK {
		return types.HoldSignal()
	}

	const shortWeight, mediumWeight, longWeight = 0.5, 0.3, 0.2
	score := shortROC*shortWeight + mediumROC*mediumWeight + longROC*longWeight

	switch {
	case score >= s.buyThreshold:
		confidence := score / (s.buyThreshold * 3)
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	case score <= s.sellThreshold:
		confidence := score / (s.sellThreshold * 3)
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}
