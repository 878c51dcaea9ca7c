package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// buyAndHoldStrategy buys on the first available candle and never
// sells, serving as the simulator's baseline comparison. A
// "buy_and_hold_<TICKER>" template id pins the strategy to that one
// symbol; the bare template buys everything it is shown.
type buyAndHoldStrategy struct {
	minConfidence float64
	targetTicker  string
}

func newBuyAndHoldStrategy(p types.ParameterSet) *buyAndHoldStrategy {
	return &buyAndHoldStrategy{
		minConfidence: params.GetClamped(p, "minConfidence", 0, 0, 1),
	}
}

func newPinnedBuyAndHoldStrategy(ticker string, p types.ParameterSet) *buyAndHoldStrategy {
	s := newBuyAndHoldStrategy(p)
	s.targetTicker = ticker
	return s
}

func (s *buyAndHoldStrategy) TemplateID() string {
	if s.targetTicker != "" {
		return "buy_and_hold_" + s.targetTicker
	}
	return "buy_and_hold"
}

func (s *buyAndHoldStrategy) TargetTicker() (string, bool) {
	return s.targetTicker, s.targetTicker != ""
}

func (s *buyAndHoldStrategy) MinDataPoints() int { return 1 }

// GenerateSignal always answers Buy for an admissible ticker: the position
// opens on the first candle the simulator evaluates and, if an exit rule
// ever closes it, re-opens on the next.
func (s *buyAndHoldStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if s.targetTicker != "" && ticker != s.targetTicker {
		return types.HoldSignal()
	}
	if meetsConfidenceThreshold(1, s.minConfidence) {
		return types.BuySignal(1)
	}
	return types.HoldSignal()
}
