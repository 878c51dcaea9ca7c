// Package strategy implements the pure signal-function strategy
// library. Every strategy is constructed once per variation from a
// flat parameter map and is otherwise stateless; gradient-boosted-tree
// strategies are the one exception, holding a read-only reference to a
// process-wide model registry.
package strategy

import (
	"fmt"
	"strings"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Strategy is the capability set every template implements.
type Strategy interface {
	TemplateID() string
	GenerateSignal(ticker string, candles []types.Candle, candleIndex int) types.StrategySignal
	MinDataPoints() int
	TargetTicker() (string, bool)
}

// Factory builds a Strategy instance from a parameter set.
type Factory func(parameters types.ParameterSet) Strategy

var registry = map[string]Factory{}

func register(templateID string, factory Factory) {
	registry[templateID] = factory
}

func init() {
	register("rsi", func(p types.ParameterSet) Strategy { return newRSIStrategy(p) })
	register("macd", func(p types.ParameterSet) Strategy { return newMACDStrategy(p) })
	register("williams_r", func(p types.ParameterSet) Strategy { return newWilliamsRStrategy(p) })
	register("adx", func(p types.ParameterSet) Strategy { return newADXStrategy(p) })
	register("atr", func(p types.ParameterSet) Strategy { return newATRStrategy(p) })
	register("psar", func(p types.ParameterSet) Strategy { return newPSARStrategy(p) })
	register("weighted_momentum", func(p types.ParameterSet) Strategy { return newWeightedMomentumStrategy(p) })
	register("buy_and_hold", func(p types.ParameterSet) Strategy { return newBuyAndHoldStrategy(p) })
}

// Create builds a strategy for templateID. Two prefixed forms dispatch
// specially: "lightgbm_<id>" resolves against the gradient-boosted-tree
// model registry (see gbt.go), and "buy_and_hold_<TICKER>" pins buy-and-
// hold to a single symbol.
func Create(templateID string, parameters types.ParameterSet) (Strategy, error) {
	if isLightGBMTemplate(templateID) {
		return newLightGBMStrategy(templateID, parameters)
	}
	if ticker := strings.TrimPrefix(templateID, "buy_and_hold_"); ticker != templateID && ticker != "" {
		return newPinnedBuyAndHoldStrategy(ticker, parameters), nil
	}
	factory, ok := registry[templateID]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown template %q", templateID)
	}
	return factory(parameters), nil
}

func meetsConfidenceThreshold(confidence, minConfidence float64) bool {
	return confidence >= minConfidence-1e-6
}
