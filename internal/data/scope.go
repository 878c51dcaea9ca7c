package data

import (
	"hash/fnv"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// validationHashBucket is the modulus used to carve a deterministic ~20%
// validation slice out of a ticker universe: a ticker's membership
// depends only on its own symbol, so adding or removing unrelated tickers
// never reshuffles which existing tickers are "training" vs
// "validation".
const validationHashBucket = 5

// TickerScopeOf reports whether ticker falls in the training or validation
// slice of the universe.
func TickerScopeOf(ticker string) types.TickerScope {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticker))
	if h.Sum32()%validationHashBucket == 0 {
		return types.ScopeValidation
	}
	return types.ScopeTraining
}

// FilterByScope returns the subset of candlesByTicker belonging to scope.
// types.ScopeAll returns candlesByTicker unchanged.
func FilterByScope(candlesByTicker map[string][]types.Candle, scope types.TickerScope) map[string][]types.Candle {
	if scope == types.ScopeAll {
		return candlesByTicker
	}
	out := make(map[string][]types.Candle, len(candlesByTicker))
	for ticker, candles := range candlesByTicker {
		if TickerScopeOf(ticker) == scope {
			out[ticker] = candles
		}
	}
	return out
}
