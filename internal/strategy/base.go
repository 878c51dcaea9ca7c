package strategy

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// closesUpTo returns the closing prices of candles[0..=i] as float64.
func closesUpTo(candles []types.Candle, i int) []float64 {
	out := make([]float64, i+1)
	for j := 0; j <= i; j++ {
		out[j] = candles[j].Close.InexactFloat64()
	}
	return out
}

func highsLowsClosesUpTo(candles []types.Candle, i int) (highs, lows, closes []float64) {
	highs = make([]float64, i+1)
	lows = make([]float64, i+1)
	closes = make([]float64, i+1)
	for j := 0; j <= i; j++ {
		highs[j] = candles[j].High.InexactFloat64()
		lows[j] = candles[j].Low.InexactFloat64()
		closes[j] = candles[j].Close.InexactFloat64()
	}
	return
}

// singleTicker is embedded by every strategy that targets whatever ticker
// it's asked to evaluate (i.e. all of them except buy-and-hold variants
// pinned to one symbol via parameters).
type singleTicker struct{}

func (singleTicker) TargetTicker() (string, bool) { return "", false }
