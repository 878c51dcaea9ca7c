package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// rsi25Candles builds a series whose 14-period Wilder RSI is exactly 25
// from index 14 onward: seven +1 moves and seven -3 moves give
// avgGain/avgLoss = 0.5/1.5, and the flat tail decays both averages by the
// same factor, leaving the ratio (and the RSI) unchanged.
func rsi25Candles(n int) []types.Candle {
	closes := []float64{100}
	price := 100.0
	for i := 0; i < 7; i++ {
		price += 1
		closes = append(closes, price)
		price -= 3
		closes = append(closes, price)
	}
	for len(closes) < n {
		closes = append(closes, price)
	}

	candles := make([]types.Candle, n)
	for i := 0; i < n; i++ {
		c := closes[i]
		candles[i] = types.Candle{
			Ticker:       "AAA",
			Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:         decimal.NewFromFloat(c),
			High:         decimal.NewFromFloat(c + 2),
			Low:          decimal.NewFromFloat(c - 2),
			Close:        decimal.NewFromFloat(c),
			VolumeShares: 1_000_000,
		}
	}
	return candles
}

func TestRSIAt_KnownValue(t *testing.T) {
	candles := rsi25Candles(21)
	got, ok := indicators.RSIAt(candles, 14, 20)
	if !ok {
		t.Fatal("RSIAt() ok = false with sufficient history")
	}
	if math.Abs(got-25) > 1e-9 {
		t.Fatalf("RSIAt() = %v, want 25", got)
	}
}

func TestRSIStrategy_OversoldBuyConfidence(t *testing.T) {
	s := newRSIStrategy(types.ParameterSet{
		"rsiPeriod":     14,
		"rsiOversold":   30,
		"rsiOverbought": 70,
		"minConfidence": 0.6,
	})
	candles := rsi25Candles(21)

	got := s.GenerateSignal("AAA", candles, 20)
	if got.Action != types.ActionBuy {
		t.Fatalf("GenerateSignal() = %+v, want buy at RSI 25 vs oversold 30", got)
	}
	want := (30.0-25.0)/30.0 + 0.5
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", got.Confidence, want)
	}
}

func TestRSIStrategy_ConfidenceGateBlocksWeakSignal(t *testing.T) {
	s := newRSIStrategy(types.ParameterSet{
		"rsiPeriod":     14,
		"rsiOversold":   30,
		"rsiOverbought": 70,
		"minConfidence": 0.9,
	})
	candles := rsi25Candles(21)

	got := s.GenerateSignal("AAA", candles, 20)
	if got.Action != types.ActionHold {
		t.Fatalf("GenerateSignal() = %+v, want hold when confidence 0.667 is below the 0.9 gate", got)
	}
}

func TestRSIStrategy_HoldsBeforeWarmup(t *testing.T) {
	s := newRSIStrategy(types.ParameterSet{"rsiPeriod": 14})
	candles := rsi25Candles(10)
	if got := s.GenerateSignal("AAA", candles, 9); got.Action != types.ActionHold {
		t.Fatalf("GenerateSignal() = %+v, want hold below min data points", got)
	}
}
