package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func adxCandle(day int, close float64) types.Candle {
	return types.Candle{
		Ticker:       "AAA",
		Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:         decimal.NewFromFloat(close),
		High:         decimal.NewFromFloat(close * 1.02),
		Low:          decimal.NewFromFloat(close * 0.98),
		Close:        decimal.NewFromFloat(close),
		VolumeShares: 1_000_000,
	}
}

func TestADXStrategy_HoldsBeforeMinDataPoints(t *testing.T) {
	s := newADXStrategy(types.ParameterSet{"adxPeriod": 14})
	candles := make([]types.Candle, 5)
	for i := range candles {
		candles[i] = adxCandle(i, 100)
	}
	got := s.GenerateSignal("AAA", candles, len(candles)-1)
	if got.Action != types.ActionHold {
		t.Fatalf("GenerateSignal() = %+v, want hold before warm-up", got)
	}
}

func TestADXStrategy_BuysOnSustainedUptrend(t *testing.T) {
	s := newADXStrategy(types.ParameterSet{"adxPeriod": 14, "adxTrendThreshold": 20.0})
	n := 120
	candles := make([]types.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price *= 1.01
		candles[i] = adxCandle(i, price)
	}
	got := s.GenerateSignal("AAA", candles, n-1)
	if got.Action != types.ActionBuy {
		t.Fatalf("GenerateSignal() = %+v, want buy on a sustained uptrend", got)
	}
}

func TestADXStrategy_EMAFilterBlocksCounterTrendBuy(t *testing.T) {
	// Price drifts up overall (to clear the +DI/-DI trend check) but sits
	// below a long EMA filter on the evaluation day, which should veto the
	// buy signal that the raw ADX/DI reading would otherwise produce.
	s := newADXStrategy(types.ParameterSet{
		"adxPeriod":          14,
		"adxTrendThreshold":  10.0,
		"adxEmaFilterPeriod": 200.0,
	})
	n := 220
	candles := make([]types.Candle, n)
	price := 200.0
	for i := 0; i < n; i++ {
		if i < n-5 {
			price *= 1.02
		} else {
			price *= 0.9 // sharp pullback below the slow EMA right before evaluation
		}
		candles[i] = adxCandle(i, price)
	}
	got := s.GenerateSignal("AAA", candles, n-1)
	if got.Action == types.ActionBuy {
		t.Fatalf("GenerateSignal() = %+v, want EMA filter to veto the buy during the pullback", got)
	}
}

func TestADXStrategy_WeaknessExitSellsAfterConsecutiveWeakBars(t *testing.T) {
	s := newADXStrategy(types.ParameterSet{
		"adxPeriod":         14,
		"adxTrendThreshold": 25.0,
		"adxWeaknessBars":   3.0,
	})
	n := 120
	candles := make([]types.Candle, n)
	for i := 0; i < n; i++ {
		// An alternating, directionless series keeps ADX small but nonzero
		// throughout, so once past warm-up every bar counts toward the
		// weakness streak. (A perfectly flat series would pin ADX at the
		// zero unavailable-sentinel and never trigger the exit.)
		candles[i] = adxCandle(i, 100+2*float64(i%2))
	}
	got := s.GenerateSignal("AAA", candles, n-1)
	if got.Action != types.ActionSell {
		t.Fatalf("GenerateSignal() = %+v, want a weakness-exit sell on a flat, trendless series", got)
	}
}

func TestADXStrategy_MinDataPointsAccountsForWeaknessLookback(t *testing.T) {
	s := newADXStrategy(types.ParameterSet{"adxPeriod": 14, "adxWeaknessBars": 3.0})
	want := 2*14 + 1 + 3
	if got := s.MinDataPoints(); got != want {
		t.Fatalf("MinDataPoints() = %d, want %d", got, want)
	}
}
