package backtester

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func mustCandle(ticker string, day int, close float64) types.Candle {
	return types.Candle{
		Ticker:       ticker,
		Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:         decimal.NewFromFloat(close),
		High:         decimal.NewFromFloat(close * 1.01),
		Low:          decimal.NewFromFloat(close * 0.99),
		Close:        decimal.NewFromFloat(close),
		VolumeShares: 1_000_000,
	}
}

// frictionless keeps every fee/slippage rate at zero so expected values
// reduce to closed-form arithmetic.
func frictionless() types.Settings {
	return types.Settings{}
}

func fullSizeConfig() types.EngineConfig {
	config := types.DefaultEngineConfig()
	config.InitialCapital = 10000
	config.TradeSizeRatio = 1.0
	config.StopLoss.Ratio = 1.0 // effectively disabled
	config.RawParameters = types.ParameterSet{}
	return config
}

func TestSimulator_BuyAndHold_ConstantUptrend(t *testing.T) {
	config := fullSizeConfig()
	sim := NewSimulator(nil, frictionless(), config)

	candles := make([]types.Candle, 252)
	for i := range candles {
		candles[i] = mustCandle("AAA", i, 100*math.Pow(1.001, float64(i)))
	}

	result, err := sim.Run("buy_and_hold", map[string][]types.Candle{"AAA": candles}, types.ScopeTraining)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantReturn := math.Pow(1.001, 251) - 1
	if got := result.Metrics.TotalReturn; math.Abs(got-wantReturn) > 1e-9 {
		t.Errorf("TotalReturn = %v, want %v", got, wantReturn)
	}

	periodDays := 251.0
	wantCAGR := math.Pow(1+wantReturn, 365/periodDays) - 1
	if got := result.Metrics.CAGR; math.Abs(got-wantCAGR) > 1e-9 {
		t.Errorf("CAGR = %v, want %v", got, wantCAGR)
	}

	if result.Metrics.MaxDrawdownRatio != 0 {
		t.Errorf("MaxDrawdownRatio = %v, want 0 on a monotone uptrend", result.Metrics.MaxDrawdownRatio)
	}
	if len(result.DailySnapshots) != 252 {
		t.Fatalf("expected 252 snapshots, got %d", len(result.DailySnapshots))
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly one force-closed trade, got %d", len(result.Trades))
	}
	if result.Trades[0].Status != types.TradeStatusClosed {
		t.Fatalf("expected trade force-closed, got status %q", result.Trades[0].Status)
	}
}

func TestSimulator_SnapshotIdentity(t *testing.T) {
	config := fullSizeConfig()
	config.TradeSizeRatio = 0.5
	sim := NewSimulator(nil, frictionless(), config)

	prices := []float64{100, 103, 101, 105, 102, 108}
	candles := make([]types.Candle, len(prices))
	for i, p := range prices {
		candles[i] = mustCandle("AAA", i, p)
	}

	result, err := sim.Run("buy_and_hold", map[string][]types.Candle{"AAA": candles}, types.ScopeAll)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	tolerance := decimal.NewFromFloat(1e-6 * config.InitialCapital)
	for i, snap := range result.DailySnapshots {
		sum := snap.Cash.Add(snap.PositionsValue)
		if snap.PortfolioValue.Sub(sum).Abs().GreaterThan(tolerance) {
			t.Errorf("snapshot %d: portfolio %s != cash %s + positions %s", i, snap.PortfolioValue, snap.Cash, snap.PositionsValue)
		}
	}
}

func TestSimulator_StopLossPercent(t *testing.T) {
	config := fullSizeConfig()
	config.StopLoss = types.StopLossConfig{Mode: types.StopLossPercent, Ratio: 0.05}
	sim := NewSimulator(nil, frictionless(), config)

	prices := []float64{100, 100, 94, 94, 94}
	candles := make([]types.Candle, len(prices))
	for i, p := range prices {
		candles[i] = mustCandle("AAA", i, p)
	}

	result, err := sim.Run("buy_and_hold", map[string][]types.Candle{"AAA": candles}, types.ScopeAll)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Trades) < 1 {
		t.Fatal("expected at least the stopped-out trade")
	}

	stopped := result.Trades[0]
	if stopped.ExitDate == nil || !stopped.ExitDate.Equal(candles[2].Date) {
		t.Fatalf("expected stop-loss exit on day 2, got %v", stopped.ExitDate)
	}
	if got, want := stopped.ExitPrice.InexactFloat64(), 94.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("exit price = %v, want %v", got, want)
	}
	// entry 100 x 100 shares, exit 94, no fees
	if got, want := stopped.PnL.InexactFloat64(), -600.0; math.Abs(got-want) > 1e-6 {
		t.Errorf("PnL = %v, want %v", got, want)
	}
}

func TestSimulator_SecondEntryRejectedWithoutCash(t *testing.T) {
	config := fullSizeConfig()
	sim := NewSimulator(nil, frictionless(), config)

	candlesByTicker := map[string][]types.Candle{
		"AAA": {mustCandle("AAA", 0, 100), mustCandle("AAA", 1, 101)},
		"BBB": {mustCandle("BBB", 0, 50), mustCandle("BBB", 1, 51)},
	}

	result, err := sim.Run("buy_and_hold", candlesByTicker, types.ScopeAll)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	day0 := result.DailySnapshots[0]
	if day0.ConcurrentTrades != 1 {
		t.Errorf("expected 1 open position after day 0, got %d", day0.ConcurrentTrades)
	}
	if day0.MissedTradesDueToCash != 1 {
		t.Errorf("expected second same-day entry to be rejected for cash, got missed = %d", day0.MissedTradesDueToCash)
	}
	// lexicographic entry order: AAA opens, BBB is the one rejected
	openedFirst := result.Trades[0]
	if openedFirst.Ticker != "AAA" {
		t.Errorf("expected AAA to win the day-0 entry, got %q", openedFirst.Ticker)
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	config := fullSizeConfig()
	config.TradeSizeRatio = 0.3
	candlesByTicker := map[string][]types.Candle{}
	for _, ticker := range []string{"AAA", "BBB", "CCC"} {
		candles := make([]types.Candle, 40)
		seed := float64(len(ticker) * 31)
		for i := range candles {
			price := 100 + 10*math.Sin(float64(i)/5+seed)
			candles[i] = mustCandle(ticker, i, price)
		}
		candlesByTicker[ticker] = candles
	}

	run := func() *types.BacktestResult {
		sim := NewSimulator(nil, frictionless(), config)
		result, err := sim.Run("buy_and_hold", candlesByTicker, types.ScopeAll)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return result
	}

	first, second := run(), run()
	fm, sm := first.Metrics, second.Metrics
	if !fm.MaxDrawdown.Equal(sm.MaxDrawdown) {
		t.Errorf("max drawdown differs across identical runs: %s vs %s", fm.MaxDrawdown, sm.MaxDrawdown)
	}
	// decimal.Decimal holds a pointer, so the remaining fields are compared
	// with MaxDrawdown set to the same value on both sides.
	fm.MaxDrawdown, sm.MaxDrawdown = decimal.Zero, decimal.Zero
	if fm != sm {
		t.Errorf("metrics differ across identical runs:\n%+v\n%+v", first.Metrics, second.Metrics)
	}
	if len(first.DailySnapshots) != len(second.DailySnapshots) {
		t.Fatalf("snapshot counts differ: %d vs %d", len(first.DailySnapshots), len(second.DailySnapshots))
	}
	for i := range first.DailySnapshots {
		a, b := first.DailySnapshots[i], second.DailySnapshots[i]
		if !a.PortfolioValue.Equal(b.PortfolioValue) || !a.Cash.Equal(b.Cash) ||
			a.ConcurrentTrades != b.ConcurrentTrades || a.MissedTradesDueToCash != b.MissedTradesDueToCash {
			t.Fatalf("snapshot %d differs: %+v vs %+v", i, a, b)
		}
	}
	if len(first.Trades) != len(second.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(first.Trades), len(second.Trades))
	}
	for i := range first.Trades {
		if first.Trades[i].Ticker != second.Trades[i].Ticker || !first.Trades[i].PnL.Equal(second.Trades[i].PnL) {
			t.Fatalf("trade %d differs: %+v vs %+v", i, first.Trades[i], second.Trades[i])
		}
	}
}

func TestSimulator_UnionCalendarAcrossTickers(t *testing.T) {
	config := fullSizeConfig()
	config.TradeSizeRatio = 0.4
	sim := NewSimulator(nil, frictionless(), config)

	// BBB is missing day 1: the loop still visits all three dates and
	// simply skips BBB on the gap day.
	candlesByTicker := map[string][]types.Candle{
		"AAA": {mustCandle("AAA", 0, 100), mustCandle("AAA", 1, 101), mustCandle("AAA", 2, 102)},
		"BBB": {mustCandle("BBB", 0, 50), mustCandle("BBB", 2, 52)},
	}

	result, err := sim.Run("buy_and_hold", candlesByTicker, types.ScopeAll)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.DailySnapshots) != 3 {
		t.Fatalf("expected 3 union-calendar snapshots, got %d", len(result.DailySnapshots))
	}
}

func TestSimulator_NoCandlesErrors(t *testing.T) {
	sim := NewSimulator(nil, frictionless(), fullSizeConfig())
	if _, err := sim.Run("buy_and_hold", map[string][]types.Candle{}, types.ScopeAll); err == nil {
		t.Fatal("expected an error when no candle data is supplied")
	}
}
