package planner_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/planner"
	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func candle(day int, close float64) types.Candle {
	return types.Candle{
		Ticker:       "AAA",
		Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:         decimal.NewFromFloat(close),
		High:         decimal.NewFromFloat(close * 1.01),
		Low:          decimal.NewFromFloat(close * 0.99),
		Close:        decimal.NewFromFloat(close),
		VolumeShares: 1_000_000,
	}
}

func baseInput(t *testing.T) planner.Input {
	t.Helper()
	strat, err := strategy.Create("buy_and_hold", types.ParameterSet{})
	if err != nil {
		t.Fatalf("strategy.Create() error = %v", err)
	}
	return planner.Input{
		Strategy: strat,
		Settings: types.Settings{},
		Config:   types.DefaultEngineConfig(),
		Candles: map[string][]types.Candle{
			"AAA": {candle(0, 100)},
		},
		Account: planner.AccountState{
			EffectiveBuyingPower: decimal.NewFromInt(100000),
			Equity:               decimal.NewFromInt(100000),
		},
		MaxBuysPerDay: 10,
	}
}

func TestPlan_BuysOnBuySignalWhenUnheld(t *testing.T) {
	ops, skips := planner.Plan(baseInput(t))
	if len(ops) != 1 || ops[0].Kind != planner.OperationBuy {
		t.Fatalf("expected one buy operation, got ops=%+v skips=%+v", ops, skips)
	}
}

func TestPlan_SkipsExcludedTicker(t *testing.T) {
	in := baseInput(t)
	in.ExcludedTickers = map[string]bool{"AAA": true}
	ops, skips := planner.Plan(in)
	if len(ops) != 0 {
		t.Fatalf("expected no operations for excluded ticker, got %+v", ops)
	}
	if len(skips) != 1 || skips[0].Reason != "excluded_ticker" {
		t.Fatalf("expected excluded_ticker skip, got %+v", skips)
	}
}

func TestPlan_SkipsKeywordMatchCaseInsensitive(t *testing.T) {
	in := baseInput(t)
	in.ExcludedKeywords = []string{"LEVERAGED"}
	in.TickerMetadata = map[string]planner.TickerMetadata{"AAA": {Name: "3x Leveraged Fund"}}
	_, skips := planner.Plan(in)
	if len(skips) != 1 || skips[0].Reason != "excluded_keyword" {
		t.Fatalf("expected excluded_keyword skip, got %+v", skips)
	}
}

func TestPlan_SkipsInsufficientBuyingPower(t *testing.T) {
	in := baseInput(t)
	// equity 100000 sizes a 2000 buy, above the 1 of buying power left
	in.Account.EffectiveBuyingPower = decimal.NewFromInt(1)
	_, skips := planner.Plan(in)
	if len(skips) != 1 || skips[0].Reason != "insufficient_buying_power" {
		t.Fatalf("expected insufficient_buying_power skip, got %+v", skips)
	}
}

func TestPlan_ClosesHeldPositionOnSellSignal(t *testing.T) {
	strat, err := strategy.Create("rsi", types.ParameterSet{"rsiOversold": 30, "rsiOverbought": 70})
	if err != nil {
		t.Fatalf("strategy.Create() error = %v", err)
	}

	// a steady climb drives RSI to 100, comfortably past the overbought
	// threshold, so the strategy emits Sell on the last candle
	candles := make([]types.Candle, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		price += 2
		candles = append(candles, candle(i, price))
	}

	in := planner.Input{
		Strategy: strat,
		Settings: types.Settings{},
		Config:   types.DefaultEngineConfig(),
		Candles:  map[string][]types.Candle{"AAA": candles},
		Account: planner.AccountState{
			EffectiveBuyingPower: decimal.NewFromInt(100000),
			Equity:               decimal.NewFromInt(100000),
		},
		ExistingTrades: map[string]types.Trade{
			"AAA": {Ticker: "AAA", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromFloat(150)},
		},
		MaxBuysPerDay: 10,
	}

	ops, skips := planner.Plan(in)
	if len(ops) != 1 || ops[0].Kind != planner.OperationSell {
		t.Fatalf("expected one sell operation for the held position, got ops=%+v skips=%+v", ops, skips)
	}
	if !ops[0].Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected full-position close of 10 shares, got %s", ops[0].Quantity)
	}
}
