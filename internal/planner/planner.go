// Package planner turns one trading day's strategy signals into a
// concrete list of buy/sell operations against a live account, reusing
// the simulator's entry-filter rules against the broker's reported
// buying power rather than a simulated cash balance.
package planner

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/internal/sizing"
	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// OperationKind distinguishes a planned buy from a planned sell.
type OperationKind string

const (
	OperationBuy  OperationKind = "buy"
	OperationSell OperationKind = "sell"
)

// Operation is one planned order for a single ticker on a single day.
type Operation struct {
	Kind     OperationKind
	Ticker   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Reason   string
}

// Skip records why a ticker produced no operation.
type Skip struct {
	Ticker string
	Reason string
}

// TickerMetadata is the broker-reported descriptive data used for
// keyword-based exclusion.
type TickerMetadata struct {
	Name string
}

// AccountState is the live account snapshot the plan is computed against.
type AccountState struct {
	EffectiveBuyingPower decimal.Decimal
	Equity               decimal.Decimal
}

// Input bundles everything Plan needs for one trading day.
type Input struct {
	Strategy              strategy.Strategy
	Settings              types.Settings
	Config                types.EngineConfig
	Candles               map[string][]types.Candle // ticker -> candles through today inclusive
	Account               AccountState
	ExcludedTickers       map[string]bool
	ExcludedKeywords      []string
	ExistingTrades        map[string]types.Trade // ticker -> open position
	ExistingBuyCountToday int
	MaxBuysPerDay         int
	TickerMetadata        map[string]TickerMetadata
}

// Plan computes the day's operations and skip reasons. Tickers are
// visited in a stable, sorted order so two runs over the same input
// produce identical output regardless of map iteration order.
func Plan(in Input) ([]Operation, []Skip) {
	var operations []Operation
	var skips []Skip

	tickers := make([]string, 0, len(in.Candles))
	for ticker := range in.Candles {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	buyCount := in.ExistingBuyCountToday
	target, restricted := in.Strategy.TargetTicker()

	for _, ticker := range tickers {
		if restricted && ticker != target {
			if _, held := in.ExistingTrades[ticker]; !held {
				skips = append(skips, Skip{Ticker: ticker, Reason: "outside_target_ticker"})
				continue
			}
		}
		candles := in.Candles[ticker]
		if len(candles) == 0 {
			continue
		}
		day := len(candles) - 1
		candle := candles[day]

		if reason, excluded := isExcluded(ticker, in.ExcludedTickers, in.ExcludedKeywords, in.TickerMetadata); excluded {
			skips = append(skips, Skip{Ticker: ticker, Reason: reason})
			continue
		}

		if day+1 < in.Strategy.MinDataPoints() {
			skips = append(skips, Skip{Ticker: ticker, Reason: "insufficient_history"})
			continue
		}

		signal := in.Strategy.GenerateSignal(ticker, candles, day)

		if existing, held := in.ExistingTrades[ticker]; held {
			if signal.Action == types.ActionSell {
				quantity := closeQuantity(existing, in.Config.SellFraction)
				operations = append(operations, Operation{
					Kind:     OperationSell,
					Ticker:   ticker,
					Quantity: quantity,
					Price:    candle.Close,
					Reason:   "signal",
				})
			} else {
				skips = append(skips, Skip{Ticker: ticker, Reason: "already_held"})
			}
			continue
		}

		if signal.Action != types.ActionBuy {
			skips = append(skips, Skip{Ticker: ticker, Reason: "no_buy_signal"})
			continue
		}

		if in.MaxBuysPerDay > 0 && buyCount >= in.MaxBuysPerDay {
			skips = append(skips, Skip{Ticker: ticker, Reason: "daily_buy_cap_reached"})
			continue
		}

		op, reason, ok := planBuy(in, ticker, candles, day, signal)
		if !ok {
			skips = append(skips, Skip{Ticker: ticker, Reason: reason})
			continue
		}
		operations = append(operations, op)
		buyCount++
	}

	return operations, skips
}

func planBuy(in Input, ticker string, candles []types.Candle, day int, signal types.StrategySignal) (Operation, string, bool) {
	candle := candles[day]
	price, _ := candle.Close.Float64()

	if in.Settings.TradeEntryPriceMin > 0 && price < in.Settings.TradeEntryPriceMin {
		return Operation{}, "price_below_min", false
	}
	if in.Settings.TradeEntryPriceMax > 0 && price > in.Settings.TradeEntryPriceMax {
		return Operation{}, "price_above_max", false
	}

	if in.Settings.MinimumDollarVolumeForEntry > 0 {
		avgDollarVol := averageDollarVolume(candles, day, in.Settings.MinimumDollarVolumeLookback)
		if avgDollarVol < in.Settings.MinimumDollarVolumeForEntry {
			return Operation{}, "insufficient_dollar_volume", false
		}
	}

	sizer := sizing.New(nil, in.Config.PositionSizing, in.Config.TradeSizeRatio)
	closes := closesThrough(candles, day)
	equity := in.Account.Equity
	if equity.IsZero() {
		equity = in.Account.EffectiveBuyingPower
	}
	notional := sizer.TargetNotional(equity, signal.Confidence, closes)
	notionalF, _ := notional.Float64()
	if notionalF < in.Config.MinimumTradeSize {
		return Operation{}, "below_minimum_trade_size", false
	}

	if notional.GreaterThan(in.Account.EffectiveBuyingPower) {
		return Operation{}, "insufficient_buying_power", false
	}

	quantity := notional.Div(candle.Close)
	return Operation{
		Kind:     OperationBuy,
		Ticker:   ticker,
		Quantity: quantity,
		Price:    candle.Close,
		Reason:   "signal",
	}, "", true
}

// closeQuantity returns the quantity to sell for a sell signal. The
// configured sell_fraction is coerced to a binary full-or-none close;
// partial closes are not supported.
func closeQuantity(trade types.Trade, sellFraction float64) decimal.Decimal {
	fraction := params.CoerceBinary(sellFraction, 1.0)
	if fraction >= 1.0 {
		return trade.Quantity
	}
	return decimal.Zero
}

func isExcluded(ticker string, excluded map[string]bool, keywords []string, metadata map[string]TickerMetadata) (string, bool) {
	if excluded[ticker] {
		return "excluded_ticker", true
	}
	name := ""
	if meta, ok := metadata[ticker]; ok {
		name = strings.ToLower(meta.Name)
	}
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(name, keyword) || strings.Contains(strings.ToLower(ticker), keyword) {
			return "excluded_keyword", true
		}
	}
	return "", false
}

func averageDollarVolume(candles []types.Candle, day, lookback int) float64 {
	if lookback <= 0 {
		lookback = 1
	}
	start := day - lookback + 1
	if start < 0 {
		start = 0
	}
	sum := 0.0
	count := 0
	for i := start; i <= day; i++ {
		v, _ := candles[i].DollarVolume().Float64()
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func closesThrough(candles []types.Candle, day int) []float64 {
	out := make([]float64, day+1)
	for i := 0; i <= day; i++ {
		out[i], _ = candles[i].Close.Float64()
	}
	return out
}
