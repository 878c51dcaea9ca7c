package backtester

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/internal/sizing"
	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
)

const dateKeyLayout = "2006-01-02"

// Simulator runs one day-stepped backtest across a fixed ticker universe
// for a single strategy variation. The day loop walks the union of all
// candle dates; a ticker without a candle on a given date is simply not
// refreshed, exited, or entered that day.
type Simulator struct {
	logger   *zap.Logger
	settings types.Settings
	config   types.EngineConfig
	sizer    *sizing.Sizer
}

// NewSimulator builds a Simulator for one engine configuration.
func NewSimulator(logger *zap.Logger, settings types.Settings, config types.EngineConfig) *Simulator {
	return &Simulator{
		logger:   logger,
		settings: settings,
		config:   config,
		sizer:    sizing.New(logger, config.PositionSizing, config.TradeSizeRatio),
	}
}

// NewSimulatorForParameters builds a Simulator whose EngineConfig is
// derived from one parameter variation via params.BuildEngineConfig. This is
// the bridge the optimization engine's EvaluateFunc uses to turn each
// ParameterSet the optimizer generates (seed grid or neighborhood
// refinement) into a concrete, runnable simulation.
func NewSimulatorForParameters(logger *zap.Logger, settings types.Settings, parameters types.ParameterSet) *Simulator {
	return NewSimulator(logger, settings, params.BuildEngineConfig(parameters))
}

// tickerSeries indexes one ticker's candles by calendar date so the day
// loop can answer "does this ticker trade today, and at which index" in
// constant time.
type tickerSeries struct {
	candles     []types.Candle
	indexByDate map[string]int
}

func newTickerSeries(candles []types.Candle) tickerSeries {
	idx := make(map[string]int, len(candles))
	for i, c := range candles {
		idx[c.Date.Format(dateKeyLayout)] = i
	}
	return tickerSeries{candles: candles, indexByDate: idx}
}

// Run executes the backtest for templateID over candlesByTicker and returns
// the resulting performance record.
func (s *Simulator) Run(templateID string, candlesByTicker map[string][]types.Candle, scope types.TickerScope) (*types.BacktestResult, error) {
	strat, err := strategy.Create(templateID, s.config.RawParameters)
	if err != nil {
		return nil, fmt.Errorf("backtester: create strategy: %w", err)
	}

	// entries are evaluated in lexicographic ticker order so two runs over
	// the same inputs open the same trades in the same order
	tickers := make([]string, 0, len(candlesByTicker))
	series := make(map[string]tickerSeries, len(candlesByTicker))
	dateSet := make(map[string]time.Time)
	for ticker, candles := range candlesByTicker {
		if len(candles) == 0 {
			continue
		}
		tickers = append(tickers, ticker)
		series[ticker] = newTickerSeries(candles)
		for _, c := range candles {
			dateSet[c.Date.Format(dateKeyLayout)] = c.Date
		}
	}
	sort.Strings(tickers)
	if len(dateSet) == 0 {
		return nil, fmt.Errorf("backtester: no candle data supplied")
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	initialCapital := decimal.NewFromFloat(s.config.InitialCapital)
	book := newPortfolio(initialCapital)
	snapshots := make([]types.BacktestDataPoint, 0, len(dates))
	lastClose := make(map[string]decimal.Decimal, len(tickers))

	for _, date := range dates {
		key := date.Format(dateKeyLayout)
		for _, ticker := range tickers {
			if idx, ok := series[ticker].indexByDate[key]; ok {
				lastClose[ticker] = series[ticker].candles[idx].Close
			}
		}

		s.processExits(book, strat, series, date, key)
		missedTrades := s.processEntries(book, strat, tickers, series, key, lastClose)

		equity := book.equity(lastClose)
		snapshots = append(snapshots, types.BacktestDataPoint{
			Date:                  date,
			PortfolioValue:        equity,
			Cash:                  book.cash,
			PositionsValue:        book.positionsValue(lastClose),
			ConcurrentTrades:      len(book.open),
			MissedTradesDueToCash: missedTrades,
		})
	}

	s.forceCloseAll(book, series)

	startDate, endDate := dates[0], dates[len(dates)-1]
	periodDays := int(endDate.Sub(startDate).Hours() / 24)
	metrics := computeMetrics(snapshots, book.closedTrades, s.config.InitialCapital, periodDays)

	return &types.BacktestResult{
		ID:                  utils.GenerateResultID(),
		StrategyID:          templateID,
		StartDate:           startDate,
		EndDate:             endDate,
		InitialCapital:      initialCapital,
		FinalPortfolioValue: snapshots[len(snapshots)-1].PortfolioValue,
		Metrics:             metrics,
		DailySnapshots:      snapshots,
		Trades:              book.closedTrades,
		Tickers:             tickers,
		TickerScope:         scope,
	}, nil
}

// processExits evaluates every open position, oldest first, for a
// stop-loss trigger, a max-holding-days breach, or a strategy sell signal,
// closing any that qualify. A position whose ticker has no candle today is
// left untouched. Exit fee and short borrow cost are deducted from
// proceeds.
func (s *Simulator) processExits(book *portfolio, strat strategy.Strategy, series map[string]tickerSeries, date time.Time, key string) {
	for _, ticker := range book.openTickers() {
		trade := book.open[ticker]
		ts, ok := series[ticker]
		if !ok {
			continue
		}
		day, ok := ts.indexByDate[key]
		if !ok {
			continue
		}
		candles := ts.candles
		candle := candles[day]

		exit, reason := s.shouldExit(*trade, candles, day, date)
		if !exit {
			signal := strat.GenerateSignal(ticker, candles[:day+1], day)
			if (trade.Short && signal.Action == types.ActionBuy) || (!trade.Short && signal.Action == types.ActionSell) {
				// sellFraction is binary: 1 closes the whole position, 0
				// ignores the signal
				if s.config.SellFraction >= 1.0 {
					exit = true
					reason = "signal"
				}
			}
		}
		if !exit {
			continue
		}

		exitPrice := s.applySlippage(candle.Close, trade.Short)
		exitFee := exitPrice.Mul(trade.Quantity).Mul(decimal.NewFromFloat(s.settings.TradeCloseFeeRate))
		borrowCost := decimal.Zero
		if trade.Short {
			daysHeld := calendarDays(trade.Date, date)
			annualRate := s.settings.ShortBorrowFeeAnnualRate
			borrowCost = trade.Notional().Mul(decimal.NewFromFloat(annualRate * float64(daysHeld) / 365.0))
		}

		if s.logger != nil {
			s.logger.Debug("closing position",
				zap.String("ticker", ticker), zap.String("reason", reason), zap.Time("date", candle.Date))
		}
		book.closePosition(ticker, candle.Date, exitPrice, exitFee, borrowCost)
	}
}

func calendarDays(from, to time.Time) int {
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// shouldExit evaluates the stop-loss and max-holding-days rules for an open
// trade, independent of the strategy's own sell signal.
func (s *Simulator) shouldExit(trade types.Trade, candles []types.Candle, day int, date time.Time) (bool, string) {
	if s.config.MaxHoldingDays > 0 && calendarDays(trade.Date, date) >= s.config.MaxHoldingDays {
		return true, "max_holding_days"
	}

	closeF, _ := candles[day].Close.Float64()
	entryF, _ := trade.Price.Float64()
	if entryF == 0 {
		return false, ""
	}

	switch s.config.StopLoss.Mode {
	case types.StopLossPercent:
		change := (closeF - entryF) / entryF
		if trade.Short {
			change = -change
		}
		if change <= -s.config.StopLoss.Ratio {
			return true, "stop_loss_percent"
		}
	case types.StopLossATR:
		series := indicators.ComputeATRSeries(candles[:day+1], s.config.StopLoss.ATRPeriod)
		atr := series.ATR[day]
		if atr == 0 {
			return false, ""
		}
		threshold := atr * s.config.StopLoss.ATRMultiplier
		move := closeF - entryF
		if trade.Short {
			move = -move
		}
		if move <= -threshold {
			return true, "stop_loss_atr"
		}
	}
	return false, ""
}

// processEntries evaluates a buy/sell-short signal for every ticker with a
// candle today and no open position, applying the price band, dollar-volume
// liquidity filter, position sizing, and slippage, and rejecting entries
// the available cash can't support. Returns the count of entries skipped
// for lack of cash.
func (s *Simulator) processEntries(book *portfolio, strat strategy.Strategy, tickers []string, series map[string]tickerSeries, key string, lastClose map[string]decimal.Decimal) int {
	target, restricted := strat.TargetTicker()
	missed := 0
	for _, ticker := range tickers {
		if restricted && ticker != target {
			continue
		}
		if _, open := book.open[ticker]; open {
			continue
		}
		ts := series[ticker]
		day, ok := ts.indexByDate[key]
		if !ok {
			continue
		}
		candles := ts.candles
		if day+1 < strat.MinDataPoints() {
			continue
		}

		signal := strat.GenerateSignal(ticker, candles[:day+1], day)
		if signal.Action == types.ActionHold {
			continue
		}
		short := signal.Action == types.ActionSell
		if short && !s.config.AllowShortSelling {
			continue
		}

		candle := candles[day]
		price, _ := candle.Close.Float64()
		if s.settings.TradeEntryPriceMin > 0 && price < s.settings.TradeEntryPriceMin {
			continue
		}
		if s.settings.TradeEntryPriceMax > 0 && price > s.settings.TradeEntryPriceMax {
			continue
		}

		if s.settings.MinimumDollarVolumeForEntry > 0 {
			avgDollarVol := averageDollarVolume(candles, day, s.settings.MinimumDollarVolumeLookback)
			if avgDollarVol < s.settings.MinimumDollarVolumeForEntry {
				continue
			}
		}

		closes := closesThrough(candles, day)
		equity := book.equity(lastClose)
		notional := s.sizer.TargetNotional(equity, signal.Confidence, closes)
		notionalF, _ := notional.Float64()
		if notionalF < s.config.MinimumTradeSize {
			continue
		}

		entryPrice := s.applySlippage(candle.Close, !short)
		if !short {
			entryPrice = utils.MaxDecimal(entryPrice, s.buyDiscountFloor(candle.Close))
		}
		entryPriceF, _ := entryPrice.Float64()
		if entryPriceF <= 0 {
			continue
		}
		quantity := decimal.NewFromFloat(notionalF / entryPriceF)
		fee := entryPrice.Mul(quantity).Mul(decimal.NewFromFloat(s.settings.TradeCloseFeeRate))

		cost := notional.Add(fee)
		if cost.GreaterThan(book.cash) {
			missed++
			continue
		}

		book.openPosition(types.Trade{
			ID:         utils.GenerateTradeID(),
			StrategyID: strat.TemplateID(),
			Ticker:     ticker,
			Date:       candle.Date,
			Price:      entryPrice,
			Quantity:   quantity,
			Fee:        fee,
			Status:     types.TradeStatusActive,
			Short:      short,
		})
	}
	return missed
}

func closesThrough(candles []types.Candle, day int) []float64 {
	out := make([]float64, day+1)
	for i := 0; i <= day; i++ {
		out[i], _ = candles[i].Close.Float64()
	}
	return out
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

// applySlippage widens the fill price against the trader: buys fill higher,
// sells fill lower, by the configured slippage rate.
func (s *Simulator) applySlippage(price decimal.Decimal, buying bool) decimal.Decimal {
	rate := decimal.NewFromFloat(s.settings.TradeSlippageRate)
	if buying {
		return price.Mul(decimal.NewFromInt(1).Add(rate))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(rate))
}

// buyDiscountFloor returns close * (1 - buyDiscountRatio), the floor a
// long entry's slippage-adjusted fill price is never allowed to drop
// below. With the default ratio of 0 the floor equals close, which the
// slippage-adjusted price (always >= close for a buy) already clears.
func (s *Simulator) buyDiscountFloor(close decimal.Decimal) decimal.Decimal {
	ratio := decimal.NewFromFloat(s.config.BuyDiscountRatio)
	return close.Mul(decimal.NewFromInt(1).Sub(ratio))
}

// forceCloseAll liquidates every remaining open position at its ticker's
// final close, with no slippage or fee, as the final bookkeeping step.
func (s *Simulator) forceCloseAll(book *portfolio, series map[string]tickerSeries) {
	for _, ticker := range book.openTickers() {
		candles := series[ticker].candles
		last := candles[len(candles)-1]
		book.closePosition(ticker, last.Date, last.Close, decimal.Zero, decimal.Zero)
	}
}
