// Package types provides the shared domain model for the backtesting
// simulator, the optimization engine, and their collaborators.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalAction is the output of a strategy's signal function.
type SignalAction string

const (
	ActionBuy  SignalAction = "buy"
	ActionSell SignalAction = "sell"
	ActionHold SignalAction = "hold"
)

// TradeStatus is the lifecycle state of a Trade.
type TradeStatus string

const (
	TradeStatusActive    TradeStatus = "active"
	TradeStatusClosed    TradeStatus = "closed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// Candle is one daily OHLCV bar for a single ticker. Immutable once loaded.
type Candle struct {
	Ticker          string          `json:"ticker"`
	Date            time.Time       `json:"date"`
	Open            decimal.Decimal `json:"open"`
	High            decimal.Decimal `json:"high"`
	Low             decimal.Decimal `json:"low"`
	Close           decimal.Decimal `json:"close"`
	UnadjustedClose decimal.Decimal `json:"unadjustedClose,omitempty"`
	VolumeShares    int64           `json:"volumeShares"`
}

// DollarVolume returns close * volume, used for liquidity filtering.
func (c Candle) DollarVolume() decimal.Decimal {
	return c.Close.Mul(decimal.NewFromInt(c.VolumeShares))
}

// StrategySignal is a strategy's verdict for one (ticker, candle index) pair.
type StrategySignal struct {
	Action     SignalAction
	Confidence float64
}

// HoldSignal is the default, zero-confidence signal.
func HoldSignal() StrategySignal { return StrategySignal{Action: ActionHold, Confidence: 0} }

// BuySignal builds a clamped buy signal.
func BuySignal(confidence float64) StrategySignal {
	return StrategySignal{Action: ActionBuy, Confidence: clampConfidence(confidence)}
}

// SellSignal builds a clamped sell signal.
func SellSignal(confidence float64) StrategySignal {
	return StrategySignal{Action: ActionSell, Confidence: clampConfidence(confidence)}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ParameterRange describes the discretization of one tunable parameter.
type ParameterRange struct {
	Min  float64
	Max  float64
	Step float64
}

// ParameterSet is a mapping from parameter name to real value.
type ParameterSet map[string]float64

// Clone returns a shallow copy, safe to mutate independently.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Trade is one position lifecycle: opened, optionally closed.
type Trade struct {
	ID         string
	StrategyID string
	Ticker     string
	Date       time.Time
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Fee        decimal.Decimal
	Status     TradeStatus
	ExitDate   *time.Time
	ExitPrice  decimal.Decimal
	ExitFee    decimal.Decimal
	BorrowCost decimal.Decimal
	PnL        decimal.Decimal
	Short      bool
}

// Notional returns the entry notional value (price * quantity).
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// BacktestDataPoint is one day's portfolio snapshot.
type BacktestDataPoint struct {
	Date                  time.Time
	PortfolioValue        decimal.Decimal
	Cash                  decimal.Decimal
	PositionsValue        decimal.Decimal
	ConcurrentTrades      int
	MissedTradesDueToCash int
}

// PerformanceMetrics is a pure function's output over a completed backtest.
type PerformanceMetrics struct {
	CAGR             float64
	SharpeRatio      float64
	CalmarRatio      float64
	TotalReturn      float64
	MaxDrawdown      decimal.Decimal
	MaxDrawdownRatio float64
	WinRate          float64
	TotalTrades      int
}

// TickerScope selects the subset of tickers a run operates over.
type TickerScope string

const (
	ScopeTraining   TickerScope = "training"
	ScopeValidation TickerScope = "validation"
	ScopeAll        TickerScope = "all"
)

// BacktestResult is the immutable output of one simulator invocation.
type BacktestResult struct {
	ID                  string
	StrategyID          string
	StartDate           time.Time
	EndDate             time.Time
	InitialCapital      decimal.Decimal
	FinalPortfolioValue decimal.Decimal
	Metrics             PerformanceMetrics
	DailySnapshots      []BacktestDataPoint
	Trades              []Trade
	Tickers             []string
	TickerScope         TickerScope
}
