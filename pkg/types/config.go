package types

import "time"

// PositionSizingMode selects how entry notional is computed.
type PositionSizingMode int

const (
	SizingFixed               PositionSizingMode = 0
	SizingConfidence          PositionSizingMode = 1
	SizingVolTarget           PositionSizingMode = 2
	SizingConfidenceVolTarget PositionSizingMode = 3
)

// StopLossMode selects how open trades are evaluated for a stop exit.
type StopLossMode int

const (
	StopLossPercent StopLossMode = 0
	StopLossATR     StopLossMode = 1
)

// PositionSizingConfig groups the parameters driving entry sizing.
type PositionSizingConfig struct {
	Mode            PositionSizingMode
	VolTargetAnnual float64
	VolLookback     int
}

// StopLossConfig groups the parameters driving exit-on-stop decisions.
type StopLossConfig struct {
	Mode          StopLossMode
	Ratio         float64
	ATRPeriod     int
	ATRMultiplier float64
}

// EngineConfig is the per-variation configuration the simulator runs
// under.
type EngineConfig struct {
	InitialCapital    float64
	TradeSizeRatio    float64
	SellFraction      float64
	MinimumTradeSize  float64
	AllowShortSelling bool
	BuyDiscountRatio  float64
	MaxHoldingDays    int
	PositionSizing    PositionSizingConfig
	StopLoss          StopLossConfig
	RawParameters     ParameterSet
}

// DefaultEngineConfig returns the baseline configuration before any
// parameter overrides are applied.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InitialCapital:   100000,
		TradeSizeRatio:   0.02,
		SellFraction:     1.0,
		MinimumTradeSize: 50,
		MaxHoldingDays:   365,
		PositionSizing:   PositionSizingConfig{Mode: SizingFixed, VolLookback: 20},
		StopLoss:         StopLossConfig{Mode: StopLossPercent, Ratio: 0.05, ATRPeriod: 20, ATRMultiplier: 2.0},
		RawParameters:    ParameterSet{},
	}
}

// Settings holds the engine-wide runtime
// parameters that apply across every variation of a run, as opposed to the
// per-variation EngineConfig above.
type Settings struct {
	TradeCloseFeeRate                float64
	TradeSlippageRate                float64
	ShortBorrowFeeAnnualRate         float64
	TradeEntryPriceMin               float64
	TradeEntryPriceMax               float64
	MinimumDollarVolumeForEntry      float64
	MinimumDollarVolumeLookback      int
	LocalOptimizationVersion         int
	LocalOptimizationStepMultipliers []float64
	OptimizationObjective            OptimizationObjective
	MaxAllowedDrawdownRatio          float64
}

// OptimizationObjective selects what the neighborhood search maximizes.
type OptimizationObjective string

const (
	ObjectiveCAGR   OptimizationObjective = "cagr"
	ObjectiveSharpe OptimizationObjective = "sharpe"
)

// ServerConfig configures the remote-cache/metrics HTTP endpoint.
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool
}
