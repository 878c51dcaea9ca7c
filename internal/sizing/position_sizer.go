// Package sizing computes per-trade position sizes for the simulator under
// the four sizing modes the engine supports: a fixed fraction of
// equity, a confidence-scaled fraction, a volatility-targeted fraction, and
// a mode that combines confidence scaling with volatility targeting.
package sizing

import (
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

const tradingDaysPerYear = 252.0

// Sizer computes a target notional for a new position.
type Sizer struct {
	logger *zap.Logger
	config types.PositionSizingConfig
	ratio  float64
}

// New builds a Sizer from the engine's position sizing config and the
// configured trade size ratio, the base fraction every mode scales from.
func New(logger *zap.Logger, config types.PositionSizingConfig, tradeSizeRatio float64) *Sizer {
	return &Sizer{logger: logger, config: config, ratio: tradeSizeRatio}
}

// TargetNotional returns the dollar amount to commit to a new position.
// confidence is the strategy signal's confidence in [0, 1]; closes is the
// trailing close history (inclusive of the entry day) used to compute
// realized volatility for the vol-targeted modes.
func (s *Sizer) TargetNotional(equity decimal.Decimal, confidence float64, closes []float64) decimal.Decimal {
	equityF, _ := equity.Float64()
	base := equityF * s.ratio

	switch s.config.Mode {
	case types.SizingFixed:
		return decimal.NewFromFloat(base)

	case types.SizingConfidence:
		return decimal.NewFromFloat(base * confidence)

	case types.SizingVolTarget:
		return decimal.NewFromFloat(base * s.volScale(closes))

	case types.SizingConfidenceVolTarget:
		return decimal.NewFromFloat(base * confidence * s.volScale(closes))

	default:
		if s.logger != nil {
			s.logger.Warn("unknown position sizing mode, defaulting to fixed", zap.Int("mode", int(s.config.Mode)))
		}
		return decimal.NewFromFloat(base)
	}
}

func (s *Sizer) volScale(closes []float64) float64 {
	if s.config.VolTargetAnnual <= 0 {
		return 1
	}
	vol := annualizedVolatility(closes, s.config.VolLookback)
	if vol <= 0 {
		return 1
	}
	return clampScale(s.config.VolTargetAnnual / vol)
}

// annualizedVolatility computes the standard deviation of log returns over
// the trailing lookback window, annualized by sqrt(252).
func annualizedVolatility(closes []float64, lookback int) float64 {
	if lookback <= 1 || len(closes) < lookback+1 {
		return 0
	}
	start := len(closes) - lookback - 1
	logReturns := make([]float64, 0, lookback)
	for i := start + 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(closes[i]/closes[i-1]))
	}
	if len(logReturns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(len(logReturns))

	variance := 0.0
	for _, r := range logReturns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(logReturns) - 1)

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// clampScale keeps the vol-target ratio within [0, 1]: a near-zero
// realized vol can't lever the position size above the base fraction,
// only scale it down.
func clampScale(scale float64) float64 {
	if scale < 0 {
		return 0
	}
	if scale > 1 {
		return 1
	}
	return scale
}
