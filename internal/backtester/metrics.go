package backtester

import (
	"math"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

const tradingDaysPerYear = 252.0

// computeMetrics derives PerformanceMetrics from a completed run's daily
// snapshots and closed trades. periodDays is end_date-start_date in whole
// days; CAGR annualizes off the actual calendar span (365/period_days),
// falling back to 1 day when the span is non-positive, rather than off
// the number of trading snapshots.
func computeMetrics(snapshots []types.BacktestDataPoint, trades []types.Trade, initialCapital float64, periodDays int) types.PerformanceMetrics {
	if len(snapshots) == 0 {
		return types.PerformanceMetrics{}
	}

	finalValue, _ := snapshots[len(snapshots)-1].PortfolioValue.Float64()
	if periodDays <= 0 {
		periodDays = 1
	}
	years := float64(periodDays) / 365.0

	var cagr float64
	if initialCapital > 0 && years > 0 {
		ratio := finalValue / initialCapital
		if ratio > 0 {
			cagr = math.Pow(ratio, 1/years) - 1
		}
	}
	totalReturn := 0.0
	if initialCapital > 0 {
		totalReturn = finalValue/initialCapital - 1
	}

	dailyReturns := make([]float64, 0, len(snapshots))
	prev := initialCapital
	for _, snap := range snapshots {
		value, _ := snap.PortfolioValue.Float64()
		if prev > 0 {
			dailyReturns = append(dailyReturns, value/prev-1)
		}
		prev = value
	}
	sharpe := sharpeRatio(dailyReturns)

	ddAbs, ddRatio := maxDrawdown(snapshots)

	var calmar float64
	if ddRatio != 0 {
		calmar = cagr / math.Abs(ddRatio)
	}

	winRate, totalTrades := winRateOf(trades)

	return types.PerformanceMetrics{
		CAGR:             cagr,
		SharpeRatio:      sharpe,
		CalmarRatio:      calmar,
		TotalReturn:      totalReturn,
		MaxDrawdown:      ddAbs,
		MaxDrawdownRatio: ddRatio,
		WinRate:          winRate,
		TotalTrades:      totalTrades,
	}
}

func sharpeRatio(dailyReturns []float64) float64 {
	n := len(dailyReturns)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range dailyReturns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range dailyReturns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(n - 1)
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return mean / stddev * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the largest peak-to-trough dollar drop and the largest
// peak-to-trough drop expressed as a fraction of its running peak; the two
// can come from different drawdowns.
func maxDrawdown(snapshots []types.BacktestDataPoint) (decimal.Decimal, float64) {
	if len(snapshots) == 0 {
		return decimal.Zero, 0
	}
	peak := snapshots[0].PortfolioValue
	maxDD := decimal.Zero
	maxRatio := 0.0
	for _, snap := range snapshots {
		if snap.PortfolioValue.GreaterThan(peak) {
			peak = snap.PortfolioValue
		}
		dd := peak.Sub(snap.PortfolioValue)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
		if peak.Sign() > 0 {
			ratio, _ := dd.Div(peak).Float64()
			if ratio > maxRatio {
				maxRatio = ratio
			}
		}
	}
	return maxDD, maxRatio
}

func winRateOf(trades []types.Trade) (float64, int) {
	if len(trades) == 0 {
		return 0, 0
	}
	wins := 0
	for _, t := range trades {
		if t.PnL.Sign() > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)), len(trades)
}
