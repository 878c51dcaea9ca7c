// Package data provides market-data snapshot storage and quality validation
// for the candles the simulator and optimizer consume.
package data

import (
	"math"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"go.uber.org/zap"
)

// QualityValidator checks one ticker's candle series for the core
// invariants (low <= open,close <= high; volume >= 0; strictly ascending
// dates) plus the anomalies that tend to silently corrupt a backtest:
// duplicate dates, non-finite prices, and implausible gaps.
type QualityValidator struct {
	logger         *zap.Logger
	MaxGapMove     float64 // max |close/prevClose - 1| before flagging a gap
	MaxVolumeSpike float64 // max multiple of the series' median volume
}

// DataIssue is one quality problem found in a ticker's candle series.
type DataIssue struct {
	Type     string
	Severity string // "critical", "high", "medium", "low"
	Date     time.Time
	Ticker   string
	Message  string
	Index    int
}

// QualityReport summarizes one ticker's candle series.
type QualityReport struct {
	Ticker       string
	TotalCandles int
	Issues       []DataIssue
	IsUsable     bool
	StartDate    time.Time
	EndDate      time.Time
}

// NewQualityValidator builds a validator with daily-equity defaults.
func NewQualityValidator(logger *zap.Logger) *QualityValidator {
	return &QualityValidator{logger: logger, MaxGapMove: 0.20, MaxVolumeSpike: 15.0}
}

// Validate runs every check against one ticker's candles, assumed already
// sorted ascending by date (callers load candles this way; Validate does
// not re-sort in place since candles are shared, read-only, across workers).
func (v *QualityValidator) Validate(ticker string, candles []types.Candle) QualityReport {
	if len(candles) == 0 {
		return QualityReport{Ticker: ticker, Issues: []DataIssue{{Type: "NO_DATA", Severity: "critical", Message: "no candles"}}}
	}

	var issues []DataIssue
	issues = append(issues, v.checkOHLC(ticker, candles)...)
	issues = append(issues, v.checkOrderAndDuplicates(ticker, candles)...)
	issues = append(issues, v.checkGaps(ticker, candles)...)
	issues = append(issues, v.checkVolume(ticker, candles)...)

	critical := false
	for _, issue := range issues {
		if issue.Severity == "critical" {
			critical = true
			break
		}
	}

	return QualityReport{
		Ticker:       ticker,
		TotalCandles: len(candles),
		Issues:       issues,
		IsUsable:     !critical,
		StartDate:    candles[0].Date,
		EndDate:      candles[len(candles)-1].Date,
	}
}

func (v *QualityValidator) checkOHLC(ticker string, candles []types.Candle) []DataIssue {
	var issues []DataIssue
	for i, c := range candles {
		open, high, low, close := toF(c.Open), toF(c.High), toF(c.Low), toF(c.Close)
		if !finite(open) || !finite(high) || !finite(low) || !finite(close) {
			issues = append(issues, DataIssue{Type: "NON_FINITE_PRICE", Severity: "critical", Date: c.Date, Ticker: ticker, Index: i, Message: "non-finite OHLC value"})
			continue
		}
		if low > open || low > close || low > high || high < open || high < close {
			issues = append(issues, DataIssue{Type: "OHLC_INCONSISTENT", Severity: "critical", Date: c.Date, Ticker: ticker, Index: i, Message: "low/high does not bound open/close"})
		}
		if c.VolumeShares < 0 {
			issues = append(issues, DataIssue{Type: "NEGATIVE_VOLUME", Severity: "critical", Date: c.Date, Ticker: ticker, Index: i, Message: "negative volume"})
		}
		if close <= 0 {
			issues = append(issues, DataIssue{Type: "NON_POSITIVE_PRICE", Severity: "high", Date: c.Date, Ticker: ticker, Index: i, Message: "non-positive close"})
		}
	}
	return issues
}

func (v *QualityValidator) checkOrderAndDuplicates(ticker string, candles []types.Candle) []DataIssue {
	var issues []DataIssue
	for i := 1; i < len(candles); i++ {
		if candles[i].Date.Before(candles[i-1].Date) {
			issues = append(issues, DataIssue{Type: "OUT_OF_ORDER", Severity: "critical", Date: candles[i].Date, Ticker: ticker, Index: i, Message: "candle precedes prior date"})
		} else if candles[i].Date.Equal(candles[i-1].Date) {
			issues = append(issues, DataIssue{Type: "DUPLICATE_DATE", Severity: "high", Date: candles[i].Date, Ticker: ticker, Index: i, Message: "duplicate date"})
		}
	}
	return issues
}

func (v *QualityValidator) checkGaps(ticker string, candles []types.Candle) []DataIssue {
	var issues []DataIssue
	for i := 1; i < len(candles); i++ {
		prevClose := toF(candles[i-1].Close)
		if prevClose <= 0 {
			continue
		}
		move := math.Abs(toF(candles[i].Close)/prevClose - 1)
		if move > v.MaxGapMove {
			issues = append(issues, DataIssue{Type: "LARGE_GAP", Severity: "medium", Date: candles[i].Date, Ticker: ticker, Index: i, Message: "close moved more than configured gap threshold"})
		}
	}
	return issues
}

func (v *QualityValidator) checkVolume(ticker string, candles []types.Candle) []DataIssue {
	var issues []DataIssue
	if len(candles) < 2 {
		return issues
	}
	sorted := make([]int64, len(candles))
	for i, c := range candles {
		sorted[i] = c.VolumeShares
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := float64(sorted[len(sorted)/2])
	if median <= 0 {
		return issues
	}
	for i, c := range candles {
		if float64(c.VolumeShares) > median*v.MaxVolumeSpike {
			issues = append(issues, DataIssue{Type: "VOLUME_SPIKE", Severity: "low", Date: c.Date, Ticker: ticker, Index: i, Message: "volume spike vs. series median"})
		}
	}
	return issues
}

func toF(d interface{ InexactFloat64() float64 }) float64 { return d.InexactFloat64() }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
