package data

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// FilterByDateRange returns candlesByTicker restricted to candles within
// [start, end] inclusive, dropping any ticker left with fewer than two
// candles (too short to simulate). Zero start/end values are treated as
// unbounded.
func FilterByDateRange(candlesByTicker map[string][]types.Candle, start, end time.Time) map[string][]types.Candle {
	out := make(map[string][]types.Candle, len(candlesByTicker))
	for ticker, candles := range candlesByTicker {
		var filtered []types.Candle
		for _, c := range candles {
			if !start.IsZero() && c.Date.Before(start) {
				continue
			}
			if !end.IsZero() && c.Date.After(end) {
				continue
			}
			filtered = append(filtered, c)
		}
		if len(filtered) >= 2 {
			out[ticker] = filtered
		}
	}
	return out
}

// TrailingMonths returns the [start, end] window covering the trailing n
// months up to the latest date present across candlesByTicker.
func TrailingMonths(candlesByTicker map[string][]types.Candle, months int) (start, end time.Time) {
	for _, candles := range candlesByTicker {
		if len(candles) == 0 {
			continue
		}
		last := candles[len(candles)-1].Date
		if last.After(end) {
			end = last
		}
	}
	if end.IsZero() {
		return time.Time{}, time.Time{}
	}
	return end.AddDate(0, -months, 0), end
}
