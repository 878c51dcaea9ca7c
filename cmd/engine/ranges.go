package main

import (
	"sort"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// templateRanges pairs a template's tunable parameters with the
// discretization ranges the optimizer's seed grid sweeps. One default set
// per template, matching each strategy's own parameter names and bounds
// (internal/strategy/*.go). The table is fixed; no command-line flag
// overrides or extends it.
var templateRanges = map[string]map[string]types.ParameterRange{
	"rsi": {
		"rsiPeriod":     {Min: 5, Max: 30, Step: 1},
		"rsiOversold":   {Min: 15, Max: 40, Step: 5},
		"rsiOverbought": {Min: 60, Max: 85, Step: 5},
	},
	"macd": {
		"macdFast":   {Min: 5, Max: 20, Step: 1},
		"macdSlow":   {Min: 20, Max: 40, Step: 2},
		"macdSignal": {Min: 5, Max: 15, Step: 1},
	},
	"adx": {
		"adxPeriod":          {Min: 7, Max: 28, Step: 1},
		"adxTrendThreshold":  {Min: 15, Max: 40, Step: 5},
		"adxEmaFilterPeriod": {Min: 0, Max: 200, Step: 50},
		"adxWeaknessBars":    {Min: 0, Max: 6, Step: 1},
	},
	"atr": {
		"atrPeriod":             {Min: 7, Max: 28, Step: 1},
		"atrBreakoutMultiplier": {Min: 1.0, Max: 3.0, Step: 0.25},
	},
	"psar": {
		"psarAccelerationStep": {Min: 0.01, Max: 0.05, Step: 0.01},
		"psarAccelerationMax":  {Min: 0.1, Max: 0.4, Step: 0.05},
	},
	"williams_r": {
		"williamsRPeriod":     {Min: 5, Max: 30, Step: 1},
		"williamsROversold":   {Min: -95, Max: -65, Step: 5},
		"williamsROverbought": {Min: -35, Max: -5, Step: 5},
	},
	"weighted_momentum": {
		"momentumShortPeriod":   {Min: 5, Max: 20, Step: 1},
		"momentumMediumPeriod":  {Min: 20, Max: 60, Step: 5},
		"momentumLongPeriod":    {Min: 60, Max: 150, Step: 10},
		"momentumBuyThreshold":  {Min: 0.01, Max: 0.08, Step: 0.01},
		"momentumSellThreshold": {Min: -0.08, Max: -0.01, Step: 0.01},
	},
	"buy_and_hold": {},
}

// rangesFor returns the default optimization ranges for templateID,
// dispatching lightgbm_<id> templates to its threshold parameters since
// they share no fixed indicator period to sweep.
func rangesFor(templateID string) map[string]types.ParameterRange {
	if r, ok := templateRanges[templateID]; ok {
		return r
	}
	return map[string]types.ParameterRange{
		"gbtBuyThreshold":  {Min: 0.05, Max: 0.5, Step: 0.05},
		"gbtSellThreshold": {Min: -0.5, Max: -0.05, Step: 0.05},
	}
}

// parameterNames returns the range names sorted, so grid enumeration and
// neighbor generation visit axes in the same order every run.
func parameterNames(ranges map[string]types.ParameterRange) []string {
	out := make([]string, 0, len(ranges))
	for name := range ranges {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
