package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/backtester"
	"github.com/atlas-desktop/trading-backend/internal/data"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// runBacktestActive runs every strategy template in the optimization range
// table, with each tunable parameter at the midpoint of its range, over
// each requested trailing-month window and ticker scope. Database-tracked live strategy accounts live outside this
// engine; every registered template stands in for "active strategies"
// here.
func (a *app) runBacktestActive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backtest-active", flag.ContinueOnError)
	scopeFlag := fs.String("scope", "all", "validation|training|all")
	dataFile := fs.String("data-file", "", "market data snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("backtest-active: at least one <months> argument is required")
	}

	scope, err := parseTickerScope(*scopeFlag)
	if err != nil {
		return fmt.Errorf("backtest-active: %w", err)
	}

	months := make([]int, 0, fs.NArg())
	for _, arg := range fs.Args() {
		m, err := strconv.Atoi(arg)
		if err != nil || m <= 0 {
			return fmt.Errorf("backtest-active: invalid months value %q", arg)
		}
		months = append(months, m)
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}
	scoped := data.FilterByScope(candlesByTicker, scope)

	for templateID, ranges := range templateRanges {
		base := midpointParameters(ranges)
		for _, months := range months {
			start, end := data.TrailingMonths(scoped, months)
			windowed := data.FilterByDateRange(scoped, start, end)
			if len(windowed) == 0 {
				continue
			}

			sim := backtester.NewSimulatorForParameters(a.logger, a.settings.Settings, base)
			result, err := sim.Run(templateID, windowed, scope)
			if err != nil {
				a.logger.Warn("backtest-active: run failed",
					zap.String("templateId", templateID), zap.Int("months", months), zap.Error(err))
				continue
			}
			a.cache.Put(templateID, base, *result)
			a.logger.Info("backtest-active: run complete",
				zap.String("templateId", templateID),
				zap.String("scope", string(scope)),
				zap.Int("months", months),
				zap.Float64("cagr", result.Metrics.CAGR),
			)
		}
	}
	return nil
}

func parseTickerScope(raw string) (types.TickerScope, error) {
	switch raw {
	case "validation":
		return types.ScopeValidation, nil
	case "training":
		return types.ScopeTraining, nil
	case "all", "":
		return types.ScopeAll, nil
	default:
		return "", fmt.Errorf("unknown scope %q (want validation|training|all)", raw)
	}
}
