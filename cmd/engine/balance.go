package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/backtester"
	"github.com/atlas-desktop/trading-backend/internal/cache"
	"github.com/atlas-desktop/trading-backend/internal/data"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// runBalance recomputes metrics for every cached parameter set of
// templateID over the BALANCE_WINDOW_START_DATE/END_DATE window, once
// against the training-ticker slice and once against the validation-ticker
// slice, so a candidate's training-set performance can be compared against
// its held-out validation performance.
func (a *app) runBalance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	dataFile := fs.String("data-file", "", "market data snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("balance: missing required <template_id> argument")
	}
	templateID := fs.Arg(0)
	// flags may also follow the template id
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return err
	}
	if *dataFile == "" {
		return fmt.Errorf("balance: --data-file is required")
	}

	start, err := requireDateEnv("BALANCE_WINDOW_START_DATE")
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	end, err := requireDateEnv("BALANCE_WINDOW_END_DATE")
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}
	windowed := data.FilterByDateRange(candlesByTicker, start, end)
	training := data.FilterByScope(windowed, types.ScopeTraining)
	validation := data.FilterByScope(windowed, types.ScopeValidation)

	entries := a.cache.Entries()
	trainingUpdated := a.runBalanceScope(templateID, entries, training, types.ScopeTraining)
	validationUpdated := a.runBalanceScope(templateID, entries, validation, types.ScopeValidation)

	a.logger.Info("balance complete",
		zap.String("templateId", templateID),
		zap.Int("trainingUpdated", trainingUpdated),
		zap.Int("validationUpdated", validationUpdated),
	)
	return nil
}

func (a *app) runBalanceScope(templateID string, entries map[string]cache.Entry, candlesByTicker map[string][]types.Candle, scope types.TickerScope) int {
	updated := 0
	for _, entry := range entries {
		if entry.TemplateID != templateID || entry.Parameters == nil {
			continue
		}
		sim := backtester.NewSimulatorForParameters(a.logger, a.settings.Settings, entry.Parameters)
		result, err := sim.Run(templateID, candlesByTicker, scope)
		if err != nil {
			a.logger.Warn("balance: re-run failed for cached entry",
				zap.String("templateId", templateID), zap.String("scope", string(scope)), zap.Error(err))
			continue
		}
		a.logger.Info("balance: recomputed metrics",
			zap.String("templateId", templateID),
			zap.String("scope", string(scope)),
			zap.Float64("cagr", result.Metrics.CAGR),
			zap.Float64("sharpe", result.Metrics.SharpeRatio),
		)
		updated++
	}
	return updated
}
