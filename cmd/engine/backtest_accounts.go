package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/backtester"
	"github.com/atlas-desktop/trading-backend/internal/cache"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// runBacktestAccounts re-runs every account-linked strategy over the
// full ticker universe and refreshes its cached result.
func (a *app) runBacktestAccounts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backtest-accounts", flag.ContinueOnError)
	dataFile := fs.String("data-file", "", "market data snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	accounts, err := a.db.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		a.logger.Info("backtest-accounts: no account-linked strategies found")
		return nil
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}

	processed := 0
	for _, account := range accounts {
		sim := backtester.NewSimulatorForParameters(a.logger, a.settings.Settings, account.Parameters)
		result, err := sim.Run(account.TemplateID, candlesByTicker, types.ScopeAll)
		if err != nil {
			a.logger.Warn("backtest-accounts: run failed",
				zap.String("accountId", account.ID), zap.String("templateId", account.TemplateID), zap.Error(err))
			continue
		}
		a.cache.Store(cache.StoreEntry{
			TemplateID:  account.TemplateID,
			Parameters:  account.Parameters,
			Result:      *result,
			TickerCount: len(candlesByTicker),
			StartDate:   result.StartDate,
			EndDate:     result.EndDate,
		})
		processed++
		a.logger.Info("backtest-accounts: run complete",
			zap.String("accountId", account.ID),
			zap.String("templateId", account.TemplateID),
			zap.Float64("cagr", result.Metrics.CAGR),
		)
	}

	a.logger.Info("backtest-accounts complete", zap.Int("processed", processed), zap.Int("total", len(accounts)))
	return nil
}
