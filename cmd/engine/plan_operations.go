package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/internal/planner"
	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// runPlanOperations rebuilds the day's buy/sell operations for every
// account-linked strategy, reusing the planner against live buying power
// rather than a simulated cash balance.
func (a *app) runPlanOperations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plan-operations", flag.ContinueOnError)
	dataFile := fs.String("data-file", "", "market data snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	accounts, err := a.db.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		a.logger.Info("plan-operations: no account-linked strategies found")
		return nil
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}

	processed, skipped := 0, 0
	for _, account := range accounts {
		ops, planSkips, err := a.planForAccount(ctx, account, candlesByTicker)
		if err != nil {
			a.logger.Warn("plan-operations: skipping account", zap.String("accountId", account.ID), zap.Error(err))
			skipped++
			continue
		}
		if len(ops) == 0 {
			a.logger.Info("plan-operations: no operations generated",
				zap.String("accountId", account.ID), zap.Int("skippedTickers", len(planSkips)))
			skipped++
			continue
		}

		planned := make([]PlannedOperation, 0, len(ops))
		for _, op := range ops {
			planned = append(planned, PlannedOperation{
				AccountID: account.ID,
				Kind:      string(op.Kind),
				Ticker:    op.Ticker,
				Quantity:  op.Quantity,
				Price:     op.Price,
				Reason:    op.Reason,
			})
		}
		if err := a.db.RecordOperations(ctx, account.ID, planned); err != nil {
			a.logger.Warn("plan-operations: failed to record operations", zap.String("accountId", account.ID), zap.Error(err))
			skipped++
			continue
		}
		processed++
		a.logger.Info("plan-operations: planned operations",
			zap.String("accountId", account.ID), zap.Int("operations", len(ops)))
	}

	a.logger.Info("plan-operations complete", zap.Int("processed", processed), zap.Int("skipped", skipped))
	return nil
}

func (a *app) planForAccount(ctx context.Context, account Account, candlesByTicker map[string][]types.Candle) ([]planner.Operation, []planner.Skip, error) {
	strat, err := strategy.Create(account.TemplateID, account.Parameters)
	if err != nil {
		return nil, nil, err
	}

	accountState, err := a.broker.BuyingPower(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}

	tickers := make([]string, 0, len(candlesByTicker))
	for ticker := range candlesByTicker {
		tickers = append(tickers, ticker)
	}
	metadata, err := a.broker.TickerMetadata(ctx, tickers)
	if err != nil {
		return nil, nil, err
	}
	plannerMetadata := make(map[string]planner.TickerMetadata, len(metadata))
	for ticker, meta := range metadata {
		plannerMetadata[ticker] = planner.TickerMetadata{Name: meta.Name}
	}

	existingTrades, err := a.db.ExistingTrades(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}

	excludedTickers := make(map[string]bool, len(account.ExcludedTickers))
	for _, ticker := range account.ExcludedTickers {
		excludedTickers[ticker] = true
	}

	config := params.BuildEngineConfig(account.Parameters)
	ops, skips := planner.Plan(planner.Input{
		Strategy:         strat,
		Settings:         a.settings.Settings,
		Config:           config,
		Candles:          candlesByTicker,
		Account:          accountState,
		ExcludedTickers:  excludedTickers,
		ExcludedKeywords: account.ExcludedKeywords,
		ExistingTrades:   existingTrades,
		MaxBuysPerDay:    account.MaxBuysPerDay,
		TickerMetadata:   plannerMetadata,
	})
	return ops, skips, nil
}
