package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// runGenerateSignals computes today's signal for every account-linked
// strategy against the latest candle in the loaded market data, logging
// each buy or sell signal per ticker; hold signals are not logged.
func (a *app) runGenerateSignals(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate-signals", flag.ContinueOnError)
	dataFile := fs.String("data-file", "", "market data snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	accounts, err := a.db.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		a.logger.Info("generate-signals: no active strategies found")
		return nil
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}

	generated := 0
	for _, account := range accounts {
		strat, err := strategy.Create(account.TemplateID, account.Parameters)
		if err != nil {
			a.logger.Warn("generate-signals: unable to build strategy",
				zap.String("accountId", account.ID), zap.String("templateId", account.TemplateID), zap.Error(err))
			continue
		}

		for ticker, candles := range candlesByTicker {
			day := len(candles) - 1
			if day+1 < strat.MinDataPoints() {
				continue
			}
			signal := strat.GenerateSignal(ticker, candles, day)
			if signal.Action == types.ActionHold {
				continue
			}
			generated++
			a.logger.Info("generate-signals: signal",
				zap.String("accountId", account.ID),
				zap.String("templateId", account.TemplateID),
				zap.String("ticker", ticker),
				zap.String("action", string(signal.Action)),
				zap.Float64("confidence", signal.Confidence),
				zap.Time("date", candles[day].Date),
			)
		}
	}

	a.logger.Info("generate-signals complete", zap.Int("signals", generated))
	return nil
}
