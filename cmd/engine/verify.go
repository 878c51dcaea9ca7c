package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/backtester"
	"github.com/atlas-desktop/trading-backend/internal/cache"
	"github.com/atlas-desktop/trading-backend/internal/data"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// requireDateEnv reads an RFC 3339 date-only environment variable, failing
// loudly when it is unset or malformed: configuration errors are fatal,
// reported before any work begins.
func requireDateEnv(name string) (time.Time, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required and not set", name)
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q (want YYYY-MM-DD): %w", name, raw, err)
	}
	return t, nil
}

// runVerify re-runs every cache entry recorded for templateID over the
// VERIFY_WINDOW_START_DATE/VERIFY_WINDOW_END_DATE window across the full
// ticker universe, logging each entry's refreshed metrics.
func (a *app) runVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	dataFile := fs.String("data-file", "", "market data snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("verify: missing required <template_id> argument")
	}
	templateID := fs.Arg(0)
	// flags may also follow the template id
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return err
	}

	start, err := requireDateEnv("VERIFY_WINDOW_START_DATE")
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	end, err := requireDateEnv("VERIFY_WINDOW_END_DATE")
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}
	windowed := data.FilterByDateRange(candlesByTicker, start, end)

	entries := a.cache.Entries()
	updated := 0
	for _, entry := range entries {
		if entry.TemplateID != templateID || entry.Parameters == nil {
			continue
		}
		sim := backtester.NewSimulatorForParameters(a.logger, a.settings.Settings, entry.Parameters)
		result, err := sim.Run(templateID, windowed, types.ScopeAll)
		if err != nil {
			a.logger.Warn("verify: re-run failed for cached entry", zap.String("templateId", templateID), zap.Error(err))
			continue
		}
		a.cache.Store(cache.StoreEntry{
			TemplateID:  templateID,
			Parameters:  entry.Parameters,
			Result:      *result,
			TickerCount: len(windowed),
			StartDate:   result.StartDate,
			EndDate:     result.EndDate,
		})
		updated++
	}

	a.logger.Info("verify complete",
		zap.String("templateId", templateID),
		zap.Int("cachedEntries", len(entries)),
		zap.Int("updated", updated),
	)
	return nil
}
