package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/data"
)

// runExportMarketData validates a raw candle snapshot and writes the
// usable subset to the canonical snapshot file every other command reads
// from. Live market-data ingestion happens elsewhere; --input is expected
// to already be in the Store's wire format, produced by an external fetch
// job.
func (a *app) runExportMarketData(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-market-data", flag.ContinueOnError)
	input := fs.String("input", "", "raw market data snapshot to validate and export")
	output := fs.String("output", defaultMarketDataFile, "destination snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("export-market-data: --input is required")
	}

	snap, err := a.store.Load(*input)
	if err != nil {
		return fmt.Errorf("export-market-data: %w", err)
	}

	usable, rejected := a.store.ValidateAll(snap)
	for _, r := range rejected {
		a.logger.Warn("export-market-data: rejecting ticker", zap.String("ticker", r.Ticker), zap.Int("issues", len(r.Issues)))
	}
	if len(usable) == 0 {
		return fmt.Errorf("export-market-data: %s has no usable tickers after validation", *input)
	}

	err = a.store.Save(*output, data.Snapshot{
		CandlesByTicker: usable,
		Settings:        snap.Settings,
		CapturedAt:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("export-market-data: %w", err)
	}

	a.logger.Info("export-market-data complete",
		zap.String("output", *output),
		zap.Int("tickers", len(usable)),
		zap.Int("rejected", len(rejected)),
	)
	return nil
}
