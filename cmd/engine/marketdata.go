package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// defaultMarketDataFile is where export-market-data writes and every other
// data-consuming command reads from absent an explicit --data-file flag.
const defaultMarketDataFile = "market_data.snapshot"

// loadMarketData loads and validates a snapshot, returning only the
// tickers whose candle series passed quality validation. Malformed
// candles for a ticker are skipped, not fatal.
func (a *app) loadMarketData(path string) (map[string][]types.Candle, error) {
	if path == "" {
		path = defaultMarketDataFile
	}
	snap, err := a.store.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load market data: %w", err)
	}
	usable, rejected := a.store.ValidateAll(snap)
	for _, r := range rejected {
		a.logger.Warn("rejected ticker in market data snapshot",
			zap.String("ticker", r.Ticker), zap.Int("issues", len(r.Issues)))
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("load market data: snapshot %s has no usable tickers", path)
	}
	return usable, nil
}
