package data_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/data"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func sampleCandle(day int, close float64) types.Candle {
	return types.Candle{
		Ticker:       "AAA",
		Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:         decimal.NewFromFloat(close),
		High:         decimal.NewFromFloat(close * 1.01),
		Low:          decimal.NewFromFloat(close * 0.99),
		Close:        decimal.NewFromFloat(close),
		VolumeShares: 1_000_000,
	}
}

func TestStore_SaveLoad_RoundTrips(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	snap := data.Snapshot{
		CandlesByTicker: map[string][]types.Candle{
			"AAA": {sampleCandle(2, 101), sampleCandle(0, 100), sampleCandle(1, 100.5)},
		},
		Settings: map[string]string{"optimizationObjective": "cagr"},
	}

	path := filepath.Join(t.TempDir(), "snapshot.msgpack")
	if err := store.Save(path, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	candles := loaded.CandlesByTicker["AAA"]
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Date.Before(candles[i-1].Date) {
			t.Fatalf("candles not sorted ascending by date at index %d", i)
		}
	}
	if loaded.Settings["optimizationObjective"] != "cagr" {
		t.Fatalf("settings did not round-trip: got %v", loaded.Settings)
	}
}

func TestStore_ValidateAll_RejectsInconsistentOHLC(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	bad := sampleCandle(0, 100)
	bad.High = decimal.NewFromFloat(90) // high below close: invalid

	snap := data.Snapshot{CandlesByTicker: map[string][]types.Candle{
		"AAA": {sampleCandle(0, 100), sampleCandle(1, 101)},
		"BBB": {bad},
	}}

	usable, rejected := store.ValidateAll(snap)
	if _, ok := usable["AAA"]; !ok {
		t.Fatal("expected AAA to remain usable")
	}
	if _, ok := usable["BBB"]; ok {
		t.Fatal("expected BBB to be rejected")
	}
	if len(rejected) != 1 || rejected[0].Ticker != "BBB" {
		t.Fatalf("expected exactly one rejection for BBB, got %+v", rejected)
	}
}
