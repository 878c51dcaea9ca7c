package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Snapshot is the market-data collection the simulator and optimizer share:
// candles grouped by ticker plus the settings map the run was captured
// with. It is opaque in format to the rest of the core but MUST
// round-trip losslessly through Save/Load.
type Snapshot struct {
	CandlesByTicker map[string][]types.Candle
	Settings        map[string]string
	CapturedAt      time.Time
}

// wireSnapshot is Snapshot's on-disk shape: decimal.Decimal marshals to
// msgpack fine via its MarshalBinary implementation, so no field-level
// conversion is needed; the wire form only adds a Version field for
// forward compatibility.
type wireSnapshot struct {
	Version         int
	CandlesByTicker map[string][]types.Candle
	Settings        map[string]string
	CapturedAt      time.Time
}

const snapshotFormatVersion = 1

// Store loads and persists market-data snapshots from a data directory, and
// hands out the loaded candle set as a single shared, read-only map:
// every optimization worker reads the same map concurrently, none clone
// it.
type Store struct {
	logger  *zap.Logger
	dataDir string
}

// NewStore builds a Store rooted at dataDir, creating it if absent.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data: create data directory: %w", err)
	}
	return &Store{logger: logger, dataDir: dataDir}, nil
}

// Save serializes snap to path as a self-describing msgpack document.
func (s *Store) Save(path string, snap Snapshot) error {
	wire := wireSnapshot{
		Version:         snapshotFormatVersion,
		CandlesByTicker: snap.CandlesByTicker,
		Settings:        snap.Settings,
		CapturedAt:      snap.CapturedAt,
	}
	encoded, err := msgpack.Marshal(&wire)
	if err != nil {
		return fmt.Errorf("data: encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("data: write snapshot %s: %w", path, err)
	}
	if s.logger != nil {
		s.logger.Info("wrote market data snapshot", zap.String("path", path), zap.Int("tickers", len(snap.CandlesByTicker)))
	}
	return nil
}

// Load reads and validates a snapshot written by Save, sorting each
// ticker's candles ascending by date (the simulator's required ordering)
// regardless of how they were stored.
func (s *Store) Load(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("data: read snapshot %s: %w", path, err)
	}
	var wire wireSnapshot
	if err := msgpack.Unmarshal(raw, &wire); err != nil {
		return Snapshot{}, fmt.Errorf("data: decode snapshot %s: %w", path, err)
	}
	if wire.Version != snapshotFormatVersion {
		return Snapshot{}, fmt.Errorf("data: snapshot %s has unsupported format version %d", path, wire.Version)
	}
	for ticker, candles := range wire.CandlesByTicker {
		sorted := append([]types.Candle{}, candles...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		wire.CandlesByTicker[ticker] = sorted
	}
	return Snapshot{CandlesByTicker: wire.CandlesByTicker, Settings: wire.Settings, CapturedAt: wire.CapturedAt}, nil
}

// ValidateAll runs the quality validator over every ticker in snap and
// returns the tickers whose series failed critical checks, dropped from
// a run rather than aborting it.
func (s *Store) ValidateAll(snap Snapshot) (usable map[string][]types.Candle, rejected []QualityReport) {
	validator := NewQualityValidator(s.logger)
	usable = make(map[string][]types.Candle, len(snap.CandlesByTicker))
	for ticker, candles := range snap.CandlesByTicker {
		report := validator.Validate(ticker, candles)
		if !report.IsUsable {
			rejected = append(rejected, report)
			if s.logger != nil {
				s.logger.Warn("dropping ticker with invalid candles", zap.String("ticker", ticker), zap.Int("issues", len(report.Issues)))
			}
			continue
		}
		usable[ticker] = candles
	}
	return usable, rejected
}
