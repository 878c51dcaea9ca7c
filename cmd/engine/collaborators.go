package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/planner"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Database is the persistence boundary for the DB-backed commands
// (backtest-accounts, reconcile-trades): account rows, existing trades, and
// optimizer result history. The storage engine itself lives outside this
// module; this interface is the wiring point a real driver implements.
type Database interface {
	Accounts(ctx context.Context) ([]Account, error)
	ExistingTrades(ctx context.Context, accountID string) (map[string]types.Trade, error)
	RecordOperations(ctx context.Context, accountID string, ops []PlannedOperation) error
}

// Broker is the live trading account boundary plan-operations and
// reconcile-trades read from: buying power, equity, and ticker metadata
// used for keyword exclusion. Order routing is not this engine's job;
// stubbed the same way as Database.
type Broker interface {
	BuyingPower(ctx context.Context, accountID string) (planner.AccountState, error)
	TickerMetadata(ctx context.Context, tickers []string) (map[string]TickerMeta, error)
	OpenPositions(ctx context.Context, accountID string) (map[string]types.Trade, error)
}

// Account identifies one account the engine plans or reconciles against.
type Account struct {
	ID               string
	TemplateID       string
	Parameters       types.ParameterSet
	ExcludedTickers  []string
	ExcludedKeywords []string
	MaxBuysPerDay    int
}

// TickerMeta is the broker-reported descriptive data used for keyword-based
// exclusion in the planner.
type TickerMeta struct {
	Name string
}

// PlannedOperation is one operation the planner emitted, paired with the
// account it was planned for, ready to persist or submit to a broker.
type PlannedOperation struct {
	AccountID string
	Kind      string
	Ticker    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Reason    string
}

// stubDatabase reports a clear "not configured" error for every query
// rather than silently returning empty results, so a misconfigured
// deployment fails loudly.
type stubDatabase struct{ logger *zap.Logger }

func newStubDatabase(logger *zap.Logger) Database { return &stubDatabase{logger: logger} }

func (s *stubDatabase) Accounts(ctx context.Context) ([]Account, error) {
	return nil, fmt.Errorf("database: no DATABASE_URL-backed store configured; set DATABASE_URL and wire a driver to use DB-backed commands")
}

func (s *stubDatabase) ExistingTrades(ctx context.Context, accountID string) (map[string]types.Trade, error) {
	return nil, fmt.Errorf("database: no DATABASE_URL-backed store configured for account %q", accountID)
}

func (s *stubDatabase) RecordOperations(ctx context.Context, accountID string, ops []PlannedOperation) error {
	return fmt.Errorf("database: no DATABASE_URL-backed store configured; %d operation(s) for account %q were not persisted", len(ops), accountID)
}

// stubBroker mirrors stubDatabase for the account/execution boundary.
type stubBroker struct{ logger *zap.Logger }

func newStubBroker(logger *zap.Logger) Broker { return &stubBroker{logger: logger} }

func (s *stubBroker) BuyingPower(ctx context.Context, accountID string) (planner.AccountState, error) {
	return planner.AccountState{}, fmt.Errorf("broker: no brokerage integration configured for account %q", accountID)
}

func (s *stubBroker) TickerMetadata(ctx context.Context, tickers []string) (map[string]TickerMeta, error) {
	return nil, fmt.Errorf("broker: no brokerage integration configured; cannot resolve metadata for %d ticker(s)", len(tickers))
}

func (s *stubBroker) OpenPositions(ctx context.Context, accountID string) (map[string]types.Trade, error) {
	return nil, fmt.Errorf("broker: no brokerage integration configured for account %q", accountID)
}
