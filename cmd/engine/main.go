// Command engine is the stratcraft research engine's CLI entry point: it
// runs the parameter optimizer, backtest verification/balance/active
// windows, the live operations planner, and the supporting data/model
// utilities, all against a local market-data snapshot file.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/trading-backend/internal/cache"
	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/data"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/internal/training"
)

// app bundles the collaborators every subcommand needs. Database and Broker
// are narrow interfaces behind which a real Postgres/brokerage integration
// would sit; order routing and account persistence live outside this
// engine, so the default wiring here is
// a stub that answers every call with a "not configured" error (see
// collaborators.go) rather than a live driver.
type app struct {
	logger   *zap.Logger
	settings config.Settings
	dataDir  string
	store    *data.Store
	cache    *cache.Manager
	db       Database
	broker   Broker
}

// modelsDir is where train-lightgbm writes models and startup reads them
// back from.
func (a *app) modelsDir() string {
	return filepath.Join(a.dataDir, "models")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := setupLogger(logLevel)
	defer logger.Sync()

	settings, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	metrics.Init()

	dataDir := os.Getenv("ENGINE_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	store, err := data.NewStore(logger, dataDir)
	if err != nil {
		logger.Fatal("failed to initialize data store", zap.Error(err))
	}

	cacheManager, err := cache.NewManager(logger, settings)
	if err != nil {
		logger.Fatal("failed to initialize result cache", zap.Error(err))
	}

	a := &app{
		logger:   logger,
		settings: settings,
		dataDir:  dataDir,
		store:    store,
		cache:    cacheManager,
		db:       newStubDatabase(logger),
		broker:   newStubBroker(logger),
	}

	// lightgbm_<id> templates resolve against the model registry, which
	// must be populated before any strategy construction
	if registered, err := training.RegisterSavedModels(a.modelsDir()); err != nil {
		logger.Fatal("failed to load saved models", zap.Error(err))
	} else if registered > 0 {
		logger.Info("registered saved models", zap.Int("count", registered))
	}

	cmd := os.Args[1]
	args := os.Args[2:]
	ctx := a.signalContext()

	var runErr error
	switch cmd {
	case "optimize":
		runErr = a.runOptimize(ctx, args)
	case "verify":
		runErr = a.runVerify(ctx, args)
	case "balance":
		runErr = a.runBalance(ctx, args)
	case "backtest-active":
		runErr = a.runBacktestActive(ctx, args)
	case "backtest-accounts":
		runErr = a.runBacktestAccounts(ctx, args)
	case "plan-operations":
		runErr = a.runPlanOperations(ctx, args)
	case "reconcile-trades":
		runErr = a.runReconcileTrades(ctx, args)
	case "generate-signals":
		runErr = a.runGenerateSignals(ctx, args)
	case "export-market-data":
		runErr = a.runExportMarketData(ctx, args)
	case "train-lightgbm":
		runErr = a.runTrainLightGBM(ctx, args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "engine: unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		logger.Error("command failed", zap.String("command", cmd), zap.Error(runErr))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: engine <command> [flags]

commands:
  optimize <template_id> [--data-file PATH]
  verify <template_id> [--data-file PATH]
  balance <template_id> --data-file PATH
  backtest-active [--scope validation|training|all] <months>...
  backtest-accounts
  plan-operations
  reconcile-trades
  generate-signals
  export-market-data --input PATH [--output PATH]
  train-lightgbm [flags...]`)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
