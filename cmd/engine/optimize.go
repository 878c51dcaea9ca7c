package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/api"
	"github.com/atlas-desktop/trading-backend/internal/backtester"
	"github.com/atlas-desktop/trading-backend/internal/cache"
	"github.com/atlas-desktop/trading-backend/internal/data"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/internal/optimization"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// runOptimize drives the two-phase parameter search over the
// training-ticker slice of the loaded market data, using the simulator as
// the optimizer's evaluation oracle.
func (a *app) runOptimize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	dataFile := fs.String("data-file", "", "market data snapshot path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("optimize: missing required <template_id> argument")
	}
	templateID := fs.Arg(0)
	// flags may also follow the template id
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return err
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}
	training := data.FilterByScope(candlesByTicker, types.ScopeTraining)
	if len(training) == 0 {
		return fmt.Errorf("optimize: no training-scope tickers in the loaded snapshot")
	}

	ranges := rangesFor(templateID)
	base := midpointParameters(ranges)

	// a long optimize run exposes its cache, /metrics, and a status push
	// channel on SERVER_PORT so dashboards (and sibling engine processes)
	// can watch or reuse it
	var hub *api.Hub
	if a.settings.ServerPort > 0 {
		server := api.NewServer(a.logger, types.ServerConfig{
			Host:          "127.0.0.1",
			Port:          a.settings.ServerPort,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			EnableMetrics: true,
		}, a.cache, a.settings.BacktestAPISecret)
		hub = server.Hub
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Warn("optimize: status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	publisher := optimization.NewStatusPublisher(func(status optimization.Status) {
		metrics.ObserveOptimizerStatus(templateID, status)
		if hub != nil {
			hub.BroadcastOptimizerStatus(status)
		}
	})
	opt := optimization.New(a.logger, a.evaluateVariation(templateID, training, types.ScopeTraining), publisher)

	cfg := optimization.Config{
		TemplateID:           templateID,
		BaseParameters:       base,
		ParametersToOptimize: parameterNames(ranges),
		Ranges:               ranges,
		StepMultipliers:      a.settings.LocalOptimizationStepMultipliers,
		Objective:            a.settings.OptimizationObjective,
	}

	results, err := opt.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	best := bestResult(results, cfg.Objective, a.settings.MaxAllowedDrawdownRatio)
	if best == nil {
		a.logger.Warn("optimize: no variation passed the drawdown cap",
			zap.String("templateId", templateID),
			zap.Float64("maxAllowedDrawdownRatio", a.settings.MaxAllowedDrawdownRatio))
		return nil
	}
	a.logger.Info("optimize complete",
		zap.String("templateId", templateID),
		zap.Int("variations", len(results)),
		zap.Float64("cagr", best.Metrics.CAGR),
		zap.Float64("sharpe", best.Metrics.SharpeRatio),
		zap.String("bestSignature", best.Signature),
	)
	return nil
}

// evaluateVariation builds the optimizer's EvaluateFunc: every ParameterSet
// variation the optimizer generates is checked against the result cache,
// then (on a miss) turned into an EngineConfig via
// backtester.NewSimulatorForParameters, run, and stored back in the cache
// keyed by its parameter signature.
func (a *app) evaluateVariation(templateID string, candlesByTicker map[string][]types.Candle, scope types.TickerScope) optimization.EvaluateFunc {
	return func(ctx context.Context, parameters types.ParameterSet) (types.PerformanceMetrics, error) {
		if cached, ok := a.cache.Check(ctx, templateID, parameters); ok {
			return cached.Metrics, nil
		}

		sim := backtester.NewSimulatorForParameters(a.logger, a.settings.Settings, parameters)
		result, err := sim.Run(templateID, candlesByTicker, scope)
		if err != nil {
			return types.PerformanceMetrics{}, err
		}

		a.cache.Store(cache.StoreEntry{
			TemplateID:          templateID,
			Parameters:          parameters,
			Result:              *result,
			TickerCount:         len(candlesByTicker),
			StartDate:           result.StartDate,
			EndDate:             result.EndDate,
			OptimizationVersion: a.settings.LocalOptimizationVersion,
		})
		return result.Metrics, nil
	}
}

func midpointParameters(ranges map[string]types.ParameterRange) types.ParameterSet {
	base := make(types.ParameterSet, len(ranges))
	for name, r := range ranges {
		base[name] = r.Min + (r.Max-r.Min)/2
	}
	return base
}

// bestResult picks the best candidate by the configured objective, after
// discarding any whose drawdown exceeds maxDrawdownRatio (a cap of 0
// disables the filter).
func bestResult(results []optimization.Result, objective types.OptimizationObjective, maxDrawdownRatio float64) *optimization.Result {
	var best *optimization.Result
	bestValue := math.Inf(-1)
	for i := range results {
		if maxDrawdownRatio > 0 && results[i].Metrics.MaxDrawdownRatio > maxDrawdownRatio {
			continue
		}
		v := results[i].Metrics.CAGR
		if objective == types.ObjectiveSharpe {
			v = results[i].Metrics.SharpeRatio
		}
		if v > bestValue {
			bestValue = v
			best = &results[i]
		}
	}
	return best
}
