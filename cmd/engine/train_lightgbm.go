package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/internal/training"
)

// runTrainLightGBM fits a scoring model over the loaded market data,
// registers it under --model-id so "lightgbm_<id>" templates resolve in
// this process, and writes it to the models directory for later runs.
func (a *app) runTrainLightGBM(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train-lightgbm", flag.ContinueOnError)
	dataFile := fs.String("data-file", "", "market data snapshot path")
	modelID := fs.String("model-id", "default", "id the trained model is registered and saved under")
	iterations := fs.Int("iterations", 0, "training iterations (0 uses the default)")
	learningRate := fs.Float64("learning-rate", 0, "gradient step size (0 uses the default)")
	forwardHorizon := fs.Int("forward-horizon", 0, "days ahead used for the forward-return label (0 uses the default)")
	numLeaves := fs.Int("num-leaves", 0, "tree leaves per iteration")
	maxDepth := fs.Int("max-depth", 0, "maximum tree depth")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelID == "" {
		return fmt.Errorf("train-lightgbm: --model-id must be non-empty")
	}

	candlesByTicker, err := a.loadMarketData(*dataFile)
	if err != nil {
		return err
	}

	cfg := training.DefaultConfig()
	if *iterations > 0 {
		cfg.Iterations = *iterations
	}
	if *learningRate > 0 {
		cfg.LearningRate = *learningRate
	}
	if *forwardHorizon > 0 {
		cfg.ForwardHorizon = *forwardHorizon
	}
	cfg.NumLeaves = *numLeaves
	cfg.MaxDepth = *maxDepth

	model, err := training.Train(candlesByTicker, cfg)
	if err != nil {
		return fmt.Errorf("train-lightgbm: %w", err)
	}

	strategy.RegisterModel(*modelID, model)

	modelPath := filepath.Join(a.modelsDir(), *modelID+".json")
	if err := training.SaveModel(modelPath, model); err != nil {
		return fmt.Errorf("train-lightgbm: %w", err)
	}

	a.logger.Info("train-lightgbm complete",
		zap.String("modelId", *modelID),
		zap.String("path", modelPath),
		zap.Int("tickers", len(candlesByTicker)),
		zap.Int("iterations", cfg.Iterations),
		zap.Float64s("weights", model.Weights),
		zap.Float64("bias", model.Bias),
	)
	return nil
}
