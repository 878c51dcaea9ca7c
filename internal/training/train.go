// Package training fits the scoring model the "lightgbm_<id>" strategy
// templates use (internal/strategy/gbt.go's GBTModel). A full pipeline
// trains an actual gradient-boosted-tree model against in-database market
// data; no GBT/LightGBM binding exists anywhere in this corpus's dependency
// surface, so this trainer fits a logistic-regression scorer over the same
// fixed feature vector (RSI, MACD histogram, ADX, rate of change) using
// gonum's linear algebra primitives, and is registered under the GBTModel
// interface exactly like a real tree ensemble would be.
package training

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Config is the train-lightgbm CLI surface. Fields
// beyond Iterations and LearningRate describe hyperparameters a true
// boosted-tree ensemble would take (leaves, depth, regularization); this
// linear stand-in has no use for them but accepts and records them so a
// caller's invocation stays forward-compatible with a future real trainer.
type Config struct {
	Iterations      int
	LearningRate    float64
	NumLeaves       int
	MaxDepth        int
	MinDataInLeaf   int
	MinGainToSplit  float64
	LambdaL1        float64
	LambdaL2        float64
	FeatureFraction float64
	BaggingFraction float64
	BaggingFreq     int
	EarlyStopRounds int
	ForwardHorizon  int
}

// DefaultConfig is tuned for an offline research trainer: a moderate
// iteration count and learning rate, five-day forward return as the label
// horizon.
func DefaultConfig() Config {
	return Config{
		Iterations:     200,
		LearningRate:   0.05,
		ForwardHorizon: 5,
	}
}

// LinearModel is a trained weight vector plus bias over the GBTModel
// feature vector, scoring in [-1, 1] via tanh.
type LinearModel struct {
	Weights []float64
	Bias    float64
}

// Predict implements strategy.GBTModel.
func (m *LinearModel) Predict(features []float64) float64 {
	sum := m.Bias
	for i, f := range features {
		if i >= len(m.Weights) {
			break
		}
		sum += m.Weights[i] * f
	}
	return math.Tanh(sum)
}

// Train fits a LinearModel from candlesByTicker by batch gradient descent
// over a cross-entropy loss against the sign of each day's forward return.
func Train(candlesByTicker map[string][]types.Candle, cfg Config) (*LinearModel, error) {
	rows, labels := buildDataset(candlesByTicker, cfg.ForwardHorizon)
	if len(rows) == 0 {
		return nil, fmt.Errorf("training: no usable rows in %d ticker(s)", len(candlesByTicker))
	}

	n := len(rows)
	dims := len(rows[0])
	flat := make([]float64, 0, n*dims)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	x := mat.NewDense(n, dims, flat)
	y := mat.NewVecDense(n, labels)

	lr := cfg.LearningRate
	if lr <= 0 {
		lr = 0.05
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 200
	}

	w := mat.NewVecDense(dims, nil)
	bias := 0.0
	residual := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(dims, nil)

	for iter := 0; iter < iterations; iter++ {
		residual.MulVec(x, w)
		for i := 0; i < n; i++ {
			residual.SetVec(i, sigmoid(residual.AtVec(i)+bias)-y.AtVec(i))
		}
		grad.MulVec(x.T(), residual)
		w.AddScaledVec(w, -lr/float64(n), grad)
		bias -= lr * mat.Sum(residual) / float64(n)
	}

	weights := make([]float64, dims)
	copy(weights, w.RawVector().Data)
	return &LinearModel{Weights: weights, Bias: bias}, nil
}

func buildDataset(candlesByTicker map[string][]types.Candle, horizon int) ([][]float64, []float64) {
	if horizon <= 0 {
		horizon = 5
	}
	var features [][]float64
	var labels []float64
	for _, candles := range candlesByTicker {
		for i := strategy.LightGBMMinDataPoints; i+horizon < len(candles); i++ {
			row := strategy.LightGBMFeatures(candles, i)
			future, _ := candles[i+horizon].Close.Float64()
			current, _ := candles[i].Close.Float64()
			if current == 0 {
				continue
			}
			label := 0.0
			if future > current {
				label = 1.0
			}
			features = append(features, row)
			labels = append(labels, label)
		}
	}
	return features, labels
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// SaveModel writes m to path as JSON, creating parent directories as
// needed.
func SaveModel(path string, m *LinearModel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("training: create model directory: %w", err)
	}
	encoded, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("training: encode model: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("training: write model %s: %w", path, err)
	}
	return nil
}

// LoadModel reads a model previously written by SaveModel.
func LoadModel(path string) (*LinearModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("training: read model %s: %w", path, err)
	}
	var m LinearModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("training: decode model %s: %w", path, err)
	}
	return &m, nil
}

// RegisterSavedModels loads every *.json model under dir and registers it
// with the strategy model registry under its filename stem, so
// "lightgbm_<stem>" templates resolve in processes that did not run the
// trainer themselves. A missing directory is not an error. The registry
// must be populated before any matching strategy is constructed; callers
// run this during startup.
func RegisterSavedModels(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("training: read model directory %s: %w", dir, err)
	}
	registered := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		model, err := LoadModel(filepath.Join(dir, entry.Name()))
		if err != nil {
			return registered, err
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		strategy.RegisterModel(id, model)
		registered++
	}
	return registered, nil
}
