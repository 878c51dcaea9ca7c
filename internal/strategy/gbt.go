package strategy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

const lightGBMPrefix = "lightgbm_"

func isLightGBMTemplate(templateID string) bool {
	return strings.HasPrefix(templateID, lightGBMPrefix)
}

// GBTModel is a trained gradient-boosted-tree model's scoring function: it
// takes a fixed-order feature vector and returns a score in [-1, 1], where
// positive means bullish and negative bearish. Models are trained offline
// (see cmd/engine's train-lightgbm subcommand) and registered by ID before
// any backtest or optimization run references them.
type GBTModel interface {
	Predict(features []float64) float64
}

var (
	modelRegistryMu sync.RWMutex
	modelRegistry   = map[string]GBTModel{}
)

// RegisterModel installs a trained model under id, making it available to
// any "lightgbm_<id>" template. Safe for concurrent use; intended to be
// called once at process startup per model.
func RegisterModel(id string, model GBTModel) {
	modelRegistryMu.Lock()
	defer modelRegistryMu.Unlock()
	modelRegistry[id] = model
}

func lookupModel(id string) (GBTModel, bool) {
	modelRegistryMu.RLock()
	defer modelRegistryMu.RUnlock()
	model, ok := modelRegistry[id]
	return model, ok
}

// lightGBMStrategy derives a fixed feature vector (RSI, MACD histogram, ADX,
// rate of change) per candle and scores it with a registered model; it holds
// only a read-only reference to that model, so it remains safe to share
// across concurrent optimization workers.
type lightGBMStrategy struct {
	singleTicker
	modelID       string
	model         GBTModel
	buyThreshold  float64
	sellThreshold float64
	minConfidence float64
}

func newLightGBMStrategy(templateID string, p types.ParameterSet) (Strategy, error) {
	modelID := strings.TrimPrefix(templateID, lightGBMPrefix)
	if modelID == "" {
		return nil, fmt.Errorf("strategy: lightgbm template missing model id: %q", templateID)
	}
	model, ok := lookupModel(modelID)
	if !ok {
		return nil, fmt.Errorf("strategy: no model registered for id %q", modelID)
	}
	return &lightGBMStrategy{
		modelID:       modelID,
		model:         model,
		buyThreshold:  params.GetClamped(p, "gbtBuyThreshold", 0.2, 0, 1),
		sellThreshold: params.GetClamped(p, "gbtSellThreshold", -0.2, -1, 0),
		minConfidence: params.GetClamped(p, "minConfidence", 0, 0, 1),
	}, nil
}

func (s *lightGBMStrategy) TemplateID() string { return lightGBMPrefix + s.modelID }

func (s *lightGBMStrategy) MinDataPoints() int { return LightGBMMinDataPoints }

func (s *lightGBMStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	features := s.featuresAt(candles, i)
	score := s.model.Predict(features)

	switch {
	case score >= s.buyThreshold:
		confidence := score
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	case score <= s.sellThreshold:
		confidence := -score
		if confidence > 1 {
			confidence = 1
		}
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}

func (s *lightGBMStrategy) featuresAt(candles []types.Candle, i int) []float64 {
	return LightGBMFeatures(candles, i)
}

// LightGBMFeatures computes the fixed-order feature vector (RSI, MACD
// histogram, ADX, rate of change) a lightgbm_<id> model scores. Exported so
// an offline trainer (cmd/engine's train-lightgbm) builds training rows
// with exactly the features the live strategy will score against.
func LightGBMFeatures(candles []types.Candle, i int) []float64 {
	closes := closesUpTo(candles, i)
	highs, lows, _ := highsLowsClosesUpTo(candles, i)

	rsi, _ := indicators.RSIAt(candles, 14, i)
	_, _, hist := indicators.MACD(closes, 12, 26, 9)
	macdHist := 0.0
	if len(hist) > 0 {
		macdHist = hist[len(hist)-1]
	}
	adxOut := indicators.ADX(highs, lows, closes, 14)
	adx := adxOut[i].ADX
	roc, _ := indicators.ROC(closes, 10, i)

	return []float64{rsi, macdHist, adx, roc}
}

// LightGBMMinDataPoints is the warm-up window LightGBMFeatures needs before
// its indicators have settled, matching lightGBMStrategy.MinDataPoints.
const LightGBMMinDataPoints = 60
