package strategy

import (
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// psarStrategy implements Wilder's Parabolic SAR trend-following stop.
// A rising SAR below price signals an uptrend (buy); a falling SAR above
// price signals a downtrend (sell). Confidence scales with how far price
// has pulled away from the SAR relative to the maximum acceleration.
type psarStrategy struct {
	singleTicker
	accelerationStep float64
	accelerationMax  float64
	minConfidence    float64
}

func newPSARStrategy(p types.ParameterSet) *psarStrategy {
	return &psarStrategy{
		accelerationStep: params.GetClamped(p, "psarAccelerationStep", 0.02, 0.001, 0.5),
		accelerationMax:  params.GetClamped(p, "psarAccelerationMax", 0.2, 0.01, 1.0),
		minConfidence:    params.GetClamped(p, "minConfidence", 0, 0, 1),
	}
}

func (s *psarStrategy) TemplateID() string { return "psar" }

func (s *psarStrategy) MinDataPoints() int { return 3 }

// psarAt replays the SAR recurrence from the first candle up to index i,
// since PSAR is stateful and has no closed form. This keeps the strategy
// itself pure: every call recomputes from candles[0..=i].
func (s *psarStrategy) psarAt(candles []types.Candle, i int) (sar float64, rising bool) {
	high0 := candles[0].High.InexactFloat64()
	low0 := candles[0].Low.InexactFloat64()
	rising = candles[1].Close.InexactFloat64() >= candles[0].Close.InexactFloat64()

	var extremePoint float64
	if rising {
		sar = low0
		extremePoint = high0
	} else {
		sar = high0
		extremePoint = low0
	}
	accel := s.accelerationStep

	for j := 1; j <= i; j++ {
		high := candles[j].High.InexactFloat64()
		low := candles[j].Low.InexactFloat64()

		next := sar + accel*(extremePoint-sar)

		if rising {
			if low < next {
				rising = false
				next = extremePoint
				extremePoint = low
				accel = s.accelerationStep
			} else if high > extremePoint {
				extremePoint = high
				accel += s.accelerationStep
				if accel > s.accelerationMax {
					accel = s.accelerationMax
				}
			}
		} else {
			if high > next {
				rising = true
				next = extremePoint
				extremePoint = high
				accel = s.accelerationStep
			} else if low < extremePoint {
				extremePoint = low
				accel += s.accelerationStep
				if accel > s.accelerationMax {
					accel = s.accelerationMax
				}
			}
		}
		sar = next
	}
	return sar, rising
}

func (s *psarStrategy) GenerateSignal(ticker string, candles []types.Candle, i int) types.StrategySignal {
	if i+1 < s.MinDataPoints() {
		return types.HoldSignal()
	}
	sar, rising := s.psarAt(candles, i)
	close := candles[i].Close.InexactFloat64()
	if close == 0 {
		return types.HoldSignal()
	}
	distance := (close - sar) / close
	if distance < 0 {
		distance = -distance
	}
	confidence := distance / s.accelerationMax
	if confidence > 1 {
		confidence = 1
	}

	if rising {
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.BuySignal(confidence)
		}
	} else {
		if meetsConfidenceThreshold(confidence, s.minConfidence) {
			return types.SellSignal(confidence)
		}
	}
	return types.HoldSignal()
}
