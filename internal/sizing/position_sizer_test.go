package sizing_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/sizing"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func TestSizer_Fixed_IgnoresConfidenceAndVol(t *testing.T) {
	s := sizing.New(zap.NewNop(), types.PositionSizingConfig{Mode: types.SizingFixed}, 0.1)
	got := s.TargetNotional(decimal.NewFromInt(100000), 0.2, flatCloses(5, 100))
	if !got.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("TargetNotional() = %v, want 10000", got)
	}
}

func TestSizer_Confidence_ScalesLinearly(t *testing.T) {
	s := sizing.New(zap.NewNop(), types.PositionSizingConfig{Mode: types.SizingConfidence}, 0.1)
	got := s.TargetNotional(decimal.NewFromInt(100000), 0.5, nil)
	if !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("TargetNotional() = %v, want 5000", got)
	}
}

func TestSizer_VolTarget_ZeroVolatilityKeepsBaseSize(t *testing.T) {
	// A flat close series has zero realized volatility, so volScale falls
	// back to 1 (vol <= 0 guard) rather than dividing by zero.
	s := sizing.New(zap.NewNop(), types.PositionSizingConfig{
		Mode:            types.SizingVolTarget,
		VolTargetAnnual: 0.2,
		VolLookback:     20,
	}, 0.1)
	got := s.TargetNotional(decimal.NewFromInt(100000), 1, flatCloses(25, 100))
	if !got.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("TargetNotional() = %v, want base 10000 when realized vol is zero", got)
	}
}

func TestSizer_VolTarget_ScalesDownForHighVolatility(t *testing.T) {
	closes := make([]float64, 25)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price *= 1.1
		} else {
			price *= 0.9
		}
		closes[i] = price
	}
	s := sizing.New(zap.NewNop(), types.PositionSizingConfig{
		Mode:            types.SizingVolTarget,
		VolTargetAnnual: 0.1, // low target vs. the series' swings
		VolLookback:     20,
	}, 0.1)
	got := s.TargetNotional(decimal.NewFromInt(100000), 1, closes)
	base := 10000.0
	gotF, _ := got.Float64()
	if gotF >= base || gotF < 0 {
		t.Fatalf("TargetNotional() = %v, want scaled below base (%v) and non-negative", gotF, base)
	}
}

func TestSizer_ConfidenceVolTarget_CombinesBothScales(t *testing.T) {
	s := sizing.New(zap.NewNop(), types.PositionSizingConfig{
		Mode:            types.SizingConfidenceVolTarget,
		VolTargetAnnual: 0.2,
		VolLookback:     20,
	}, 0.1)
	got := s.TargetNotional(decimal.NewFromInt(100000), 0.5, flatCloses(25, 100))
	if !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("TargetNotional() = %v, want 5000 (base * confidence, vol scale = 1 for flat series)", got)
	}
}

func TestSizer_UnknownMode_DefaultsToFixed(t *testing.T) {
	s := sizing.New(zap.NewNop(), types.PositionSizingConfig{Mode: types.PositionSizingMode(99)}, 0.1)
	got := s.TargetNotional(decimal.NewFromInt(100000), 0.2, nil)
	if !got.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("TargetNotional() = %v, want base 10000 for unrecognized mode", got)
	}
}

func TestSizer_VolTarget_NeverExceedsBaseFraction(t *testing.T) {
	// Even with a target far above realized vol, mode 2's scale is clamped
	// to [0, 1]: it can only shrink the base size, never lever it above 1x.
	closes := flatCloses(25, 100)
	closes[24] = 100.01 // introduce a sliver of non-zero volatility
	s := sizing.New(zap.NewNop(), types.PositionSizingConfig{
		Mode:            types.SizingVolTarget,
		VolTargetAnnual: 1000, // deliberately huge vs. realized vol
		VolLookback:     20,
	}, 0.1)
	got := s.TargetNotional(decimal.NewFromInt(100000), 1, closes)
	gotF, _ := got.Float64()
	if gotF > 10000+1e-6 {
		t.Fatalf("TargetNotional() = %v, want capped at base 10000 regardless of vol target", gotF)
	}
	if math.IsNaN(gotF) {
		t.Fatal("TargetNotional() = NaN")
	}
}
