package params

import (
	"math"
	"testing"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestSignature_OrderIndependent(t *testing.T) {
	a := types.ParameterSet{"a": 1.0, "b": 2.0}
	b := types.ParameterSet{"b": 2.0, "a": 1.0}
	if Signature("tmpl", a) != Signature("tmpl", b) {
		t.Fatal("signatures differ for equal parameter maps")
	}
	if Signature("tmpl", a) == Signature("other", a) {
		t.Fatal("signatures collide across template ids")
	}

	c := a.Clone()
	c["a"] = 1.5
	if Signature("tmpl", a) == Signature("tmpl", c) {
		t.Fatal("signatures collide for different parameter values")
	}
}

func TestIsInactive_Table(t *testing.T) {
	cases := []struct {
		name   string
		param  string
		params types.ParameterSet
		want   bool
	}{
		{"initial capital always inactive", "initialCapital", types.ParameterSet{}, true},
		{"stop ratio inactive under ATR mode", "stopLossRatio", types.ParameterSet{"stopLossMode": 1}, true},
		{"stop ratio active under percent mode", "stopLossRatio", types.ParameterSet{"stopLossMode": 0}, false},
		{"atr period inactive under percent mode", "atrPeriod", types.ParameterSet{"stopLossMode": 0}, true},
		{"atr multiplier active under ATR mode", "atrMultiplier", types.ParameterSet{"stopLossMode": 1}, false},
		{"vol target inactive in fixed sizing", "volTargetAnnual", types.ParameterSet{"positionSizingMode": 0, "volTargetAnnual": 0.2}, true},
		{"vol target inactive when target non-positive", "volTargetAnnual", types.ParameterSet{"positionSizingMode": 2, "volTargetAnnual": 0}, true},
		{"vol lookback active in vol-target sizing", "volLookback", types.ParameterSet{"positionSizingMode": 2, "volTargetAnnual": 0.2}, false},
		{"vol lookback active in combined sizing", "volLookback", types.ParameterSet{"positionSizingMode": 3, "volTargetAnnual": 0.2}, false},
		{"ordinary parameter active", "rsiPeriod", types.ParameterSet{}, false},
	}
	for _, tc := range cases {
		if got := IsInactive(tc.param, tc.params); got != tc.want {
			t.Errorf("%s: IsInactive(%q, %v) = %v, want %v", tc.name, tc.param, tc.params, got, tc.want)
		}
	}
}

func TestAddSingleParameterNeighbors_PerturbsOneParameterWithinRange(t *testing.T) {
	current := types.ParameterSet{"x": 5}
	ranges := map[string]types.ParameterRange{"x": {Min: 0, Max: 10, Step: 1}}
	seen := map[string]struct{}{Key(current): {}}
	var neighbors []types.ParameterSet

	AddSingleParameterNeighbors([]string{"x"}, ranges, []float64{-2, -1, 1, 2}, current, seen, &neighbors)

	got := map[float64]bool{}
	for _, n := range neighbors {
		got[n["x"]] = true
	}
	for _, want := range []float64{3, 4, 6, 7} {
		if !got[want] {
			t.Errorf("expected neighbor x=%v, got %v", want, got)
		}
	}
	if len(neighbors) != 4 {
		t.Fatalf("expected exactly 4 neighbors, got %d", len(neighbors))
	}
}

func TestAddSingleParameterNeighbors_ClampsAndDropsNoOps(t *testing.T) {
	current := types.ParameterSet{"x": 10}
	ranges := map[string]types.ParameterRange{"x": {Min: 0, Max: 10, Step: 1}}
	seen := map[string]struct{}{}
	var neighbors []types.ParameterSet

	// +1 and +2 overshoot the range and clamp back to 10, a no-op, so they
	// are dropped; only the downward perturbation survives
	AddSingleParameterNeighbors([]string{"x"}, ranges, []float64{-1, 1, 2}, current, seen, &neighbors)
	if len(neighbors) != 1 || neighbors[0]["x"] != 9 {
		t.Fatalf("expected a single neighbor at x=9, got %+v", neighbors)
	}
}

func TestAddSingleParameterNeighbors_SkipsInactiveParameters(t *testing.T) {
	current := types.ParameterSet{"stopLossRatio": 0.05, "stopLossMode": 1}
	ranges := map[string]types.ParameterRange{"stopLossRatio": {Min: 0.01, Max: 0.2, Step: 0.01}}
	seen := map[string]struct{}{}
	var neighbors []types.ParameterSet

	AddSingleParameterNeighbors([]string{"stopLossRatio"}, ranges, []float64{-1, 1}, current, seen, &neighbors)
	if len(neighbors) != 0 {
		t.Fatalf("expected no neighbors for a parameter inactive under ATR stop mode, got %+v", neighbors)
	}
}

func TestCoerceBinary(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0}, {0.49, 0}, {0.5, 1}, {1, 1}, {0.75, 1},
	}
	for _, tc := range cases {
		if got := CoerceBinary(tc.in, 1); got != tc.want {
			t.Errorf("CoerceBinary(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := CoerceBinary(math.NaN(), 1); got != 1 {
		t.Errorf("CoerceBinary(NaN) = %v, want the default", got)
	}
}

func TestGetClamped_FallsBackOnNonFinite(t *testing.T) {
	p := types.ParameterSet{"a": math.Inf(1), "b": 150}
	if got := GetClamped(p, "a", 14, 2, 100); got != 14 {
		t.Errorf("GetClamped(inf) = %v, want default 14", got)
	}
	if got := GetClamped(p, "b", 14, 2, 100); got != 100 {
		t.Errorf("GetClamped(150) = %v, want clamp to 100", got)
	}
	if got := GetClamped(p, "missing", 14, 2, 100); got != 14 {
		t.Errorf("GetClamped(missing) = %v, want default 14", got)
	}
}

func TestBuildEngineConfig_Defaults(t *testing.T) {
	cfg := BuildEngineConfig(types.ParameterSet{})
	if cfg.InitialCapital != 100000 || cfg.TradeSizeRatio != 0.02 || cfg.MaxHoldingDays != 365 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StopLoss.Mode != types.StopLossPercent || cfg.StopLoss.Ratio != 0.05 {
		t.Fatalf("unexpected stop-loss defaults: %+v", cfg.StopLoss)
	}

	cfg = BuildEngineConfig(types.ParameterSet{"sellFraction": 0.3})
	if cfg.SellFraction != 0 {
		t.Fatalf("sellFraction 0.3 should coerce to 0, got %v", cfg.SellFraction)
	}
}
