package optimization_test

import (
	"context"
	"errors"
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/optimization"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// cagrFromSpread evaluates a fake objective deterministically from a
// parameter value, so the optimizer's refinement loop has a real gradient
// to climb without invoking the simulator.
func cagrFromSpread(p types.ParameterSet) float64 {
	target := 42.0
	v := p["rsiPeriod"]
	diff := v - target
	if diff < 0 {
		diff = -diff
	}
	return 1.0 / (1.0 + diff)
}

func TestOptimizer_Run_ClimbsTowardBetterObjective(t *testing.T) {
	evaluate := func(ctx context.Context, parameters types.ParameterSet) (types.PerformanceMetrics, error) {
		return types.PerformanceMetrics{CAGR: cagrFromSpread(parameters)}, nil
	}

	opt := optimization.New(nil, evaluate, nil)
	cfg := optimization.Config{
		TemplateID:           "rsi",
		BaseParameters:       types.ParameterSet{"rsiPeriod": 5, "rsiOversold": 30, "rsiOverbought": 70},
		ParametersToOptimize: []string{"rsiPeriod"},
		Ranges: map[string]types.ParameterRange{
			"rsiPeriod": {Min: 5, Max: 60, Step: 1},
		},
		StepMultipliers:     []float64{-2, -1, 1, 2},
		Objective:           types.ObjectiveCAGR,
		MaxRefinementRounds: 20,
		TopKPerRound:        3,
		MaxSeedVariations:   10,
	}

	results, err := opt.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Run() returned no results")
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Metrics.CAGR > best.Metrics.CAGR {
			best = r
		}
	}
	if best.Metrics.CAGR < cagrFromSpread(cfg.BaseParameters)-1e-9 {
		t.Fatalf("best CAGR %v did not improve on the seed's %v", best.Metrics.CAGR, cagrFromSpread(cfg.BaseParameters))
	}
}

func TestOptimizer_Run_CountsFailuresWithoutAbortingRun(t *testing.T) {
	evaluate := func(ctx context.Context, parameters types.ParameterSet) (types.PerformanceMetrics, error) {
		if parameters["rsiPeriod"] == 10 {
			return types.PerformanceMetrics{}, errors.New("synthetic failure")
		}
		return types.PerformanceMetrics{CAGR: cagrFromSpread(parameters)}, nil
	}

	publisher := optimization.NewStatusPublisher(nil)
	opt := optimization.New(nil, evaluate, publisher)
	cfg := optimization.Config{
		TemplateID:           "rsi",
		BaseParameters:       types.ParameterSet{"rsiPeriod": 10, "rsiOversold": 30, "rsiOverbought": 70},
		ParametersToOptimize: []string{"rsiPeriod"},
		Ranges: map[string]types.ParameterRange{
			"rsiPeriod": {Min: 5, Max: 30, Step: 5},
		},
		StepMultipliers:     []float64{-1, 1},
		Objective:           types.ObjectiveCAGR,
		MaxRefinementRounds: 2,
		TopKPerRound:        2,
		MaxSeedVariations:   10,
	}

	results, err := opt.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, r := range results {
		if r.Parameters["rsiPeriod"] == 10 {
			t.Fatalf("expected the failing variation (rsiPeriod=10) to be excluded from results, got %+v", r)
		}
	}

	snapshot := publisher.Snapshot()
	if snapshot.Phase != optimization.PhaseComplete {
		t.Fatalf("expected final phase %q, got %q", optimization.PhaseComplete, snapshot.Phase)
	}
	if snapshot.Failed != 1 {
		t.Fatalf("expected exactly one failed variation (rsiPeriod=10) in the final status, got %d", snapshot.Failed)
	}
}

func TestOptimizer_Run_NoRangesFallsBackToSingleBaseEvaluation(t *testing.T) {
	calls := 0
	evaluate := func(ctx context.Context, parameters types.ParameterSet) (types.PerformanceMetrics, error) {
		calls++
		return types.PerformanceMetrics{CAGR: 0.1}, nil
	}

	opt := optimization.New(nil, evaluate, nil)
	cfg := optimization.Config{
		TemplateID:     "buy_and_hold",
		BaseParameters: types.ParameterSet{},
		Objective:      types.ObjectiveCAGR,
	}

	results, err := opt.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one evaluation of the base parameter set, got %d (calls=%d)", len(results), calls)
	}
}

func TestOptimizer_Run_TieBreaksByLowerDrawdown(t *testing.T) {
	evaluate := func(ctx context.Context, parameters types.ParameterSet) (types.PerformanceMetrics, error) {
		return types.PerformanceMetrics{CAGR: 0.2, MaxDrawdownRatio: parameters["rsiPeriod"] / 100}, nil
	}

	publisher := optimization.NewStatusPublisher(nil)
	opt := optimization.New(nil, evaluate, publisher)
	cfg := optimization.Config{
		TemplateID:           "rsi",
		BaseParameters:       types.ParameterSet{"rsiPeriod": 10},
		ParametersToOptimize: []string{"rsiPeriod"},
		Ranges: map[string]types.ParameterRange{
			"rsiPeriod": {Min: 10, Max: 12, Step: 1},
		},
		Objective:           types.ObjectiveCAGR,
		MaxRefinementRounds: 0,
		TopKPerRound:        1,
		MaxSeedVariations:   10,
	}

	results, err := opt.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Run() returned no results")
	}

	// Every candidate shares the same CAGR, so the published winner must be
	// the one with the lowest MaxDrawdownRatio (rsiPeriod=10).
	want := ""
	for _, r := range results {
		if r.Parameters["rsiPeriod"] == 10 {
			want = r.Signature
		}
	}
	if want == "" {
		t.Fatal("expected rsiPeriod=10 among the evaluated results")
	}
	if got := publisher.Snapshot().BestSignature; got != want {
		t.Fatalf("expected the rsiPeriod=10 variation (lowest drawdown ratio) to win the CAGR tie, got best signature %q, want %q", got, want)
	}
}
