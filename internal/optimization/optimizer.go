// Package optimization implements the two-phase parameter search: an
// initial grid sweep over discretized ranges (Phase A), followed by
// neighborhood hill-climbing refinement around the best performers found so
// far (Phase B), run over a fixed 16-worker pool.
package optimization

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/internal/workers"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// EvaluateFunc runs one variation's backtest and returns its metrics.
type EvaluateFunc func(ctx context.Context, parameters types.ParameterSet) (types.PerformanceMetrics, error)

// Config drives one optimization run.
type Config struct {
	TemplateID           string
	BaseParameters       types.ParameterSet
	ParametersToOptimize []string
	Ranges               map[string]types.ParameterRange
	StepMultipliers      []float64
	Objective            types.OptimizationObjective
	MaxRefinementRounds  int
	TopKPerRound         int
	MaxSeedVariations    int
}

// Result pairs a parameter set with its evaluated metrics.
type Result struct {
	Parameters types.ParameterSet
	Metrics    types.PerformanceMetrics
	Signature  string
}

// Optimizer runs the two-phase search described above.
type Optimizer struct {
	logger    *zap.Logger
	evaluate  EvaluateFunc
	publisher *StatusPublisher
}

// New builds an Optimizer. publisher may be nil to disable status updates.
func New(logger *zap.Logger, evaluate EvaluateFunc, publisher *StatusPublisher) *Optimizer {
	if publisher == nil {
		publisher = NewStatusPublisher(nil)
	}
	return &Optimizer{logger: logger, evaluate: evaluate, publisher: publisher}
}

// Run executes Phase A (seed grid) then Phase B (neighborhood refinement),
// returning every evaluated result, order-independent of worker scheduling.
func (o *Optimizer) Run(ctx context.Context, cfg Config) ([]Result, error) {
	seeds := GenerateSeedGrid(cfg.TemplateID, cfg.BaseParameters, cfg.ParametersToOptimize, cfg.Ranges, cfg.MaxSeedVariations)
	if len(seeds) == 0 {
		seeds = []types.ParameterSet{cfg.BaseParameters.Clone()}
	}

	o.publisher.Update(Status{Phase: PhaseSeeding, Total: len(seeds)})
	seedResults, seedFailed, err := o.evaluateAll(ctx, cfg.TemplateID, seeds, PhaseSeedSearch)
	if err != nil {
		return nil, fmt.Errorf("optimization: seed phase: %w", err)
	}
	totalFailed := seedFailed

	all := append([]Result{}, seedResults...)
	seen := keysOf(all)

	topK := cfg.TopKPerRound
	if topK <= 0 {
		topK = 5
	}
	maxRounds := cfg.MaxRefinementRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}

	frontier := topResults(all, cfg.Objective, topK)

	for round := 0; round < maxRounds; round++ {
		var candidates []types.ParameterSet
		for _, r := range frontier {
			var neighbors []types.ParameterSet
			params.AddSingleParameterNeighbors(cfg.ParametersToOptimize, cfg.Ranges, cfg.StepMultipliers, r.Parameters, seen, &neighbors)
			candidates = append(candidates, neighbors...)
		}
		if len(candidates) == 0 {
			break
		}

		o.publisher.Update(Status{Phase: PhaseRefining, Total: len(all) + len(candidates), Completed: len(all), Failed: totalFailed})
		roundResults, roundFailed, err := o.evaluateAll(ctx, cfg.TemplateID, candidates, PhaseRefining)
		if err != nil {
			return nil, fmt.Errorf("optimization: refinement round %d: %w", round, err)
		}
		totalFailed += roundFailed
		if len(roundResults) == 0 {
			break
		}

		for key := range keysOf(roundResults) {
			seen[key] = struct{}{}
		}

		improved := false
		bestBefore := bestOf(frontier, cfg.Objective)
		all = append(all, roundResults...)
		newFrontier := topResults(all, cfg.Objective, topK)
		bestAfter := bestOf(newFrontier, cfg.Objective)
		if bestBefore == nil || (bestAfter != nil && objectiveValue(*bestAfter, cfg.Objective) > objectiveValue(*bestBefore, cfg.Objective)+1e-12) {
			improved = true
		}
		frontier = newFrontier
		if !improved {
			break
		}
	}

	best := bestOf(all, cfg.Objective)
	finalStatus := Status{Phase: PhaseComplete, Total: len(all), Completed: len(all), Failed: totalFailed}
	if best != nil {
		finalStatus.BestObjective = objectiveValue(*best, cfg.Objective)
		finalStatus.BestSignature = best.Signature
	}
	o.publisher.Update(finalStatus)

	return all, nil
}

func (o *Optimizer) evaluateAll(ctx context.Context, templateID string, sets []types.ParameterSet, phase Phase) ([]Result, int, error) {
	pool := workers.NewPool(o.logger, workers.OptimizerPoolConfig())
	pool.Start()
	defer func() {
		_ = pool.Stop()
		stats := pool.Stats()
		if stats.TasksFailed > 0 {
			o.publisher.Note(20, fmt.Sprintf("%s: %d task(s) failed (%d submitted)", phase, stats.TasksFailed, stats.TasksSubmitted))
		}
	}()

	results := make([]Result, len(sets))
	errs := make([]error, len(sets))
	var wg sync.WaitGroup
	wg.Add(len(sets))

	for i, ps := range sets {
		i, ps := i, ps
		task := workers.TaskFunc(func() error {
			defer wg.Done()
			metrics, err := o.evaluate(ctx, ps)
			if err != nil {
				errs[i] = err
				return err
			}
			results[i] = Result{
				Parameters: ps,
				Metrics:    metrics,
				Signature:  params.Signature(templateID, ps),
			}
			return nil
		})
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	out := make([]Result, 0, len(sets))
	failed := 0
	for i, r := range results {
		if errs[i] != nil {
			failed++
			if o.logger != nil {
				o.logger.Warn("variation failed", zap.Error(errs[i]))
			}
			continue
		}
		out = append(out, r)
	}
	return out, failed, nil
}

// keysOf collects the dedup keys of already-evaluated parameter sets, in
// the same key space neighbor generation dedups with.
func keysOf(results []Result) map[string]struct{} {
	out := make(map[string]struct{}, len(results))
	for _, r := range results {
		out[params.Key(r.Parameters)] = struct{}{}
	}
	return out
}

func objectiveValue(r Result, objective types.OptimizationObjective) float64 {
	switch objective {
	case types.ObjectiveSharpe:
		return r.Metrics.SharpeRatio
	default:
		return r.Metrics.CAGR
	}
}

// topResults sorts by objective descending, tie-breaking by max drawdown
// ratio ascending then signature ascending, returning the top k.
func topResults(results []Result, objective types.OptimizationObjective, k int) []Result {
	sorted := append([]Result{}, results...)
	sort.Slice(sorted, func(i, j int) bool {
		vi, vj := objectiveValue(sorted[i], objective), objectiveValue(sorted[j], objective)
		if vi != vj {
			return vi > vj
		}
		if sorted[i].Metrics.MaxDrawdownRatio != sorted[j].Metrics.MaxDrawdownRatio {
			return sorted[i].Metrics.MaxDrawdownRatio < sorted[j].Metrics.MaxDrawdownRatio
		}
		return sorted[i].Signature < sorted[j].Signature
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

func bestOf(results []Result, objective types.OptimizationObjective) *Result {
	top := topResults(results, objective, 1)
	if len(top) == 0 {
		return nil
	}
	return &top[0]
}
