package optimization

import (
	"sort"

	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// defaultMaxSeedVariations caps the Phase A Cartesian product when a caller
// doesn't set Config.MaxSeedVariations, so a wide parameter range list
// can't blow up into an unbounded enumeration before the first worker
// even starts.
const defaultMaxSeedVariations = 5000

// GenerateSeedGrid returns the Cartesian product of the discretized ranges
// for parametersToOptimize, seeded from base for every other parameter,
// deduplicated by signature and filtered through params.IsInactive, capped
// at maxVariations (<=0 uses defaultMaxSeedVariations).
func GenerateSeedGrid(templateID string, base types.ParameterSet, parametersToOptimize []string, ranges map[string]types.ParameterRange, maxVariations int) []types.ParameterSet {
	if maxVariations <= 0 {
		maxVariations = defaultMaxSeedVariations
	}
	axes := make([][]float64, 0, len(parametersToOptimize))
	names := make([]string, 0, len(parametersToOptimize))
	for _, name := range parametersToOptimize {
		r, ok := ranges[name]
		if !ok || r.Step <= 0 {
			continue
		}
		values := discretize(r)
		if len(values) == 0 {
			continue
		}
		names = append(names, name)
		axes = append(axes, values)
	}

	seen := make(map[string]struct{})
	var out []types.ParameterSet

	var recurse func(idx int, acc types.ParameterSet) bool
	recurse = func(idx int, acc types.ParameterSet) bool {
		if len(out) >= maxVariations {
			return false
		}
		if idx == len(axes) {
			candidate := acc.Clone()
			if isWhollyInactiveChange(names, base, candidate) {
				return true
			}
			sig := params.Signature(templateID, candidate)
			if _, dup := seen[sig]; dup {
				return true
			}
			seen[sig] = struct{}{}
			out = append(out, candidate)
			return len(out) < maxVariations
		}
		for _, v := range axes[idx] {
			acc[names[idx]] = v
			if !recurse(idx+1, acc) {
				return false
			}
		}
		return true
	}

	if len(axes) > 0 {
		recurse(0, base.Clone())
	}
	return out
}

func discretize(r types.ParameterRange) []float64 {
	if r.Step <= 0 || r.Max < r.Min {
		return nil
	}
	var out []float64
	for v := r.Min; v <= r.Max+1e-9; v += r.Step {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// isWhollyInactiveChange reports whether every parameter that differs
// between base and candidate is inactive in both, meaning the candidate is
// behaviorally identical to base and can be skipped. A candidate equal to
// base differs in nothing and is not skipped.
func isWhollyInactiveChange(changed []string, base, candidate types.ParameterSet) bool {
	anyChanged, anyActive := false, false
	for _, name := range changed {
		if base[name] == candidate[name] {
			continue
		}
		anyChanged = true
		if !params.IsInactive(name, base) || !params.IsInactive(name, candidate) {
			anyActive = true
			break
		}
	}
	return anyChanged && !anyActive
}
