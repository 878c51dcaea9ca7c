package params

import (
	"math"
	"sort"
	"strconv"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

const epsilon = 1e-9

// AddSingleParameterNeighbors appends neighbor variations to neighbors,
// adjusting exactly one parameter at a time by multiplier*step for each
// multiplier in stepMultipliers, clamped to its range. Duplicates (by Key)
// and no-op perturbations are dropped.
func AddSingleParameterNeighbors(
	parametersToOptimize []string,
	ranges map[string]types.ParameterRange,
	stepMultipliers []float64,
	current types.ParameterSet,
	seen map[string]struct{},
	neighbors *[]types.ParameterSet,
) {
	for _, name := range parametersToOptimize {
		r, ok := ranges[name]
		if !ok {
			continue
		}
		currentValue, ok := current[name]
		if !ok {
			continue
		}

		for _, multiplier := range stepMultipliers {
			candidate := currentValue + multiplier*r.Step
			newValue := math.Min(math.Max(candidate, r.Min), r.Max)
			if math.Abs(newValue-currentValue) < epsilon {
				continue
			}

			neighbor := current.Clone()
			neighbor[name] = newValue

			pushNeighbor(neighbor, []string{name}, current, seen, neighbors)
		}
	}
}

func pushNeighbor(
	neighbor types.ParameterSet,
	changedParams []string,
	current types.ParameterSet,
	seen map[string]struct{},
	neighbors *[]types.ParameterSet,
) {
	if len(changedParams) == 0 {
		return
	}

	allInactive := true
	for _, p := range changedParams {
		if !IsInactive(p, current) || !IsInactive(p, neighbor) {
			allInactive = false
			break
		}
	}
	if allInactive {
		return
	}

	key := Key(neighbor)
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	*neighbors = append(*neighbors, neighbor)
}

// Key is a deterministic string key for deduplication, independent of map
// iteration order. Callers seeding the `seen` set passed to
// AddSingleParameterNeighbors must use this same key.
func Key(p types.ParameterSet) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for _, k := range keys {
		key += k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64) + ";"
	}
	return key
}
