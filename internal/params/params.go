// Package params extracts, clamps, signs, and perturbs parameter maps used
// by strategies and the optimization engine.
package params

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Get returns params[key], or def if absent.
func Get(p types.ParameterSet, key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// GetClamped returns params[key] clamped to [min, max], falling back to def
// when the stored value is absent or non-finite.
func GetClamped(p types.ParameterSet, key string, def, min, max float64) float64 {
	v, ok := p[key]
	if !ok || !isFinite(v) {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// GetUsize returns params[key] truncated to a non-negative int, or def.
func GetUsize(p types.ParameterSet, key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

// GetUsizeMin returns params[key] rounded and floored at min, or def.
func GetUsizeMin(p types.ParameterSet, key string, def, min int) int {
	v, ok := p[key]
	if !ok || !isFinite(v) {
		return def
	}
	rounded := int(math.Round(v))
	if rounded < min {
		return min
	}
	return rounded
}

// GetUsizeAtLeast returns params[key] floored at min (no rounding), or def.
func GetUsizeAtLeast(p types.ParameterSet, key string, def, min int) int {
	v, ok := p[key]
	value := def
	if ok {
		value = int(v)
	}
	if value < min {
		return min
	}
	return value
}

// GetUsizeRoundedClamped returns params[key] rounded and clamped to
// [min, max], or def if absent/non-finite.
func GetUsizeRoundedClamped(p types.ParameterSet, key string, def, min, max int) int {
	v, ok := p[key]
	if !ok || !isFinite(v) {
		return def
	}
	rounded := int(math.Round(v))
	if rounded < min {
		rounded = min
	}
	if rounded > max {
		rounded = max
	}
	return rounded
}

// GetRounded returns params[key] rounded to the nearest int, or def.
func GetRounded(p types.ParameterSet, key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	return int(math.Round(v))
}

// CoerceBinary snaps a value to 0.0 or 1.0 (>= 0.5 -> 1.0), falling back
// to def when non-finite. sellFraction is coerced this way rather than
// supporting fractional partial closes.
func CoerceBinary(value, def float64) float64 {
	if !isFinite(value) {
		return def
	}
	if value >= 0.5 {
		return 1.0
	}
	return 0.0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Signature returns a canonical, order-independent fingerprint for a
// parameter map: the template id followed by the hex SHA-256 of the
// template id joined with the sorted, JSON-encoded key/value pairs.
func Signature(templateID string, p types.ParameterSet) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]struct {
		Key   string  `json:"k"`
		Value float64 `json:"v"`
	}, len(keys))
	for i, k := range keys {
		ordered[i].Key = k
		ordered[i].Value = p[k]
	}
	encoded, _ := json.Marshal(ordered)
	sum := sha256.Sum256(append([]byte(templateID+":"), encoded...))
	return fmt.Sprintf("%s:%s", templateID, hex.EncodeToString(sum[:]))
}

// IsInactive reports whether changing paramName has no behavioral effect
// given the rest of the parameter set. The cases below are exhaustive;
// the seed grid and neighbor generation both depend on them agreeing.
func IsInactive(paramName string, p types.ParameterSet) bool {
	switch paramName {
	case "initialCapital":
		return true
	case "stopLossRatio":
		if mode, ok := roundedOK(p, "stopLossMode"); ok {
			return mode == 1
		}
		return false
	case "atrPeriod", "atrMultiplier":
		if mode, ok := roundedOK(p, "stopLossMode"); ok {
			return mode != 1
		}
		return false
	case "volTargetAnnual", "volLookback":
		mode, modeOK := roundedOK(p, "positionSizingMode")
		volTarget, volOK := finiteOK(p, "volTargetAnnual")
		if modeOK && volOK {
			return (mode != 2 && mode != 3) || volTarget <= 0.0
		}
		return false
	default:
		return false
	}
}

// BuildEngineConfig derives a full EngineConfig from a flat parameter
// map, applying field-by-field defaults. Every optimizer variation and
// every live strategy invocation is built through this single function, so
// a parameter name missing from p always falls back to the documented
// default rather than a zero value.
func BuildEngineConfig(p types.ParameterSet) types.EngineConfig {
	return types.EngineConfig{
		InitialCapital:    Get(p, "initialCapital", 100000.0),
		TradeSizeRatio:    Get(p, "tradeSizeRatio", 0.02),
		SellFraction:      CoerceBinary(Get(p, "sellFraction", 1.0), 1.0),
		MinimumTradeSize:  Get(p, "minimumTradeSize", 50.0),
		AllowShortSelling: Get(p, "allowShortSelling", 0.0) >= 0.5,
		BuyDiscountRatio:  Get(p, "buyDiscountRatio", 0.0),
		MaxHoldingDays:    GetRounded(p, "maxHoldingDays", 365),
		PositionSizing: types.PositionSizingConfig{
			Mode:            types.PositionSizingMode(GetRounded(p, "positionSizingMode", 0)),
			VolTargetAnnual: Get(p, "volTargetAnnual", 0.0),
			VolLookback:     GetUsizeMin(p, "volLookback", 20, 1),
		},
		StopLoss: types.StopLossConfig{
			Mode:          types.StopLossMode(GetRounded(p, "stopLossMode", 0)),
			Ratio:         Get(p, "stopLossRatio", 0.05),
			ATRPeriod:     GetUsizeMin(p, "atrPeriod", 20, 1),
			ATRMultiplier: Get(p, "atrMultiplier", 2.0),
		},
		RawParameters: p,
	}
}

func roundedOK(p types.ParameterSet, key string) (int, bool) {
	v, ok := p[key]
	if !ok || !isFinite(v) {
		return 0, false
	}
	return int(math.Round(v)), true
}

func finiteOK(p types.ParameterSet, key string) (float64, bool) {
	v, ok := p[key]
	if !ok || !isFinite(v) {
		return 0, false
	}
	return v, true
}
