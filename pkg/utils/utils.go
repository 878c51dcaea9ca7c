// Package utils provides small helpers (IDs, ticker normalization, clamps)
// shared across the engine's packages.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with an optional prefix.
func GenerateID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	id := hex.EncodeToString(bytes)
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateTradeID generates a unique trade ID. Trade and result IDs leave
// the process (remote cache, DB collaborators), so they use the standard
// UUID format rather than the internal hex form above.
func GenerateTradeID() string { return "trd_" + uuid.NewString() }

// GenerateResultID generates a unique backtest result ID.
func GenerateResultID() string { return "res_" + uuid.NewString() }

// NormalizeTicker trims and uppercases a ticker symbol, returning "" if the
// result would be empty.
func NormalizeTicker(value string) string {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	return normalized
}

// MinDecimal returns the lesser of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the greater of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal clamps value to [min, max].
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// ClampFloat clamps value to [min, max].
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
