// Package config loads the engine's environment-driven settings via
// viper, validating every required field before any work begins.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

var localDomainPrefixes = []string{"localhost", "127.0.0.1", "[::1]"}

// Settings is the full set of required runtime settings, loaded and
// validated once per process.
type Settings struct {
	types.Settings

	DatabaseURL        string
	Domain             string
	ServerPort         int
	BacktestAPISecret  string
	MTLSCACertPath     string
	MTLSClientCertPath string
	MTLSClientKeyPath  string
}

// Load reads Settings from the environment via viper and validates
// every required field.
func Load() (Settings, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("MINIMUM_DOLLAR_VOLUME_LOOKBACK", 20)
	v.SetDefault("LOCAL_OPTIMIZATION_VERSION", 1)
	v.SetDefault("OPTIMIZATION_OBJECTIVE", "cagr")
	v.SetDefault("MAX_ALLOWED_DRAWDOWN_RATIO", 0.5)

	multipliers, err := parseFloatList(v.GetString("LOCAL_OPTIMIZATION_STEP_MULTIPLIERS"))
	if err != nil {
		return Settings{}, fmt.Errorf("config: LOCAL_OPTIMIZATION_STEP_MULTIPLIERS: %w", err)
	}
	if len(multipliers) == 0 {
		multipliers = []float64{-2, -1, 1, 2}
	}

	s := Settings{
		Settings: types.Settings{
			TradeCloseFeeRate:                v.GetFloat64("TRADE_CLOSE_FEE_RATE"),
			TradeSlippageRate:                v.GetFloat64("TRADE_SLIPPAGE_RATE"),
			ShortBorrowFeeAnnualRate:         v.GetFloat64("SHORT_BORROW_FEE_ANNUAL_RATE"),
			TradeEntryPriceMin:               v.GetFloat64("TRADE_ENTRY_PRICE_MIN"),
			TradeEntryPriceMax:               v.GetFloat64("TRADE_ENTRY_PRICE_MAX"),
			MinimumDollarVolumeForEntry:      v.GetFloat64("MINIMUM_DOLLAR_VOLUME_FOR_ENTRY"),
			MinimumDollarVolumeLookback:      v.GetInt("MINIMUM_DOLLAR_VOLUME_LOOKBACK"),
			LocalOptimizationVersion:         v.GetInt("LOCAL_OPTIMIZATION_VERSION"),
			LocalOptimizationStepMultipliers: multipliers,
			OptimizationObjective:            types.OptimizationObjective(v.GetString("OPTIMIZATION_OBJECTIVE")),
			MaxAllowedDrawdownRatio:          v.GetFloat64("MAX_ALLOWED_DRAWDOWN_RATIO"),
		},
		DatabaseURL:        v.GetString("DATABASE_URL"),
		Domain:             v.GetString("DOMAIN"),
		ServerPort:         v.GetInt("SERVER_PORT"),
		BacktestAPISecret:  v.GetString("BACKTEST_API_SECRET"),
		MTLSCACertPath:     v.GetString("BACKTEST_API_MTLS_CA_CERT"),
		MTLSClientCertPath: v.GetString("BACKTEST_API_MTLS_CLIENT_CERT"),
		MTLSClientKeyPath:  v.GetString("BACKTEST_API_MTLS_CLIENT_KEY"),
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks every required-setting constraint. It is
// exported separately from Load so callers constructing Settings in tests
// can validate hand-built values too.
func (s Settings) Validate() error {
	if s.TradeCloseFeeRate < 0 {
		return fmt.Errorf("config: TRADE_CLOSE_FEE_RATE must be >= 0, got %f", s.TradeCloseFeeRate)
	}
	if s.TradeSlippageRate < 0 {
		return fmt.Errorf("config: TRADE_SLIPPAGE_RATE must be >= 0, got %f", s.TradeSlippageRate)
	}
	if s.ShortBorrowFeeAnnualRate < 0 {
		return fmt.Errorf("config: SHORT_BORROW_FEE_ANNUAL_RATE must be >= 0, got %f", s.ShortBorrowFeeAnnualRate)
	}
	if s.TradeEntryPriceMin < 0 {
		return fmt.Errorf("config: TRADE_ENTRY_PRICE_MIN must be >= 0, got %f", s.TradeEntryPriceMin)
	}
	if s.TradeEntryPriceMax < s.TradeEntryPriceMin {
		return fmt.Errorf("config: TRADE_ENTRY_PRICE_MAX (%f) must be >= TRADE_ENTRY_PRICE_MIN (%f)", s.TradeEntryPriceMax, s.TradeEntryPriceMin)
	}
	if s.MinimumDollarVolumeForEntry < 0 {
		return fmt.Errorf("config: MINIMUM_DOLLAR_VOLUME_FOR_ENTRY must be >= 0, got %f", s.MinimumDollarVolumeForEntry)
	}
	if s.MinimumDollarVolumeLookback < 0 {
		return fmt.Errorf("config: MINIMUM_DOLLAR_VOLUME_LOOKBACK must be a natural number, got %d", s.MinimumDollarVolumeLookback)
	}
	if len(s.LocalOptimizationStepMultipliers) == 0 {
		return fmt.Errorf("config: LOCAL_OPTIMIZATION_STEP_MULTIPLIERS must be non-empty")
	}
	for _, m := range s.LocalOptimizationStepMultipliers {
		if !isFinite(m) {
			return fmt.Errorf("config: LOCAL_OPTIMIZATION_STEP_MULTIPLIERS must all be finite, got %v", s.LocalOptimizationStepMultipliers)
		}
	}
	if s.OptimizationObjective != types.ObjectiveCAGR && s.OptimizationObjective != types.ObjectiveSharpe {
		return fmt.Errorf("config: OPTIMIZATION_OBJECTIVE must be %q or %q, got %q", types.ObjectiveCAGR, types.ObjectiveSharpe, s.OptimizationObjective)
	}
	if s.MaxAllowedDrawdownRatio < 0 || s.MaxAllowedDrawdownRatio > 1 {
		return fmt.Errorf("config: MAX_ALLOWED_DRAWDOWN_RATIO must be in [0,1], got %f", s.MaxAllowedDrawdownRatio)
	}
	if (s.MTLSClientCertPath == "") != (s.MTLSClientKeyPath == "") {
		return fmt.Errorf("config: BACKTEST_API_MTLS_CLIENT_CERT and BACKTEST_API_MTLS_CLIENT_KEY must both be set or both unset")
	}
	return nil
}

func parseFloatList(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func isFinite(v float64) bool {
	return v == v && v < 1e308 && v > -1e308 // NaN != NaN; Inf/-Inf exceed float64 finite range check
}

// normalizeDomain rejects a DOMAIN value that looks like a URL or contains
// characters a bare hostname cannot.
func normalizeDomain(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if trimmed == "[::1]" {
		return trimmed, true
	}
	if strings.ContainsAny(trimmed, "/?#:") || strings.Contains(trimmed, "://") {
		return "", false
	}
	for _, r := range trimmed {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-') {
			return "", false
		}
	}
	return trimmed, true
}

func isLocalDomain(domain string) bool {
	lower := strings.ToLower(domain)
	for _, prefix := range localDomainPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// ResolveAPIBaseURL derives the remote cache tier's base URL from the
// DOMAIN setting: localhost and loopback addresses get plain http, any
// other domain gets https. Returns ("", false) when DOMAIN is unset or
// malformed, signaling the caller to run cache-local-only.
func (s Settings) ResolveAPIBaseURL() (string, bool) {
	domain, ok := normalizeDomain(s.Domain)
	if !ok {
		return "", false
	}
	scheme := "https"
	if isLocalDomain(domain) {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/api", scheme, domain), true
}

// ClientTLSConfig builds the mTLS client configuration for the remote
// cache tier from the BACKTEST_API_MTLS_* settings. Returns (nil, nil)
// when neither a CA certificate nor a client identity is configured, so
// the cache falls back to the system trust store with no client cert.
func (s Settings) ClientTLSConfig() (*tls.Config, error) {
	if s.MTLSCACertPath == "" && s.MTLSClientCertPath == "" && s.MTLSClientKeyPath == "" {
		return nil, nil
	}

	cfg := &tls.Config{}

	if s.MTLSCACertPath != "" {
		pem, err := os.ReadFile(s.MTLSCACertPath)
		if err != nil {
			return nil, fmt.Errorf("config: read mTLS CA certificate %s: %w", s.MTLSCACertPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("config: parse mTLS CA certificate %s: no certificates found", s.MTLSCACertPath)
		}
		cfg.RootCAs = pool
	}

	if s.MTLSClientCertPath != "" {
		cert, err := tls.LoadX509KeyPair(s.MTLSClientCertPath, s.MTLSClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("config: load mTLS client identity from %s and %s: %w", s.MTLSClientCertPath, s.MTLSClientKeyPath, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
