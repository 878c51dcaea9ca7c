package config

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func validSettings() Settings {
	return Settings{
		Settings: types.Settings{
			TradeCloseFeeRate:                0.001,
			TradeSlippageRate:                0.0005,
			ShortBorrowFeeAnnualRate:         0.03,
			TradeEntryPriceMin:               1,
			TradeEntryPriceMax:               10000,
			MinimumDollarVolumeForEntry:      1_000_000,
			MinimumDollarVolumeLookback:      20,
			LocalOptimizationVersion:         1,
			LocalOptimizationStepMultipliers: []float64{-2, -1, 1, 2},
			OptimizationObjective:            types.ObjectiveCAGR,
			MaxAllowedDrawdownRatio:          0.5,
		},
	}
}

func TestSettings_Validate_AcceptsWellFormedSettings(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestSettings_Validate_RejectsInvertedPriceBand(t *testing.T) {
	s := validSettings()
	s.TradeEntryPriceMax = 0
	s.TradeEntryPriceMin = 5
	if err := s.Validate(); err == nil {
		t.Fatal("Validate() error = nil, want error for inverted price band")
	}
}

func TestSettings_Validate_RejectsUnknownObjective(t *testing.T) {
	s := validSettings()
	s.OptimizationObjective = "total_return"
	if err := s.Validate(); err == nil {
		t.Fatal("Validate() error = nil, want error for unsupported objective")
	}
}

func TestSettings_Validate_RejectsLopsidedMTLSPair(t *testing.T) {
	s := validSettings()
	s.MTLSClientCertPath = "/etc/certs/client.pem"
	if err := s.Validate(); err == nil {
		t.Fatal("Validate() error = nil, want error when only client cert is set")
	}
}

func TestSettings_ResolveAPIBaseURL(t *testing.T) {
	cases := []struct {
		domain string
		want   string
		ok     bool
	}{
		{domain: "", want: "", ok: false},
		{domain: "localhost:8080", want: "", ok: false}, // port makes it invalid as a bare domain
		{domain: "localhost", want: "http://localhost/api", ok: true},
		{domain: "127.0.0.1", want: "http://127.0.0.1/api", ok: true},
		{domain: "api.example.com", want: "https://api.example.com/api", ok: true},
	}
	for _, tc := range cases {
		s := validSettings()
		s.Domain = tc.domain
		got, ok := s.ResolveAPIBaseURL()
		if ok != tc.ok || got != tc.want {
			t.Errorf("ResolveAPIBaseURL() with domain %q = (%q, %v), want (%q, %v)", tc.domain, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSettings_ClientTLSConfig_NilWhenUnconfigured(t *testing.T) {
	cfg, err := validSettings().ClientTLSConfig()
	if err != nil {
		t.Fatalf("ClientTLSConfig() error = %v", err)
	}
	if cfg != nil {
		t.Fatalf("ClientTLSConfig() = %+v, want nil when no mTLS settings are configured", cfg)
	}
}
