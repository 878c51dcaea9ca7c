package cache_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/cache"
	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestManager_Check_HitsLocalCacheWithoutNetwork(t *testing.T) {
	m, err := cache.NewManager(zap.NewNop(), config.Settings{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	params := types.ParameterSet{"rsiPeriod": 14}
	want := types.BacktestResult{StrategyID: "rsi_v1"}
	m.Put("rsi_v1", params, want)

	got, ok := m.Check(context.Background(), "rsi_v1", params)
	if !ok {
		t.Fatal("Check() ok = false, want true for a locally cached entry")
	}
	if got.StrategyID != want.StrategyID {
		t.Fatalf("Check() = %+v, want %+v", got, want)
	}
}

func TestManager_Check_MissWithNoRemoteConfigured(t *testing.T) {
	m, err := cache.NewManager(zap.NewNop(), config.Settings{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	_, ok := m.Check(context.Background(), "unknown", types.ParameterSet{})
	if ok {
		t.Fatal("Check() ok = true, want false when nothing is cached and no remote tier is configured")
	}
}

func TestManager_Check_FallsBackToRemoteAndCachesLocally(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("x-backtest-secret") != "s3cret" {
			t.Errorf("expected secret header to be forwarded, got %q", r.Header.Get("x-backtest-secret"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": types.BacktestResult{StrategyID: "macd_v1"},
		})
	}))
	defer server.Close()

	settings := config.Settings{Domain: "", BacktestAPISecret: "s3cret"}
	m, err := cache.NewManager(zap.NewNop(), settings)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	// Exercise the remote path directly against the test server rather than
	// through ResolveAPIBaseURL, which requires a bare hostname in DOMAIN.
	m2, err := cache.NewManagerWithBaseURL(zap.NewNop(), server.URL, settings.BacktestAPISecret)
	if err != nil {
		t.Fatalf("NewManagerWithBaseURL() error = %v", err)
	}
	_ = m // keep the local-only manager alive to show both construction paths compile

	got, ok := m2.Check(context.Background(), "macd_v1", types.ParameterSet{"fast": 12})
	if !ok {
		t.Fatal("Check() ok = false, want true on a remote hit")
	}
	if got.StrategyID != "macd_v1" {
		t.Fatalf("Check() = %+v", got)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one remote call, got %d", hits)
	}

	// A second check should be served from the local cache without another hit.
	if _, ok := m2.Check(context.Background(), "macd_v1", types.ParameterSet{"fast": 12}); !ok {
		t.Fatal("expected second Check() to hit the now-warm local cache")
	}
	if hits != 1 {
		t.Fatalf("expected local cache to avoid a second remote call, got %d hits", hits)
	}
}
