// Package cache deduplicates backtest evaluations by parameter signature,
// first against an in-process map and then, when configured, against a
// shared remote store reachable over HTTP.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/internal/params"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

const (
	maxErrorBodyChars = 2048
	remoteTimeout     = 30 * time.Second
	minRequestGap     = time.Second
	maxRetries        = 3
	baseDelay         = time.Second
	maxDelay          = 10 * time.Second
)

// checkResponse is the JSON shape of POST /backtest/check's response body.
type checkResponse struct {
	Result *types.BacktestResult `json:"result"`
}

// storeResponse is the JSON shape of POST /backtest/store's response body.
type storeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StoreEntry is the metadata attached to a result when pushing it to the
// remote store, beyond the result itself.
type StoreEntry struct {
	TemplateID            string
	Parameters            types.ParameterSet
	Result                types.BacktestResult
	TickerCount           int
	StartDate             time.Time
	EndDate               time.Time
	DurationMinutes       float64
	OptimizationVersion   int
	TopAbsoluteGainTicker string
	TopRelativeGainTicker string
}

// Manager is the two-tier result cache: a local map every worker shares,
// and an optional remote HTTP tier used when the local map misses.
type Manager struct {
	logger *zap.Logger
	client *http.Client

	mu          sync.RWMutex
	local       map[string]types.BacktestResult
	localParams map[string]types.ParameterSet

	baseURL string
	secret  string

	gateMu   sync.Mutex
	lastSend time.Time
}

// NewManager builds a Manager. When settings resolve no API base URL, the
// cache is local-only: Check never calls out and Store only records the
// entry locally.
func NewManager(logger *zap.Logger, settings config.Settings) (*Manager, error) {
	baseURL, _ := settings.ResolveAPIBaseURL()
	baseURL = strings.TrimRight(baseURL, "/")

	tlsConfig, err := settings.ClientTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("cache: build TLS config: %w", err)
	}

	transport := http.DefaultTransport
	if tlsConfig != nil {
		transport = &http.Transport{TLSClientConfig: tlsConfig}
	}

	return &Manager{
		logger:      logger,
		client:      &http.Client{Timeout: remoteTimeout, Transport: transport},
		local:       make(map[string]types.BacktestResult),
		localParams: make(map[string]types.ParameterSet),
		baseURL:     baseURL,
		secret:      strings.TrimSpace(settings.BacktestAPISecret),
	}, nil
}

// NewManagerWithBaseURL builds a Manager against an explicit remote base
// URL, bypassing Settings.ResolveAPIBaseURL. Used by callers (and tests)
// that already have a concrete endpoint, such as a same-process server
// reached over SERVER_PORT.
func NewManagerWithBaseURL(logger *zap.Logger, baseURL, secret string) (*Manager, error) {
	return &Manager{
		logger:      logger,
		client:      &http.Client{Timeout: remoteTimeout},
		local:       make(map[string]types.BacktestResult),
		localParams: make(map[string]types.ParameterSet),
		baseURL:     strings.TrimRight(baseURL, "/"),
		secret:      strings.TrimSpace(secret),
	}, nil
}

// Key returns the cache key for one (template, parameters) pair.
func Key(templateID string, parameters types.ParameterSet) string {
	return params.Signature(templateID, parameters)
}

// Check looks up a prior result for (templateID, parameters), trying the
// local map first and falling back to the remote tier (if configured).
// A remote hit is written back into the local map so later callers in
// this process never pay the network cost twice.
func (m *Manager) Check(ctx context.Context, templateID string, parameters types.ParameterSet) (types.BacktestResult, bool) {
	key := Key(templateID, parameters)

	m.mu.RLock()
	if result, ok := m.local[key]; ok {
		m.mu.RUnlock()
		metrics.RecordCacheHit("local")
		return result, true
	}
	m.mu.RUnlock()

	if m.baseURL == "" {
		metrics.RecordCacheMiss()
		return types.BacktestResult{}, false
	}

	result, ok, err := m.checkRemote(ctx, templateID, parameters)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("cache: remote check failed", zap.Error(err))
		}
		metrics.RecordCacheMiss()
		return types.BacktestResult{}, false
	}
	if !ok {
		metrics.RecordCacheMiss()
		return types.BacktestResult{}, false
	}

	m.mu.Lock()
	m.local[key] = result
	m.localParams[key] = parameters
	m.mu.Unlock()
	metrics.RecordCacheHit("remote")
	return result, true
}

// Entry pairs a cached result with the parameter set that produced it, so
// a caller can re-run the same variation rather than merely read its
// metrics back.
type Entry struct {
	TemplateID string
	Parameters types.ParameterSet
	Result     types.BacktestResult
}

// Entries returns a snapshot of every result currently held in the local
// map, keyed by its cache signature. Used by the `verify` and `balance`
// commands to re-run the top cache entries over a different window.
func (m *Manager) Entries() map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Entry, len(m.local))
	for k, v := range m.local {
		out[k] = Entry{TemplateID: v.StrategyID, Parameters: m.localParams[k], Result: v}
	}
	return out
}

// Put records a result in the local map only. Use Store to also push it
// to the remote tier.
func (m *Manager) Put(templateID string, parameters types.ParameterSet, result types.BacktestResult) {
	m.mu.Lock()
	key := Key(templateID, parameters)
	m.local[key] = result
	m.localParams[key] = parameters
	m.mu.Unlock()
}

// Store records entry locally and, if a remote tier is configured,
// pushes it asynchronously in a background goroutine — callers never
// block an evaluation on the network round trip.
func (m *Manager) Store(entry StoreEntry) {
	m.Put(entry.TemplateID, entry.Parameters, entry.Result)

	if m.baseURL == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout+5*time.Second)
		defer cancel()
		if err := m.storeRemote(ctx, entry); err != nil && m.logger != nil {
			m.logger.Warn("cache: remote store failed", zap.String("templateId", entry.TemplateID), zap.Error(err))
		}
	}()
}

func (m *Manager) checkRemote(ctx context.Context, templateID string, parameters types.ParameterSet) (types.BacktestResult, bool, error) {
	var out checkResponse
	err := m.retryWithBackoff(ctx, func() error {
		m.throttle()

		body, err := json.Marshal(map[string]interface{}{
			"templateId": templateID,
			"parameters": parameters,
		})
		if err != nil {
			return err
		}

		resp, err := m.post(ctx, m.baseURL+"/backtest/check", body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			m.logFailure("check", resp, templateID)
			out = checkResponse{}
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return types.BacktestResult{}, false, err
	}
	if out.Result == nil {
		return types.BacktestResult{}, false, nil
	}
	return *out.Result, true, nil
}

func (m *Manager) storeRemote(ctx context.Context, entry StoreEntry) error {
	return m.retryWithBackoff(ctx, func() error {
		m.throttle()

		body, err := json.Marshal(map[string]interface{}{
			"templateId":            entry.TemplateID,
			"parameters":            entry.Parameters,
			"cagr":                  entry.Result.Metrics.CAGR,
			"sharpeRatio":           entry.Result.Metrics.SharpeRatio,
			"calmarRatio":           entry.Result.Metrics.CalmarRatio,
			"totalReturn":           entry.Result.Metrics.TotalReturn,
			"maxDrawdown":           entry.Result.Metrics.MaxDrawdown,
			"maxDrawdownRatio":      entry.Result.Metrics.MaxDrawdownRatio,
			"winRate":               entry.Result.Metrics.WinRate,
			"totalTrades":           entry.Result.Metrics.TotalTrades,
			"tickerCount":           entry.TickerCount,
			"startDate":             entry.StartDate.Format(time.RFC3339),
			"endDate":               entry.EndDate.Format(time.RFC3339),
			"durationMinutes":       entry.DurationMinutes,
			"optimizationVersion":   entry.OptimizationVersion,
			"tool":                  "go-engine",
			"topAbsoluteGainTicker": entry.TopAbsoluteGainTicker,
			"topRelativeGainTicker": entry.TopRelativeGainTicker,
		})
		if err != nil {
			return err
		}

		resp, err := m.post(ctx, m.baseURL+"/backtest/store", body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			m.logFailure("store", resp, entry.TemplateID)
			return nil
		}

		var out storeResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && !out.Success {
			if m.logger != nil {
				m.logger.Warn("cache: remote store returned failure", zap.String("message", out.Message))
			}
		}
		return nil
	})
}

func (m *Manager) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.secret != "" {
		req.Header.Set("x-backtest-secret", m.secret)
	}
	return m.client.Do(req)
}

func (m *Manager) logFailure(op string, resp *http.Response, templateID string) {
	if m.logger == nil {
		return
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyChars))
	m.logger.Warn("cache: remote request failed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.String("templateId", templateID),
		zap.Bool("hasSecret", m.secret != ""),
		zap.String("body", string(body)),
	)
}

// throttle enforces a minimum 1-second gap between requests sent to a
// non-local remote host, so a burst of worker-pool evaluations does not
// hammer the shared store.
func (m *Manager) throttle() {
	if isLocalURL(m.baseURL) {
		return
	}
	m.gateMu.Lock()
	defer m.gateMu.Unlock()
	if elapsed := time.Since(m.lastSend); elapsed < minRequestGap {
		time.Sleep(minRequestGap - elapsed)
	}
	m.lastSend = time.Now()
}

func isLocalURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "://localhost") || strings.Contains(lower, "://127.0.0.1") || strings.Contains(lower, "://[::1]")
}

// retryWithBackoff retries op up to maxRetries times with exponential
// backoff (base 1s, capped at 10s) plus +/-25% jitter.
func (m *Manager) retryWithBackoff(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := op(); err != nil {
			lastErr = err
			if attempt < maxRetries {
				delay := backoffDelay(attempt)
				if m.logger != nil {
					m.logger.Debug("cache: retrying after failure", zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("cache: retries exhausted: %w", lastErr)
}

func backoffDelay(attempt int) time.Duration {
	delay := baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	jitterRange := time.Duration(float64(delay) * 0.25)
	jitter := time.Duration(rand.Int63n(int64(2*jitterRange + 1)))
	final := delay - jitterRange + jitter
	if final < 0 {
		final = 0
	}
	return final
}
