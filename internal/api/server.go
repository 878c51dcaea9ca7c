// Package api provides the HTTP server backing the remote result-cache
// protocol and the metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Store is the subset of cache.Manager the server needs, narrowed so the
// handlers are testable against a fake.
type Store interface {
	Check(ctx context.Context, templateID string, parameters types.ParameterSet) (types.BacktestResult, bool)
	Put(templateID string, parameters types.ParameterSet, result types.BacktestResult)
}

// Server is the HTTP API server exposing the remote cache tier, the
// optimizer status push channel, and prometheus metrics to other engine
// processes.
type Server struct {
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	store      Store
	secret     string
	Hub        *Hub
}

// NewServer builds a Server. secret, if non-empty, is required on the
// x-backtest-secret header of every /backtest/* request. Hub is exported so
// cmd/engine can wire it as an optimization.StatusPublisher's onUpdate
// callback before Start runs the hub's dispatch loop.
func NewServer(logger *zap.Logger, config types.ServerConfig, store Store, secret string) *Server {
	s := &Server{
		logger: logger,
		config: config,
		router: mux.NewRouter(),
		store:  store,
		secret: secret,
		Hub:    NewHub(logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/backtest/check", s.authenticated(s.handleCheck)).Methods(http.MethodPost)
	s.router.HandleFunc("/backtest/store", s.authenticated(s.handleStore)).Methods(http.MethodPost)
	s.router.HandleFunc("/ws/optimizer", s.Hub.ServeWS)

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// authenticated wraps h with the shared-secret check the remote cache
// protocol requires when a secret is configured.
func (s *Server) authenticated(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.secret != "" && r.Header.Get("x-backtest-secret") != s.secret {
			http.Error(w, "invalid or missing x-backtest-secret", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

// Start runs the HTTP server until Stop is called or it errors.
func (s *Server) Start() error {
	go s.Hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*", "x-backtest-secret"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

type checkRequest struct {
	TemplateID string             `json:"templateId"`
	Parameters types.ParameterSet `json:"parameters"`
}

type checkResponse struct {
	Result *types.BacktestResult `json:"result,omitempty"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	result, ok := s.store.Check(r.Context(), req.TemplateID, req.Parameters)
	resp := checkResponse{}
	if ok {
		resp.Result = &result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type storeRequest struct {
	TemplateID string             `json:"templateId"`
	Parameters types.ParameterSet `json:"parameters"`
	CAGR       float64            `json:"cagr"`
}

type storeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.TemplateID == "" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(storeResponse{Success: false, Message: "templateId is required"})
		return
	}

	s.store.Put(req.TemplateID, req.Parameters, types.BacktestResult{
		StrategyID: req.TemplateID,
		Metrics:    types.PerformanceMetrics{CAGR: req.CAGR},
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(storeResponse{Success: true})
}
