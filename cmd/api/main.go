// Package main is the entry point for the discovery engine server.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wanderco/drift/internal/candidate"
	"github.com/wanderco/drift/internal/config"
	"github.com/wanderco/drift/internal/content"
	"github.com/wanderco/drift/internal/discovery"
	"github.com/wanderco/drift/internal/experiment"
	"github.com/wanderco/drift/internal/health"
	"github.com/wanderco/drift/internal/middleware"
	"github.com/wanderco/drift/internal/scoring"
	"github.com/wanderco/drift/internal/telemetry"
	"github.com/wanderco/drift/internal/tracing"
	"github.com/wanderco/drift/internal/trending"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Drift Discovery Engine")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Distributed tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "drift-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracer provider", "error", err)
		}
	}()

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	cancelPing()

	// Redis is optional: trending reads fall through to the database when
	// no cache is configured.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}()
	}

	// Scoring weights, with optional calibration overrides.
	weights := scoring.DefaultWeights()
	if cfg.CalibrationPath != "" {
		loaded, err := scoring.LoadCalibration(cfg.CalibrationPath)
		if err != nil {
			logger.Warn("failed to load calibration, using defaults",
				"path", cfg.CalibrationPath, "error", err)
		} else {
			weights = loaded
		}
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	discoveryMetrics := discovery.NewMetrics()
	if err := discoveryMetrics.Register(registry); err != nil {
		logger.Error("failed to register discovery metrics", "error", err)
		os.Exit(1)
	}
	trendingMetrics := trending.NewMetrics()
	if err := trendingMetrics.Register(registry); err != nil {
		logger.Error("failed to register trending metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	// Stores
	contentStore := content.NewPostgresStore(db, logger)
	snapshotStore := trending.NewPostgresSnapshotStore(db, logger)
	experimentStore := experiment.NewPostgresStore(db, logger)
	recorder := telemetry.NewPostgresRecorder(db)

	// Engine components
	retriever := candidate.NewRetriever(contentStore, candidate.Config{
		PoolSize:      cfg.CandidatePoolSize,
		TargetSize:    cfg.CandidateTargetSize,
		DomainCap:     cfg.DomainCap,
		MaxExcludeIDs: cfg.MaxExcludeIDs,
	}, logger)

	orchestrator := discovery.NewOrchestrator(retriever, contentStore, recorder, logger,
		discovery.WithWeights(weights),
		discovery.WithMetrics(discoveryMetrics),
	)

	trendingReader := trending.NewReader(snapshotStore, redisClient, 0, logger)

	experiments := experiment.NewManager(experimentStore, logger)

	calculator := trending.NewCalculator(trending.Config{
		Interval: cfg.TrendingInterval,
		TopK:     cfg.TrendingTopK,
		MinScore: cfg.TrendingMinScore,
		Logger:   logger,
		Metrics:  trendingMetrics,
	}, contentStore, snapshotStore)

	calcCtx, cancelCalc := context.WithCancel(context.Background())
	defer cancelCalc()
	if err := calculator.Start(calcCtx); err != nil {
		logger.Error("failed to start trending calculator", "error", err)
		os.Exit(1)
	}
	defer calculator.Stop()

	// HTTP surface
	srv := &server{
		orchestrator: orchestrator,
		trending:     trendingReader,
		experiments:  experiments,
		weights:      weights,
		logger:       logger,
	}

	dbChecker := health.NewDBChecker(db)
	var redisChecker *health.RedisChecker
	if redisClient != nil {
		redisChecker = health.NewRedisChecker(redisClient)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := dbChecker.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy", "database": err.Error(),
			})
			return
		}
		if redisChecker != nil {
			if err := redisChecker.HealthCheck(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy", "redis": err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("POST /v1/discover", srv.handleDiscover)
	mux.HandleFunc("GET /v1/trending", srv.handleTrending)
	mux.HandleFunc("POST /v1/experiments", srv.handleCreateExperiment)
	mux.HandleFunc("GET /v1/experiments/{id}/assignment", srv.handleAssignment)
	mux.HandleFunc("POST /v1/experiments/{id}/events", srv.handleLogEvent)
	mux.HandleFunc("GET /v1/experiments/{id}/results", srv.handleResults)

	// Middleware chain: request ID first so both traces and logs carry it.
	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("drift-api")(handler)
	}
	handler = middleware.RequestID(handler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	calculator.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// server holds the engine components the HTTP handlers dispatch to.
type server struct {
	orchestrator *discovery.Orchestrator
	trending     *trending.Reader
	experiments  *experiment.Manager
	weights      *scoring.Weights
	logger       *slog.Logger
}

// discoverRequest is the body for POST /v1/discover.
type discoverRequest struct {
	UserID     string              `json:"user_id"`
	Context    content.UserContext `json:"context"`
	ExcludeIDs []string            `json:"exclude_ids"`
}

func (s *server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	// An active experiment assignment overrides the default scoring
	// configuration; resolution failures fall back to it.
	var strat discovery.Strategy
	resolved, err := s.experiments.StrategyFor(r.Context(), req.UserID, req.Context.PreferredTopics)
	if err != nil {
		s.logger.Warn("strategy resolution failed, using default scoring",
			"user_id", req.UserID, "error", err)
	} else if resolved != nil {
		strat.Weights = resolved.Config.ScoringWeights(s.weights)
		strat.Algorithm = resolved.Variant
		req.Context.Wildness = resolved.Config.Wildness(req.Context.Wildness)
	}

	d, err := s.orchestrator.NextWithStrategy(r.Context(), req.UserID, req.Context, req.ExcludeIDs, strat)
	if errors.Is(err, discovery.ErrNoCandidates) {
		writeJSONError(w, http.StatusNotFound, "no candidates available")
		return
	}
	if err != nil {
		s.logger.Error("discovery failed", "user_id", req.UserID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "discovery failed")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleTrending(w http.ResponseWriter, r *http.Request) {
	window := scoring.Window(r.URL.Query().Get("window"))
	if window == "" {
		window = scoring.WindowDay
	}
	valid := false
	for _, known := range scoring.Windows() {
		if window == known {
			valid = true
		}
	}
	if !valid {
		writeJSONError(w, http.StatusBadRequest, "window must be one of hour, day, week")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeJSONError(w, http.StatusBadRequest, "limit must be an integer in [1, 100]")
			return
		}
		limit = parsed
	}

	rows, err := s.trending.TopContent(r.Context(), window, limit)
	if err != nil {
		s.logger.Error("trending read failed", "window", window, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "trending read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window":  window,
		"results": rows,
	})
}

func (s *server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var exp experiment.Experiment
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.experiments.Create(r.Context(), &exp); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, exp)
}

func (s *server) handleAssignment(w http.ResponseWriter, r *http.Request) {
	experimentID := r.PathValue("id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	assignment, err := s.experiments.AssignVariant(r.Context(), userID, experimentID)
	if errors.Is(err, experiment.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "experiment not found")
		return
	}
	if err != nil {
		s.logger.Error("assignment failed", "experiment_id", experimentID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "assignment failed")
		return
	}
	if assignment == nil {
		// Inactive experiments assign no variant.
		writeJSON(w, http.StatusOK, map[string]any{"assigned": false})
		return
	}

	writeJSON(w, http.StatusOK, assignment)
}

func (s *server) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	var ev experiment.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ev.ExperimentID = r.PathValue("id")

	if err := s.experiments.LogEvent(r.Context(), ev); err != nil {
		if errors.Is(err, experiment.ErrMalformedEvent) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("event logging failed", "experiment_id", ev.ExperimentID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "event logging failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	experimentID := r.PathValue("id")

	results, err := s.experiments.Results(r.Context(), experimentID)
	if errors.Is(err, experiment.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "experiment not found")
		return
	}
	if err != nil {
		s.logger.Error("results computation failed", "experiment_id", experimentID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "results computation failed")
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
