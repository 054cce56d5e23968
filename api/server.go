package api

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"forecast-backtest/backtest"
	"forecast-backtest/auth"
	"forecast-backtest/cache"
	"forecast-backtest/database"
	models "forecast-backtest/database/models_pkg"
	"forecast-backtest/database/jobs"
	"forecast-backtest/database/snapshots"
	"forecast-backtest/database/webhooks"
	"forecast-backtest/metrics"
	"forecast-backtest/notifications"
	"forecast-backtest/realtime"
)

// Runner is the slice of the backtest runner the API needs.
type Runner interface {
	StartRun(req backtest.RunRequest) (*models.BacktestJob, error)
	IsRunning(model, metricCode string) bool
}

// Backfiller triggers an on-demand actuals backfill pass.
type Backfiller interface {
	RunOnce() (int64, error)
}

// ActualsWriter ingests realized metric values.
type ActualsWriter interface {
	UpsertValues(values []models.ActualValue) error
}

// Server handles HTTP API requests
type Server struct {
	snapshots  *snapshots.Repository
	jobsRepo   *jobs.Repository
	hooksRepo  *webhooks.Repository
	statusDB   *database.ReadDB
	actuals    ActualsWriter
	runner     Runner
	backfiller Backfiller
	broker     *realtime.Broker
	progressWS http.Handler
	redis      *cache.RedisClient
	webhookMgr *notifications.WebhookManager
	validator  *auth.Validator
	cacheTTL   time.Duration

	httpServer *http.Server
}

// ServerDeps bundles the collaborators the server needs.
type ServerDeps struct {
	Snapshots  *snapshots.Repository
	Jobs       *jobs.Repository
	Webhooks   *webhooks.Repository
	StatusDB   *database.ReadDB
	Actuals    ActualsWriter
	Runner     Runner
	Backfiller Backfiller
	Broker     *realtime.Broker
	ProgressWS http.Handler
	Redis      *cache.RedisClient
	WebhookMgr *notifications.WebhookManager
	Validator  *auth.Validator
	CacheTTL   time.Duration
}

// NewServer creates a new API server instance
func NewServer(deps ServerDeps) *Server {
	return &Server{
		snapshots:  deps.Snapshots,
		jobsRepo:   deps.Jobs,
		hooksRepo:  deps.Webhooks,
		statusDB:   deps.StatusDB,
		actuals:    deps.Actuals,
		runner:     deps.Runner,
		backfiller: deps.Backfiller,
		broker:     deps.Broker,
		progressWS: deps.ProgressWS,
		redis:      deps.Redis,
		webhookMgr: deps.WebhookMgr,
		validator:  deps.Validator,
		cacheTTL:   deps.CacheTTL,
	}
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// Realtime streams
	mux.Handle("GET /api/events", s.broker) // SSE endpoint
	if s.progressWS != nil {
		mux.Handle("GET /api/backtest/progress/ws", s.progressWS)
	}

	// Backtest routes
	mux.HandleFunc("GET /api/backtest/batch/status", s.handleGetBatchStatus)
	mux.HandleFunc("POST /api/backtest/batch", s.handleStartBacktest)
	mux.HandleFunc("GET /api/backtest/jobs", s.handleGetJobs)
	mux.HandleFunc("GET /api/backtest/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/backtest/backfill-actuals", s.handleBackfillActuals)
	mux.HandleFunc("POST /api/actuals", s.handleIngestActuals)
	mux.HandleFunc("GET /api/models", s.handleGetModels)
	mux.HandleFunc("DELETE /api/backtest/snapshots/{model}", s.handleDeleteSnapshots)

	// Accuracy routes
	mux.HandleFunc("GET /api/backtest/accuracy-by-bracket", s.handleAccuracyByBracket)
	mux.HandleFunc("GET /api/backtest/accuracy-by-day-of-week", s.handleAccuracyByWeekday)
	mux.HandleFunc("GET /api/backtest/accuracy-by-month", s.handleAccuracyByMonth)
	mux.HandleFunc("GET /api/backtest/model-weights", s.handleModelWeights)
	mux.HandleFunc("GET /api/accuracy/model-weights", s.handleProductionWeights)
	mux.HandleFunc("GET /api/backtest/3d-monthly-progress", s.handleMonthlySurface)

	// Webhook management routes
	mux.HandleFunc("GET /api/config/webhooks", s.handleGetWebhooks)
	mux.HandleFunc("POST /api/config/webhooks", s.handleCreateWebhook)
	mux.HandleFunc("PUT /api/config/webhooks/{id}", s.handleUpdateWebhook)
	mux.HandleFunc("DELETE /api/config/webhooks/{id}", s.handleDeleteWebhook)

	// Authenticated API surface
	apiHandler := s.validator.Middleware(mux)

	// Health and metrics stay open
	root := http.NewServeMux()
	root.Handle("/api/", apiHandler)
	root.HandleFunc("GET /health", s.handleHealth)
	root.Handle("GET /metrics", metrics.Handler())

	handler := s.corsMiddleware(s.loggingMiddleware(root))

	serverAddr := fmt.Sprintf("0.0.0.0:%d", port)
	s.httpServer = &http.Server{Addr: serverAddr, Handler: handler}
	log.Printf("🚀 API Server starting on %s", serverAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the health status of the API
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade pass through the recorder
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rec.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("hijacking not supported")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, fmt.Sprintf("%d", rec.status)).Inc()
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// Handlers are distributed across multiple files:
// - handlers_backtest.go: run lifecycle (status, start, jobs, backfill, delete)
// - handlers_accuracy.go: accuracy aggregation and model weights
// - handlers_surface.go: 3D monthly forecast surface
// - handlers_webhooks.go: webhook management
