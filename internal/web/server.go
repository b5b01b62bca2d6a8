package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/elys-network/mvault/internal/logger"
	"github.com/elys-network/mvault/internal/types"
)

// VaultReader is the read side of the vault the API serves.
type VaultReader interface {
	Summary(ctx context.Context) (types.VaultSummary, error)
	Strategies(ctx context.Context) ([]types.StrategyStatus, error)
	Parameters() types.VaultParameters
	Paused() bool
}

// EventSource returns the newest events first.
type EventSource interface {
	Recent(n int) []types.Event
}

// CycleSource serves recorded operator cycles.
type CycleSource interface {
	RecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error)
	CycleByID(ctx context.Context, id int64) (*types.CycleSnapshot, error)
}

// Config holds the configuration for creating a new WebServer instance
type Config struct {
	Port    string
	Vault   VaultReader
	Events  EventSource
	Cycles  CycleSource
	DBCheck func() error // optional; nil means no database is configured
}

// WebServer serves read-only JSON views of the vault
type WebServer struct {
	router  *mux.Router
	port    string
	vault   VaultReader
	events  EventSource
	cycles  CycleSource
	dbCheck func() error
	started time.Time
	log     zerolog.Logger
	server  *http.Server
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Vault == nil {
		return nil, errors.New("vault reader cannot be nil")
	}
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	ws := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		vault:   cfg.Vault,
		events:  cfg.Events,
		cycles:  cfg.Cycles,
		dbCheck: cfg.DBCheck,
		started: time.Now(),
		log:     logger.GetForComponent("web_server"),
	}
	ws.setupRoutes()
	return ws, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id:[0-9]+}", ws.handleGetCycle).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called.
func (ws *WebServer) Start() error {
	ws.log.Info().Str("port", ws.port).Msg("Starting web server")

	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	return ws.server.Shutdown(ctx)
}

// handleHealth reports process, database and vault status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	degraded := false
	database := "not_configured"
	if ws.dbCheck != nil {
		database = "healthy"
		if err := ws.dbCheck(); err != nil {
			ws.log.Warn().Err(err).Msg("Database health check failed")
			database = "unhealthy"
			degraded = true
		}
	}

	vaultStatus := map[string]interface{}{"paused": ws.vault.Paused()}
	if _, err := ws.vault.Summary(r.Context()); err != nil {
		vaultStatus["valuation_error"] = err.Error()
		degraded = true
	}

	status, statusCode := "OK", http.StatusOK
	if degraded {
		status, statusCode = "DEGRADED", http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "mvault",
			"version": "1.0.0",
		},
		"database": database,
		"vault":    vaultStatus,
	})
}

// handleGetVaultSummary returns the headline accounting view
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.vault.Summary(r.Context())
	if err != nil {
		ws.log.Error().Err(err).Msg("Failed to get vault summary")
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Vault cannot be valued right now")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetStrategies returns the status of every bound strategy
func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := ws.vault.Strategies(r.Context())
	if err != nil {
		ws.log.Error().Err(err).Msg("Failed to get strategies")
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Strategies cannot be valued right now")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategies": strategies,
		"count":      len(strategies),
	})
}

// handleGetEvents returns recent events, optionally filtered with ?type=
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if ws.events == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Event history is not available")
		return
	}
	limit := parseLimit(r, 50, 500)
	eventType := types.EventType(r.URL.Query().Get("type"))

	recent := ws.events.Recent(0)
	out := make([]types.Event, 0, limit)
	for _, e := range recent {
		if eventType != "" && e.Type != eventType {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": out,
		"count":  len(out),
		"limit":  limit,
	})
}

// handleGetParameters returns the active vault parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"parameters": ws.vault.Parameters(),
		"paused":     ws.vault.Paused(),
		"timestamp":  time.Now().UTC(),
	})
}

// handleGetCycles returns recent cycle snapshots
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	if ws.cycles == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle history is not available")
		return
	}
	limit := parseLimit(r, 20, 100)
	cycles, err := ws.cycles.RecentCycles(r.Context(), limit)
	if err != nil {
		ws.log.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	})
}

// handleGetCycle returns a specific cycle by snapshot ID
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	if ws.cycles == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle history is not available")
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}
	cycle, err := ws.cycles.CycleByID(r.Context(), id)
	if err != nil {
		ws.log.Debug().Err(err).Int64("cycleId", id).Msg("Failed to get cycle")
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	if ws.cycles == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle history is not available")
		return
	}
	cycles, err := ws.cycles.RecentCycles(r.Context(), 1)
	if err != nil || len(cycles) == 0 {
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycles[0])
}

func parseLimit(r *http.Request, def, max int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= max {
			return parsed
		}
	}
	return def
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
