package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/astrodex-labs/pcl-core/internal/logger"
	"github.com/astrodex-labs/pcl-core/internal/pool"
	"github.com/astrodex-labs/pcl-core/internal/state"
	"github.com/astrodex-labs/pcl-core/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the pool's query interface over HTTP.
type WebServer struct {
	router *mux.Router
	port   string
	engine *pool.Engine
	pairID string
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, engine *pool.Engine, pairID string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		engine: engine,
		pairID: pairID,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pair", ws.handleGetPair).Methods("GET")
	api.HandleFunc("/pool", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/config", ws.handleGetConfig).Methods("GET")
	api.HandleFunc("/share/{amount}", ws.handleGetShare).Methods("GET")
	api.HandleFunc("/simulation", ws.handleSimulation).Methods("GET")
	api.HandleFunc("/reverse-simulation", ws.handleReverseSimulation).Methods("GET")
	api.HandleFunc("/cumulative-prices", ws.handleCumulativePrices).Methods("GET")
	api.HandleFunc("/observe", ws.handleObserve).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/sync-stats", ws.handleGetSyncStats).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	poolResp := ws.engine.Pool()
	hasErrors := !dbHealthy

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "pcl-pool-daemon",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"pair_id":          ws.pairID,
			"database_healthy": dbHealthy,
			"total_lp_shares":  poolResp.TotalLpShares.String(),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPair returns the static pair metadata
func (ws *WebServer) handleGetPair(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Pair())
}

// handleGetPool returns current balances and LP supply
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Pool())
}

// handleGetConfig returns the pool configuration and price state
func (ws *WebServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Config())
}

// handleGetShare returns the assets redeemable for an LP amount
func (ws *WebServer) handleGetShare(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	amount, ok := sdkmath.NewIntFromString(vars["amount"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid LP amount")
		return
	}

	assets, err := ws.engine.Share(amount)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"assets": assets})
}

// parseAssetQuery reads ?denom=...&amount=... into an Asset.
func (ws *WebServer) parseAssetQuery(r *http.Request) (types.Asset, bool) {
	denom := r.URL.Query().Get("denom")
	amountStr := r.URL.Query().Get("amount")
	amount, ok := sdkmath.NewIntFromString(amountStr)
	if denom == "" || !ok {
		return types.Asset{}, false
	}
	return types.NewAsset(types.NativeAsset(denom), amount), true
}

// handleSimulation quotes a swap without executing it
func (ws *WebServer) handleSimulation(w http.ResponseWriter, r *http.Request) {
	offer, ok := ws.parseAssetQuery(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Query parameters denom and amount are required")
		return
	}

	resp, err := ws.engine.Simulation(offer)
	if err != nil {
		webLogger.Error().Err(err).Msg("Simulation failed")
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, resp)
}

// handleReverseSimulation quotes the offer needed for a target ask
func (ws *WebServer) handleReverseSimulation(w http.ResponseWriter, r *http.Request) {
	ask, ok := ws.parseAssetQuery(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Query parameters denom and amount are required")
		return
	}

	resp, err := ws.engine.ReverseSimulation(ask)
	if err != nil {
		webLogger.Error().Err(err).Msg("Reverse simulation failed")
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, resp)
}

// handleCumulativePrices returns the TWAP accumulators
func (ws *WebServer) handleCumulativePrices(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.CumulativePrices())
}

// handleObserve returns the SMA price a number of seconds in the past
func (ws *WebServer) handleObserve(w http.ResponseWriter, r *http.Request) {
	secondsAgo := int64(0)
	if s := r.URL.Query().Get("seconds_ago"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil || parsed < 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid seconds_ago")
			return
		}
		secondsAgo = parsed
	}

	price, err := ws.engine.Observe(secondsAgo)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"seconds_ago": secondsAgo,
		"price":       price.String(),
	})
}

// handleGetSnapshots returns recent persisted pool snapshots
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetSnapshotHistory(ws.pairID, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get snapshot history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSyncStats returns aggregated orderbook sync statistics
func (ws *WebServer) handleGetSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := state.GetSyncStats(ws.pairID)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get sync stats")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve sync stats")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, stats)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
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

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
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
