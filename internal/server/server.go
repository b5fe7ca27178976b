// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/bot"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/kaiascan"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/notification"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/tracker"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// HTTPServer exposes health, stats and tracking administration over HTTP
type HTTPServer struct {
	config         *config.ServerConfig
	server         *http.Server
	router         *mux.Router
	storage        storage.Storage
	feed           kaiascan.Client
	trackerService *tracker.Service
	poller         *tracker.Poller
	notifications  *notification.Manager
	bot            *bot.Bot
	metricsManager *metrics.Manager
	logger         *logrus.Logger
}

// NewHTTPServer creates a new HTTP server. The poller and bot may be nil
// when their subsystems are disabled.
func NewHTTPServer(
	cfg *config.ServerConfig,
	store storage.Storage,
	feed kaiascan.Client,
	trackerService *tracker.Service,
	poller *tracker.Poller,
	notifications *notification.Manager,
	commandBot *bot.Bot,
	metricsManager *metrics.Manager,
) (*HTTPServer, error) {

	server := &HTTPServer{
		config:         cfg,
		storage:        store,
		feed:           feed,
		trackerService: trackerService,
		poller:         poller,
		notifications:  notifications,
		bot:            commandBot,
		metricsManager: metricsManager,
		logger:         utils.GetLogger(),
	}

	server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server, nil
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health check endpoints
	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	}

	// Metrics endpoints
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
		api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	}

	// Tracked address endpoints
	api.HandleFunc("/tracked", s.listTrackedHandler).Methods("GET")
	api.HandleFunc("/tracked", s.trackHandler).Methods("POST")
	api.HandleFunc("/tracked", s.untrackHandler).Methods("DELETE")

	// Delivery record endpoints
	api.HandleFunc("/notifications", s.listDeliveriesHandler).Methods("GET")

	// Poller endpoints
	api.HandleFunc("/poller/status", s.pollerStatusHandler).Methods("GET")
	api.HandleFunc("/poller/start", s.startPollerHandler).Methods("POST")
	api.HandleFunc("/poller/stop", s.stopPollerHandler).Methods("POST")
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	// Stamp metrics once so the first scrape is not empty
	if s.metricsManager != nil {
		s.metricsManager.UpdateSystemMetrics()
		s.updateComponentHealth()
	}

	// Surface immediate binding errors instead of dying silently in the goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithField("error", err.Error()).Error("HTTP server error")
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Middleware

// loggingMiddleware logs HTTP requests
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start),
			"user_agent": r.UserAgent(),
			"remote_ip":  r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware answers preflight requests and opens the read API to
// browser dashboards
func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Access-Control-Allow-Origin", "*")
		headers.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Health Handlers

// healthHandler returns basic health status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         "1.0.0",
		"metrics_enabled": s.config.EnableMetrics,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// detailedHealthHandler returns per-component health status
func (s *HTTPServer) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	components := s.updateComponentHealth()

	status := "healthy"
	for _, healthy := range components {
		if !healthy {
			status = "degraded"
			break
		}
	}

	health := map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now(),
		"version":    "1.0.0",
		"components": components,
	}

	s.writeJSON(w, http.StatusOK, health)
}

// updateComponentHealth probes each component and pushes the outcome into
// the health gauges
func (s *HTTPServer) updateComponentHealth() map[string]bool {
	components := map[string]bool{
		"storage":       s.storage.Ping() == nil,
		"feed":          s.feed.Stats().IsHealthy,
		"notifications": s.notifications.IsHealthy(),
	}
	if s.poller != nil {
		components["poller"] = s.poller.IsRunning()
	}
	if s.bot != nil {
		components["bot"] = s.bot.IsRunning()
	}

	if s.metricsManager != nil {
		for name, healthy := range components {
			s.metricsManager.SetComponentHealth(name, healthy)
		}
	}

	return components
}

// statsHandler returns application statistics
func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStorageStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve storage stats", err)
		return
	}

	trackedCount, err := s.storage.CountTrackedAddresses(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to count tracked addresses", err)
		return
	}

	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateTrackedAddresses(int(trackedCount))
	}

	stats := map[string]interface{}{
		"timestamp":         time.Now(),
		"tracked_addresses": trackedCount,
		"storage":           storageStats,
		"feed":              s.feed.Stats(),
		"notifications":     s.notifications.GetStats(),
		"metrics_enabled":   s.config.EnableMetrics,
	}
	if s.poller != nil {
		stats["poller"] = s.poller.GetStats()
	}
	if s.bot != nil {
		stats["bot"] = s.bot.GetStats()
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// Tracked Address Handlers

// listTrackedHandler lists tracked addresses, optionally for one subscriber
func (s *HTTPServer) listTrackedHandler(w http.ResponseWriter, r *http.Request) {
	subscriberID := r.URL.Query().Get("subscriber_id")

	var (
		rows []*models.TrackedAddress
		err  error
	)
	if subscriberID != "" {
		rows, err = s.trackerService.List(r.Context(), subscriberID)
	} else {
		rows, err = s.storage.AllTrackedAddresses(r.Context())
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve tracked addresses", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracked": rows,
		"total":   len(rows),
	})
}

// trackHandler registers an address for a subscriber
func (s *HTTPServer) trackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubscriberID string `json:"subscriber_id"`
		Address      string `json:"address"`
		Label        string `json:"label"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.SubscriberID == "" {
		s.writeError(w, http.StatusBadRequest, "subscriber_id is required", nil)
		return
	}

	row, err := s.trackerService.Track(r.Context(), req.SubscriberID, req.Address, req.Label)
	if err != nil {
		if utils.HasCode(err, utils.ErrCodeValidation) {
			s.writeError(w, http.StatusBadRequest, "Invalid address format", err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to track address", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Address tracked successfully",
		"tracked": row,
	})
}

// untrackHandler removes a tracked address by address or label
func (s *HTTPServer) untrackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubscriberID string `json:"subscriber_id"`
		Identifier   string `json:"identifier"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.SubscriberID == "" || req.Identifier == "" {
		s.writeError(w, http.StatusBadRequest, "subscriber_id and identifier are required", nil)
		return
	}

	removed, err := s.trackerService.Untrack(r.Context(), req.SubscriberID, req.Identifier)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to untrack address", err)
		return
	}

	if !removed {
		s.writeError(w, http.StatusNotFound, "No tracked address matches the identifier", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Address untracked successfully",
		"identifier": req.Identifier,
	})
}

// Delivery Record Handlers

// listDeliveriesHandler lists notification delivery records
func (s *HTTPServer) listDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.DeliveryFilter{
		Limit:  50,
		Offset: 0,
	}

	if v := query.Get("subscriber_id"); v != "" {
		filter.SubscriberID = &v
	}
	if v := query.Get("address"); v != "" {
		filter.Address = &v
	}
	if v := query.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := query.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	if v := query.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filter.Offset = offset
		}
	}

	records, err := s.storage.GetDeliveryRecords(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve delivery records", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": records,
		"total":      len(records),
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

// Poller Handlers

// pollerStatusHandler gets poller status
func (s *HTTPServer) pollerStatusHandler(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Tracking poller is disabled", nil)
		return
	}

	status := map[string]interface{}{
		"running":   s.poller.IsRunning(),
		"stats":     s.poller.GetStats(),
		"timestamp": time.Now(),
	}

	s.writeJSON(w, http.StatusOK, status)
}

// startPollerHandler starts the poller
func (s *HTTPServer) startPollerHandler(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Tracking poller is disabled", nil)
		return
	}

	if s.poller.IsRunning() {
		s.writeError(w, http.StatusConflict, "Poller is already running", nil)
		return
	}

	// Detached from the request context so the loop survives the response
	if err := s.poller.Start(context.Background()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to start poller", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Poller started successfully",
	})
}

// stopPollerHandler stops the poller
func (s *HTTPServer) stopPollerHandler(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Tracking poller is disabled", nil)
		return
	}

	if !s.poller.IsRunning() {
		s.writeError(w, http.StatusConflict, "Poller is not running", nil)
		return
	}

	if err := s.poller.Stop(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to stop poller", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Poller stopped successfully",
	})
}

// Utility Methods

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		s.logger.WithFields(logrus.Fields{
			"status":  status,
			"message": message,
			"error":   err.Error(),
		}).Error("HTTP error")
	}

	s.writeJSON(w, status, errorResponse)
}
