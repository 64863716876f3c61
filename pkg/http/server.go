// Package http exposes the engine's boundary surfaces: health and metrics
// endpoints plus the WebSocket bridge speaking the cipher message protocol.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/config"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/metrics"
	"github.com/DavidOeztuerk/Skillswap-sub014/pkg/version"
)

// Server represents the HTTP server for health checks, metrics and the
// cipher bridge
type Server struct {
	config     *config.HTTPConfig
	logger     *logrus.Logger
	httpServer *http.Server
	mux        *http.ServeMux
	bridge     *BridgeHandler
	startTime  time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, cfg *config.HTTPConfig, bridge *BridgeHandler) *Server {
	server := &Server{
		config:    cfg,
		logger:    logger,
		bridge:    bridge,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	server.mux = mux

	addServerHeader := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version.ServerHeader())
			next(w, r)
		}
	}

	mux.HandleFunc("/health", addServerHeader(server.HealthHandler))
	mux.HandleFunc("/health/live", addServerHeader(server.LivenessHandler))
	mux.HandleFunc("/health/ready", addServerHeader(server.ReadinessHandler))

	if cfg.EnableMetrics {
		if registry := metrics.GetRegistry(); registry != nil {
			promHandler := promhttp.HandlerFor(
				registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
					Registry:          registry,
				},
			)
			mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", version.ServerHeader())
				promHandler.ServeHTTP(w, r)
			})
			logger.Info("Prometheus metrics endpoint enabled at /metrics")
		}
	} else {
		logger.Info("Metrics endpoint disabled")
	}

	if bridge != nil {
		mux.HandleFunc("/ws/e2ee", bridge.ServeWS)
		logger.Info("Cipher bridge endpoint enabled at /ws/e2ee")
	}

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and tears down all bridge contexts.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if s.bridge != nil {
		s.bridge.CloseAll()
	}
	return s.httpServer.Shutdown(ctx)
}

// healthStatus is the JSON body of the health endpoints
type healthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	LiveContexts  int     `json:"live_contexts"`
}

// HealthHandler reports overall engine health.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	contexts := 0
	if s.bridge != nil {
		contexts = s.bridge.LiveContexts()
	}

	status := healthStatus{
		Status:        "ok",
		Version:       version.Version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		LiveContexts:  contexts,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.WithError(err).Error("Failed to write health response")
	}
}

// LivenessHandler is a bare liveness probe.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler reports readiness to accept bridge connections.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
