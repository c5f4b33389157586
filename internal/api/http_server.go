package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leasemarket/internal/config"
	"leasemarket/internal/domain"

	"github.com/rs/zerolog"
)

// HealthCheck reports whether a dependency (database, lock store) is usable.
type HealthCheck func(ctx context.Context) error

// HTTPServer exposes the lease service as a JSON API.
type HTTPServer struct {
	cfg     *config.APIConfig
	service domain.LeaseService
	health  map[string]HealthCheck
	server  *http.Server
	auth    *HTTPAuth
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, service domain.LeaseService, health map[string]HealthCheck, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{cfg: cfg, service: service, health: health, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/leases", srv.handleLease)
	mux.HandleFunc("GET /api/v1/resources", srv.handleResources)
	mux.HandleFunc("GET /api/v1/resources/{id}", srv.handleResource)
	mux.HandleFunc("GET /api/v1/resources/{id}/contracts", srv.handleContracts)
	mux.HandleFunc("GET /api/v1/resources/{id}/contracts/export", srv.handleContractsExport)
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(logger, srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
