// Package server exposes the components over JSON HTTP. Each component
// contributes its routes; /health and /metrics are served by every process.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"matchcore/internal/config"
	"matchcore/internal/constants"
	"matchcore/internal/metrics"
	"matchcore/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Routes registers a component's handlers on the shared router.
type Routes interface {
	Register(r *mux.Router)
}

// Pinger checks a dependency /health reports on.
type Pinger func(ctx context.Context) error

func NewRouter(service string, ping Pinger, m *metrics.Metrics, logger zerolog.Logger, routes []Routes) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestID(logger), middleware.Recover)

	started := time.Now().UTC()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status, code := "ok", http.StatusOK
		if err := ping(req.Context()); err != nil {
			zerolog.Ctx(req.Context()).Warn().Err(err).Msg("store ping failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":  status,
			"service": service,
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	for _, rt := range routes {
		rt.Register(r)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// HTTPServer owns the listener for one process.
type HTTPServer struct {
	srv    *http.Server
	logger zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, handler http.Handler, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
			Handler:           handler,
			ReadHeaderTimeout: constants.RequestTimeout,
			WriteTimeout:      constants.RequestTimeout,
		},
		logger: logger,
	}
}

func (s *HTTPServer) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("server starting")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("server failed")
		}
	}()
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	s.logger.Info().Msg("server stopped gracefully")
	return nil
}
