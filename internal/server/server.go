package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"debt-dashboard/internal/config"
	"debt-dashboard/internal/logging"
	"debt-dashboard/internal/metrics"
	"debt-dashboard/internal/projection"
	"debt-dashboard/internal/service"
	"debt-dashboard/internal/storage"
)

// Dashboard is the slice of the service the HTTP layer needs.
type Dashboard interface {
	Snapshot() (service.Snapshot, error)
	DefaultParams(view config.ViewConfig) (projection.Params, error)
	Project(params projection.Params) (projection.View, error)
	RequestRefresh() bool
	RecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error)
}

// Server exposes the dashboard over HTTP.
type Server struct {
	cfg       *config.Config
	dash      Dashboard
	collector *metrics.Collector
	validate  *validator.Validate
	logger    zerolog.Logger
}

// New constructs the HTTP server. collector may be nil.
func New(cfg *config.Config, dash Dashboard, collector *metrics.Collector, logger zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		dash:      dash,
		collector: collector,
		validate:  validator.New(),
		logger:    logging.Component(logger, "http"),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.instrument)

	router.Get("/health", s.health)

	router.Route("/api", func(r chi.Router) {
		r.Get("/dataset", s.datasetHandler)
		r.Get("/view", s.viewHandler)
		r.Post("/refresh", s.refreshHandler)
		r.Get("/alerts", s.alertsHandler)
	})

	router.Get("/charts/{kind}.png", s.chartHandler)

	if s.cfg.Server.MetricsEnabled && s.collector != nil {
		router.Method(http.MethodGet, "/metrics", s.collector.Handler())
	}

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return ctx.Err()
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.collector.ObserveHTTP(r.Method, route, status, elapsed)
		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
