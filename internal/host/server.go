package host

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/auth"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/proxy"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/ratelimit"
)

// Server is the gateway's inbound HTTP surface: unauthenticated operational
// endpoints plus an authenticated, rate-limited catch-all proxy route
// (spec.md §4.8, §6).
type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	srv    *http.Server
}

// New builds the chi router with the full middleware chain and route table.
func New(port int, logger *slog.Logger, authenticator *auth.Authenticator, store ports.RouteStore, limiter *ratelimit.Limiter, orchestrator *proxy.Orchestrator, m *metrics.Metrics) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(TimeoutMiddleware(30 * time.Second))

	r.Get("/health", HealthHandler)
	r.Get("/ready", ReadyHandler)
	r.Handle("/metrics", MetricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authenticator, store))
		r.Use(RateLimitMiddleware(limiter, m))
		r.HandleFunc("/*", ProxyHandler(orchestrator, logger))
	})

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

// Start begins serving and blocks until the listener stops or errors.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: otelhttp.NewHandler(s.Router, "gateway"),
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
