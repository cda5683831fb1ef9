// Package runtime provides the Gateway struct and lifecycle management:
// wiring config, cache, store, authenticator, rate limiter, circuit
// breaker, health checker, load balancer, and proxy orchestrator into one
// bootstrapped HTTP server (spec.md §5).
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/adapters/cache/memory"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/auth"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/breaker"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/healthcheck"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/host"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/loadbalancer"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/pkg/config"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/proxy"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/ratelimit"
)

// Gateway is the top-level process: it owns every adapter and component and
// runs the inbound HTTP server until Shutdown is called.
type Gateway struct {
	config *config.Config
	cache  ports.Cache
	store  ports.RouteStore
	logger *slog.Logger

	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
	breaker       *breaker.Breaker
	health        *healthcheck.Manager
	balancer      *loadbalancer.Balancer
	orchestrator  *proxy.Orchestrator
	metrics       *metrics.Metrics
	server        *host.Server

	mu sync.Mutex
}

// New builds a Gateway from options. Without a cache option it falls back
// to the in-memory cache adapter; a route store option is required, and New
// returns an error without one.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		gw.config = cfg
	}

	if gw.logger == nil {
		gw.logger = newLogger(gw.config.Logging)
	}

	if gw.cache == nil {
		gw.logger.Info("no cache provider configured, using in-memory adapter")
		gw.cache = memory.New()
	}

	if gw.store == nil {
		return nil, fmt.Errorf("route store required (use WithSQLiteStore or WithStoreProvider)")
	}

	return gw, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Start wires every component together, registers health-check probers for
// each route's upstreams, and begins serving HTTP (spec.md §5's connect →
// start-probers → listen order). It blocks until the server stops.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()

	cfg := g.config

	g.authenticator = auth.New(g.cache, g.store)
	g.limiter = ratelimit.New(g.cache)
	g.metrics = metrics.New()
	g.breaker = breaker.New(g.cache, g.logger, g.metrics)
	g.health = healthcheck.New(g.cache, g.logger)
	g.balancer = loadbalancer.New()
	g.orchestrator = proxy.New(g.cache, g.balancer, g.breaker, g.health, g.metrics, g.logger)

	if err := g.registerHealthProbers(ctx); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("register health probers: %w", err)
	}

	g.server = host.New(cfg.Server.Port, g.logger, g.authenticator, g.store, g.limiter, g.orchestrator, g.metrics)

	g.mu.Unlock()

	g.logger.Info("gateway starting", slog.Int("port", cfg.Server.Port))
	return g.server.Start()
}

// registerHealthProbers walks every tenant's active routes and starts a
// background prober for each upstream that opts into health checking.
func (g *Gateway) registerHealthProbers(ctx context.Context) error {
	tenants, err := g.store.Tenants(ctx)
	if err != nil {
		return err
	}

	for _, t := range tenants {
		routes, err := g.store.RoutesForTenant(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("load routes for tenant %s: %w", t.ID, err)
		}
		for _, route := range routes {
			g.registerRouteHealthProbers(ctx, t.ID, route)
		}
	}
	return nil
}

func (g *Gateway) registerRouteHealthProbers(ctx context.Context, tenantID string, route *domain.Route) {
	if route.Resilience == nil || route.Resilience.HealthCheck == nil || !route.Resilience.HealthCheck.Enabled {
		return
	}
	cfg := route.Resilience.HealthCheck.WithDefaults()
	for _, upstream := range route.Upstreams {
		key := domain.HealthKey(tenantID, route.ID, upstream.URL)
		g.health.Register(ctx, key, upstream.URL, cfg)
	}
}

// Shutdown stops accepting new connections, drains in-flight requests,
// stops health probers, and closes the cache and store (spec.md §5's
// reverse-order teardown).
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("gateway shutting down")

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("server shutdown failed", "error", err)
		}
	}

	if g.health != nil {
		g.health.Stop()
	}

	if g.cache != nil {
		if err := g.cache.Close(); err != nil {
			g.logger.Error("cache close failed", "error", err)
		}
	}

	if g.store != nil {
		if err := g.store.Close(); err != nil {
			g.logger.Error("store close failed", "error", err)
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}
