package runtime

import (
	"fmt"
	"log/slog"

	rediscache "github.com/tjfontaine/polyglot-llm-gateway/internal/adapters/cache/redis"
	sqlitestore "github.com/tjfontaine/polyglot-llm-gateway/internal/adapters/store/sqlite"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/pkg/config"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfig loads configuration via config.Load (config.yaml + GATEWAY_ env vars).
func WithConfig() Option {
	return func(g *Gateway) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.config = cfg
		return nil
	}
}

// WithConfigValue injects an already-loaded Config, for embedders and tests
// that construct one directly instead of reading config.yaml.
func WithConfigValue(cfg *config.Config) Option {
	return func(g *Gateway) error {
		g.config = cfg
		return nil
	}
}

// WithRedisCache backs the shared cache with Redis, required once the
// gateway runs as more than one instance (spec.md §3, §10).
func WithRedisCache(addr, password string, db int) Option {
	return func(g *Gateway) error {
		g.cache = rediscache.New(addr, password, db)
		return nil
	}
}

// WithCacheProvider sets a custom cache backend (e.g. the in-memory adapter
// for single-instance deployments and tests).
func WithCacheProvider(cache ports.Cache) Option {
	return func(g *Gateway) error {
		g.cache = cache
		return nil
	}
}

// WithSQLiteStore backs the route/tenant store with a SQLite database.
func WithSQLiteStore(path string) Option {
	return func(g *Gateway) error {
		store, err := sqlitestore.New(path)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		g.store = store
		return nil
	}
}

// WithStoreProvider sets a custom route/tenant store.
func WithStoreProvider(store ports.RouteStore) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}

// WithLogger sets a custom logger; otherwise New derives one from the
// loaded config's logging section.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}
