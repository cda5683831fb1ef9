// This file defines the ports the proxy pipeline depends on: the shared
// cache (rate-limit counters, breaker/health status, tenant lookups) and the
// route/tenant store (externally owned, read-only configuration).
package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
)

// Cache is the shared key-value backend used for rate-limit sliding windows,
// circuit-breaker/health status persistence, and tenant-by-api-key lookups.
// The memory adapter backs single-instance deployments; the redis adapter
// backs multi-instance deployments that must share state (spec.md §3, §10).
type Cache interface {
	// Get returns the raw value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with an optional TTL (zero means no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ZAddNow adds member with score=now (unix millis) to the sorted set key.
	ZAddNow(ctx context.Context, key string, now time.Time, member string) error
	// ZRemRangeByScore removes members with score in [0, maxScore).
	ZRemRangeByScore(ctx context.Context, key string, maxScore float64) error
	// ZRem removes one member by value, used to undo a candidate ZAddNow on
	// rate-limit denial (spec.md §4.2 step 6).
	ZRem(ctx context.Context, key string, member string) error
	// ZCard returns the cardinality of the sorted set.
	ZCard(ctx context.Context, key string) (int64, error)
	// ZOldestScore returns the minimum member score, or ok=false if empty.
	ZOldestScore(ctx context.Context, key string) (score float64, ok bool, err error)
	// Expire sets a TTL on key, refreshed on every rate-limit check (spec.md §4.2).
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Close() error
}

// RouteStore is the externally owned, read-only source of tenants and
// routes. Admin CRUD over this data is out of scope for the core (spec.md
// §1 Non-goals); implementations are sqlite (default) and in-memory (tests).
type RouteStore interface {
	// TenantByID looks up the tenant with the given id; returns
	// (nil, false, nil) when no tenant has that id.
	TenantByID(ctx context.Context, tenantID string) (*domain.Tenant, bool, error)
	// Tenants returns every tenant, used to resolve an api-key on a cache miss.
	Tenants(ctx context.Context) ([]*domain.Tenant, error)
	// RoutesForTenant returns the active routes owned by tenantID, in the
	// store's natural order (matcher tie-breaks on this order, spec.md §4.3).
	RoutesForTenant(ctx context.Context, tenantID string) ([]*domain.Route, error)

	Close() error
}
