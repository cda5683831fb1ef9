package domain

import (
	"crypto/md5" // #nosec G501 -- non-cryptographic cache-key shortening per spec.md §3, not a security boundary
	"encoding/hex"
	"fmt"
)

// UpstreamURLHash8 is the first 8 hex chars of an MD5 digest over the
// upstream URL, used to keep circuit-breaker/health cache keys stable and
// short even as a route's upstream list is edited (spec.md §3, §9).
func UpstreamURLHash8(upstreamURL string) string {
	sum := md5.Sum([]byte(upstreamURL)) // #nosec G401
	return hex.EncodeToString(sum[:])[:8]
}

// TenantAPIKeyCacheKey is the shared-cache key for a cached tenant-by-api-key lookup.
func TenantAPIKeyCacheKey(apiKey string) string {
	return "tenant:apikey:" + apiKey
}

// RateLimitKey is the sorted-set key for a rate-limit scope.
// scope is either "tenant:{id}" or "tenant:{id}:route:{id}" (spec.md §3).
func RateLimitKey(scope string) string {
	return "ratelimit:" + scope
}

// TenantScope builds the tenant-wide rate-limit scope.
func TenantScope(tenantID string) string {
	return fmt.Sprintf("tenant:%s", tenantID)
}

// TenantRouteScope builds the per-route rate-limit scope.
func TenantRouteScope(tenantID, routeID string) string {
	return fmt.Sprintf("tenant:%s:route:%s", tenantID, routeID)
}

// CircuitBreakerKey is the cache key for one (tenant, route, upstream) breaker.
func CircuitBreakerKey(tenantID, routeID, upstreamURL string) string {
	return fmt.Sprintf("cb:%s:%s:%s", tenantID, routeID, UpstreamURLHash8(upstreamURL))
}

// HealthKey is the cache key for one (tenant, route, upstream) health status.
func HealthKey(tenantID, routeID, upstreamURL string) string {
	return fmt.Sprintf("health:%s:%s:%s", tenantID, routeID, UpstreamURLHash8(upstreamURL))
}
