// Package host wires the proxy orchestrator, authenticator, and rate
// limiter into the inbound HTTP surface (spec.md §4.8, §5, §6): a chi
// router with request-id, logging, recovery, auth, and rate-limit
// middleware in front of a catch-all proxy handler.
package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/auth"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/gatewayerr"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/ratelimit"
)

type contextKey string

const requestIDKey contextKey = "request_id"

type tenantContextKey struct{}
type routesContextKey struct{}
type logFieldsKey struct{}

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context, or "" if unset.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LoggingMiddleware logs HTTP requests with structured logging, enriched by
// AddLogField/AddError calls made deeper in the handler chain.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := make(map[string]string)
			ctx := context.WithValue(r.Context(), logFieldsKey{}, fields)

			wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			requestID := GetRequestID(ctx)

			logger.Info("request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)
			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", duration),
			}
			for k, v := range fields {
				attrs = append(attrs, slog.String(k, v))
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// AddLogField attaches a key/value to the request-scoped log fields map so
// LoggingMiddleware can emit it. No-op if LoggingMiddleware isn't present.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey{}).(map[string]string); ok {
		fields[key] = value
	}
}

// AddError attaches an error message to the request-scoped log fields map.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}

// TimeoutMiddleware enforces an upper bound on every proxied request's
// context lifetime, independent of the per-route timeout resolved deeper
// in the orchestrator (spec.md §4.8 step 6 still governs the upstream call).
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the tenant injected by AuthMiddleware.
func TenantFromContext(ctx context.Context) (*domain.TenantView, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(*domain.TenantView)
	return t, ok
}

// RoutesFromContext returns the tenant's routes injected by AuthMiddleware.
func RoutesFromContext(ctx context.Context) ([]*domain.Route, bool) {
	routes, ok := ctx.Value(routesContextKey{}).([]*domain.Route)
	return routes, ok
}

// routeLoader loads a tenant's routes, satisfied by ports.RouteStore.
type routeLoader interface {
	RoutesForTenant(ctx context.Context, tenantID string) ([]*domain.Route, error)
}

// AuthMiddleware validates the caller's api key and injects the resolved
// tenant and its routes into the request context. Missing or unknown keys
// map to 401; a cached, inactive tenant maps to 403 (spec.md §4.1, §6).
func AuthMiddleware(authenticator *auth.Authenticator, store routeLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, string(gatewayerr.KindClientAuth), "missing api key", 0)
				return
			}

			tenant, ok, err := authenticator.Validate(r.Context(), apiKey)
			if err != nil {
				if err == auth.ErrCachedInactiveTenant {
					writeError(w, http.StatusForbidden, string(gatewayerr.KindClientAuth), "tenant is inactive", 0)
					return
				}
				writeError(w, http.StatusInternalServerError, string(gatewayerr.KindInternal), "authentication failed", 0)
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, string(gatewayerr.KindClientAuth), "invalid api key", 0)
				return
			}

			routes, err := store.RoutesForTenant(r.Context(), tenant.ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, string(gatewayerr.KindInternal), "failed to load routes", 0)
				return
			}

			ctx := context.WithValue(r.Context(), tenantContextKey{}, tenant)
			ctx = context.WithValue(ctx, routesContextKey{}, routes)
			AddLogField(ctx, "tenant_id", tenant.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware enforces the tenant-wide sliding-window limit, writing
// X-RateLimit-* response headers and denying with 429 + Retry-After (spec.md
// §4.2, §6). Every proxied request is checked against the tenant-wide scope
// only; no per-route limit is applied here.
func RateLimitMiddleware(limiter *ratelimit.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := TenantFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			cfg := domain.RateLimitConfig{RequestsPerSecond: 10}
			if tenant.DefaultRateLimit != nil {
				cfg = *tenant.DefaultRateLimit
			}

			result, err := limiter.Check(r.Context(), domain.TenantScope(tenant.ID), cfg)
			if err != nil {
				writeError(w, http.StatusInternalServerError, string(gatewayerr.KindInternal), "rate limit check failed", 0)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if m != nil {
				m.RateLimitRemaining.WithLabelValues(tenant.ID).Set(float64(result.Remaining))
			}

			if !result.Allowed {
				if m != nil {
					m.RateLimitHitsTotal.WithLabelValues(tenant.ID).Inc()
				}
				retryAfter := int(time.Until(result.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, string(gatewayerr.KindRateLimited), "rate limit exceeded", retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError emits the spec-mandated {error, message[, retryAfter]} body
// (spec.md §7): errCode is the stable machine-readable classification
// (mirroring gatewayerr.Kind's strings), message is the human-readable
// detail. retryAfter is omitted from the body when zero.
func writeError(w http.ResponseWriter, status int, errCode, message string, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"error": errCode, "message": message}
	if retryAfter > 0 {
		body["retryAfter"] = retryAfter
	}
	_ = json.NewEncoder(w).Encode(body)
}
