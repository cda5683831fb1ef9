// Package proxy composes the matcher, load balancer, circuit breaker,
// health checker, retry, transformer, and fallback components into the
// end-to-end request flow (spec.md §4.8). Authentication and rate limiting
// run earlier, in the host middleware.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/breaker"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/gatewayerr"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/fallback"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/healthcheck"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/loadbalancer"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/matcher"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/retry"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/transform"
)

// allowedRequestHeaders is the fixed copy allowlist from spec.md §4.8 step 5.
var allowedRequestHeaders = []string{
	"Content-Type", "Accept", "Accept-Language", "Accept-Encoding", "User-Agent", "Authorization",
}

// Request is the inbound request the orchestrator forwards.
type Request struct {
	Method      string
	Path        string // path only, query already stripped
	RawQuery    string
	Headers     http.Header
	Body        []byte
	RemoteAddr  string
	Host        string
	TLS         bool
}

// Response is the forwarded (or fallback) response to write back to the client.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Orchestrator ties every resilience component to one tenant's routes.
type Orchestrator struct {
	cache      ports.Cache
	balancer   *loadbalancer.Balancer
	breaker    *breaker.Breaker
	health     *healthcheck.Manager
	metrics    *metrics.Metrics
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cache ports.Cache, balancer *loadbalancer.Balancer, br *breaker.Breaker, health *healthcheck.Manager, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cache:      cache,
		balancer:   balancer,
		breaker:    br,
		health:     health,
		metrics:    m,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Forward runs the full orchestrator flow for one request against tenant's
// routes, returning the response to write back or a *gatewayerr.Error.
func (o *Orchestrator) Forward(ctx context.Context, tenant *domain.TenantView, routes []*domain.Route, req Request) (result *Response, err error) {
	var route *domain.Route
	start := time.Now()

	if o.metrics != nil {
		o.metrics.ActiveConnections.Inc()
		defer o.metrics.ActiveConnections.Dec()
		defer func() {
			statusCode := http.StatusInternalServerError
			switch {
			case result != nil:
				statusCode = result.StatusCode
			case err != nil:
				if ge, ok := gatewayerr.As(err); ok {
					statusCode = ge.HTTPStatus()
				}
			}
			routeLabel := "unmatched"
			if route != nil {
				routeLabel = route.Path
			}
			o.metrics.HTTPRequestsTotal.WithLabelValues(tenant.ID, req.Method, routeLabel, strconv.Itoa(statusCode)).Inc()
			o.metrics.HTTPRequestDuration.WithLabelValues(tenant.ID, req.Method, routeLabel).Observe(time.Since(start).Seconds())
		}()
	}

	route = matcher.Match(routes, req.Method, req.Path)
	if route == nil {
		return nil, gatewayerr.NoRoute("no matching route")
	}

	resilience := route.Resilience
	if resilience == nil {
		resilience = &domain.ResilienceConfig{}
	}

	candidates := filterHealthyUpstreams(ctx, o.cache, tenant.ID, route.ID, route.Upstreams, resilience.HealthCheck)
	upstream, err := o.balancer.SelectUpstream(candidates, route.LoadBalancing, route.ID)
	if err != nil {
		return nil, gatewayerr.Internal("select upstream", err)
	}

	upstreamLabel := metrics.NormalizeUpstreamLabel(upstream.URL)

	if resilience.HealthCheck != nil && resilience.HealthCheck.Enabled {
		healthKey := domain.HealthKey(tenant.ID, route.ID, upstream.URL)
		status := healthcheck.Status(ctx, o.cache, healthKey)
		if o.metrics != nil {
			v := 0.0
			if status.Healthy {
				v = 1
			}
			o.metrics.HealthCheckStatus.WithLabelValues(tenant.ID, route.ID, upstreamLabel).Set(v)
		}
		if !status.Healthy {
			if fallback.ShouldUse(resilience.Fallback) {
				return fallbackResponse(resilience.Fallback), nil
			}
			return nil, gatewayerr.UpstreamUnhealthy("upstream service is unhealthy")
		}
	}

	cbLabels := breaker.Labels{TenantID: tenant.ID, RouteID: route.ID, Upstream: upstreamLabel}

	var cbKey string
	cbEnabled := resilience.CircuitBreaker != nil && resilience.CircuitBreaker.Enabled
	if cbEnabled {
		cbCfg := resilience.CircuitBreaker.WithDefaults()
		cbKey = domain.CircuitBreakerKey(tenant.ID, route.ID, upstream.URL)
		if !o.breaker.CanExecute(ctx, cbKey, cbCfg, cbLabels) {
			if fallback.ShouldUse(resilience.Fallback) {
				return fallbackResponse(resilience.Fallback), nil
			}
			return nil, gatewayerr.UpstreamUnhealthy("circuit breaker is open")
		}
	}

	upstreamURL := buildUpstreamURL(route, upstream, req)
	timeout := resolveTimeout(resilience.Timeout, req.Method, upstream.TimeoutMS)

	headers := buildUpstreamHeaders(req, tenant.ID, route)

	var resp *http.Response
	var respBody []byte
	var attempt int

	retryCfg := domain.RetryConfig{}
	if resilience.Retry != nil {
		retryCfg = resilience.Retry.WithDefaults()
		retryCfg.Enabled = resilience.Retry.Enabled
	}

	doAttempt := func(attemptCtx context.Context) error {
		attempt++
		if o.metrics != nil && attempt > 1 {
			o.metrics.RetryAttemptsTotal.WithLabelValues(tenant.ID, route.ID, strconv.Itoa(attempt)).Inc()
		}

		attemptCtx, cancel := context.WithTimeout(attemptCtx, timeout)
		defer cancel()

		var bodyReader io.Reader
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			bodyReader = bytes.NewReader(req.Body)
		}

		httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, upstreamURL, bodyReader)
		if err != nil {
			return retry.ErrAborted
		}
		httpReq.Header = headers.Clone()

		start := time.Now()
		r, err := o.httpClient.Do(httpReq)
		duration := time.Since(start)

		if err != nil {
			if attemptCtx.Err() != nil {
				return fmt.Errorf("%w: %v", retry.ErrAborted, err)
			}
			return err
		}
		defer r.Body.Close()

		body, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			return readErr
		}

		if o.metrics != nil {
			o.metrics.UpstreamRequestsTotal.WithLabelValues(tenant.ID, upstreamLabel, req.Method, strconv.Itoa(r.StatusCode)).Inc()
			o.metrics.UpstreamRequestDuration.WithLabelValues(tenant.ID, upstreamLabel, req.Method).Observe(duration.Seconds())
		}

		if isRetryableStatus(r.StatusCode, retryCfg.RetryableStatusCodes) {
			return &retry.StatusError{StatusCode: r.StatusCode, Err: fmt.Errorf("upstream returned status %d", r.StatusCode)}
		}

		resp = r
		respBody = body
		return nil
	}

	onRetry := func(ctx context.Context, attempt int, delay time.Duration) {
		o.logger.Info("retrying upstream request", "route_id", route.ID, "attempt", attempt, "delay", delay)
	}

	err = retry.Do(ctx, retryCfg, doAttempt, onRetry)

	if err != nil {
		if cbEnabled {
			o.breaker.RecordFailure(ctx, cbKey, resilience.CircuitBreaker.WithDefaults(), cbLabels)
		}
		if fallback.ShouldUse(resilience.Fallback) {
			return fallbackResponse(resilience.Fallback), nil
		}
		if isAborted(err) {
			return nil, gatewayerr.UpstreamTimeout("upstream request timed out", err)
		}
		return nil, gatewayerr.UpstreamUnreachable("upstream request failed", err)
	}

	if cbEnabled {
		if resp.StatusCode >= 500 {
			o.breaker.RecordFailure(ctx, cbKey, resilience.CircuitBreaker.WithDefaults(), cbLabels)
		} else if resp.StatusCode < 300 {
			o.breaker.RecordSuccess(ctx, cbKey, resilience.CircuitBreaker.WithDefaults(), cbLabels)
		}
	}

	respHeaders := resp.Header.Clone()
	transform.StripHopByHop(respHeaders)
	if route.Transform != nil && route.Transform.Response != nil {
		transform.ApplyHeaders(respHeaders, route.Transform.Response.Headers)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: respHeaders, Body: respBody}, nil
}

// filterHealthyUpstreams narrows upstreams to the ones whose cached health
// status is healthy, before load-balancer selection runs, so a round-robin
// or weighted draw never lands on a known-bad upstream while a healthy one
// is available. Falls back to the full set if none are healthy or health
// checking isn't enabled for the route.
func filterHealthyUpstreams(ctx context.Context, cache ports.Cache, tenantID, routeID string, upstreams []domain.UpstreamConfig, hc *domain.HealthCheckConfig) []domain.UpstreamConfig {
	if hc == nil || !hc.Enabled || len(upstreams) <= 1 {
		return upstreams
	}
	healthy := make([]domain.UpstreamConfig, 0, len(upstreams))
	for _, u := range upstreams {
		status := healthcheck.Status(ctx, cache, domain.HealthKey(tenantID, routeID, u.URL))
		if status.Healthy {
			healthy = append(healthy, u)
		}
	}
	if len(healthy) == 0 {
		return upstreams
	}
	return healthy
}

func isAborted(err error) bool {
	return errors.Is(err, retry.ErrAborted)
}

func isRetryableStatus(status int, codes []int) bool {
	for _, c := range codes {
		if c == status {
			return true
		}
	}
	return false
}

func fallbackResponse(cfg *domain.FallbackConfig) *Response {
	r := fallback.Build(cfg)
	h := http.Header{}
	h.Set("Content-Type", r.ContentType)
	return &Response{StatusCode: r.StatusCode, Headers: h, Body: r.Body}
}

func buildUpstreamURL(route *domain.Route, upstream domain.UpstreamConfig, req Request) string {
	path := req.Path
	if route.PathType == domain.PathTypePrefix {
		remainder := strings.TrimPrefix(path, route.Path)
		path = remainder
	}
	path = transform.RewritePath(path, requestPathRewrite(route))

	base := strings.TrimSuffix(upstream.URL, "/")
	full := base + path
	if req.RawQuery != "" {
		full += "?" + req.RawQuery
	}
	return full
}

func requestPathRewrite(route *domain.Route) *domain.PathRewrite {
	if route.Transform == nil || route.Transform.Request == nil {
		return nil
	}
	return route.Transform.Request.PathRewrite
}

func resolveTimeout(cfg *domain.TimeoutConfig, method string, upstreamTimeoutMS int) time.Duration {
	if cfg != nil {
		if ms, ok := cfg.ByMethod[method]; ok && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
		if cfg.Default > 0 {
			return time.Duration(cfg.Default) * time.Millisecond
		}
	}
	if upstreamTimeoutMS > 0 {
		return time.Duration(upstreamTimeoutMS) * time.Millisecond
	}
	return 30 * time.Second
}

func buildUpstreamHeaders(req Request, tenantID string, route *domain.Route) http.Header {
	headers := http.Header{}
	for _, name := range allowedRequestHeaders {
		if v := req.Headers.Get(name); v != "" {
			headers.Set(name, v)
		}
	}

	scheme := "http"
	if req.TLS {
		scheme = "https"
	}
	headers.Set("X-Forwarded-For", clientIP(req.RemoteAddr))
	headers.Set("X-Forwarded-Host", req.Host)
	headers.Set("X-Forwarded-Proto", scheme)
	headers.Set("X-Tenant-Id", tenantID)

	if route.Transform != nil && route.Transform.Request != nil {
		transform.ApplyHeaders(headers, route.Transform.Request.Headers)
	}

	return headers
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
