package host

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/adapters/cache/memory"
	storemem "github.com/tjfontaine/polyglot-llm-gateway/internal/adapters/store/memory"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/auth"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/breaker"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/gatewayerr"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/healthcheck"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/loadbalancer"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/proxy"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/ratelimit"
)

func newTestServer(t *testing.T, upstreamURL string) (*Server, *storemem.Provider) {
	t.Helper()
	hash, err := auth.HashAPIKey("secret-key")
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}

	store := storemem.New()
	store.AddTenant(&domain.Tenant{ID: "t1", Name: "acme", IsActive: true, APIKeyHash: hash})
	store.AddRoute(&domain.Route{
		ID: "r1", TenantID: "t1", Method: "GET", Path: "/widgets", PathType: domain.PathTypePrefix,
		Upstreams: []domain.UpstreamConfig{{URL: upstreamURL}}, LoadBalancing: domain.StrategyRoundRobin, IsActive: true,
	})

	cache := memory.New()
	authenticator := auth.New(cache, store)
	limiter := ratelimit.New(cache)
	orchestrator := proxy.New(cache, loadbalancer.New(), breaker.New(cache, slog.Default(), nil), healthcheck.New(cache, slog.Default()), nil, slog.Default())

	srv := New(0, slog.Default(), authenticator, store, limiter, orchestrator, nil)
	return srv, store
}

func TestServer_HealthAndReadyAreUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t, "http://example.invalid")

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestServer_ProxyRequiresAPIKey(t *testing.T) {
	srv, _ := newTestServer(t, "http://example.invalid")

	req := httptest.NewRequest(http.MethodGet, "/widgets/1", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestServer_ProxyRejectsUnknownKey(t *testing.T) {
	srv, _ := newTestServer(t, "http://example.invalid")

	req := httptest.NewRequest(http.MethodGet, "/widgets/1", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body["error"] != string(gatewayerr.KindClientAuth) {
		t.Fatalf("error = %v, want %q", body["error"], gatewayerr.KindClientAuth)
	}
	if _, ok := body["message"].(string); !ok || body["message"] == "" {
		t.Fatalf("message = %v, want non-empty string", body["message"])
	}
	if _, ok := body["retryAfter"]; ok {
		t.Fatalf("retryAfter should be absent on a non-rate-limit error, got %v", body["retryAfter"])
	}
}

func TestServer_ProxyForwardsAuthenticatedRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/widgets/1", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Fatalf("expected X-RateLimit-Limit header to be set")
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
}

func TestServer_ProxyRateLimitsTenant(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	srv, store := newTestServer(t, upstream.URL)
	tenant, _, _ := store.TenantByID(nil, "t1")
	burst := 1
	tenant.DefaultRateLimit = &domain.RateLimitConfig{RequestsPerSecond: 1, BurstSize: &burst}
	store.AddTenant(tenant)

	makeReq := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/widgets/1", nil)
		req.Header.Set("X-API-Key", "secret-key")
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		return rec
	}

	first := makeReq()
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := makeReq()
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}

	var body map[string]any
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body["error"] != string(gatewayerr.KindRateLimited) {
		t.Fatalf("error = %v, want %q", body["error"], gatewayerr.KindRateLimited)
	}
	if _, ok := body["message"].(string); !ok || body["message"] == "" {
		t.Fatalf("message = %v, want non-empty string", body["message"])
	}
	retryAfter, ok := body["retryAfter"].(float64)
	if !ok || retryAfter < 1 {
		t.Fatalf("retryAfter = %v, want a positive number in the body on 429", body["retryAfter"])
	}
}
