package host

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/gatewayerr"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/proxy"
)

// HealthHandler reports process liveness; it never depends on downstream
// state so an orchestrator restart doesn't flap the liveness probe.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ReadyHandler reports readiness to accept traffic. It does not probe the
// cache or the store, so readiness tracks liveness.
func ReadyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// MetricsHandler exposes the process's Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ProxyHandler adapts an inbound *http.Request to the orchestrator's
// Request/Response shape and writes the result back (spec.md §4.8).
func ProxyHandler(orchestrator *proxy.Orchestrator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := TenantFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, string(gatewayerr.KindClientAuth), "missing tenant context", 0)
			return
		}
		routes, _ := RoutesFromContext(r.Context())

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(gatewayerr.KindInternal), "failed to read request body", 0)
			return
		}

		req := proxy.Request{
			Method:     r.Method,
			Path:       r.URL.Path,
			RawQuery:   r.URL.RawQuery,
			Headers:    r.Header,
			Body:       body,
			RemoteAddr: r.RemoteAddr,
			Host:       r.Host,
			TLS:        r.TLS != nil,
		}

		resp, err := orchestrator.Forward(r.Context(), tenant, routes, req)
		if err != nil {
			writeGatewayError(w, r, err, logger)
			return
		}

		for k, values := range resp.Headers {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}
}

func writeGatewayError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	AddError(r.Context(), err)

	ge, ok := gatewayerr.As(err)
	if !ok {
		logger.Error("unhandled proxy error", "error", err)
		writeError(w, http.StatusInternalServerError, string(gatewayerr.KindInternal), "internal error", 0)
		return
	}

	status := ge.HTTPStatus()
	if ge.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(ge.RetryAfter))
	}
	writeError(w, status, string(ge.Kind), ge.Message, ge.RetryAfter)
}
