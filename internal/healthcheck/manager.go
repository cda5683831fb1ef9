// Package healthcheck runs background active probers against upstreams,
// persisting health status to the shared cache (spec.md §4.7).
package healthcheck

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
)

// Manager owns one background prober per registered (tenant, route, upstream)
// triple, de-duplicated by cache key.
type Manager struct {
	cache  ports.Cache
	logger *slog.Logger
	client *http.Client

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(cache ports.Cache, logger *slog.Logger) *Manager {
	return &Manager{
		cache:   cache,
		logger:  logger,
		client:  &http.Client{},
		cancels: make(map[string]context.CancelFunc),
	}
}

// Register starts a prober for key (the upstream's health cache key) if one
// is not already running. Re-registering the same key is a no-op.
func (m *Manager) Register(ctx context.Context, key, upstreamURL string, cfg domain.HealthCheckConfig) {
	cfg = cfg.WithDefaults()

	m.mu.Lock()
	if _, running := m.cancels[key]; running {
		m.mu.Unlock()
		return
	}
	probeCtx, cancel := context.WithCancel(ctx)
	m.cancels[key] = cancel
	m.mu.Unlock()

	go m.run(probeCtx, key, upstreamURL, cfg)
}

// Unregister stops the prober for key, if any.
func (m *Manager) Unregister(key string) {
	m.mu.Lock()
	cancel, ok := m.cancels[key]
	delete(m.cancels, key)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop cancels every running prober, used on shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = make(map[string]context.CancelFunc)
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (m *Manager) run(ctx context.Context, key, upstreamURL string, cfg domain.HealthCheckConfig) {
	interval := time.Duration(cfg.IntervalMS) * time.Millisecond
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.probeOnce(ctx, key, upstreamURL, cfg, timeout)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeOnce(ctx, key, upstreamURL, cfg, timeout)
		}
	}
}

func (m *Manager) probeOnce(ctx context.Context, key, upstreamURL string, cfg domain.HealthCheckConfig, timeout time.Duration) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, upstreamURL+cfg.Endpoint, nil)
	success := false
	if err == nil {
		resp, doErr := m.client.Do(req)
		if doErr == nil {
			resp.Body.Close()
			success = resp.StatusCode >= 200 && resp.StatusCode < 300
		}
	}

	m.record(ctx, key, cfg, success)
}

func (m *Manager) record(ctx context.Context, key string, cfg domain.HealthCheckConfig, success bool) {
	status := m.load(ctx, key)
	now := time.Now()

	if success {
		status.ConsecutiveSuccesses++
		status.ConsecutiveFailures = 0
		status.LastSuccessTime = &now
		if status.ConsecutiveSuccesses >= cfg.HealthyThreshold {
			status.Healthy = true
		}
	} else {
		status.ConsecutiveFailures++
		status.ConsecutiveSuccesses = 0
		status.LastFailureTime = &now
		if status.ConsecutiveFailures >= cfg.UnhealthyThreshold {
			status.Healthy = false
		}
	}
	status.LastCheckTime = &now

	raw, err := json.Marshal(status)
	if err != nil {
		m.logger.Error("marshal health status", "error", err, "key", key)
		return
	}
	ttl := time.Duration(cfg.IntervalMS) * 3 * time.Millisecond
	if err := m.cache.Set(ctx, key, raw, ttl); err != nil {
		m.logger.Error("persist health status", "error", err, "key", key)
	}
}

func (m *Manager) load(ctx context.Context, key string) domain.HealthStatus {
	raw, ok, err := m.cache.Get(ctx, key)
	if err != nil || !ok {
		return domain.DefaultHealthStatus()
	}
	var status domain.HealthStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return domain.DefaultHealthStatus()
	}
	return status
}

// Status returns the cached health status for key (read path used by the
// proxy orchestrator, independent of this manager's own probers).
func Status(ctx context.Context, cache ports.Cache, key string) domain.HealthStatus {
	raw, ok, err := cache.Get(ctx, key)
	if err != nil || !ok {
		return domain.DefaultHealthStatus()
	}
	var status domain.HealthStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return domain.DefaultHealthStatus()
	}
	return status
}
