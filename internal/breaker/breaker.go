// Package breaker implements the per-(tenant,route,upstream) circuit
// breaker persisted in the shared cache as JSON (spec.md §4.5).
package breaker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/metrics"
)

// Breaker operates the breakers of every (tenantId, routeId, upstreamUrl)
// triple; each call names its triple by cache key.
type Breaker struct {
	cache   ports.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(cache ports.Cache, logger *slog.Logger, m *metrics.Metrics) *Breaker {
	return &Breaker{cache: cache, logger: logger, metrics: m}
}

// Labels identifies the (tenant, route, upstream) triple a breaker call
// belongs to, for the gateway_circuit_breaker_state/transitions metrics.
type Labels struct {
	TenantID string
	RouteID  string
	Upstream string
}

func (b *Breaker) recordState(labels Labels, state string) {
	if b.metrics == nil {
		return
	}
	b.metrics.CircuitBreakerState.WithLabelValues(labels.TenantID, labels.RouteID, labels.Upstream).Set(metrics.CircuitStateValue(state))
}

func (b *Breaker) recordTransition(labels Labels, from, to string) {
	if b.metrics == nil {
		return
	}
	b.metrics.CircuitBreakerTransitions.WithLabelValues(labels.TenantID, labels.RouteID, labels.Upstream, from, to).Inc()
	b.recordState(labels, to)
}

func (b *Breaker) load(ctx context.Context, key string) (domain.CircuitBreakerStatus, error) {
	raw, ok, err := b.cache.Get(ctx, key)
	now := time.Now()
	if err != nil {
		return domain.DefaultCircuitBreakerStatus(now), err
	}
	if !ok {
		return domain.DefaultCircuitBreakerStatus(now), nil
	}
	var status domain.CircuitBreakerStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return domain.DefaultCircuitBreakerStatus(now), nil
	}
	return status, nil
}

func (b *Breaker) save(ctx context.Context, key string, status domain.CircuitBreakerStatus, timeout time.Duration) {
	raw, err := json.Marshal(status)
	if err != nil {
		b.logger.Error("marshal circuit breaker status", "error", err, "key", key)
		return
	}
	if err := b.cache.Set(ctx, key, raw, timeout+60*time.Second); err != nil {
		b.logger.Error("persist circuit breaker status", "error", err, "key", key)
	}
}

// CanExecute reports whether a call may proceed, transitioning OPEN->HALF_OPEN
// when the breaker timeout has elapsed. Cache errors fail open (CLOSED).
func (b *Breaker) CanExecute(ctx context.Context, key string, cfg domain.CircuitBreakerConfig, labels Labels) bool {
	status, err := b.load(ctx, key)
	if err != nil {
		b.logger.Warn("circuit breaker cache read failed, failing open", "error", err, "key", key)
		return true
	}

	switch status.State {
	case domain.StateClosed:
		return true
	case domain.StateHalfOpen:
		return true
	case domain.StateOpen:
		timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
		if time.Since(status.LastStateChange) >= timeout {
			status.State = domain.StateHalfOpen
			status.Successes = 0
			status.LastStateChange = time.Now()
			b.save(ctx, key, status, timeout)
			b.recordTransition(labels, string(domain.StateOpen), string(domain.StateHalfOpen))
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess advances HALF_OPEN toward CLOSED and clears CLOSED failure counts.
func (b *Breaker) RecordSuccess(ctx context.Context, key string, cfg domain.CircuitBreakerConfig, labels Labels) {
	status, err := b.load(ctx, key)
	if err != nil {
		b.logger.Warn("circuit breaker cache read failed on success record", "error", err, "key", key)
		return
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond

	switch status.State {
	case domain.StateHalfOpen:
		status.Successes++
		if status.Successes >= cfg.SuccessThreshold {
			status.State = domain.StateClosed
			status.Failures = 0
			status.Successes = 0
			status.LastStateChange = time.Now()
			b.recordTransition(labels, string(domain.StateHalfOpen), string(domain.StateClosed))
		}
		b.save(ctx, key, status, timeout)
	case domain.StateClosed:
		if status.Failures > 0 {
			status.Failures = 0
			b.save(ctx, key, status, timeout)
		}
	}
}

// RecordFailure advances CLOSED toward OPEN and forces HALF_OPEN back to OPEN.
func (b *Breaker) RecordFailure(ctx context.Context, key string, cfg domain.CircuitBreakerConfig, labels Labels) {
	status, err := b.load(ctx, key)
	if err != nil {
		b.logger.Warn("circuit breaker cache read failed on failure record", "error", err, "key", key)
		return
	}
	now := time.Now()
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond

	switch status.State {
	case domain.StateClosed:
		status.Failures++
		if status.Failures >= cfg.FailureThreshold {
			status.State = domain.StateOpen
			status.LastFailureTime = &now
			status.LastStateChange = now
			b.recordTransition(labels, string(domain.StateClosed), string(domain.StateOpen))
		}
		b.save(ctx, key, status, timeout)
	case domain.StateHalfOpen:
		status.State = domain.StateOpen
		status.LastFailureTime = &now
		status.LastStateChange = now
		b.save(ctx, key, status, timeout)
		b.recordTransition(labels, string(domain.StateHalfOpen), string(domain.StateOpen))
	}
}
