package breaker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/adapters/cache/memory"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/metrics"
)

func newTestBreaker() *Breaker {
	return New(memory.New(), slog.Default(), nil)
}

var testLabels = Labels{TenantID: "t1", RouteID: "r1", Upstream: "up1"}

func TestBreaker_OpensAfterFailureThreshold(t *testing.T) {
	ctx := context.Background()
	b := newTestBreaker()
	cfg := domain.CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, TimeoutMS: 30000}
	key := "cb:t1:r1:up1"

	if !b.CanExecute(ctx, key, cfg, testLabels) {
		t.Fatalf("CanExecute = false before any failures, want true")
	}

	b.RecordFailure(ctx, key, cfg, testLabels)
	if !b.CanExecute(ctx, key, cfg, testLabels) {
		t.Fatalf("CanExecute = false after 1 failure (threshold 2), want true")
	}

	b.RecordFailure(ctx, key, cfg, testLabels)
	if b.CanExecute(ctx, key, cfg, testLabels) {
		t.Fatalf("CanExecute = true after hitting threshold, want false (OPEN)")
	}
}

func TestBreaker_HalfOpenAfterTimeoutThenClosesOnSuccessThreshold(t *testing.T) {
	ctx := context.Background()
	b := newTestBreaker()
	cfg := domain.CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, TimeoutMS: 1}
	key := "cb:t1:r1:up1"

	b.RecordFailure(ctx, key, cfg, testLabels)
	if b.CanExecute(ctx, key, cfg, testLabels) {
		t.Fatalf("CanExecute = true immediately after opening, want false")
	}

	time.Sleep(5 * time.Millisecond)
	if !b.CanExecute(ctx, key, cfg, testLabels) {
		t.Fatalf("CanExecute = false after timeout elapsed, want true (HALF_OPEN)")
	}

	b.RecordSuccess(ctx, key, cfg, testLabels)
	// Still half-open: only 1 of 2 successes recorded.
	if !b.CanExecute(ctx, key, cfg, testLabels) {
		t.Fatalf("CanExecute = false in HALF_OPEN, want true")
	}
	b.RecordSuccess(ctx, key, cfg, testLabels)

	status, err := b.load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if status.State != domain.StateClosed {
		t.Fatalf("State = %v, want CLOSED after success threshold met", status.State)
	}
}

func TestBreaker_HalfOpenFailureReturnsToOpen(t *testing.T) {
	ctx := context.Background()
	b := newTestBreaker()
	cfg := domain.CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, TimeoutMS: 1}
	key := "cb:t1:r1:up1"

	b.RecordFailure(ctx, key, cfg, testLabels)
	time.Sleep(5 * time.Millisecond)
	b.CanExecute(ctx, key, cfg, testLabels) // transitions to HALF_OPEN

	b.RecordFailure(ctx, key, cfg, testLabels)

	status, err := b.load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if status.State != domain.StateOpen {
		t.Fatalf("State = %v, want OPEN after HALF_OPEN failure", status.State)
	}
}

func TestBreaker_RecordsStateTransitionMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	b := New(memory.New(), slog.Default(), m)
	cfg := domain.CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, TimeoutMS: 1}
	key := "cb:t1:r1:up1"

	b.RecordFailure(ctx, key, cfg, testLabels)
	if got := testutil.ToFloat64(m.CircuitBreakerTransitions.WithLabelValues("t1", "r1", "up1", "CLOSED", "OPEN")); got != 1 {
		t.Fatalf("CLOSED->OPEN transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("t1", "r1", "up1")); got != metrics.CircuitStateValue("OPEN") {
		t.Fatalf("state gauge = %v, want OPEN value", got)
	}

	time.Sleep(5 * time.Millisecond)
	b.CanExecute(ctx, key, cfg, testLabels) // OPEN -> HALF_OPEN
	if got := testutil.ToFloat64(m.CircuitBreakerTransitions.WithLabelValues("t1", "r1", "up1", "OPEN", "HALF_OPEN")); got != 1 {
		t.Fatalf("OPEN->HALF_OPEN transitions = %v, want 1", got)
	}

	b.RecordSuccess(ctx, key, cfg, testLabels) // HALF_OPEN -> CLOSED
	if got := testutil.ToFloat64(m.CircuitBreakerTransitions.WithLabelValues("t1", "r1", "up1", "HALF_OPEN", "CLOSED")); got != 1 {
		t.Fatalf("HALF_OPEN->CLOSED transitions = %v, want 1", got)
	}
}
