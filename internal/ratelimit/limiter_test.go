package ratelimit

import (
	"context"
	"testing"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/adapters/cache/memory"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
)

func TestLimiter_AllowsUpToLimitThenDenies(t *testing.T) {
	ctx := context.Background()
	l := New(memory.New())
	cfg := domain.RateLimitConfig{RequestsPerSecond: 3}

	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, "tenant:t1", cfg)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d: Allowed = false, want true", i)
		}
	}

	res, err := l.Check(ctx, "tenant:t1", cfg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatalf("4th request: Allowed = true, want false")
	}
	if res.Remaining != 0 {
		t.Fatalf("Remaining = %d, want 0", res.Remaining)
	}
}

func TestLimiter_DeniedRequestDoesNotConsumeFutureQuota(t *testing.T) {
	ctx := context.Background()
	c := memory.New()
	l := New(c)
	cfg := domain.RateLimitConfig{RequestsPerSecond: 1}

	first, err := l.Check(ctx, "tenant:t1", cfg)
	if err != nil || !first.Allowed {
		t.Fatalf("first Check = (%+v, %v), want allowed", first, err)
	}

	for i := 0; i < 3; i++ {
		denied, err := l.Check(ctx, "tenant:t1", cfg)
		if err != nil || denied.Allowed {
			t.Fatalf("denial %d = (%+v, %v), want denied", i, denied, err)
		}
	}

	card, err := c.ZCard(ctx, domain.RateLimitKey("tenant:t1"))
	if err != nil || card != 1 {
		t.Fatalf("ZCard after repeated denials = (%d, %v), want 1", card, err)
	}
}

func TestLimiter_BurstSizeOverridesRequestsPerSecond(t *testing.T) {
	ctx := context.Background()
	l := New(memory.New())
	burst := 5
	cfg := domain.RateLimitConfig{RequestsPerSecond: 1, BurstSize: &burst}

	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "tenant:t2", cfg)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: (%+v, %v), want allowed", i, res, err)
		}
	}
	res, err := l.Check(ctx, "tenant:t2", cfg)
	if err != nil || res.Allowed {
		t.Fatalf("6th request: (%+v, %v), want denied", res, err)
	}
}
