// Package ratelimit implements the sliding-window limiter against the
// shared cache's sorted-set primitives (spec.md §4.2).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
)

const window = time.Second

// Result is the outcome of one Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter checks requests against a 1000ms sliding window per key.
type Limiter struct {
	cache ports.Cache
}

func New(cache ports.Cache) *Limiter {
	return &Limiter{cache: cache}
}

// Check runs the six-step pipeline from spec.md §4.2 against key, returning
// whether the request is allowed under cfg's effective limit.
func (l *Limiter) Check(ctx context.Context, key string, cfg domain.RateLimitConfig) (Result, error) {
	limit := cfg.Limit()
	cacheKey := domain.RateLimitKey(key)
	now := time.Now()

	if err := l.cache.ZRemRangeByScore(ctx, cacheKey, float64(now.Add(-window).UnixMilli())); err != nil {
		return Result{}, fmt.Errorf("evict expired entries: %w", err)
	}

	currentCount, err := l.cache.ZCard(ctx, cacheKey)
	if err != nil {
		return Result{}, fmt.Errorf("count window: %w", err)
	}

	member := fmt.Sprintf("%d:%s", now.UnixMilli(), uuid.NewString())
	if err := l.cache.ZAddNow(ctx, cacheKey, now, member); err != nil {
		return Result{}, fmt.Errorf("record candidate: %w", err)
	}

	if err := l.cache.Expire(ctx, cacheKey, 2*time.Second); err != nil {
		return Result{}, fmt.Errorf("refresh ttl: %w", err)
	}

	resetAt := now.Add(window)
	if oldest, ok, err := l.cache.ZOldestScore(ctx, cacheKey); err == nil && ok {
		resetAt = time.UnixMilli(int64(oldest)).Add(window)
	}

	if int(currentCount) >= limit {
		if err := l.cache.ZRem(ctx, cacheKey, member); err != nil {
			return Result{}, fmt.Errorf("undo denied candidate: %w", err)
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: limit}, nil
	}

	remaining := limit - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, ResetAt: resetAt, Limit: limit}, nil
}
