package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
)

func TestDo_DisabledCallsOnce(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: false}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	}, nil)
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesRetryableStatusCodeUntilSuccess(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: true, MaxRetries: 3, BaseDelayMS: 1, MaxDelayMS: 5, RetryableStatusCodes: []int{503}}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{StatusCode: 503, Err: errors.New("unavailable")}
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDo_NonRetryableStatusShortCircuits(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: true, MaxRetries: 3, BaseDelayMS: 1, MaxDelayMS: 5, RetryableStatusCodes: []int{503}}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return &StatusError{StatusCode: 400, Err: errors.New("bad request")}
	}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (should short-circuit)", calls)
	}
}

func TestDo_ExhaustsMaxRetries(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: true, MaxRetries: 2, BaseDelayMS: 1, MaxDelayMS: 5, RetryableStatusCodes: []int{503}}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return &StatusError{StatusCode: 503, Err: errors.New("unavailable")}
	}, nil)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (1 + 2 retries)", calls)
	}
}

func TestDo_AbortErrorRetriesUntilExhausted(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: true, MaxRetries: 3, BaseDelayMS: 1, MaxDelayMS: 5}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return ErrAborted
	}, nil)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4 (1 + 3 retries, AbortError is retryable)", calls)
	}
}

func TestDo_AbortErrorSucceedsOnRetry(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: true, MaxRetries: 3, BaseDelayMS: 1, MaxDelayMS: 5}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return ErrAborted
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDo_OnRetryInvokedBeforeEachRetry(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: true, MaxRetries: 2, BaseDelayMS: 1, MaxDelayMS: 5, RetryableStatusCodes: []int{503}}
	var retryAttempts []int
	calls := 0
	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return &StatusError{StatusCode: 503, Err: errors.New("x")}
	}, func(ctx context.Context, attempt int, delay time.Duration) {
		retryAttempts = append(retryAttempts, attempt)
	})
	if len(retryAttempts) != 2 {
		t.Fatalf("onRetry called %d times, want 2", len(retryAttempts))
	}
}

func TestDo_RetryableMessageSubstring(t *testing.T) {
	cfg := domain.RetryConfig{Enabled: true, MaxRetries: 1, BaseDelayMS: 1, MaxDelayMS: 5}
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("dial tcp: connection refused (ECONNREFUSED)")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
