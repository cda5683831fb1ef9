// Package fallback produces the static response a route falls back to when
// resilience components short-circuit upstream forwarding (spec.md §4.10).
package fallback

import "github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"

// ShouldUse reports whether cfg's static fallback applies.
func ShouldUse(cfg *domain.FallbackConfig) bool {
	return cfg != nil && cfg.Enabled
}

// Response is the fallback's static (status, contentType, body) triple.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Build renders cfg into a Response. Callers must check ShouldUse(cfg) first.
func Build(cfg *domain.FallbackConfig) Response {
	return Response{
		StatusCode:  cfg.StatusCode,
		ContentType: string(cfg.ContentType),
		Body:        []byte(cfg.Body),
	}
}
