// Package transform applies header and path-rewrite rules in the fixed
// order the spec requires: remove, then set, then add (spec.md §4.9).
package transform

import (
	"net/http"
	"regexp"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
)

// ApplyHeaders mutates headers in place per ops, matching names
// case-insensitively for remove/add existence checks.
func ApplyHeaders(headers http.Header, ops *domain.HeaderOps) {
	if ops == nil {
		return
	}
	for _, name := range ops.Remove {
		headers.Del(name)
	}
	for name, value := range ops.Set {
		headers.Set(name, value)
	}
	for name, value := range ops.Add {
		if headers.Get(name) == "" {
			headers.Set(name, value)
		}
	}
}

// RewritePath applies rw to path, returning path unchanged if rw is nil or
// its pattern fails to compile (spec.md §4.9: invalid regex is swallowed).
func RewritePath(path string, rw *domain.PathRewrite) string {
	if rw == nil {
		return path
	}
	re, err := regexp.Compile(rw.Pattern)
	if err != nil {
		return path
	}
	return re.ReplaceAllString(path, rw.Replacement)
}

// StripHopByHop removes the hop-by-hop headers that must never be forwarded
// (spec.md §4.8 step 9).
func StripHopByHop(headers http.Header) {
	for _, name := range []string{"Connection", "Keep-Alive", "Transfer-Encoding"} {
		headers.Del(name)
	}
}
