// Package matcher implements route matching against a tenant's active
// routes, in store iteration order (spec.md §4.3).
package matcher

import (
	"regexp"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
)

// Match returns the first active route in routes whose method and path
// match, or nil if none match. Store order is authoritative; callers must
// not re-sort routes before calling Match.
func Match(routes []*domain.Route, method, path string) *domain.Route {
	for _, r := range routes {
		if !r.IsActive {
			continue
		}
		if !methodMatches(r.Method, method) {
			continue
		}
		if pathMatches(r, path) {
			return r
		}
	}
	return nil
}

func methodMatches(routeMethod, method string) bool {
	return routeMethod == "*" || routeMethod == method
}

func pathMatches(r *domain.Route, path string) bool {
	switch r.PathType {
	case domain.PathTypeExact:
		return path == r.Path
	case domain.PathTypePrefix:
		return path == r.Path || (len(path) > len(r.Path) && path[:len(r.Path)] == r.Path && path[len(r.Path)] == '/')
	case domain.PathTypeRegex:
		re, err := regexp.Compile("^" + r.Path + "$")
		if err != nil {
			return false
		}
		return re.MatchString(path)
	default:
		return false
	}
}
