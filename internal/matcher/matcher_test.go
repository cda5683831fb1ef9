package matcher

import (
	"testing"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
)

func route(method string, path string, pathType domain.PathType) *domain.Route {
	return &domain.Route{Method: method, Path: path, PathType: pathType, IsActive: true}
}

func TestMatch_Exact(t *testing.T) {
	routes := []*domain.Route{route("GET", "/api/users", domain.PathTypeExact)}

	if Match(routes, "GET", "/api/users") == nil {
		t.Fatalf("expected exact match")
	}
	if Match(routes, "GET", "/api/users/1") != nil {
		t.Fatalf("expected no match for longer path under exact type")
	}
}

func TestMatch_Prefix(t *testing.T) {
	routes := []*domain.Route{route("*", "/api", domain.PathTypePrefix)}

	cases := []struct {
		path string
		want bool
	}{
		{"/api", true},
		{"/api/x", true},
		{"/apix", false},
		{"/other", false},
	}
	for _, c := range cases {
		got := Match(routes, "GET", c.path) != nil
		if got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestMatch_Regex(t *testing.T) {
	routes := []*domain.Route{route("GET", `/api/users/\d+`, domain.PathTypeRegex)}

	if Match(routes, "GET", "/api/users/42") == nil {
		t.Fatalf("expected regex match")
	}
	if Match(routes, "GET", "/api/users/abc") != nil {
		t.Fatalf("expected no match for non-numeric id")
	}
}

func TestMatch_InvalidRegexNeverMatches(t *testing.T) {
	routes := []*domain.Route{route("GET", `/api/[`, domain.PathTypeRegex)}
	if Match(routes, "GET", "/api/[") != nil {
		t.Fatalf("invalid regex should never match")
	}
}

func TestMatch_MethodWildcard(t *testing.T) {
	routes := []*domain.Route{route("*", "/hook", domain.PathTypeExact)}
	if Match(routes, "POST", "/hook") == nil {
		t.Fatalf("wildcard method should match any verb")
	}
}

func TestMatch_FirstMatchWinsInStoreOrder(t *testing.T) {
	first := route("GET", "/api", domain.PathTypePrefix)
	second := route("GET", "/api", domain.PathTypeExact)
	routes := []*domain.Route{first, second}

	got := Match(routes, "GET", "/api")
	if got != first {
		t.Fatalf("expected first route in store order to win, regardless of specificity")
	}
}

func TestMatch_InactiveRouteSkipped(t *testing.T) {
	r := route("GET", "/api", domain.PathTypeExact)
	r.IsActive = false
	if Match([]*domain.Route{r}, "GET", "/api") != nil {
		t.Fatalf("inactive route must never match")
	}
}
