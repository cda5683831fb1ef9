package domain

import "time"

// PathType selects how Route.Path is matched against an inbound request path.
type PathType string

const (
	PathTypeExact  PathType = "exact"
	PathTypePrefix PathType = "prefix"
	PathTypeRegex  PathType = "regex"
)

// LoadBalancingStrategy selects how UpstreamConfig entries are chosen.
type LoadBalancingStrategy string

const (
	StrategyRoundRobin LoadBalancingStrategy = "round-robin"
	StrategyWeighted   LoadBalancingStrategy = "weighted"
	StrategyRandom     LoadBalancingStrategy = "random"
)

// UpstreamConfig is one concrete origin a route may forward to.
type UpstreamConfig struct {
	URL string `json:"url"`
	// Weight defaults to 1 when unset or non-positive.
	Weight int `json:"weight,omitempty"`
	// TimeoutMS overrides the route/default timeout for this upstream only
	// when no more specific timeout resolves (spec.md §4.8 step 6).
	TimeoutMS int `json:"timeout,omitempty"`
}

// EffectiveWeight returns Weight, defaulting to 1 for weight <= 0.
func (u UpstreamConfig) EffectiveWeight() int {
	if u.Weight <= 0 {
		return 1
	}
	return u.Weight
}

// Route is a declarative (method, path, pathType, upstreams, strategy,
// transform, resilience) belonging to one tenant. Routes are externally
// owned and read-only to the core.
type Route struct {
	ID            string                `json:"id"`
	TenantID      string                `json:"tenantId"`
	Method        string                `json:"method"` // HTTP verb or "*"
	Path          string                `json:"path"`
	PathType      PathType              `json:"pathType"`
	Upstreams     []UpstreamConfig      `json:"upstreams"`
	LoadBalancing LoadBalancingStrategy `json:"loadBalancing"`
	Transform     *TransformConfig      `json:"transform,omitempty"`
	Resilience    *ResilienceConfig     `json:"resilience,omitempty"`
	IsActive      bool                  `json:"isActive"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}
