package domain

import "time"

// RateLimitConfig is a tenant's default sliding-window rate limit.
// BurstSize is optional; when unset the effective limit equals RequestsPerSecond.
type RateLimitConfig struct {
	RequestsPerSecond int  `json:"requestsPerSecond"`
	BurstSize         *int `json:"burstSize,omitempty"`
}

// Limit returns the effective window limit: BurstSize if set, else RequestsPerSecond.
func (r RateLimitConfig) Limit() int {
	if r.BurstSize != nil {
		return *r.BurstSize
	}
	return r.RequestsPerSecond
}

// Tenant is an isolation unit authenticated by its own api-key; it owns a
// disjoint set of routes. Tenants are externally owned (admin CRUD is out of
// scope for this core) and are read-only snapshots here.
type Tenant struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	IsActive        bool             `json:"isActive"`
	DefaultRateLimit *RateLimitConfig `json:"defaultRateLimit,omitempty"`
	APIKeyHash      string           `json:"apiKeyHash"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// View is the tenant projection that is safe to cache and to hand back to
// callers: it never carries APIKeyHash (spec.md §3 invariant).
type TenantView struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	IsActive         bool             `json:"isActive"`
	DefaultRateLimit *RateLimitConfig `json:"defaultRateLimit,omitempty"`
}

// View projects a Tenant into its cacheable, client-safe form.
func (t *Tenant) View() *TenantView {
	return &TenantView{
		ID:               t.ID,
		Name:             t.Name,
		IsActive:         t.IsActive,
		DefaultRateLimit: t.DefaultRateLimit,
	}
}
