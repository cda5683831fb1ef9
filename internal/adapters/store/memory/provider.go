// Package memory implements ports.RouteStore in-process, for tests and
// single-node deployments that configure routes at startup rather than via
// a database.
package memory

import (
	"context"
	"sync"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
)

// Provider is a ports.RouteStore backed by in-memory slices, preserving
// insertion order for route tie-breaking (spec.md §4.3).
type Provider struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant
	routes  map[string][]*domain.Route // tenantID -> routes, in insertion order
}

var _ ports.RouteStore = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		tenants: make(map[string]*domain.Tenant),
		routes:  make(map[string][]*domain.Route),
	}
}

// AddTenant registers or replaces a tenant.
func (p *Provider) AddTenant(t *domain.Tenant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenants[t.ID] = t
}

// AddRoute appends a route to its tenant's route list.
func (p *Provider) AddRoute(r *domain.Route) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[r.TenantID] = append(p.routes[r.TenantID], r)
}

func (p *Provider) TenantByID(ctx context.Context, tenantID string) (*domain.Tenant, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tenants[tenantID]
	return t, ok, nil
}

func (p *Provider) Tenants(ctx context.Context) ([]*domain.Tenant, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*domain.Tenant, 0, len(p.tenants))
	for _, t := range p.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (p *Provider) RoutesForTenant(ctx context.Context, tenantID string) ([]*domain.Route, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var active []*domain.Route
	for _, r := range p.routes[tenantID] {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (p *Provider) Close() error {
	return nil
}
