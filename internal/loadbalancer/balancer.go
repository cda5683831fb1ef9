// Package loadbalancer selects an upstream from a route's configured list
// under one of three strategies (spec.md §4.4). Health awareness is the
// proxy orchestrator's responsibility, not this package's.
package loadbalancer

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
)

// ErrNoUpstreams is raised when SelectUpstream is called with an empty list.
var ErrNoUpstreams = errors.New("no upstreams configured for route")

// Balancer holds the process-local round-robin cursors, one per routeId.
// Cursor reads and advances are guarded by mu.
type Balancer struct {
	mu      sync.Mutex
	cursors map[string]int
}

func New() *Balancer {
	return &Balancer{cursors: make(map[string]int)}
}

// SelectUpstream picks one upstream per strategy.
func (b *Balancer) SelectUpstream(upstreams []domain.UpstreamConfig, strategy domain.LoadBalancingStrategy, routeID string) (domain.UpstreamConfig, error) {
	if len(upstreams) == 0 {
		return domain.UpstreamConfig{}, ErrNoUpstreams
	}
	if len(upstreams) == 1 {
		return upstreams[0], nil
	}

	switch strategy {
	case domain.StrategyWeighted:
		return b.selectWeighted(upstreams), nil
	case domain.StrategyRandom:
		return upstreams[int(rand.Float64()*float64(len(upstreams)))], nil
	case domain.StrategyRoundRobin:
		fallthrough
	default:
		return b.selectRoundRobin(upstreams, routeID), nil
	}
}

func (b *Balancer) selectRoundRobin(upstreams []domain.UpstreamConfig, routeID string) domain.UpstreamConfig {
	b.mu.Lock()
	cursor := b.cursors[routeID]
	b.cursors[routeID] = cursor + 1
	b.mu.Unlock()
	return upstreams[cursor%len(upstreams)]
}

// Reset clears the round-robin cursor for a single route. Cursors otherwise
// never reset on their own; this exists for tests that need a known
// starting upstream.
func (b *Balancer) Reset(routeID string) {
	b.mu.Lock()
	delete(b.cursors, routeID)
	b.mu.Unlock()
}

// ResetAll clears every route's round-robin cursor.
func (b *Balancer) ResetAll() {
	b.mu.Lock()
	b.cursors = make(map[string]int)
	b.mu.Unlock()
}

func (b *Balancer) selectWeighted(upstreams []domain.UpstreamConfig) domain.UpstreamConfig {
	total := 0
	for _, u := range upstreams {
		total += u.EffectiveWeight()
	}
	r := rand.Float64() * float64(total)
	for _, u := range upstreams {
		r -= float64(u.EffectiveWeight())
		if r <= 0 {
			return u
		}
	}
	// Numerical drift: fall back to the last upstream.
	return upstreams[len(upstreams)-1]
}
