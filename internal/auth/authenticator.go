// Package auth implements the tenant authenticator: cache-first api-key
// lookup falling back to a bcrypt comparison against the route store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
)

const tenantCacheTTL = 5 * time.Second

// ErrCachedInactiveTenant is returned by Validate when the cached tenant
// view resolves to an inactive tenant. The pipeline host maps this to 403
// rather than 401, preserving the cached-key/inactive-tenant distinction
// that a bare (nil, false, nil) would otherwise erase (spec.md §4.1).
var ErrCachedInactiveTenant = errors.New("cached tenant is inactive")

// Authenticator validates API keys and resolves them to a cached, api-key-hash-free
// tenant view (spec.md §4.1).
type Authenticator struct {
	cache ports.Cache
	store ports.RouteStore
}

func New(cache ports.Cache, store ports.RouteStore) *Authenticator {
	return &Authenticator{cache: cache, store: store}
}

// Validate returns the tenant for apiKey, or (nil, false, nil) if the key is
// unknown or belongs to an inactive tenant found via the bcrypt scan path.
// Callers map that to 401. When the inactive tenant was found via the
// cache instead, Validate returns (nil, false, ErrCachedInactiveTenant) so
// the pipeline host can map it to 403 (spec.md §4.1).
func (a *Authenticator) Validate(ctx context.Context, apiKey string) (*domain.TenantView, bool, error) {
	cacheKey := domain.TenantAPIKeyCacheKey(apiKey)

	if raw, ok, err := a.cache.Get(ctx, cacheKey); err == nil && ok {
		var view domain.TenantView
		if err := json.Unmarshal(raw, &view); err == nil {
			if !view.IsActive {
				return nil, false, ErrCachedInactiveTenant
			}
			return &view, true, nil
		}
	}

	tenants, err := a.store.Tenants(ctx)
	if err != nil {
		return nil, false, err
	}

	for _, t := range tenants {
		if !t.IsActive {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(t.APIKeyHash), []byte(apiKey)) != nil {
			continue
		}
		view := t.View()
		if raw, err := json.Marshal(view); err == nil {
			_ = a.cache.Set(ctx, cacheKey, raw, tenantCacheTTL)
		}
		return view, true, nil
	}

	return nil, false, nil
}

// HashAPIKey produces the cost-12 bcrypt hash stored as Tenant.APIKeyHash.
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ErrMissingAPIKey is returned by ExtractAPIKey when the header is absent.
var ErrMissingAPIKey = errors.New("missing X-API-Key header")

// ExtractAPIKey reads the caller's api key from the X-API-Key header
// (spec.md §6), falling back to a Bearer Authorization header for callers
// that prefer it.
func ExtractAPIKey(r *http.Request) (string, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, nil
	}
	authz := r.Header.Get("Authorization")
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
		return parts[1], nil
	}
	return "", ErrMissingAPIKey
}
