// Package sqlite implements ports.RouteStore over a read-only tenant/route
// schema using the pure-Go modernc.org/sqlite driver, the way the teacher's
// storage/sqlite package persists interactions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/core/ports"
)

// Provider is a ports.RouteStore backed by sqlite.
type Provider struct {
	db *sql.DB
}

var _ ports.RouteStore = (*Provider)(nil)

// New opens dbPath, enabling WAL mode, and ensures the tenant/route tables exist.
func New(dbPath string) (*Provider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	p := &Provider{db: db}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return p, nil
}

func (p *Provider) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			api_key_hash TEXT NOT NULL,
			default_rate_limit TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			path_type TEXT NOT NULL,
			upstreams TEXT NOT NULL,
			load_balancing TEXT NOT NULL,
			transform TEXT,
			resilience TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_tenant ON routes(tenant_id)`,
	}
	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

func (p *Provider) TenantByID(ctx context.Context, tenantID string) (*domain.Tenant, bool, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, name, is_active, api_key_hash, default_rate_limit, created_at, updated_at
		FROM tenants WHERE id = ?`, tenantID)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (p *Provider) Tenants(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, is_active, api_key_hash, default_rate_limit, created_at, updated_at FROM tenants`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*domain.Tenant, error) {
	var t domain.Tenant
	var isActive int
	var rateLimitJSON sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &isActive, &t.APIKeyHash, &rateLimitJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.IsActive = isActive != 0
	if rateLimitJSON.Valid && rateLimitJSON.String != "" {
		var rl domain.RateLimitConfig
		if err := json.Unmarshal([]byte(rateLimitJSON.String), &rl); err != nil {
			return nil, fmt.Errorf("unmarshal default_rate_limit: %w", err)
		}
		t.DefaultRateLimit = &rl
	}
	return &t, nil
}

func (p *Provider) RoutesForTenant(ctx context.Context, tenantID string) ([]*domain.Route, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, tenant_id, method, path, path_type, upstreams, load_balancing,
		transform, resilience, is_active, created_at, updated_at
		FROM routes WHERE tenant_id = ? AND is_active = 1 ORDER BY rowid`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var routes []*domain.Route
	for rows.Next() {
		var r domain.Route
		var isActive int
		var upstreamsJSON string
		var transformJSON, resilienceJSON sql.NullString

		if err := rows.Scan(&r.ID, &r.TenantID, &r.Method, &r.Path, &r.PathType, &upstreamsJSON,
			&r.LoadBalancing, &transformJSON, &resilienceJSON, &isActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.IsActive = isActive != 0

		if err := json.Unmarshal([]byte(upstreamsJSON), &r.Upstreams); err != nil {
			return nil, fmt.Errorf("unmarshal upstreams for route %s: %w", r.ID, err)
		}
		if transformJSON.Valid && transformJSON.String != "" {
			var tc domain.TransformConfig
			if err := json.Unmarshal([]byte(transformJSON.String), &tc); err != nil {
				return nil, fmt.Errorf("unmarshal transform for route %s: %w", r.ID, err)
			}
			r.Transform = &tc
		}
		if resilienceJSON.Valid && resilienceJSON.String != "" {
			var rc domain.ResilienceConfig
			if err := json.Unmarshal([]byte(resilienceJSON.String), &rc); err != nil {
				return nil, fmt.Errorf("unmarshal resilience for route %s: %w", r.ID, err)
			}
			r.Resilience = &rc
		}

		routes = append(routes, &r)
	}
	return routes, rows.Err()
}

func (p *Provider) Close() error {
	return p.db.Close()
}
