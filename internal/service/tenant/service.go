package tenant

import (
	"context"
	"fmt"

	"github.com/jmehdipour/billing-backend/internal/metrics"
)

// Directory maps external subjects to internal tenant ids.
type Directory interface {
	FindOrCreate(ctx context.Context, subject, email string) (int64, error)
}

// Provisioner ensures a tenant's private tables exist.
type Provisioner interface {
	EnsureTenantTables(ctx context.Context, tenantID int64) error
}

// Service is the single choke point every tenant-scoped route calls
// first: it registers unseen subjects and lazily provisions their
// tables, consulting the cache to skip redundant existence checks.
type Service struct {
	dir    Directory
	schema Provisioner
	cache  *Cache
}

func NewService(dir Directory, schema Provisioner, cache *Cache) *Service {
	return &Service{dir: dir, schema: schema, cache: cache}
}

// Resolve returns the tenant id for a verified (subject, email) pair,
// creating the directory row and the tenant tables on first sight.
// Calling it twice for the same subject yields the same id.
func (s *Service) Resolve(ctx context.Context, subject, email string) (int64, error) {
	if subject == "" {
		return 0, fmt.Errorf("empty subject")
	}

	id, err := s.dir.FindOrCreate(ctx, subject, email)
	if err != nil {
		return 0, err
	}

	if !s.cache.Has(id) {
		// Two requests can race here for a brand-new tenant; the
		// provisioner is idempotent, so both succeed.
		if err := s.schema.EnsureTenantTables(ctx, id); err != nil {
			return 0, fmt.Errorf("provision tenant %d: %w", id, err)
		}
		s.cache.Add(id)
		metrics.TenantsProvisionedTotal.Inc()
	}

	return id, nil
}
