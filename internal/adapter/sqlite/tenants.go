package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// Compile-time check: TenantStore implements domain.TenantRegistry.
var _ domain.TenantRegistry = (*TenantStore)(nil)

// TenantStore implements domain.TenantRegistry using SQLite. The partial
// unique indexes on name and domain are the authoritative uniqueness
// guard; pre-checks in the service are advisory only.
type TenantStore struct {
	db *sql.DB
}

func (r *TenantStore) Create(ctx context.Context, t domain.NewTenant) (domain.Tenant, error) {
	now := time.Now().UTC()

	tenant := domain.Tenant{
		ID:     uuid.NewString(),
		Name:   t.Name,
		Domain: t.Domain,
		Plan:   t.Plan,
	}
	if t.TrialDays > 0 {
		tenant.TrialEndsAt = now.AddDate(0, 0, t.TrialDays)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, domain, plan, trial_ends_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tenant.ID, tenant.Name, tenant.Domain, tenant.Plan, nullTime(tenant.TrialEndsAt),
		now.Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "domain") {
				return domain.Tenant{}, &domain.ConflictError{Field: "tenant domain", Value: t.Domain}
			}
			return domain.Tenant{}, &domain.ConflictError{Field: "tenant name", Value: t.Name}
		}
		return domain.Tenant{}, fmt.Errorf("inserting tenant: %w", err)
	}

	return tenant, nil
}

func (r *TenantStore) NameOrDomainTaken(ctx context.Context, name, tenantDomain string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenants
		 WHERE (name = ? OR domain = ?) AND deleted_at IS NULL`,
		name, tenantDomain,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking tenant uniqueness: %w", err)
	}
	return count > 0, nil
}

// EnableFeature records a feature flag for the tenant. Re-enabling an
// already-enabled flag is a no-op.
func (r *TenantStore) EnableFeature(ctx context.Context, tenantID, feature string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenant_features (tenant_id, feature, enabled, created_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (tenant_id, feature) DO NOTHING`,
		tenantID, feature, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("enabling feature %q: %w", feature, err)
	}
	return nil
}

// SoftDelete releases the tenant's name and domain while retaining the
// record for audit. Deleting an already-deleted tenant is a no-op.
func (r *TenantStore) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting tenant: %w", err)
	}
	return nil
}

// Features returns the enabled feature flags for a tenant.
func (r *TenantStore) Features(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT feature FROM tenant_features WHERE tenant_id = ? AND enabled = 1 ORDER BY feature`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing features: %w", err)
	}
	defer rows.Close()

	var features []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}
		features = append(features, f)
	}

	return features, rows.Err()
}
