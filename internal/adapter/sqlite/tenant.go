package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calegria/opsgate/internal/domain"
)

// TenantRepository implements domain.TenantRepository using SQLite.
type TenantRepository struct {
	db *sql.DB
}

// Compile-time check: TenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TenantRepository)(nil)

// NewTenantRepository creates a tenant repository on the store's connection.
func NewTenantRepository(s *Store) *TenantRepository {
	return &TenantRepository{db: s.db}
}

func (r *TenantRepository) CreateReseller(ctx context.Context, res domain.Reseller) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resellers (id, name, created_at) VALUES (?, ?, ?)`,
		res.ID, res.Name, formatTime(res.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting reseller: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetReseller(ctx context.Context, id string) (domain.Reseller, error) {
	var res domain.Reseller
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM resellers WHERE id = ?`, id,
	).Scan(&res.ID, &res.Name, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Reseller{}, domain.ErrResellerNotFound
		}
		return domain.Reseller{}, fmt.Errorf("scanning reseller: %w", err)
	}

	res.CreatedAt = parseTime(createdAt)
	return res, nil
}

func (r *TenantRepository) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, reseller_id, name, slug, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.ResellerID, t.Name, t.Slug, formatTime(t.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SlugConflictError{Slug: t.Slug}
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	var t domain.Tenant
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, reseller_id, name, slug, created_at FROM tenants WHERE id = ?`, id,
	).Scan(&t.ID, &t.ResellerID, &t.Name, &t.Slug, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

func (r *TenantRepository) ListTenants(ctx context.Context, resellerID string) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reseller_id, name, slug, created_at
		 FROM tenants WHERE reseller_id = ? ORDER BY created_at`, resellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		var createdAt string
		if err := rows.Scan(&t.ID, &t.ResellerID, &t.Name, &t.Slug, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		t.CreatedAt = parseTime(createdAt)
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}
