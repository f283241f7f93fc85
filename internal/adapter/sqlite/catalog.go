package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/calegria/opsgate/internal/domain"
)

// CatalogRepository implements domain.CatalogRepository using SQLite.
type CatalogRepository struct {
	db *sql.DB
}

// Compile-time check: CatalogRepository implements domain.CatalogRepository.
var _ domain.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository creates a catalog repository on the store's connection.
func NewCatalogRepository(s *Store) *CatalogRepository {
	return &CatalogRepository{db: s.db}
}

const serviceColumns = `id, slug, name, category, pricing_model, features, is_active, created_at, updated_at`

func (r *CatalogRepository) CreateService(ctx context.Context, def domain.ServiceDefinition) error {
	features, err := json.Marshal(def.Features)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO services (`+serviceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.Slug, def.Name, string(def.Category), string(def.PricingModel),
		string(features), def.Active,
		formatTime(def.CreatedAt), formatTime(def.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SlugConflictError{Slug: def.Slug}
		}
		return fmt.Errorf("inserting service: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetServiceByID(ctx context.Context, id string) (domain.ServiceDefinition, error) {
	return scanService(r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = ?`, id,
	))
}

func (r *CatalogRepository) GetServiceBySlug(ctx context.Context, slug string) (domain.ServiceDefinition, error) {
	return scanService(r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE slug = ?`, slug,
	))
}

func (r *CatalogRepository) ListServices(ctx context.Context, onlyActive bool) ([]domain.ServiceDefinition, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	if onlyActive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	defer rows.Close()

	return collectServices(rows)
}

func (r *CatalogRepository) ListPlans(ctx context.Context, serviceID string, onlyActive bool) ([]domain.Plan, error) {
	query := `SELECT id, service_id, name, price_cents, billing_period, is_active
	          FROM plans WHERE service_id = ?`
	if onlyActive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY price_cents`

	rows, err := r.db.QueryContext(ctx, query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		var p domain.Plan
		if err := rows.Scan(&p.ID, &p.ServiceID, &p.Name, &p.PriceCents, &p.BillingPeriod, &p.Active); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		plans = append(plans, p)
	}

	return plans, rows.Err()
}

func (r *CatalogRepository) CreatePlan(ctx context.Context, plan domain.Plan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plans (id, service_id, name, price_cents, billing_period, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.ServiceID, plan.Name, plan.PriceCents, plan.BillingPeriod, plan.Active,
	)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListCredentialRequirements(ctx context.Context, serviceID string) ([]domain.CredentialRequirement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT service_id, name, kind, instructions, position
		 FROM service_credentials WHERE service_id = ? ORDER BY position`, serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing credential requirements: %w", err)
	}
	defer rows.Close()

	var reqs []domain.CredentialRequirement
	for rows.Next() {
		var req domain.CredentialRequirement
		var kind string
		if err := rows.Scan(&req.ServiceID, &req.Name, &kind, &req.Instructions, &req.Position); err != nil {
			return nil, fmt.Errorf("scanning credential requirement: %w", err)
		}
		req.Kind = domain.CredentialKind(kind)
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

func (r *CatalogRepository) SetCredentialRequirements(ctx context.Context, serviceID string, reqs []domain.CredentialRequirement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM service_credentials WHERE service_id = ?`, serviceID,
	); err != nil {
		return fmt.Errorf("clearing credential requirements: %w", err)
	}

	for _, req := range reqs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO service_credentials (service_id, name, kind, instructions, position)
			 VALUES (?, ?, ?, ?, ?)`,
			serviceID, req.Name, string(req.Kind), req.Instructions, req.Position,
		); err != nil {
			return fmt.Errorf("inserting credential requirement %q: %w", req.Name, err)
		}
	}

	return tx.Commit()
}

func (r *CatalogRepository) SetEnablement(ctx context.Context, e domain.AdminEnablement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_enablements (reseller_id, service_id, enabled)
		 VALUES (?, ?, ?)
		 ON CONFLICT (reseller_id, service_id) DO UPDATE SET enabled = excluded.enabled`,
		e.ResellerID, e.ServiceID, e.Enabled,
	)
	if err != nil {
		return fmt.Errorf("setting enablement: %w", err)
	}
	return nil
}

func (r *CatalogRepository) IsEnabled(ctx context.Context, resellerID, serviceID string) (bool, error) {
	var enabled bool
	err := r.db.QueryRowContext(ctx,
		`SELECT enabled FROM admin_enablements WHERE reseller_id = ? AND service_id = ?`,
		resellerID, serviceID,
	).Scan(&enabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking enablement: %w", err)
	}
	return enabled, nil
}

func (r *CatalogRepository) ListEnabledServices(ctx context.Context, resellerID string) ([]domain.ServiceDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.slug, s.name, s.category, s.pricing_model, s.features, s.is_active, s.created_at, s.updated_at
		 FROM services s
		 JOIN admin_enablements e ON e.service_id = s.id
		 WHERE e.reseller_id = ? AND e.enabled = 1 AND s.is_active = 1
		 ORDER BY s.slug`, resellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing enabled services: %w", err)
	}
	defer rows.Close()

	return collectServices(rows)
}

func scanService(row *sql.Row) (domain.ServiceDefinition, error) {
	var def domain.ServiceDefinition
	var category, pricing, features, createdAt, updatedAt string

	err := row.Scan(&def.ID, &def.Slug, &def.Name, &category, &pricing, &features, &def.Active, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ServiceDefinition{}, domain.ErrServiceNotFound
		}
		return domain.ServiceDefinition{}, fmt.Errorf("scanning service: %w", err)
	}

	return finishService(def, category, pricing, features, createdAt, updatedAt)
}

func collectServices(rows *sql.Rows) ([]domain.ServiceDefinition, error) {
	var defs []domain.ServiceDefinition
	for rows.Next() {
		var def domain.ServiceDefinition
		var category, pricing, features, createdAt, updatedAt string
		if err := rows.Scan(&def.ID, &def.Slug, &def.Name, &category, &pricing, &features, &def.Active, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning service row: %w", err)
		}
		full, err := finishService(def, category, pricing, features, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		defs = append(defs, full)
	}
	return defs, rows.Err()
}

func finishService(def domain.ServiceDefinition, category, pricing, features, createdAt, updatedAt string) (domain.ServiceDefinition, error) {
	def.Category = domain.Category(category)
	def.PricingModel = domain.PricingModel(pricing)
	if err := json.Unmarshal([]byte(features), &def.Features); err != nil {
		return domain.ServiceDefinition{}, fmt.Errorf("decoding features: %w", err)
	}
	def.CreatedAt = parseTime(createdAt)
	def.UpdatedAt = parseTime(updatedAt)
	return def, nil
}
