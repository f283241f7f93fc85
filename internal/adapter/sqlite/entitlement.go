package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// EntitlementRepository implements domain.EntitlementRepository using SQLite.
type EntitlementRepository struct {
	db *sql.DB
}

// Compile-time check: EntitlementRepository implements domain.EntitlementRepository.
var _ domain.EntitlementRepository = (*EntitlementRepository)(nil)

// NewEntitlementRepository creates an entitlement repository on the store's connection.
func NewEntitlementRepository(s *Store) *EntitlementRepository {
	return &EntitlementRepository{db: s.db}
}

const entitlementColumns = `id, tenant_id, service_id, plan_id, usage_limit, usage_consumed,
	reset_period, usage_reset_at, is_active, created_at, updated_at`

func (r *EntitlementRepository) Upsert(ctx context.Context, e domain.ClientEntitlement) error {
	// Re-granting a revoked entitlement reactivates the existing row so
	// the (tenant, service) uniqueness holds; the consumed counter is
	// preserved, only limit/plan/period change.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_entitlements (`+entitlementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, service_id) DO UPDATE SET
			plan_id = excluded.plan_id,
			usage_limit = excluded.usage_limit,
			reset_period = excluded.reset_period,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		e.ID, e.TenantID, e.ServiceID, e.PlanID, e.UsageLimit, e.UsageConsumed,
		string(e.ResetPeriod), formatTime(e.UsageResetAt), e.Active,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting entitlement: %w", err)
	}
	return nil
}

func (r *EntitlementRepository) Get(ctx context.Context, tenantID, serviceID string) (domain.ClientEntitlement, error) {
	return scanEntitlement(r.db.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+`
		 FROM client_entitlements WHERE tenant_id = ? AND service_id = ?`,
		tenantID, serviceID,
	))
}

func (r *EntitlementRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.ClientEntitlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entitlementColumns+`
		 FROM client_entitlements WHERE tenant_id = ? ORDER BY created_at`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing entitlements: %w", err)
	}
	defer rows.Close()

	var out []domain.ClientEntitlement
	for rows.Next() {
		e, err := scanEntitlementFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

func (r *EntitlementRepository) Deactivate(ctx context.Context, tenantID, serviceID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE client_entitlements SET is_active = 0, updated_at = ?
		 WHERE tenant_id = ? AND service_id = ?`,
		formatTime(time.Now()), tenantID, serviceID,
	)
	if err != nil {
		return fmt.Errorf("deactivating entitlement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrEntitlementNotFound
	}

	return nil
}

// ResetExpired zeroes the consumed counter for every active entitlement
// whose reset period has elapsed since the last rollover. Usage event
// rows are untouched, so historical reporting survives the reset.
func (r *EntitlementRepository) ResetExpired(ctx context.Context, now time.Time) (int64, error) {
	ts := formatTime(now)
	result, err := r.db.ExecContext(ctx,
		`UPDATE client_entitlements
		 SET usage_consumed = 0, usage_reset_at = ?, updated_at = ?
		 WHERE is_active = 1 AND (
			(reset_period = 'daily'   AND datetime(usage_reset_at, '+1 day')   <= datetime(?)) OR
			(reset_period = 'weekly'  AND datetime(usage_reset_at, '+7 days')  <= datetime(?)) OR
			(reset_period = 'monthly' AND datetime(usage_reset_at, '+1 month') <= datetime(?)))`,
		ts, ts, ts, ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("resetting expired entitlements: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rows, nil
}

func scanEntitlement(row *sql.Row) (domain.ClientEntitlement, error) {
	var e domain.ClientEntitlement
	var reset, resetAt, createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.TenantID, &e.ServiceID, &e.PlanID, &e.UsageLimit, &e.UsageConsumed,
		&reset, &resetAt, &e.Active, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ClientEntitlement{}, domain.ErrEntitlementNotFound
		}
		return domain.ClientEntitlement{}, fmt.Errorf("scanning entitlement: %w", err)
	}

	e.ResetPeriod = domain.ResetPeriod(reset)
	e.UsageResetAt = parseTime(resetAt)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)

	return e, nil
}

func scanEntitlementFromRows(rows *sql.Rows) (domain.ClientEntitlement, error) {
	var e domain.ClientEntitlement
	var reset, resetAt, createdAt, updatedAt string

	err := rows.Scan(&e.ID, &e.TenantID, &e.ServiceID, &e.PlanID, &e.UsageLimit, &e.UsageConsumed,
		&reset, &resetAt, &e.Active, &createdAt, &updatedAt)
	if err != nil {
		return domain.ClientEntitlement{}, fmt.Errorf("scanning entitlement row: %w", err)
	}

	e.ResetPeriod = domain.ResetPeriod(reset)
	e.UsageResetAt = parseTime(resetAt)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)

	return e, nil
}
