package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calegria/opsgate/internal/domain"
)

// UsageRepository implements domain.UsageRepository using SQLite.
type UsageRepository struct {
	db *sql.DB
}

// Compile-time check: UsageRepository implements domain.UsageRepository.
var _ domain.UsageRepository = (*UsageRepository)(nil)

// NewUsageRepository creates a usage repository on the store's connection.
func NewUsageRepository(s *Store) *UsageRepository {
	return &UsageRepository{db: s.db}
}

// Record appends the event and bumps the owning entitlement's counter
// in one transaction. The counter update is a relative SQL increment,
// not a read-modify-write, so concurrent events from independent
// callbacks never lose an update. The event is always recorded even
// when the result lands over the limit.
func (r *UsageRepository) Record(ctx context.Context, event domain.UsageEvent) (domain.ClientEntitlement, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ClientEntitlement{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO usage_events (id, tenant_id, service_id, quantity, unit_cost, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.TenantID, event.ServiceID, event.Quantity, event.UnitCost,
		formatTime(event.OccurredAt),
	); err != nil {
		return domain.ClientEntitlement{}, fmt.Errorf("inserting usage event: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE client_entitlements
		 SET usage_consumed = usage_consumed + ?, updated_at = ?
		 WHERE tenant_id = ? AND service_id = ? AND is_active = 1`,
		event.Quantity, formatTime(event.OccurredAt), event.TenantID, event.ServiceID,
	)
	if err != nil {
		return domain.ClientEntitlement{}, fmt.Errorf("incrementing usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.ClientEntitlement{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ClientEntitlement{}, domain.ErrEntitlementNotFound
	}

	ent, err := scanEntitlement(tx.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+`
		 FROM client_entitlements WHERE tenant_id = ? AND service_id = ?`,
		event.TenantID, event.ServiceID,
	))
	if err != nil {
		return domain.ClientEntitlement{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.ClientEntitlement{}, fmt.Errorf("committing usage: %w", err)
	}

	return ent, nil
}

func (r *UsageRepository) ListEvents(ctx context.Context, tenantID, serviceID string, limit int) ([]domain.UsageEvent, error) {
	query := `SELECT id, tenant_id, service_id, quantity, unit_cost, occurred_at
	          FROM usage_events WHERE tenant_id = ? AND service_id = ?
	          ORDER BY occurred_at DESC`
	args := []any{tenantID, serviceID}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing usage events: %w", err)
	}
	defer rows.Close()

	var events []domain.UsageEvent
	for rows.Next() {
		var e domain.UsageEvent
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ServiceID, &e.Quantity, &e.UnitCost, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning usage event: %w", err)
		}
		e.OccurredAt = parseTime(occurredAt)
		events = append(events, e)
	}

	return events, rows.Err()
}
