package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// PurchaseRequestRepository implements domain.PurchaseRequestRepository using SQLite.
type PurchaseRequestRepository struct {
	db *sql.DB
}

// Compile-time check: PurchaseRequestRepository implements domain.PurchaseRequestRepository.
var _ domain.PurchaseRequestRepository = (*PurchaseRequestRepository)(nil)

// NewPurchaseRequestRepository creates a purchase-request repository on the store's connection.
func NewPurchaseRequestRepository(s *Store) *PurchaseRequestRepository {
	return &PurchaseRequestRepository{db: s.db}
}

func (r *PurchaseRequestRepository) Create(ctx context.Context, req domain.PurchaseRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO purchase_requests (id, tenant_id, service_id, plan_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.TenantID, req.ServiceID, req.PlanID, string(req.Status),
		formatTime(req.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting purchase request: %w", err)
	}
	return nil
}

func (r *PurchaseRequestRepository) Get(ctx context.Context, id string) (domain.PurchaseRequest, error) {
	var req domain.PurchaseRequest
	var status, createdAt string
	var resolvedAt sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, service_id, plan_id, status, created_at, resolved_at
		 FROM purchase_requests WHERE id = ?`, id,
	).Scan(&req.ID, &req.TenantID, &req.ServiceID, &req.PlanID, &status, &createdAt, &resolvedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.PurchaseRequest{}, domain.ErrRequestNotFound
		}
		return domain.PurchaseRequest{}, fmt.Errorf("scanning purchase request: %w", err)
	}

	req.Status = domain.RequestStatus(status)
	req.CreatedAt = parseTime(createdAt)
	req.ResolvedAt = nullableTime(resolvedAt)

	return req, nil
}

func (r *PurchaseRequestRepository) ListPending(ctx context.Context, resellerID string) ([]domain.PurchaseRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.tenant_id, p.service_id, p.plan_id, p.status, p.created_at, p.resolved_at
		 FROM purchase_requests p
		 JOIN tenants t ON t.id = p.tenant_id
		 WHERE t.reseller_id = ? AND p.status = 'pending'
		 ORDER BY p.created_at`, resellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing purchase requests: %w", err)
	}
	defer rows.Close()

	var out []domain.PurchaseRequest
	for rows.Next() {
		var req domain.PurchaseRequest
		var status, createdAt string
		var resolvedAt sql.NullString
		if err := rows.Scan(&req.ID, &req.TenantID, &req.ServiceID, &req.PlanID, &status, &createdAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scanning purchase request row: %w", err)
		}
		req.Status = domain.RequestStatus(status)
		req.CreatedAt = parseTime(createdAt)
		req.ResolvedAt = nullableTime(resolvedAt)
		out = append(out, req)
	}

	return out, rows.Err()
}

func (r *PurchaseRequestRepository) Resolve(ctx context.Context, id string, status domain.RequestStatus, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE purchase_requests SET status = ?, resolved_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(status), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("resolving purchase request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRequestNotFound
	}

	return nil
}
