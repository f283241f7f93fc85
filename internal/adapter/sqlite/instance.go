package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// InstanceRepository implements domain.InstanceRepository using SQLite.
// Slot values go in but never come back out: every slot SELECT omits
// the value column, which is how the never-re-display-secrets policy
// is enforced at the lowest layer.
type InstanceRepository struct {
	db *sql.DB
}

// Compile-time check: InstanceRepository implements domain.InstanceRepository.
var _ domain.InstanceRepository = (*InstanceRepository)(nil)

// NewInstanceRepository creates an instance repository on the store's connection.
func NewInstanceRepository(s *Store) *InstanceRepository {
	return &InstanceRepository{db: s.db}
}

const instanceColumns = `id, tenant_id, service_id, status, is_active, external_reference,
	webhook_endpoint, config, error_message, last_executed_at, execution_count, created_at, updated_at`

// Create inserts the instance row and its credential slots in one
// transaction. The UNIQUE(tenant_id, service_id) constraint is the
// arbiter for concurrent creates; there is deliberately no existence
// pre-check.
func (r *InstanceRepository) Create(ctx context.Context, inst domain.WorkflowInstance, slots []domain.CredentialSlot) error {
	config, err := json.Marshal(inst.Config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflow_instances (`+instanceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		inst.ID, inst.TenantID, inst.ServiceID, string(inst.Status), inst.Active,
		inst.ExternalReference, inst.WebhookEndpoint, string(config), inst.ErrorMessage,
		inst.ExecutionCount, formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.InstanceConflictError{TenantID: inst.TenantID, ServiceID: inst.ServiceID}
		}
		return fmt.Errorf("inserting instance: %w", err)
	}

	for _, slot := range slots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credential_slots (id, instance_id, name, kind, status, instructions)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			slot.ID, inst.ID, slot.Name, string(slot.Kind), string(slot.Status), slot.Instructions,
		); err != nil {
			return fmt.Errorf("inserting slot %q: %w", slot.Name, err)
		}
	}

	return tx.Commit()
}

func (r *InstanceRepository) Get(ctx context.Context, id string) (domain.WorkflowInstance, error) {
	return scanInstance(r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances WHERE id = ?`, id,
	))
}

func (r *InstanceRepository) GetByPair(ctx context.Context, tenantID, serviceID string) (domain.WorkflowInstance, error) {
	return scanInstance(r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+`
		 FROM workflow_instances WHERE tenant_id = ? AND service_id = ?`,
		tenantID, serviceID,
	))
}

func (r *InstanceRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+instanceColumns+`
		 FROM workflow_instances WHERE tenant_id = ? ORDER BY created_at`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkflowInstance
	for rows.Next() {
		inst, err := scanInstanceValues(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}

	return out, rows.Err()
}

func (r *InstanceRepository) Update(ctx context.Context, inst domain.WorkflowInstance) error {
	config, err := json.Marshal(inst.Config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	var lastExecuted any
	if inst.LastExecutedAt != nil {
		lastExecuted = formatTime(*inst.LastExecutedAt)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE workflow_instances
		 SET status = ?, is_active = ?, external_reference = ?, webhook_endpoint = ?,
		     config = ?, error_message = ?, last_executed_at = ?, execution_count = ?, updated_at = ?
		 WHERE id = ?`,
		string(inst.Status), inst.Active, inst.ExternalReference, inst.WebhookEndpoint,
		string(config), inst.ErrorMessage, lastExecuted, inst.ExecutionCount,
		formatTime(time.Now()), inst.ID,
	)
	if err != nil {
		return fmt.Errorf("updating instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrInstanceNotFound
	}

	return nil
}

func (r *InstanceRepository) ListSlots(ctx context.Context, instanceID string) ([]domain.CredentialSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, instance_id, name, kind, status, instructions, configured_at
		 FROM credential_slots WHERE instance_id = ? ORDER BY rowid`, instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.CredentialSlot
	for rows.Next() {
		var s domain.CredentialSlot
		var kind, status string
		var configuredAt sql.NullString
		if err := rows.Scan(&s.ID, &s.InstanceID, &s.Name, &kind, &status, &s.Instructions, &configuredAt); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		s.Kind = domain.CredentialKind(kind)
		s.Status = domain.SlotStatus(status)
		s.ConfiguredAt = nullableTime(configuredAt)
		slots = append(slots, s)
	}

	return slots, rows.Err()
}

func (r *InstanceRepository) SetSlotValue(ctx context.Context, instanceID, name, value string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE credential_slots SET value = ?, status = ?, configured_at = ?
		 WHERE instance_id = ? AND name = ?`,
		value, string(domain.SlotConfigured), formatTime(at), instanceID, name,
	)
	if err != nil {
		return fmt.Errorf("setting slot value: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.ValidationError{Field: name, Reason: "no such credential slot"}
	}

	return nil
}

func (r *InstanceRepository) RecordExecution(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workflow_instances
		 SET execution_count = execution_count + 1, last_executed_at = ?, updated_at = ?
		 WHERE id = ?`,
		formatTime(at), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("recording execution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrInstanceNotFound
	}

	return nil
}

func scanInstance(row *sql.Row) (domain.WorkflowInstance, error) {
	inst, err := scanInstanceValues(row.Scan)
	if err == sql.ErrNoRows {
		return domain.WorkflowInstance{}, domain.ErrInstanceNotFound
	}
	return inst, err
}

// scanInstanceValues scans an instance from any Scan-shaped function,
// shared by single-row and multi-row reads.
func scanInstanceValues(scan func(...any) error) (domain.WorkflowInstance, error) {
	var inst domain.WorkflowInstance
	var status, config, createdAt, updatedAt string
	var lastExecuted sql.NullString

	err := scan(&inst.ID, &inst.TenantID, &inst.ServiceID, &status, &inst.Active,
		&inst.ExternalReference, &inst.WebhookEndpoint, &config, &inst.ErrorMessage,
		&lastExecuted, &inst.ExecutionCount, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.WorkflowInstance{}, err
		}
		return domain.WorkflowInstance{}, fmt.Errorf("scanning instance: %w", err)
	}

	inst.Status = domain.InstanceStatus(status)
	if err := json.Unmarshal([]byte(config), &inst.Config); err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("decoding config: %w", err)
	}
	inst.LastExecutedAt = nullableTime(lastExecuted)
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)

	return inst, nil
}
