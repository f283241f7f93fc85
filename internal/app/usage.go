package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// UsageService is the quota ledger: it appends consumption events,
// keeps the running counter exact under concurrent writers, surfaces
// warning/at-limit flags, and rolls the counter over per reset period.
type UsageService struct {
	tenants      domain.TenantRepository
	entitlements domain.EntitlementRepository
	usage        domain.UsageRepository
	instances    domain.InstanceRepository
	publisher    domain.EventPublisher
}

// NewUsageService creates a usage service with the given adapters.
func NewUsageService(
	tenants domain.TenantRepository,
	entitlements domain.EntitlementRepository,
	usage domain.UsageRepository,
	instances domain.InstanceRepository,
	publisher domain.EventPublisher,
) *UsageService {
	return &UsageService{
		tenants:      tenants,
		entitlements: entitlements,
		usage:        usage,
		instances:    instances,
		publisher:    publisher,
	}
}

// Record accounts one consumption event. The event is always recorded,
// even past the limit: quota is advisory at recording time; gating new
// invocations is the initiating collaborator's job. Threshold crossings
// (80% warning, 100% at-limit) publish quota events exactly once.
// Callers are external completion callbacks, so this path carries no
// Caller identity.
func (s *UsageService) Record(ctx context.Context, tenantID, serviceID string, quantity, unitCost int64) (domain.UsageStatus, error) {
	if quantity <= 0 {
		return domain.UsageStatus{}, &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	event := domain.UsageEvent{
		ID:         newID(),
		TenantID:   tenantID,
		ServiceID:  serviceID,
		Quantity:   quantity,
		UnitCost:   unitCost,
		OccurredAt: time.Now().UTC(),
	}

	ent, err := s.usage.Record(ctx, event)
	if err != nil {
		return domain.UsageStatus{}, err
	}

	status := domain.StatusFor(ent.UsageConsumed, ent.UsageLimit, ent.ResetPeriod)
	before := domain.StatusFor(ent.UsageConsumed-quantity, ent.UsageLimit, ent.ResetPeriod)

	if status.Warning && !before.Warning {
		publish(ctx, s.publisher, domain.Event{
			Kind:      domain.EventQuotaWarning,
			TenantID:  tenantID,
			ServiceID: serviceID,
			Detail:    fmt.Sprintf("%d of %d used", ent.UsageConsumed, ent.UsageLimit),
		})
	}
	if status.AtLimit && !before.AtLimit {
		publish(ctx, s.publisher, domain.Event{
			Kind:      domain.EventQuotaReached,
			TenantID:  tenantID,
			ServiceID: serviceID,
			Detail:    fmt.Sprintf("%d of %d used", ent.UsageConsumed, ent.UsageLimit),
		})
	}

	// A completed run also counts as an execution of the instance, when
	// one exists for the pair.
	if inst, err := s.instances.GetByPair(ctx, tenantID, serviceID); err == nil {
		if err := s.instances.RecordExecution(ctx, inst.ID, event.OccurredAt); err != nil {
			slog.WarnContext(ctx, "recording execution failed", "instance_id", inst.ID, "error", err)
		}
	} else if !errors.Is(err, domain.ErrInstanceNotFound) {
		slog.WarnContext(ctx, "looking up instance failed", "tenant_id", tenantID, "service_id", serviceID, "error", err)
	}

	return status, nil
}

// Current reports the tenant-service quota as it stands.
func (s *UsageService) Current(ctx context.Context, caller domain.Caller, tenantID, serviceID string) (domain.UsageStatus, error) {
	if _, err := tenantInScope(ctx, s.tenants, caller, tenantID); err != nil {
		return domain.UsageStatus{}, err
	}

	ent, err := s.entitlements.Get(ctx, tenantID, serviceID)
	if err != nil {
		return domain.UsageStatus{}, err
	}

	return domain.StatusFor(ent.UsageConsumed, ent.UsageLimit, ent.ResetPeriod), nil
}

// History returns recent usage events for the pair.
func (s *UsageService) History(ctx context.Context, caller domain.Caller, tenantID, serviceID string, limit int) ([]domain.UsageEvent, error) {
	if _, err := tenantInScope(ctx, s.tenants, caller, tenantID); err != nil {
		return nil, err
	}
	return s.usage.ListEvents(ctx, tenantID, serviceID, limit)
}

// Rollover zeroes consumed counters whose reset period has elapsed.
// Invoked by the scheduled job, never from the read path.
func (s *UsageService) Rollover(ctx context.Context, now time.Time) (int64, error) {
	return s.entitlements.ResetExpired(ctx, now)
}
