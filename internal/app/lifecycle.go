package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// LifecycleService drives the workflow-instance state machine: it
// creates a per-tenant automation instance for a capability, gates its
// credentials, activates it against the automation engine, and records
// recovery information when a handshake fails.
type LifecycleService struct {
	catalog      domain.CatalogRepository
	tenants      domain.TenantRepository
	entitlements domain.EntitlementRepository
	instances    domain.InstanceRepository
	engine       domain.AutomationEngine
	validator    domain.TransitionValidator
	publisher    domain.EventPublisher
}

// NewLifecycleService creates a lifecycle service with the given adapters.
func NewLifecycleService(
	catalog domain.CatalogRepository,
	tenants domain.TenantRepository,
	entitlements domain.EntitlementRepository,
	instances domain.InstanceRepository,
	engine domain.AutomationEngine,
	validator domain.TransitionValidator,
	publisher domain.EventPublisher,
) *LifecycleService {
	return &LifecycleService{
		catalog:      catalog,
		tenants:      tenants,
		entitlements: entitlements,
		instances:    instances,
		engine:       engine,
		validator:    validator,
		publisher:    publisher,
	}
}

// Get returns an instance after checking the caller's scope over its tenant.
func (s *LifecycleService) Get(ctx context.Context, caller domain.Caller, instanceID string) (domain.WorkflowInstance, error) {
	return s.instanceInScope(ctx, caller, instanceID)
}

// ListByTenant returns a tenant's instances.
func (s *LifecycleService) ListByTenant(ctx context.Context, caller domain.Caller, tenantID string) ([]domain.WorkflowInstance, error) {
	if _, err := tenantInScope(ctx, s.tenants, caller, tenantID); err != nil {
		return nil, err
	}
	return s.instances.ListByTenant(ctx, tenantID)
}

// Create materializes a workflow instance for a (tenant, service)
// pair. The tenant must hold an active entitlement; the storage
// uniqueness constraint arbitrates concurrent creates. A provisioning
// failure after the row is written leaves the instance in error with
// the engine's message, never a silent rollback: the tenant must see
// why provisioning failed.
func (s *LifecycleService) Create(ctx context.Context, caller domain.Caller, tenantID, serviceID string) (domain.WorkflowInstance, error) {
	tenant, err := tenantInScope(ctx, s.tenants, caller, tenantID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	ent, err := s.entitlements.Get(ctx, tenantID, serviceID)
	if err != nil {
		if errors.Is(err, domain.ErrEntitlementNotFound) {
			return domain.WorkflowInstance{}, &domain.AuthorizationError{Reason: "tenant has no active entitlement for this service"}
		}
		return domain.WorkflowInstance{}, err
	}
	if !ent.Active {
		return domain.WorkflowInstance{}, &domain.AuthorizationError{Reason: "tenant has no active entitlement for this service"}
	}

	reqs, err := s.catalog.ListCredentialRequirements(ctx, serviceID)
	if err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("loading credential template: %w", err)
	}

	inst := domain.NewWorkflowInstance(newID(), tenantID, serviceID)

	slots := make([]domain.CredentialSlot, 0, len(reqs))
	for _, req := range reqs {
		slots = append(slots, domain.CredentialSlot{
			ID:           newID(),
			InstanceID:   inst.ID,
			Name:         req.Name,
			Kind:         req.Kind,
			Status:       domain.SlotPending,
			Instructions: req.Instructions,
		})
	}

	if err := s.instances.Create(ctx, inst, slots); err != nil {
		return domain.WorkflowInstance{}, err
	}

	result, err := s.engine.Provision(ctx, tenantID, serviceID)
	if err != nil {
		return s.markFailed(ctx, inst, tenant.ResellerID, domain.EventProvisionFailed, err)
	}

	inst.ExternalReference = result.ExternalReference
	inst.WebhookEndpoint = result.WebhookEndpoint

	if err := s.instances.Update(ctx, inst); err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("storing provision result: %w", err)
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       domain.EventInstanceCreated,
		TenantID:   tenantID,
		ResellerID: tenant.ResellerID,
		ServiceID:  serviceID,
		InstanceID: inst.ID,
	})

	return inst, nil
}

// Configure applies credential values to an instance. Omitted fields
// and empty values for already-configured slots keep their current
// value; the instance config is merged, not replaced. Once every slot
// is configured, a pending or errored instance advances to configured.
func (s *LifecycleService) Configure(ctx context.Context, caller domain.Caller, instanceID string, values map[string]string) (domain.WorkflowInstance, error) {
	inst, err := s.instanceInScope(ctx, caller, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	slots, err := s.instances.ListSlots(ctx, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	byName := make(map[string]domain.CredentialSlot, len(slots))
	for _, slot := range slots {
		byName[slot.Name] = slot
	}

	// Validate everything before writing anything, so a partially
	// invalid payload leaves no slot half-updated.
	var errs []error
	apply := make(map[string]string)
	for name, value := range values {
		slot, ok := byName[name]
		if !ok {
			errs = append(errs, &domain.ValidationError{Field: name, Reason: "no such credential slot"})
			continue
		}
		if value == "" {
			// Update-in-place: an empty value means "keep what is there".
			continue
		}
		if err := validateSlotValue(name, slot.Kind, value); err != nil {
			errs = append(errs, err)
			continue
		}
		apply[name] = value
	}
	if len(errs) > 0 {
		return domain.WorkflowInstance{}, errors.Join(errs...)
	}

	now := time.Now().UTC()
	for name, value := range apply {
		if err := s.instances.SetSlotValue(ctx, instanceID, name, value, now); err != nil {
			return domain.WorkflowInstance{}, err
		}
		slot := byName[name]
		slot.Status = domain.SlotConfigured
		byName[name] = slot

		// Secret values live only in the vault; everything else is
		// merged into the instance's custom configuration.
		if !slot.Sensitive() {
			inst.Config[name] = value
		}
	}

	allConfigured := true
	for _, slot := range byName {
		if slot.Status != domain.SlotConfigured {
			allConfigured = false
			break
		}
	}

	advanced := false
	if allConfigured && (inst.Status == domain.InstancePending || inst.Status == domain.InstanceError) {
		next, err := s.validator.Apply(ctx, inst.Status, domain.EventConfigure)
		if err != nil {
			return domain.WorkflowInstance{}, err
		}
		inst.Status = next
		inst.ErrorMessage = ""
		advanced = true
	}

	if err := s.instances.Update(ctx, inst); err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("storing configuration: %w", err)
	}

	// Announce the transition only once it is persisted.
	if advanced {
		publish(ctx, s.publisher, domain.Event{
			Kind:       domain.EventInstanceConfigured,
			TenantID:   inst.TenantID,
			ServiceID:  inst.ServiceID,
			InstanceID: inst.ID,
		})
	}

	return inst, nil
}

// Activate runs the activation handshake. It refuses to run while any
// credential slot is unfilled; a handshake failure records the
// engine's message and parks the instance in error for an explicit
// retry.
func (s *LifecycleService) Activate(ctx context.Context, caller domain.Caller, instanceID string) (domain.WorkflowInstance, error) {
	inst, err := s.instanceInScope(ctx, caller, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	slots, err := s.instances.ListSlots(ctx, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	var errs []error
	for _, slot := range slots {
		if slot.Status != domain.SlotConfigured {
			errs = append(errs, &domain.ValidationError{Field: slot.Name, Reason: "credential is not configured"})
		}
	}
	if len(errs) > 0 {
		return domain.WorkflowInstance{}, errors.Join(errs...)
	}

	next, err := s.validator.Apply(ctx, inst.Status, domain.EventActivate)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	tenant, err := s.tenants.GetTenant(ctx, inst.TenantID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	if err := s.engine.SetActive(ctx, inst.ExternalReference, true); err != nil {
		return s.markFailed(ctx, inst, tenant.ResellerID, domain.EventActivationFailed, err)
	}

	inst.Status = next
	inst.Active = true
	inst.ErrorMessage = ""

	if err := s.instances.Update(ctx, inst); err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("storing activation: %w", err)
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       domain.EventInstanceActivated,
		TenantID:   inst.TenantID,
		ResellerID: tenant.ResellerID,
		ServiceID:  inst.ServiceID,
		InstanceID: inst.ID,
	})

	return inst, nil
}

// Deactivate returns an active instance to configured. Credentials
// are kept; the instance stays recoverable for the tenant's lifetime.
func (s *LifecycleService) Deactivate(ctx context.Context, caller domain.Caller, instanceID string) (domain.WorkflowInstance, error) {
	inst, err := s.instanceInScope(ctx, caller, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	next, err := s.validator.Apply(ctx, inst.Status, domain.EventDeactivate)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	tenant, err := s.tenants.GetTenant(ctx, inst.TenantID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}

	if err := s.engine.SetActive(ctx, inst.ExternalReference, false); err != nil {
		return s.markFailed(ctx, inst, tenant.ResellerID, domain.EventActivationFailed, err)
	}

	inst.Status = next
	inst.Active = false

	if err := s.instances.Update(ctx, inst); err != nil {
		return domain.WorkflowInstance{}, fmt.Errorf("storing deactivation: %w", err)
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       domain.EventInstanceStopped,
		TenantID:   inst.TenantID,
		ResellerID: tenant.ResellerID,
		ServiceID:  inst.ServiceID,
		InstanceID: inst.ID,
	})

	return inst, nil
}

// BulkResult records the outcome of one service in a bulk creation run.
type BulkResult struct {
	ServiceID  string
	InstanceID string
	Err        error
}

// CreateAllMissing provisions every unlocked service the tenant does
// not yet have an instance for. Services are attempted strictly
// sequentially to bound load on the engine and keep progress
// deterministic; one failure never aborts the rest.
func (s *LifecycleService) CreateAllMissing(ctx context.Context, caller domain.Caller, tenantID string, progress func(current, total int)) ([]BulkResult, error) {
	if _, err := tenantInScope(ctx, s.tenants, caller, tenantID); err != nil {
		return nil, err
	}

	entitlements, err := s.entitlements.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	existing, err := s.instances.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	provisioned := make(map[string]bool, len(existing))
	for _, inst := range existing {
		provisioned[inst.ServiceID] = true
	}

	var missing []string
	for _, ent := range entitlements {
		if ent.Active && !provisioned[ent.ServiceID] {
			missing = append(missing, ent.ServiceID)
		}
	}

	results := make([]BulkResult, 0, len(missing))
	for i, serviceID := range missing {
		inst, err := s.Create(ctx, caller, tenantID, serviceID)
		result := BulkResult{ServiceID: serviceID, Err: err}
		if inst.ID != "" {
			result.InstanceID = inst.ID
		}
		results = append(results, result)

		if progress != nil {
			progress(i+1, len(missing))
		}
	}

	return results, nil
}

// RecordExecution bumps the instance's execution counter; called from
// the usage callback path when the engine reports a completed run.
func (s *LifecycleService) RecordExecution(ctx context.Context, instanceID string) error {
	return s.instances.RecordExecution(ctx, instanceID, time.Now().UTC())
}

// instanceInScope loads an instance and verifies the caller's scope
// over its owning tenant.
func (s *LifecycleService) instanceInScope(ctx context.Context, caller domain.Caller, instanceID string) (domain.WorkflowInstance, error) {
	inst, err := s.instances.Get(ctx, instanceID)
	if err != nil {
		return domain.WorkflowInstance{}, err
	}
	if _, err := tenantInScope(ctx, s.tenants, caller, inst.TenantID); err != nil {
		return domain.WorkflowInstance{}, err
	}
	return inst, nil
}

// markFailed persists a handshake failure on the instance and reports
// it. The stored message is what the tenant sees when asking why the
// capability is stuck.
func (s *LifecycleService) markFailed(ctx context.Context, inst domain.WorkflowInstance, resellerID string, kind domain.EventKind, cause error) (domain.WorkflowInstance, error) {
	inst.Status = domain.InstanceError
	inst.Active = false
	inst.ErrorMessage = cause.Error()

	if err := s.instances.Update(ctx, inst); err != nil {
		return domain.WorkflowInstance{}, errors.Join(cause, fmt.Errorf("recording failure: %w", err))
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       kind,
		TenantID:   inst.TenantID,
		ResellerID: resellerID,
		ServiceID:  inst.ServiceID,
		InstanceID: inst.ID,
		Detail:     cause.Error(),
	})

	return inst, cause
}
