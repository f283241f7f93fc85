package app

import (
	"context"

	"github.com/calegria/opsgate/internal/domain"
)

// VaultService is the read surface of the credential vault. It exposes
// slot names, statuses, and template instructions, never values. The
// single write path is LifecycleService.Configure, so a value that
// went in can only ever come back out as a status.
type VaultService struct {
	tenants   domain.TenantRepository
	instances domain.InstanceRepository
	lifecycle *LifecycleService
}

// NewVaultService creates a vault service with the given adapters.
func NewVaultService(tenants domain.TenantRepository, instances domain.InstanceRepository, lifecycle *LifecycleService) *VaultService {
	return &VaultService{
		tenants:   tenants,
		instances: instances,
		lifecycle: lifecycle,
	}
}

// ListSlots returns an instance's credential slots: name, kind,
// status, help text, and whether the value must be masked in display.
func (s *VaultService) ListSlots(ctx context.Context, caller domain.Caller, instanceID string) ([]domain.CredentialSlot, error) {
	inst, err := s.instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if _, err := tenantInScope(ctx, s.tenants, caller, inst.TenantID); err != nil {
		return nil, err
	}

	return s.instances.ListSlots(ctx, instanceID)
}

// SetValues supplies credential values. It delegates to the lifecycle
// manager so slot writes and status advancement stay on one path.
func (s *VaultService) SetValues(ctx context.Context, caller domain.Caller, instanceID string, values map[string]string) (domain.WorkflowInstance, error) {
	return s.lifecycle.Configure(ctx, caller, instanceID, values)
}
