package app

import (
	"context"

	"github.com/calegria/opsgate/internal/domain"
)

// requireOwner rejects anyone who is not the platform owner.
func requireOwner(caller domain.Caller) error {
	if caller.Role != domain.RoleOwner {
		return &domain.AuthorizationError{Reason: "owner role required"}
	}
	return nil
}

// requireTenantScope checks that the caller may act for the given
// tenant: the tenant itself, its reseller, or the platform owner.
// Every mutation re-derives the scope here instead of trusting a
// client-supplied tenant id.
func requireTenantScope(caller domain.Caller, tenant domain.Tenant) error {
	switch caller.Role {
	case domain.RoleOwner:
		return nil
	case domain.RoleReseller:
		if caller.ID == tenant.ResellerID {
			return nil
		}
	case domain.RoleTenant:
		if caller.ID == tenant.ID {
			return nil
		}
	}
	return &domain.AuthorizationError{Reason: "caller is not in scope for this tenant"}
}

// requireResellerScope checks that the caller may act as the given
// reseller.
func requireResellerScope(caller domain.Caller, resellerID string) error {
	switch caller.Role {
	case domain.RoleOwner:
		return nil
	case domain.RoleReseller:
		if caller.ID == resellerID {
			return nil
		}
	}
	return &domain.AuthorizationError{Reason: "caller is not in scope for this reseller"}
}

// tenantInScope loads a tenant and verifies the caller's scope over it
// in one step, the common prelude to tenant-addressed operations.
func tenantInScope(ctx context.Context, repo domain.TenantRepository, caller domain.Caller, tenantID string) (domain.Tenant, error) {
	tenant, err := repo.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if err := requireTenantScope(caller, tenant); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}
