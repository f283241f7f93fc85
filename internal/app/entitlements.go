package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// lockReason is shown for services the tenant cannot use yet. The
// single actionable next step for a locked service is always the same.
const lockReason = "contact your administrator to unlock this service"

// EntitlementService computes service visibility per tenant and
// manages grants, revocations, and self-service purchase requests.
type EntitlementService struct {
	catalog      domain.CatalogRepository
	tenants      domain.TenantRepository
	entitlements domain.EntitlementRepository
	requests     domain.PurchaseRequestRepository
	publisher    domain.EventPublisher
}

// NewEntitlementService creates an entitlement service with the given adapters.
func NewEntitlementService(
	catalog domain.CatalogRepository,
	tenants domain.TenantRepository,
	entitlements domain.EntitlementRepository,
	requests domain.PurchaseRequestRepository,
	publisher domain.EventPublisher,
) *EntitlementService {
	return &EntitlementService{
		catalog:      catalog,
		tenants:      tenants,
		entitlements: entitlements,
		requests:     requests,
		publisher:    publisher,
	}
}

// Resolve projects the catalog onto one tenant: which services are
// unlocked, why the rest are locked, and what plans a locked service
// could be bought at. Pure read side; safe to call concurrently and
// cache briefly.
func (s *EntitlementService) Resolve(ctx context.Context, caller domain.Caller, tenantID string) ([]domain.ServiceView, error) {
	tenant, err := tenantInScope(ctx, s.tenants, caller, tenantID)
	if err != nil {
		return nil, err
	}

	services, err := s.catalog.ListEnabledServices(ctx, tenant.ResellerID)
	if err != nil {
		return nil, fmt.Errorf("listing enabled services: %w", err)
	}

	entitlements, err := s.entitlements.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing entitlements: %w", err)
	}

	byService := make(map[string]domain.ClientEntitlement, len(entitlements))
	for _, e := range entitlements {
		byService[e.ServiceID] = e
	}

	views := make([]domain.ServiceView, 0, len(services))
	for _, def := range services {
		view := domain.ServiceView{Definition: def}

		if ent, ok := byService[def.ID]; ok && ent.Active {
			view.Unlocked = true
			view.Entitlement = &ent
		} else {
			view.LockReason = lockReason
			plans, err := s.catalog.ListPlans(ctx, def.ID, true)
			if err != nil {
				return nil, fmt.Errorf("listing plans for %s: %w", def.Slug, err)
			}
			view.AvailablePlans = plans
		}

		views = append(views, view)
	}

	return views, nil
}

// Grant gives a tenant the right to use a service, with a quota. The
// service must be enabled for the tenant's reseller; an existing
// entitlement is updated in place.
func (s *EntitlementService) Grant(ctx context.Context, caller domain.Caller, tenantID, serviceID, planID string, usageLimit int64, reset domain.ResetPeriod) (domain.ClientEntitlement, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.ClientEntitlement{}, err
	}
	if err := requireResellerScope(caller, tenant.ResellerID); err != nil {
		return domain.ClientEntitlement{}, err
	}

	if _, err := s.catalog.GetServiceByID(ctx, serviceID); err != nil {
		return domain.ClientEntitlement{}, err
	}

	enabled, err := s.catalog.IsEnabled(ctx, tenant.ResellerID, serviceID)
	if err != nil {
		return domain.ClientEntitlement{}, err
	}
	if !enabled {
		return domain.ClientEntitlement{}, &domain.AuthorizationError{Reason: "service is not enabled for this reseller"}
	}

	if !validResetPeriods[reset] {
		return domain.ClientEntitlement{}, &domain.ValidationError{Field: "reset_period", Reason: "must be none, daily, weekly, or monthly"}
	}
	if usageLimit < 0 {
		return domain.ClientEntitlement{}, &domain.ValidationError{Field: "usage_limit", Reason: "must not be negative"}
	}

	ent := domain.NewClientEntitlement(newID(), tenantID, serviceID, planID, usageLimit, reset)

	if err := s.entitlements.Upsert(ctx, ent); err != nil {
		return domain.ClientEntitlement{}, fmt.Errorf("granting entitlement: %w", err)
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       domain.EventEntitlementGranted,
		TenantID:   tenantID,
		ResellerID: tenant.ResellerID,
		ServiceID:  serviceID,
	})

	return ent, nil
}

// Revoke deactivates a tenant's entitlement. The record is kept, not
// deleted, so consumed usage remains visible.
func (s *EntitlementService) Revoke(ctx context.Context, caller domain.Caller, tenantID, serviceID string) error {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := requireResellerScope(caller, tenant.ResellerID); err != nil {
		return err
	}

	if err := s.entitlements.Deactivate(ctx, tenantID, serviceID); err != nil {
		return err
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       domain.EventEntitlementRevoked,
		TenantID:   tenantID,
		ResellerID: tenant.ResellerID,
		ServiceID:  serviceID,
	})

	return nil
}

// SubmitRequest records a tenant's self-service ask for a service.
func (s *EntitlementService) SubmitRequest(ctx context.Context, caller domain.Caller, tenantID, serviceID, planID string) (domain.PurchaseRequest, error) {
	tenant, err := tenantInScope(ctx, s.tenants, caller, tenantID)
	if err != nil {
		return domain.PurchaseRequest{}, err
	}

	if _, err := s.catalog.GetServiceByID(ctx, serviceID); err != nil {
		return domain.PurchaseRequest{}, err
	}

	// An already-entitled tenant has nothing to ask for.
	if ent, err := s.entitlements.Get(ctx, tenantID, serviceID); err == nil && ent.Active {
		return domain.PurchaseRequest{}, &domain.ValidationError{Field: "service_id", Reason: "service is already unlocked"}
	} else if err != nil && !errors.Is(err, domain.ErrEntitlementNotFound) {
		return domain.PurchaseRequest{}, err
	}

	req := domain.NewPurchaseRequest(newID(), tenantID, serviceID, planID)

	if err := s.requests.Create(ctx, req); err != nil {
		return domain.PurchaseRequest{}, fmt.Errorf("creating purchase request: %w", err)
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       domain.EventRequestSubmitted,
		TenantID:   tenantID,
		ResellerID: tenant.ResellerID,
		ServiceID:  serviceID,
	})

	return req, nil
}

// ListPendingRequests returns the reseller's unresolved requests.
func (s *EntitlementService) ListPendingRequests(ctx context.Context, caller domain.Caller, resellerID string) ([]domain.PurchaseRequest, error) {
	if err := requireResellerScope(caller, resellerID); err != nil {
		return nil, err
	}
	return s.requests.ListPending(ctx, resellerID)
}

// ResolveRequest approves or rejects a pending purchase request.
// Approval grants the entitlement with the limit and reset period the
// reseller chose.
func (s *EntitlementService) ResolveRequest(ctx context.Context, caller domain.Caller, requestID string, approve bool, usageLimit int64, reset domain.ResetPeriod) (domain.PurchaseRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return domain.PurchaseRequest{}, err
	}

	tenant, err := s.tenants.GetTenant(ctx, req.TenantID)
	if err != nil {
		return domain.PurchaseRequest{}, err
	}
	if err := requireResellerScope(caller, tenant.ResellerID); err != nil {
		return domain.PurchaseRequest{}, err
	}

	now := time.Now().UTC()
	status := domain.RequestRejected
	kind := domain.EventRequestRejected
	if approve {
		status = domain.RequestApproved
		kind = domain.EventRequestApproved
	}

	// Grant before marking the request resolved. A failed grant leaves
	// the request pending so the reseller can fix the cause and retry.
	if approve {
		if _, err := s.Grant(ctx, caller, req.TenantID, req.ServiceID, req.PlanID, usageLimit, reset); err != nil {
			return domain.PurchaseRequest{}, fmt.Errorf("granting approved request: %w", err)
		}
	}

	if err := s.requests.Resolve(ctx, requestID, status, now); err != nil {
		return domain.PurchaseRequest{}, err
	}

	publish(ctx, s.publisher, domain.Event{
		Kind:       kind,
		TenantID:   req.TenantID,
		ResellerID: tenant.ResellerID,
		ServiceID:  req.ServiceID,
	})

	req.Status = status
	req.ResolvedAt = &now
	return req, nil
}
