package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/calegria/opsgate/internal/domain"
)

func TestResolve_LockedAndUnlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second enabled service the tenant is not entitled to, with a plan.
	def := domain.NewServiceDefinition("svc-sms", "sms-agent", "SMS Agent", domain.CategoryMessaging, domain.PricingFlat, nil)
	if err := f.catalog.CreateService(ctx, def); err != nil {
		t.Fatalf("seeding service: %v", err)
	}
	f.catalog.enablements[resellerID+"/svc-sms"] = true
	f.catalog.plans["svc-sms"] = []domain.Plan{{ID: "p-1", ServiceID: "svc-sms", Name: "Basic", PriceCents: 4900}}

	f.grant(t, 100, domain.ResetMonthly)

	views, err := f.entitlementSvc.Resolve(ctx, tenant, tenantID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}

	byID := make(map[string]domain.ServiceView, len(views))
	for _, v := range views {
		byID[v.Definition.ID] = v
	}

	voice := byID[serviceID]
	if !voice.Unlocked {
		t.Error("entitled service should be unlocked")
	}
	if voice.Entitlement == nil || voice.Entitlement.UsageLimit != 100 {
		t.Errorf("entitlement = %+v, want limit 100", voice.Entitlement)
	}

	sms := byID["svc-sms"]
	if sms.Unlocked {
		t.Error("unentitled service should be locked")
	}
	if sms.LockReason == "" {
		t.Error("locked service should carry a lock reason")
	}
	if len(sms.AvailablePlans) != 1 {
		t.Errorf("got %d plans, want 1", len(sms.AvailablePlans))
	}
}

func TestResolve_DisabledServiceHidden(t *testing.T) {
	f := newFixture(t)
	f.catalog.enablements[resellerID+"/"+serviceID] = false

	views, err := f.entitlementSvc.Resolve(context.Background(), tenant, tenantID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("got %d views, want 0 (service disabled for reseller)", len(views))
	}
}

func TestGrant_RequiresEnablement(t *testing.T) {
	f := newFixture(t)
	f.catalog.enablements[resellerID+"/"+serviceID] = false

	_, err := f.entitlementSvc.Grant(context.Background(), reseller, tenantID, serviceID, "", 0, domain.ResetNone)
	var authErr *domain.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestGrant_WrongReseller(t *testing.T) {
	f := newFixture(t)

	other := domain.Caller{ID: "r-other", Role: domain.RoleReseller}
	_, err := f.entitlementSvc.Grant(context.Background(), other, tenantID, serviceID, "", 0, domain.ResetNone)
	var authErr *domain.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestGrant_InvalidLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.entitlementSvc.Grant(context.Background(), reseller, tenantID, serviceID, "", -5, domain.ResetNone)
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGrant_UpdatePreservesConsumed(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 100, domain.ResetMonthly)
	ctx := context.Background()

	if _, err := f.usageSvc.Record(ctx, tenantID, serviceID, 30, 0); err != nil {
		t.Fatalf("recording usage: %v", err)
	}

	// Re-granting with a bigger limit must not wipe the counter.
	ent, err := f.entitlementSvc.Grant(ctx, reseller, tenantID, serviceID, "", 200, domain.ResetMonthly)
	if err != nil {
		t.Fatalf("re-grant failed: %v", err)
	}
	if ent.UsageLimit != 200 {
		t.Errorf("UsageLimit = %d, want 200", ent.UsageLimit)
	}

	stored, _ := f.entitlements.Get(ctx, tenantID, serviceID)
	if stored.UsageConsumed != 30 {
		t.Errorf("UsageConsumed = %d, want 30 preserved across re-grant", stored.UsageConsumed)
	}
}

func TestRevoke_KeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)
	ctx := context.Background()

	if err := f.entitlementSvc.Revoke(ctx, reseller, tenantID, serviceID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	ent, err := f.entitlements.Get(ctx, tenantID, serviceID)
	if err != nil {
		t.Fatalf("record should survive revocation: %v", err)
	}
	if ent.Active {
		t.Error("Active should be false after revoke")
	}

	kinds := f.publisher.kinds()
	if kinds[len(kinds)-1] != domain.EventEntitlementRevoked {
		t.Errorf("last event = %q, want %q", kinds[len(kinds)-1], domain.EventEntitlementRevoked)
	}
}

func TestSubmitRequest_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.entitlementSvc.SubmitRequest(ctx, tenant, tenantID, serviceID, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if req.Status != domain.RequestPending {
		t.Errorf("Status = %q, want %q", req.Status, domain.RequestPending)
	}

	kinds := f.publisher.kinds()
	if kinds[len(kinds)-1] != domain.EventRequestSubmitted {
		t.Errorf("last event = %q, want %q", kinds[len(kinds)-1], domain.EventRequestSubmitted)
	}
}

func TestSubmitRequest_AlreadyUnlocked(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)

	_, err := f.entitlementSvc.SubmitRequest(context.Background(), tenant, tenantID, serviceID, "")
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestResolveRequest_Approve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.entitlementSvc.SubmitRequest(ctx, tenant, tenantID, serviceID, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	resolved, err := f.entitlementSvc.ResolveRequest(ctx, reseller, req.ID, true, 500, domain.ResetMonthly)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if resolved.Status != domain.RequestApproved {
		t.Errorf("Status = %q, want %q", resolved.Status, domain.RequestApproved)
	}

	// Approval grants the entitlement with the chosen quota.
	ent, err := f.entitlements.Get(ctx, tenantID, serviceID)
	if err != nil {
		t.Fatalf("entitlement not granted: %v", err)
	}
	if ent.UsageLimit != 500 || ent.ResetPeriod != domain.ResetMonthly {
		t.Errorf("entitlement = limit %d reset %q, want 500 monthly", ent.UsageLimit, ent.ResetPeriod)
	}
}

func TestResolveRequest_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.entitlementSvc.SubmitRequest(ctx, tenant, tenantID, serviceID, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	resolved, err := f.entitlementSvc.ResolveRequest(ctx, reseller, req.ID, false, 0, domain.ResetNone)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if resolved.Status != domain.RequestRejected {
		t.Errorf("Status = %q, want %q", resolved.Status, domain.RequestRejected)
	}

	if _, err := f.entitlements.Get(ctx, tenantID, serviceID); !errors.Is(err, domain.ErrEntitlementNotFound) {
		t.Errorf("rejection must not grant an entitlement, got %v", err)
	}
}

func TestResolveRequest_GrantFailureKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.entitlementSvc.SubmitRequest(ctx, tenant, tenantID, serviceID, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// The service gets disabled for the reseller before approval, so the
	// grant inside the approval fails.
	f.catalog.enablements[resellerID+"/"+serviceID] = false

	if _, err := f.entitlementSvc.ResolveRequest(ctx, reseller, req.ID, true, 100, domain.ResetMonthly); err == nil {
		t.Fatal("expected approval to fail while the service is disabled")
	}

	stored, err := f.requests.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("getting request: %v", err)
	}
	if stored.Status != domain.RequestPending {
		t.Errorf("Status = %q, want %q after failed grant", stored.Status, domain.RequestPending)
	}
	if _, err := f.entitlements.Get(ctx, tenantID, serviceID); !errors.Is(err, domain.ErrEntitlementNotFound) {
		t.Errorf("failed approval must not grant an entitlement, got %v", err)
	}

	// Once the cause is fixed the same request can be approved.
	f.catalog.enablements[resellerID+"/"+serviceID] = true
	resolved, err := f.entitlementSvc.ResolveRequest(ctx, reseller, req.ID, true, 100, domain.ResetMonthly)
	if err != nil {
		t.Fatalf("retried approval failed: %v", err)
	}
	if resolved.Status != domain.RequestApproved {
		t.Errorf("Status = %q, want %q", resolved.Status, domain.RequestApproved)
	}
	if _, err := f.entitlements.Get(ctx, tenantID, serviceID); err != nil {
		t.Errorf("entitlement not granted after retry: %v", err)
	}
}

func TestResolveRequest_AlreadyResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.entitlementSvc.SubmitRequest(ctx, tenant, tenantID, serviceID, "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := f.entitlementSvc.ResolveRequest(ctx, reseller, req.ID, false, 0, domain.ResetNone); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	_, err = f.entitlementSvc.ResolveRequest(ctx, reseller, req.ID, true, 0, domain.ResetNone)
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound for a resolved request, got %v", err)
	}
}
