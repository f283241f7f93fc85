package domain

import "time"

// ResetPeriod controls when an entitlement's consumed counter rolls
// back to zero.
type ResetPeriod string

const (
	ResetNone    ResetPeriod = "none"
	ResetDaily   ResetPeriod = "daily"
	ResetWeekly  ResetPeriod = "weekly"
	ResetMonthly ResetPeriod = "monthly"
)

// AdminEnablement records whether a reseller may offer a service to
// its tenants at all.
type AdminEnablement struct {
	ResellerID string
	ServiceID  string
	Enabled    bool
}

// ClientEntitlement is the authoritative record of what a tenant may
// use and how much is left. One per (tenant, service) pair.
type ClientEntitlement struct {
	ID            string
	TenantID      string
	ServiceID     string
	PlanID        string
	UsageLimit    int64
	UsageConsumed int64
	ResetPeriod   ResetPeriod
	UsageResetAt  time.Time
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewClientEntitlement creates an active entitlement with a fresh
// usage window.
func NewClientEntitlement(id, tenantID, serviceID, planID string, limit int64, reset ResetPeriod) ClientEntitlement {
	now := time.Now().UTC()
	return ClientEntitlement{
		ID:           id,
		TenantID:     tenantID,
		ServiceID:    serviceID,
		PlanID:       planID,
		UsageLimit:   limit,
		ResetPeriod:  reset,
		UsageResetAt: now,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ServiceView is the entitlement resolver's projection of one catalog
// entry for a specific tenant.
type ServiceView struct {
	Definition     ServiceDefinition
	Unlocked       bool
	LockReason     string
	Entitlement    *ClientEntitlement
	AvailablePlans []Plan
}

// RequestStatus is the state of a self-service purchase request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// PurchaseRequest is a tenant's self-service ask for an entitlement,
// resolved by a reseller action.
type PurchaseRequest struct {
	ID         string
	TenantID   string
	ServiceID  string
	PlanID     string
	Status     RequestStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// NewPurchaseRequest creates a pending request.
func NewPurchaseRequest(id, tenantID, serviceID, planID string) PurchaseRequest {
	return PurchaseRequest{
		ID:        id,
		TenantID:  tenantID,
		ServiceID: serviceID,
		PlanID:    planID,
		Status:    RequestPending,
		CreatedAt: time.Now().UTC(),
	}
}
