package domain

import (
	"context"
	"time"
)

// CatalogRepository defines the persistence contract for service
// definitions, plans, credential templates, and reseller enablements.
type CatalogRepository interface {
	CreateService(ctx context.Context, def ServiceDefinition) error
	GetServiceByID(ctx context.Context, id string) (ServiceDefinition, error)
	GetServiceBySlug(ctx context.Context, slug string) (ServiceDefinition, error)
	ListServices(ctx context.Context, onlyActive bool) ([]ServiceDefinition, error)
	ListPlans(ctx context.Context, serviceID string, onlyActive bool) ([]Plan, error)
	CreatePlan(ctx context.Context, plan Plan) error
	ListCredentialRequirements(ctx context.Context, serviceID string) ([]CredentialRequirement, error)
	SetCredentialRequirements(ctx context.Context, serviceID string, reqs []CredentialRequirement) error
	SetEnablement(ctx context.Context, e AdminEnablement) error
	IsEnabled(ctx context.Context, resellerID, serviceID string) (bool, error)
	ListEnabledServices(ctx context.Context, resellerID string) ([]ServiceDefinition, error)
}

// TenantRepository resolves the identity anchors written by the portal.
type TenantRepository interface {
	CreateReseller(ctx context.Context, r Reseller) error
	GetReseller(ctx context.Context, id string) (Reseller, error)
	CreateTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id string) (Tenant, error)
	ListTenants(ctx context.Context, resellerID string) ([]Tenant, error)
}

// EntitlementRepository defines the persistence contract for client
// entitlements. ResetExpired is the rollover hook: it zeroes consumed
// counters whose reset period has elapsed and returns how many rows
// rolled over.
type EntitlementRepository interface {
	Upsert(ctx context.Context, e ClientEntitlement) error
	Get(ctx context.Context, tenantID, serviceID string) (ClientEntitlement, error)
	ListByTenant(ctx context.Context, tenantID string) ([]ClientEntitlement, error)
	Deactivate(ctx context.Context, tenantID, serviceID string) error
	ResetExpired(ctx context.Context, now time.Time) (int64, error)
}

// InstanceRepository defines the persistence contract for workflow
// instances and their credential slots. Create must enforce the
// one-instance-per-(tenant, service) invariant via a uniqueness
// constraint and surface violations as InstanceConflictError.
type InstanceRepository interface {
	Create(ctx context.Context, inst WorkflowInstance, slots []CredentialSlot) error
	Get(ctx context.Context, id string) (WorkflowInstance, error)
	GetByPair(ctx context.Context, tenantID, serviceID string) (WorkflowInstance, error)
	ListByTenant(ctx context.Context, tenantID string) ([]WorkflowInstance, error)
	Update(ctx context.Context, inst WorkflowInstance) error
	ListSlots(ctx context.Context, instanceID string) ([]CredentialSlot, error)
	SetSlotValue(ctx context.Context, instanceID, name, value string, at time.Time) error
	RecordExecution(ctx context.Context, id string, at time.Time) error
}

// UsageRepository appends consumption events and bumps the owning
// entitlement's counter in one atomic operation, returning the
// entitlement as it stands after the increment.
type UsageRepository interface {
	Record(ctx context.Context, event UsageEvent) (ClientEntitlement, error)
	ListEvents(ctx context.Context, tenantID, serviceID string, limit int) ([]UsageEvent, error)
}

// PurchaseRequestRepository defines the persistence contract for
// self-service entitlement requests.
type PurchaseRequestRepository interface {
	Create(ctx context.Context, req PurchaseRequest) error
	Get(ctx context.Context, id string) (PurchaseRequest, error)
	ListPending(ctx context.Context, resellerID string) ([]PurchaseRequest, error)
	Resolve(ctx context.Context, id string, status RequestStatus, at time.Time) error
}

// NotificationRepository stores the UI-facing projection of events.
type NotificationRepository interface {
	Create(ctx context.Context, n Notification) error
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]Notification, error)
}

// EventPublisher defines the contract for emitting control-plane
// events. Implementations must not be load-bearing: callers log and
// continue when Publish fails.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// ProvisionResult is the automation engine's answer to a provisioning
// handshake.
type ProvisionResult struct {
	ExternalReference string
	WebhookEndpoint   string
}

// AutomationEngine is the provisioning/activation handshake with the
// external workflow-automation engine. Calls are bounded by the
// implementation's timeout; they are never retried implicitly.
type AutomationEngine interface {
	Provision(ctx context.Context, tenantID, serviceID string) (ProvisionResult, error)
	SetActive(ctx context.Context, externalReference string, active bool) error
}

// TransitionValidator checks whether a lifecycle event is allowed from
// a given status and returns the destination status.
type TransitionValidator interface {
	Apply(ctx context.Context, current InstanceStatus, event InstanceEvent) (InstanceStatus, error)
}
