package domain

import "time"

// EventKind identifies a control-plane state transition worth telling
// someone about.
type EventKind string

const (
	EventInstanceCreated    EventKind = "instance.created"
	EventProvisionFailed    EventKind = "instance.provision_failed"
	EventInstanceConfigured EventKind = "instance.configured"
	EventInstanceActivated  EventKind = "instance.activated"
	EventActivationFailed   EventKind = "instance.activation_failed"
	EventInstanceStopped    EventKind = "instance.deactivated"
	EventQuotaWarning       EventKind = "quota.warning"
	EventQuotaReached       EventKind = "quota.limit_reached"
	EventRequestSubmitted   EventKind = "purchase.submitted"
	EventRequestApproved    EventKind = "purchase.approved"
	EventRequestRejected    EventKind = "purchase.rejected"
	EventEntitlementGranted EventKind = "entitlement.granted"
	EventEntitlementRevoked EventKind = "entitlement.revoked"
)

// Event is a typed record of a state transition, published on every
// lifecycle/quota/purchase change. Delivery is fire-and-forget: a
// publish failure never rolls back the transition that produced it.
type Event struct {
	Kind       EventKind
	TenantID   string
	ResellerID string
	ServiceID  string
	InstanceID string
	Detail     string
	OccurredAt time.Time
}

// Severity grades a notification for display purposes.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is the UI-facing projection of an event, stored for the
// portal to render.
type Notification struct {
	ID        string
	Recipient string
	Title     string
	Message   string
	Severity  Severity
	ActionURL string
	CreatedAt time.Time
}
