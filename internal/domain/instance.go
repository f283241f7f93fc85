package domain

import (
	"strings"
	"time"
)

// InstanceStatus represents the lifecycle state of a workflow instance.
// Absence of a row is the implicit initial state; there is no terminal
// state, instances cycle between configured/active/error for the
// tenant's lifetime.
type InstanceStatus string

const (
	InstancePending    InstanceStatus = "pending"
	InstanceConfigured InstanceStatus = "configured"
	InstanceActive     InstanceStatus = "active"
	InstanceError      InstanceStatus = "error"
)

// InstanceEvent is an action that triggers an instance state transition.
type InstanceEvent string

const (
	EventConfigure  InstanceEvent = "configure"
	EventActivate   InstanceEvent = "activate"
	EventDeactivate InstanceEvent = "deactivate"
	EventFail       InstanceEvent = "fail"
)

// Transition defines a valid state change: an event moves an instance
// from Src to Dst.
type Transition struct {
	Event InstanceEvent
	Src   InstanceStatus
	Dst   InstanceStatus
}

// Transitions defines all valid state changes in the instance lifecycle.
// This is domain knowledge consumed by the FSM adapter. Configure is
// re-enterable from error so a tenant can recover a stuck instance by
// fixing its credentials.
var Transitions = []Transition{
	{Event: EventConfigure, Src: InstancePending, Dst: InstanceConfigured},
	{Event: EventConfigure, Src: InstanceError, Dst: InstanceConfigured},
	{Event: EventActivate, Src: InstanceConfigured, Dst: InstanceActive},
	{Event: EventActivate, Src: InstanceError, Dst: InstanceActive},
	{Event: EventDeactivate, Src: InstanceActive, Dst: InstanceConfigured},
	{Event: EventFail, Src: InstancePending, Dst: InstanceError},
	{Event: EventFail, Src: InstanceConfigured, Dst: InstanceError},
	{Event: EventFail, Src: InstanceActive, Dst: InstanceError},
}

// WorkflowInstance is the per-tenant materialization of a capability
// against the automation engine. At most one exists per
// (tenant, service) pair; deactivated instances are kept for audit.
type WorkflowInstance struct {
	ID                string
	TenantID          string
	ServiceID         string
	Status            InstanceStatus
	Active            bool
	ExternalReference string
	WebhookEndpoint   string
	Config            map[string]string
	ErrorMessage      string
	LastExecutedAt    *time.Time
	ExecutionCount    int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewWorkflowInstance creates an instance in the initial pending state.
func NewWorkflowInstance(id, tenantID, serviceID string) WorkflowInstance {
	now := time.Now().UTC()
	return WorkflowInstance{
		ID:        id,
		TenantID:  tenantID,
		ServiceID: serviceID,
		Status:    InstancePending,
		Config:    map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SlotStatus is the fill/verify state of a credential slot.
type SlotStatus string

const (
	SlotPending    SlotStatus = "pending"
	SlotConfigured SlotStatus = "configured"
	SlotExpired    SlotStatus = "expired"
	SlotInvalid    SlotStatus = "invalid"
)

// CredentialSlot is a named secret/config value required before an
// instance can activate. The stored value is write-only: it is never
// read back out of the vault, only its status is.
type CredentialSlot struct {
	ID           string
	InstanceID   string
	Name         string
	Kind         CredentialKind
	Status       SlotStatus
	Instructions string
	ConfiguredAt *time.Time
}

// Sensitive reports whether a slot's value must be masked anywhere it
// could be displayed, derived from the slot name.
func (s CredentialSlot) Sensitive() bool {
	name := strings.ToLower(s.Name)
	for _, marker := range []string{"key", "secret", "password", "token"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
