package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple not-found conditions.
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrResellerNotFound    = errors.New("reseller not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrEntitlementNotFound = errors.New("entitlement not found")
	ErrInstanceNotFound    = errors.New("workflow instance not found")
	ErrRequestNotFound     = errors.New("purchase request not found")
)

// SlugConflictError is returned when a service slug is already in use.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// InstanceConflictError is returned when a workflow instance already
// exists for a (tenant, service) pair. It is raised by the storage
// uniqueness constraint, so concurrent creates yield exactly one
// success and one conflict.
type InstanceConflictError struct {
	TenantID  string
	ServiceID string
}

func (e *InstanceConflictError) Error() string {
	return fmt.Sprintf("instance already exists for tenant %q service %q", e.TenantID, e.ServiceID)
}

// ValidationError reports one field-scoped input problem. Validation
// failures are local and never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError is returned when the caller lacks the entitlement
// or role for an operation, before any state mutation.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

// IntegrationError wraps an automation-engine handshake failure. The
// failure reason is also persisted on the instance so the owning
// tenant can see why a capability is stuck; recovery is an explicit
// operator-initiated retry.
type IntegrationError struct {
	Op  string
	Err error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("automation engine %s failed: %v", e.Op, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// TransitionError is returned when a lifecycle event is not allowed
// from the instance's current status.
type TransitionError struct {
	Event   InstanceEvent
	Current InstanceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from status %q", e.Event, e.Current)
}
