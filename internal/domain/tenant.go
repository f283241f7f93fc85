package domain

import "time"

// Reseller is an intermediary that enables services for its tenants.
type Reseller struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Tenant is an end customer consuming automation capabilities.
// Tenants are onboarded by the portal (out of scope here); this core
// reads them as identity anchors for entitlement and instance rows.
type Tenant struct {
	ID         string
	ResellerID string
	Name       string
	Slug       string
	CreatedAt  time.Time
}

// Role identifies the kind of authenticated caller.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleReseller Role = "reseller"
	RoleTenant   Role = "tenant"
)

// Caller is the resolved identity of the authenticated request origin.
// It is derived by the inbound adapter from the portal's authentication;
// control-plane services trust it, never a client-supplied tenant id.
type Caller struct {
	ID   string
	Role Role
}
