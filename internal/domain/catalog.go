package domain

import "time"

// Category groups services by the kind of automation they perform.
type Category string

const (
	CategoryVoice     Category = "voice"
	CategoryMessaging Category = "messaging"
	CategorySocial    Category = "social"
)

// PricingModel describes how a service is billed.
type PricingModel string

const (
	PricingFlat    PricingModel = "flat"
	PricingPerUnit PricingModel = "per_unit"
)

// ServiceDefinition is a catalog entry for an automation capability.
// It is treated as immutable once a live entitlement references it;
// in-place edits are a known gap (no versioning today).
type ServiceDefinition struct {
	ID           string
	Slug         string
	Name         string
	Category     Category
	PricingModel PricingModel
	Features     []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Plan is a pricing tier offered for a service.
type Plan struct {
	ID            string
	ServiceID     string
	Name          string
	PriceCents    int64
	BillingPeriod string
	Active        bool
}

// CredentialKind declares how a credential slot's value is validated.
type CredentialKind string

const (
	CredentialKindAPIKey CredentialKind = "api_key"
	CredentialKindPhone  CredentialKind = "phone"
	CredentialKindURL    CredentialKind = "url"
	CredentialKindSecret CredentialKind = "secret"
	CredentialKindText   CredentialKind = "text"
)

// CredentialRequirement is one entry of a service template's
// required-credential list. Instructions are free-text help surfaced
// verbatim to the person filling in the slot.
type CredentialRequirement struct {
	ServiceID    string
	Name         string
	Kind         CredentialKind
	Instructions string
	Position     int
}

// NewServiceDefinition creates an active catalog entry.
func NewServiceDefinition(id, slug, name string, category Category, pricing PricingModel, features []string) ServiceDefinition {
	now := time.Now().UTC()
	return ServiceDefinition{
		ID:           id,
		Slug:         slug,
		Name:         name,
		Category:     category,
		PricingModel: pricing,
		Features:     features,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
