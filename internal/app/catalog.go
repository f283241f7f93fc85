package app

import (
	"context"
	"fmt"

	"github.com/calegria/opsgate/internal/domain"
)

// CatalogService manages service definitions, plans, credential
// templates, and reseller enablements. All mutations are owner-only.
type CatalogService struct {
	catalog domain.CatalogRepository
	tenants domain.TenantRepository
}

// NewCatalogService creates a catalog service with the given adapters.
func NewCatalogService(catalog domain.CatalogRepository, tenants domain.TenantRepository) *CatalogService {
	return &CatalogService{catalog: catalog, tenants: tenants}
}

// CreateService registers a new capability in the catalog.
func (s *CatalogService) CreateService(ctx context.Context, caller domain.Caller, slug, name string, category domain.Category, pricing domain.PricingModel, features []string) (domain.ServiceDefinition, error) {
	if err := requireOwner(caller); err != nil {
		return domain.ServiceDefinition{}, err
	}

	def := domain.NewServiceDefinition(newID(), slug, name, category, pricing, features)

	if err := s.catalog.CreateService(ctx, def); err != nil {
		return domain.ServiceDefinition{}, err
	}

	return def, nil
}

// ListServices returns the active catalog.
func (s *CatalogService) ListServices(ctx context.Context) ([]domain.ServiceDefinition, error) {
	return s.catalog.ListServices(ctx, true)
}

// CreatePlan adds a pricing tier to a service.
func (s *CatalogService) CreatePlan(ctx context.Context, caller domain.Caller, serviceID, name string, priceCents int64, billingPeriod string) (domain.Plan, error) {
	if err := requireOwner(caller); err != nil {
		return domain.Plan{}, err
	}

	if _, err := s.catalog.GetServiceByID(ctx, serviceID); err != nil {
		return domain.Plan{}, err
	}

	plan := domain.Plan{
		ID:            newID(),
		ServiceID:     serviceID,
		Name:          name,
		PriceCents:    priceCents,
		BillingPeriod: billingPeriod,
		Active:        true,
	}

	if err := s.catalog.CreatePlan(ctx, plan); err != nil {
		return domain.Plan{}, err
	}

	return plan, nil
}

// SetCredentialTemplate declares the credential slots a service
// requires, replacing any previous template.
func (s *CatalogService) SetCredentialTemplate(ctx context.Context, caller domain.Caller, serviceID string, reqs []domain.CredentialRequirement) error {
	if err := requireOwner(caller); err != nil {
		return err
	}

	if _, err := s.catalog.GetServiceByID(ctx, serviceID); err != nil {
		return err
	}

	for i := range reqs {
		reqs[i].ServiceID = serviceID
		reqs[i].Position = i
	}

	if err := s.catalog.SetCredentialRequirements(ctx, serviceID, reqs); err != nil {
		return fmt.Errorf("setting credential template: %w", err)
	}

	return nil
}

// SetEnablement controls whether a reseller may offer a service to its
// tenants at all.
func (s *CatalogService) SetEnablement(ctx context.Context, caller domain.Caller, resellerID, serviceID string, enabled bool) error {
	if err := requireOwner(caller); err != nil {
		return err
	}

	if _, err := s.tenants.GetReseller(ctx, resellerID); err != nil {
		return err
	}
	if _, err := s.catalog.GetServiceByID(ctx, serviceID); err != nil {
		return err
	}

	return s.catalog.SetEnablement(ctx, domain.AdminEnablement{
		ResellerID: resellerID,
		ServiceID:  serviceID,
		Enabled:    enabled,
	})
}
