package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/calegria/opsgate/internal/app"
	"github.com/calegria/opsgate/internal/domain"
)

// CallerHeaders carries the identity the portal resolved during
// authentication. Handlers build a domain.Caller from these and
// services re-derive tenant scope from it; a path tenant id on its
// own is never trusted.
type CallerHeaders struct {
	CallerID   string `header:"X-Caller-Id" required:"true" doc:"Resolved caller identity"`
	CallerRole string `header:"X-Caller-Role" required:"true" enum:"owner,reseller,tenant" doc:"Resolved caller role"`
}

func (h CallerHeaders) caller() domain.Caller {
	return domain.Caller{ID: h.CallerID, Role: domain.Role(h.CallerRole)}
}

const timeFormat = "2006-01-02T15:04:05Z"

// --- Responses ---

// ServiceResponse is the API representation of a catalog entry.
type ServiceResponse struct {
	ID           string   `json:"id" doc:"Unique identifier"`
	Slug         string   `json:"slug" doc:"URL-friendly identifier"`
	Name         string   `json:"name" doc:"Display name"`
	Category     string   `json:"category" doc:"Capability category"`
	PricingModel string   `json:"pricing_model" doc:"How the service is billed"`
	Features     []string `json:"features" doc:"Feature list"`
	Active       bool     `json:"active" doc:"Whether the service is offered"`
}

func toServiceResponse(def domain.ServiceDefinition) ServiceResponse {
	return ServiceResponse{
		ID:           def.ID,
		Slug:         def.Slug,
		Name:         def.Name,
		Category:     string(def.Category),
		PricingModel: string(def.PricingModel),
		Features:     def.Features,
		Active:       def.Active,
	}
}

// PlanResponse is the API representation of a pricing tier.
type PlanResponse struct {
	ID            string `json:"id" doc:"Unique identifier"`
	Name          string `json:"name" doc:"Display name"`
	PriceCents    int64  `json:"price_cents" doc:"Price in cents"`
	BillingPeriod string `json:"billing_period" doc:"Billing cadence"`
}

// EntitlementResponse is the API representation of a client entitlement.
type EntitlementResponse struct {
	ServiceID     string `json:"service_id" doc:"Entitled service"`
	PlanID        string `json:"plan_id,omitempty" doc:"Selected plan, if any"`
	UsageLimit    int64  `json:"usage_limit" doc:"Quota; 0 means unmetered"`
	UsageConsumed int64  `json:"usage_consumed" doc:"Consumed in the current window"`
	ResetPeriod   string `json:"reset_period" doc:"none, daily, weekly, or monthly"`
	Active        bool   `json:"active" doc:"Whether the entitlement is live"`
}

func toEntitlementResponse(e domain.ClientEntitlement) EntitlementResponse {
	return EntitlementResponse{
		ServiceID:     e.ServiceID,
		PlanID:        e.PlanID,
		UsageLimit:    e.UsageLimit,
		UsageConsumed: e.UsageConsumed,
		ResetPeriod:   string(e.ResetPeriod),
		Active:        e.Active,
	}
}

// ServiceViewResponse is one entry of the per-tenant catalog projection.
type ServiceViewResponse struct {
	Service        ServiceResponse      `json:"service"`
	Unlocked       bool                 `json:"unlocked" doc:"Whether the tenant may use the service"`
	LockReason     string               `json:"lock_reason,omitempty" doc:"Why the service is locked"`
	Entitlement    *EntitlementResponse `json:"entitlement,omitempty" doc:"Present when unlocked"`
	AvailablePlans []PlanResponse       `json:"available_plans,omitempty" doc:"Plans a locked service is offered at"`
}

func toServiceViewResponse(v domain.ServiceView) ServiceViewResponse {
	out := ServiceViewResponse{
		Service:    toServiceResponse(v.Definition),
		Unlocked:   v.Unlocked,
		LockReason: v.LockReason,
	}
	if v.Entitlement != nil {
		ent := toEntitlementResponse(*v.Entitlement)
		out.Entitlement = &ent
	}
	for _, p := range v.AvailablePlans {
		out.AvailablePlans = append(out.AvailablePlans, PlanResponse{
			ID:            p.ID,
			Name:          p.Name,
			PriceCents:    p.PriceCents,
			BillingPeriod: p.BillingPeriod,
		})
	}
	return out
}

// RequestResponse is the API representation of a purchase request.
type RequestResponse struct {
	ID        string `json:"id" doc:"Unique identifier"`
	TenantID  string `json:"tenant_id" doc:"Requesting tenant"`
	ServiceID string `json:"service_id" doc:"Requested service"`
	PlanID    string `json:"plan_id,omitempty" doc:"Requested plan, if any"`
	Status    string `json:"status" doc:"pending, approved, or rejected"`
	CreatedAt string `json:"created_at" doc:"Submission timestamp (ISO 8601)"`
}

func toRequestResponse(r domain.PurchaseRequest) RequestResponse {
	return RequestResponse{
		ID:        r.ID,
		TenantID:  r.TenantID,
		ServiceID: r.ServiceID,
		PlanID:    r.PlanID,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.Format(timeFormat),
	}
}

// --- Catalog & entitlement operations ---

type CreateServiceInput struct {
	CallerHeaders
	Body struct {
		Slug         string   `json:"slug" minLength:"1" maxLength:"100" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-friendly identifier (lowercase, hyphens)"`
		Name         string   `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Category     string   `json:"category" enum:"voice,messaging,social" doc:"Capability category"`
		PricingModel string   `json:"pricing_model,omitempty" default:"flat" enum:"flat,per_unit" doc:"How the service is billed"`
		Features     []string `json:"features,omitempty" doc:"Feature list"`
	}
}

type CreateServiceOutput struct {
	Body ServiceResponse
}

type ListServicesInput struct {
	CallerHeaders
}

type ListServicesOutput struct {
	Body []ServiceResponse
}

type CreatePlanInput struct {
	CallerHeaders
	ServiceID string `path:"serviceId" doc:"Service ID"`
	Body      struct {
		Name          string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		PriceCents    int64  `json:"price_cents" minimum:"0" doc:"Price in cents"`
		BillingPeriod string `json:"billing_period,omitempty" default:"monthly" enum:"monthly,yearly" doc:"Billing cadence"`
	}
}

type CreatePlanOutput struct {
	Body PlanResponse
}

type SetEnablementInput struct {
	CallerHeaders
	ResellerID string `path:"resellerId" doc:"Reseller ID"`
	Body       struct {
		ServiceID string `json:"service_id" minLength:"1" doc:"Service to enable or disable"`
		Enabled   bool   `json:"enabled" doc:"Whether the reseller may offer the service"`
	}
}

type SetEnablementOutput struct {
	Body struct {
		Enabled bool `json:"enabled"`
	}
}

type SetCredentialTemplateInput struct {
	CallerHeaders
	ServiceID string `path:"serviceId" doc:"Service ID"`
	Body      struct {
		Credentials []struct {
			Name         string `json:"name" minLength:"1" doc:"Slot name"`
			Kind         string `json:"kind,omitempty" default:"text" enum:"api_key,phone,url,secret,text" doc:"How the value is validated"`
			Instructions string `json:"instructions,omitempty" doc:"Help text shown when filling the slot"`
		} `json:"credentials" doc:"Required credential slots, in display order"`
	}
}

type SetCredentialTemplateOutput struct {
	Body struct {
		Count int `json:"count" doc:"Number of required credentials"`
	}
}

type ResolveServicesInput struct {
	CallerHeaders
	TenantID string `path:"tenantId" doc:"Tenant ID"`
}

type ResolveServicesOutput struct {
	Body []ServiceViewResponse
}

type GrantInput struct {
	CallerHeaders
	TenantID string `path:"tenantId" doc:"Tenant ID"`
	Body     struct {
		ServiceID   string `json:"service_id" minLength:"1" doc:"Service to grant"`
		PlanID      string `json:"plan_id,omitempty" doc:"Selected plan"`
		UsageLimit  int64  `json:"usage_limit,omitempty" minimum:"0" doc:"Quota; 0 means unmetered"`
		ResetPeriod string `json:"reset_period,omitempty" default:"none" enum:"none,daily,weekly,monthly" doc:"When the quota rolls over"`
	}
}

type GrantOutput struct {
	Body EntitlementResponse
}

type RevokeInput struct {
	CallerHeaders
	TenantID  string `path:"tenantId" doc:"Tenant ID"`
	ServiceID string `path:"serviceId" doc:"Service ID"`
}

type RevokeOutput struct {
	Body struct {
		Revoked bool `json:"revoked"`
	}
}

type SubmitRequestInput struct {
	CallerHeaders
	TenantID string `path:"tenantId" doc:"Tenant ID"`
	Body     struct {
		ServiceID string `json:"service_id" minLength:"1" doc:"Requested service"`
		PlanID    string `json:"plan_id,omitempty" doc:"Requested plan"`
	}
}

type SubmitRequestOutput struct {
	Body RequestResponse
}

type ListRequestsInput struct {
	CallerHeaders
	ResellerID string `path:"resellerId" doc:"Reseller ID"`
}

type ListRequestsOutput struct {
	Body []RequestResponse
}

type ResolveRequestInput struct {
	CallerHeaders
	RequestID string `path:"requestId" doc:"Purchase request ID"`
	Body      struct {
		Approve     bool   `json:"approve" doc:"Approve or reject"`
		UsageLimit  int64  `json:"usage_limit,omitempty" minimum:"0" doc:"Quota granted on approval"`
		ResetPeriod string `json:"reset_period,omitempty" default:"none" enum:"none,daily,weekly,monthly" doc:"Reset period granted on approval"`
	}
}

type ResolveRequestOutput struct {
	Body RequestResponse
}

// Register adds all control-plane API routes to the Huma API.
func Register(
	api huma.API,
	catalog *app.CatalogService,
	entitlements *app.EntitlementService,
	lifecycle *app.LifecycleService,
	vault *app.VaultService,
	usage *app.UsageService,
	notifications domain.NotificationRepository,
) {
	huma.Register(api, huma.Operation{
		OperationID: "create-service",
		Method:      http.MethodPost,
		Path:        "/api/v1/services",
		Summary:     "Add a service to the catalog",
		Tags:        []string{"Catalog"},
	}, func(ctx context.Context, input *CreateServiceInput) (*CreateServiceOutput, error) {
		def, err := catalog.CreateService(ctx, input.caller(), input.Body.Slug, input.Body.Name,
			domain.Category(input.Body.Category), domain.PricingModel(input.Body.PricingModel), input.Body.Features)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateServiceOutput{Body: toServiceResponse(def)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/api/v1/services",
		Summary:     "List the active catalog",
		Tags:        []string{"Catalog"},
	}, func(ctx context.Context, input *ListServicesInput) (*ListServicesOutput, error) {
		defs, err := catalog.ListServices(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]ServiceResponse, len(defs))
		for i, def := range defs {
			resp[i] = toServiceResponse(def)
		}
		return &ListServicesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-plan",
		Method:      http.MethodPost,
		Path:        "/api/v1/services/{serviceId}/plans",
		Summary:     "Add a pricing tier to a service",
		Tags:        []string{"Catalog"},
	}, func(ctx context.Context, input *CreatePlanInput) (*CreatePlanOutput, error) {
		plan, err := catalog.CreatePlan(ctx, input.caller(), input.ServiceID, input.Body.Name,
			input.Body.PriceCents, input.Body.BillingPeriod)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreatePlanOutput{Body: PlanResponse{
			ID:            plan.ID,
			Name:          plan.Name,
			PriceCents:    plan.PriceCents,
			BillingPeriod: plan.BillingPeriod,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-credential-template",
		Method:      http.MethodPut,
		Path:        "/api/v1/services/{serviceId}/credentials",
		Summary:     "Declare a service's required credentials",
		Tags:        []string{"Catalog"},
	}, func(ctx context.Context, input *SetCredentialTemplateInput) (*SetCredentialTemplateOutput, error) {
		reqs := make([]domain.CredentialRequirement, len(input.Body.Credentials))
		for i, c := range input.Body.Credentials {
			reqs[i] = domain.CredentialRequirement{
				Name:         c.Name,
				Kind:         domain.CredentialKind(c.Kind),
				Instructions: c.Instructions,
			}
		}
		if err := catalog.SetCredentialTemplate(ctx, input.caller(), input.ServiceID, reqs); err != nil {
			return nil, toHumaError(err)
		}
		out := &SetCredentialTemplateOutput{}
		out.Body.Count = len(reqs)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-enablement",
		Method:      http.MethodPut,
		Path:        "/api/v1/resellers/{resellerId}/enablements",
		Summary:     "Enable or disable a service for a reseller",
		Tags:        []string{"Catalog"},
	}, func(ctx context.Context, input *SetEnablementInput) (*SetEnablementOutput, error) {
		err := catalog.SetEnablement(ctx, input.caller(), input.ResellerID, input.Body.ServiceID, input.Body.Enabled)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &SetEnablementOutput{}
		out.Body.Enabled = input.Body.Enabled
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-tenant-services",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenantId}/services",
		Summary:     "Project the catalog onto a tenant",
		Tags:        []string{"Entitlements"},
	}, func(ctx context.Context, input *ResolveServicesInput) (*ResolveServicesOutput, error) {
		views, err := entitlements.Resolve(ctx, input.caller(), input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]ServiceViewResponse, len(views))
		for i, v := range views {
			resp[i] = toServiceViewResponse(v)
		}
		return &ResolveServicesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "grant-entitlement",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenantId}/entitlements",
		Summary:     "Grant a tenant access to a service",
		Tags:        []string{"Entitlements"},
	}, func(ctx context.Context, input *GrantInput) (*GrantOutput, error) {
		ent, err := entitlements.Grant(ctx, input.caller(), input.TenantID, input.Body.ServiceID,
			input.Body.PlanID, input.Body.UsageLimit, domain.ResetPeriod(input.Body.ResetPeriod))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GrantOutput{Body: toEntitlementResponse(ent)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-entitlement",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tenants/{tenantId}/entitlements/{serviceId}",
		Summary:     "Revoke a tenant's access to a service",
		Tags:        []string{"Entitlements"},
	}, func(ctx context.Context, input *RevokeInput) (*RevokeOutput, error) {
		if err := entitlements.Revoke(ctx, input.caller(), input.TenantID, input.ServiceID); err != nil {
			return nil, toHumaError(err)
		}
		out := &RevokeOutput{}
		out.Body.Revoked = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-purchase-request",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenantId}/purchase-requests",
		Summary:     "Ask for access to a service",
		Tags:        []string{"Entitlements"},
	}, func(ctx context.Context, input *SubmitRequestInput) (*SubmitRequestOutput, error) {
		req, err := entitlements.SubmitRequest(ctx, input.caller(), input.TenantID, input.Body.ServiceID, input.Body.PlanID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SubmitRequestOutput{Body: toRequestResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-purchase-requests",
		Method:      http.MethodGet,
		Path:        "/api/v1/resellers/{resellerId}/purchase-requests",
		Summary:     "List a reseller's pending purchase requests",
		Tags:        []string{"Entitlements"},
	}, func(ctx context.Context, input *ListRequestsInput) (*ListRequestsOutput, error) {
		reqs, err := entitlements.ListPendingRequests(ctx, input.caller(), input.ResellerID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]RequestResponse, len(reqs))
		for i, r := range reqs {
			resp[i] = toRequestResponse(r)
		}
		return &ListRequestsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-purchase-request",
		Method:      http.MethodPost,
		Path:        "/api/v1/purchase-requests/{requestId}/resolve",
		Summary:     "Approve or reject a purchase request",
		Tags:        []string{"Entitlements"},
	}, func(ctx context.Context, input *ResolveRequestInput) (*ResolveRequestOutput, error) {
		req, err := entitlements.ResolveRequest(ctx, input.caller(), input.RequestID, input.Body.Approve,
			input.Body.UsageLimit, domain.ResetPeriod(input.Body.ResetPeriod))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResolveRequestOutput{Body: toRequestResponse(req)}, nil
	})

	registerInstances(api, lifecycle, vault, usage, notifications)
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound),
		errors.Is(err, domain.ErrResellerNotFound),
		errors.Is(err, domain.ErrServiceNotFound),
		errors.Is(err, domain.ErrEntitlementNotFound),
		errors.Is(err, domain.ErrInstanceNotFound),
		errors.Is(err, domain.ErrRequestNotFound):
		return huma.Error404NotFound(err.Error())
	}

	var slugErr *domain.SlugConflictError
	if errors.As(err, &slugErr) {
		return huma.Error409Conflict(slugErr.Error())
	}

	var instErr *domain.InstanceConflictError
	if errors.As(err, &instErr) {
		return huma.Error409Conflict(instErr.Error())
	}

	var authErr *domain.AuthorizationError
	if errors.As(err, &authErr) {
		return huma.Error403Forbidden(authErr.Error())
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error422UnprocessableEntity(err.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var intErr *domain.IntegrationError
	if errors.As(err, &intErr) {
		return huma.Error502BadGateway(intErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
