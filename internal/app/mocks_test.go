package app_test

import (
	"context"
	"errors"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// --- Mocks ---

type mockCatalog struct {
	services    map[string]domain.ServiceDefinition
	slugs       map[string]domain.ServiceDefinition
	plans       map[string][]domain.Plan
	templates   map[string][]domain.CredentialRequirement
	enablements map[string]bool
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		services:    make(map[string]domain.ServiceDefinition),
		slugs:       make(map[string]domain.ServiceDefinition),
		plans:       make(map[string][]domain.Plan),
		templates:   make(map[string][]domain.CredentialRequirement),
		enablements: make(map[string]bool),
	}
}

func (m *mockCatalog) CreateService(_ context.Context, def domain.ServiceDefinition) error {
	if _, ok := m.slugs[def.Slug]; ok {
		return &domain.SlugConflictError{Slug: def.Slug}
	}
	m.services[def.ID] = def
	m.slugs[def.Slug] = def
	return nil
}

func (m *mockCatalog) GetServiceByID(_ context.Context, id string) (domain.ServiceDefinition, error) {
	def, ok := m.services[id]
	if !ok {
		return domain.ServiceDefinition{}, domain.ErrServiceNotFound
	}
	return def, nil
}

func (m *mockCatalog) GetServiceBySlug(_ context.Context, slug string) (domain.ServiceDefinition, error) {
	def, ok := m.slugs[slug]
	if !ok {
		return domain.ServiceDefinition{}, domain.ErrServiceNotFound
	}
	return def, nil
}

func (m *mockCatalog) ListServices(_ context.Context, _ bool) ([]domain.ServiceDefinition, error) {
	out := make([]domain.ServiceDefinition, 0, len(m.services))
	for _, def := range m.services {
		out = append(out, def)
	}
	return out, nil
}

func (m *mockCatalog) ListPlans(_ context.Context, serviceID string, _ bool) ([]domain.Plan, error) {
	return m.plans[serviceID], nil
}

func (m *mockCatalog) CreatePlan(_ context.Context, plan domain.Plan) error {
	m.plans[plan.ServiceID] = append(m.plans[plan.ServiceID], plan)
	return nil
}

func (m *mockCatalog) ListCredentialRequirements(_ context.Context, serviceID string) ([]domain.CredentialRequirement, error) {
	return m.templates[serviceID], nil
}

func (m *mockCatalog) SetCredentialRequirements(_ context.Context, serviceID string, reqs []domain.CredentialRequirement) error {
	m.templates[serviceID] = reqs
	return nil
}

func (m *mockCatalog) SetEnablement(_ context.Context, e domain.AdminEnablement) error {
	m.enablements[e.ResellerID+"/"+e.ServiceID] = e.Enabled
	return nil
}

func (m *mockCatalog) IsEnabled(_ context.Context, resellerID, serviceID string) (bool, error) {
	return m.enablements[resellerID+"/"+serviceID], nil
}

func (m *mockCatalog) ListEnabledServices(_ context.Context, resellerID string) ([]domain.ServiceDefinition, error) {
	var out []domain.ServiceDefinition
	for id, def := range m.services {
		if m.enablements[resellerID+"/"+id] {
			out = append(out, def)
		}
	}
	return out, nil
}

type mockTenants struct {
	resellers map[string]domain.Reseller
	tenants   map[string]domain.Tenant
}

func newMockTenants() *mockTenants {
	return &mockTenants{
		resellers: make(map[string]domain.Reseller),
		tenants:   make(map[string]domain.Tenant),
	}
}

func (m *mockTenants) CreateReseller(_ context.Context, r domain.Reseller) error {
	m.resellers[r.ID] = r
	return nil
}

func (m *mockTenants) GetReseller(_ context.Context, id string) (domain.Reseller, error) {
	r, ok := m.resellers[id]
	if !ok {
		return domain.Reseller{}, domain.ErrResellerNotFound
	}
	return r, nil
}

func (m *mockTenants) CreateTenant(_ context.Context, t domain.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenants) GetTenant(_ context.Context, id string) (domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockTenants) ListTenants(_ context.Context, resellerID string) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, t := range m.tenants {
		if t.ResellerID == resellerID {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockEntitlements struct {
	byPair map[string]domain.ClientEntitlement
}

func newMockEntitlements() *mockEntitlements {
	return &mockEntitlements{byPair: make(map[string]domain.ClientEntitlement)}
}

func pairKey(tenantID, serviceID string) string { return tenantID + "/" + serviceID }

func (m *mockEntitlements) Upsert(_ context.Context, e domain.ClientEntitlement) error {
	key := pairKey(e.TenantID, e.ServiceID)
	if existing, ok := m.byPair[key]; ok {
		e.UsageConsumed = existing.UsageConsumed
	}
	m.byPair[key] = e
	return nil
}

func (m *mockEntitlements) Get(_ context.Context, tenantID, serviceID string) (domain.ClientEntitlement, error) {
	e, ok := m.byPair[pairKey(tenantID, serviceID)]
	if !ok {
		return domain.ClientEntitlement{}, domain.ErrEntitlementNotFound
	}
	return e, nil
}

func (m *mockEntitlements) ListByTenant(_ context.Context, tenantID string) ([]domain.ClientEntitlement, error) {
	var out []domain.ClientEntitlement
	for _, e := range m.byPair {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEntitlements) Deactivate(_ context.Context, tenantID, serviceID string) error {
	key := pairKey(tenantID, serviceID)
	e, ok := m.byPair[key]
	if !ok {
		return domain.ErrEntitlementNotFound
	}
	e.Active = false
	m.byPair[key] = e
	return nil
}

func (m *mockEntitlements) ResetExpired(_ context.Context, now time.Time) (int64, error) {
	var reset int64
	for key, e := range m.byPair {
		if e.ResetPeriod == domain.ResetNone || !e.Active {
			continue
		}
		if !domain.NextReset(e.ResetPeriod, e.UsageResetAt).After(now) {
			e.UsageConsumed = 0
			e.UsageResetAt = now
			m.byPair[key] = e
			reset++
		}
	}
	return reset, nil
}

type mockInstances struct {
	instances map[string]domain.WorkflowInstance
	slots     map[string][]domain.CredentialSlot
	updateErr error
}

func newMockInstances() *mockInstances {
	return &mockInstances{
		instances: make(map[string]domain.WorkflowInstance),
		slots:     make(map[string][]domain.CredentialSlot),
	}
}

func (m *mockInstances) Create(_ context.Context, inst domain.WorkflowInstance, slots []domain.CredentialSlot) error {
	for _, existing := range m.instances {
		if existing.TenantID == inst.TenantID && existing.ServiceID == inst.ServiceID {
			return &domain.InstanceConflictError{TenantID: inst.TenantID, ServiceID: inst.ServiceID}
		}
	}
	m.instances[inst.ID] = inst
	m.slots[inst.ID] = slots
	return nil
}

func (m *mockInstances) Get(_ context.Context, id string) (domain.WorkflowInstance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return domain.WorkflowInstance{}, domain.ErrInstanceNotFound
	}
	return inst, nil
}

func (m *mockInstances) GetByPair(_ context.Context, tenantID, serviceID string) (domain.WorkflowInstance, error) {
	for _, inst := range m.instances {
		if inst.TenantID == tenantID && inst.ServiceID == serviceID {
			return inst, nil
		}
	}
	return domain.WorkflowInstance{}, domain.ErrInstanceNotFound
}

func (m *mockInstances) ListByTenant(_ context.Context, tenantID string) ([]domain.WorkflowInstance, error) {
	var out []domain.WorkflowInstance
	for _, inst := range m.instances {
		if inst.TenantID == tenantID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *mockInstances) Update(_ context.Context, inst domain.WorkflowInstance) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.instances[inst.ID]; !ok {
		return domain.ErrInstanceNotFound
	}
	m.instances[inst.ID] = inst
	return nil
}

func (m *mockInstances) ListSlots(_ context.Context, instanceID string) ([]domain.CredentialSlot, error) {
	return m.slots[instanceID], nil
}

func (m *mockInstances) SetSlotValue(_ context.Context, instanceID, name, _ string, at time.Time) error {
	slots := m.slots[instanceID]
	for i, slot := range slots {
		if slot.Name == name {
			slots[i].Status = domain.SlotConfigured
			slots[i].ConfiguredAt = &at
			return nil
		}
	}
	return &domain.ValidationError{Field: name, Reason: "no such credential slot"}
}

func (m *mockInstances) RecordExecution(_ context.Context, id string, at time.Time) error {
	inst, ok := m.instances[id]
	if !ok {
		return domain.ErrInstanceNotFound
	}
	inst.ExecutionCount++
	inst.LastExecutedAt = &at
	m.instances[id] = inst
	return nil
}

type mockUsage struct {
	entitlements *mockEntitlements
	events       []domain.UsageEvent
}

func (m *mockUsage) Record(_ context.Context, event domain.UsageEvent) (domain.ClientEntitlement, error) {
	key := pairKey(event.TenantID, event.ServiceID)
	e, ok := m.entitlements.byPair[key]
	if !ok || !e.Active {
		return domain.ClientEntitlement{}, domain.ErrEntitlementNotFound
	}
	e.UsageConsumed += event.Quantity
	m.entitlements.byPair[key] = e
	m.events = append(m.events, event)
	return e, nil
}

func (m *mockUsage) ListEvents(_ context.Context, tenantID, serviceID string, limit int) ([]domain.UsageEvent, error) {
	var out []domain.UsageEvent
	for _, e := range m.events {
		if e.TenantID == tenantID && e.ServiceID == serviceID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockRequests struct {
	requests map[string]domain.PurchaseRequest
}

func newMockRequests() *mockRequests {
	return &mockRequests{requests: make(map[string]domain.PurchaseRequest)}
}

func (m *mockRequests) Create(_ context.Context, req domain.PurchaseRequest) error {
	m.requests[req.ID] = req
	return nil
}

func (m *mockRequests) Get(_ context.Context, id string) (domain.PurchaseRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return domain.PurchaseRequest{}, domain.ErrRequestNotFound
	}
	return req, nil
}

func (m *mockRequests) ListPending(_ context.Context, _ string) ([]domain.PurchaseRequest, error) {
	var out []domain.PurchaseRequest
	for _, req := range m.requests {
		if req.Status == domain.RequestPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *mockRequests) Resolve(_ context.Context, id string, status domain.RequestStatus, at time.Time) error {
	req, ok := m.requests[id]
	if !ok || req.Status != domain.RequestPending {
		return domain.ErrRequestNotFound
	}
	req.Status = status
	req.ResolvedAt = &at
	m.requests[id] = req
	return nil
}

type mockPublisher struct {
	events []domain.Event
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event) error {
	m.events = append(m.events, e)
	return nil
}

func (m *mockPublisher) kinds() []domain.EventKind {
	out := make([]domain.EventKind, len(m.events))
	for i, e := range m.events {
		out[i] = e.Kind
	}
	return out
}

type mockEngine struct {
	provisionErr error
	activateErr  error
	provisions   int
	activations  []bool
}

func (m *mockEngine) Provision(_ context.Context, tenantID, serviceID string) (domain.ProvisionResult, error) {
	m.provisions++
	if m.provisionErr != nil {
		return domain.ProvisionResult{}, m.provisionErr
	}
	return domain.ProvisionResult{
		ExternalReference: "wf-" + tenantID + "-" + serviceID,
		WebhookEndpoint:   "https://hooks.example.com/" + serviceID,
	}, nil
}

func (m *mockEngine) SetActive(_ context.Context, _ string, active bool) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	m.activations = append(m.activations, active)
	return nil
}

// testValidator applies the domain transition table directly.
type testValidator struct{}

func (testValidator) Apply(_ context.Context, current domain.InstanceStatus, event domain.InstanceEvent) (domain.InstanceStatus, error) {
	for _, tr := range domain.Transitions {
		if tr.Event == event && tr.Src == current {
			return tr.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

var errEngineDown = errors.New("engine unreachable")
