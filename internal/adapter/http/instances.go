package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/calegria/opsgate/internal/app"
	"github.com/calegria/opsgate/internal/domain"
)

// InstanceResponse is the API representation of a workflow instance.
// Credential values never appear here; Config carries only the
// non-sensitive configuration.
type InstanceResponse struct {
	ID                string            `json:"id" doc:"Unique identifier"`
	TenantID          string            `json:"tenant_id" doc:"Owning tenant"`
	ServiceID         string            `json:"service_id" doc:"Provisioned service"`
	Status            string            `json:"status" doc:"pending, configured, active, or error"`
	Active            bool              `json:"active" doc:"Whether the workflow is running"`
	ExternalReference string            `json:"external_reference,omitempty" doc:"Engine-side workflow reference"`
	WebhookEndpoint   string            `json:"webhook_endpoint,omitempty" doc:"Inbound endpoint for this workflow"`
	Config            map[string]string `json:"config,omitempty" doc:"Non-sensitive configuration"`
	ErrorMessage      string            `json:"error_message,omitempty" doc:"Last handshake failure, if any"`
	LastExecutedAt    string            `json:"last_executed_at,omitempty" doc:"Last completed run (ISO 8601)"`
	ExecutionCount    int64             `json:"execution_count" doc:"Completed runs"`
	CreatedAt         string            `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
}

func toInstanceResponse(inst domain.WorkflowInstance) InstanceResponse {
	resp := InstanceResponse{
		ID:                inst.ID,
		TenantID:          inst.TenantID,
		ServiceID:         inst.ServiceID,
		Status:            string(inst.Status),
		Active:            inst.Active,
		ExternalReference: inst.ExternalReference,
		WebhookEndpoint:   inst.WebhookEndpoint,
		Config:            inst.Config,
		ErrorMessage:      inst.ErrorMessage,
		ExecutionCount:    inst.ExecutionCount,
		CreatedAt:         inst.CreatedAt.Format(timeFormat),
	}
	if inst.LastExecutedAt != nil {
		resp.LastExecutedAt = inst.LastExecutedAt.Format(timeFormat)
	}
	return resp
}

// SlotResponse is the API representation of a credential slot. Values
// are write-only; a sensitive slot only ever reports its status.
type SlotResponse struct {
	Name         string `json:"name" doc:"Slot name"`
	Kind         string `json:"kind" doc:"How the value is validated"`
	Status       string `json:"status" doc:"pending, configured, expired, or invalid"`
	Sensitive    bool   `json:"sensitive" doc:"Whether the value must be masked in display"`
	Instructions string `json:"instructions,omitempty" doc:"Help text for filling the slot"`
	ConfiguredAt string `json:"configured_at,omitempty" doc:"When the value was last supplied (ISO 8601)"`
}

func toSlotResponse(slot domain.CredentialSlot) SlotResponse {
	resp := SlotResponse{
		Name:         slot.Name,
		Kind:         string(slot.Kind),
		Status:       string(slot.Status),
		Sensitive:    slot.Sensitive(),
		Instructions: slot.Instructions,
	}
	if slot.ConfiguredAt != nil {
		resp.ConfiguredAt = slot.ConfiguredAt.Format(timeFormat)
	}
	return resp
}

// UsageStatusResponse is the ledger's view of a tenant-service quota.
type UsageStatusResponse struct {
	Consumed    int64  `json:"consumed" doc:"Units consumed in the current window"`
	Limit       int64  `json:"limit" doc:"Quota; 0 means unmetered"`
	ResetPeriod string `json:"reset_period" doc:"none, daily, weekly, or monthly"`
	Warning     bool   `json:"warning" doc:"At or past 80% of the limit"`
	AtLimit     bool   `json:"at_limit" doc:"At or past the limit"`
	OverLimit   bool   `json:"over_limit" doc:"Past the limit"`
}

func toUsageStatusResponse(st domain.UsageStatus) UsageStatusResponse {
	return UsageStatusResponse{
		Consumed:    st.Consumed,
		Limit:       st.Limit,
		ResetPeriod: string(st.ResetPeriod),
		Warning:     st.Warning,
		AtLimit:     st.AtLimit,
		OverLimit:   st.OverLimit,
	}
}

// UsageEventResponse is one consumption record.
type UsageEventResponse struct {
	ID         string `json:"id" doc:"Unique identifier"`
	Quantity   int64  `json:"quantity" doc:"Units consumed"`
	UnitCost   int64  `json:"unit_cost" doc:"Cost per unit in cents"`
	OccurredAt string `json:"occurred_at" doc:"When the consumption happened (ISO 8601)"`
}

// NotificationResponse is one UI-facing notification.
type NotificationResponse struct {
	ID        string `json:"id" doc:"Unique identifier"`
	Title     string `json:"title" doc:"Short headline"`
	Message   string `json:"message" doc:"Notification body"`
	Severity  string `json:"severity" doc:"info, warning, or error"`
	ActionURL string `json:"action_url,omitempty" doc:"Where the recipient should go next"`
	CreatedAt string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
}

// --- Inputs/outputs ---

type CreateInstanceInput struct {
	CallerHeaders
	TenantID string `path:"tenantId" doc:"Tenant ID"`
	Body     struct {
		ServiceID string `json:"service_id" minLength:"1" doc:"Service to provision"`
	}
}

type CreateInstanceOutput struct {
	Body InstanceResponse
}

type BulkCreateInput struct {
	CallerHeaders
	TenantID string `path:"tenantId" doc:"Tenant ID"`
}

type BulkCreateItem struct {
	ServiceID  string `json:"service_id" doc:"Attempted service"`
	InstanceID string `json:"instance_id,omitempty" doc:"Created instance, on success"`
	Error      string `json:"error,omitempty" doc:"Why this service failed, on failure"`
}

type BulkCreateOutput struct {
	Body struct {
		Total   int              `json:"total" doc:"Services attempted"`
		Created int              `json:"created" doc:"Instances created"`
		Results []BulkCreateItem `json:"results" doc:"Per-service outcomes, in attempt order"`
	}
}

type GetInstanceInput struct {
	CallerHeaders
	InstanceID string `path:"instanceId" doc:"Instance ID"`
}

type GetInstanceOutput struct {
	Body InstanceResponse
}

type ListInstancesInput struct {
	CallerHeaders
	TenantID string `path:"tenantId" doc:"Tenant ID"`
}

type ListInstancesOutput struct {
	Body []InstanceResponse
}

type ListSlotsInput struct {
	CallerHeaders
	InstanceID string `path:"instanceId" doc:"Instance ID"`
}

type ListSlotsOutput struct {
	Body []SlotResponse
}

type SetCredentialsInput struct {
	CallerHeaders
	InstanceID string `path:"instanceId" doc:"Instance ID"`
	Body       struct {
		Values map[string]string `json:"values" doc:"Slot name to value; empty values keep the stored one"`
	}
}

type SetCredentialsOutput struct {
	Body InstanceResponse
}

type ActivateInput struct {
	CallerHeaders
	InstanceID string `path:"instanceId" doc:"Instance ID"`
}

type ActivateOutput struct {
	Body InstanceResponse
}

type RecordUsageInput struct {
	TenantID  string `path:"tenantId" doc:"Tenant ID"`
	ServiceID string `path:"serviceId" doc:"Service ID"`
	Body      struct {
		Quantity int64 `json:"quantity" minimum:"1" doc:"Units consumed"`
		UnitCost int64 `json:"unit_cost,omitempty" minimum:"0" doc:"Cost per unit in cents"`
	}
}

type RecordUsageOutput struct {
	Body UsageStatusResponse
}

type CurrentUsageInput struct {
	CallerHeaders
	TenantID  string `path:"tenantId" doc:"Tenant ID"`
	ServiceID string `path:"serviceId" doc:"Service ID"`
}

type CurrentUsageOutput struct {
	Body UsageStatusResponse
}

type UsageHistoryInput struct {
	CallerHeaders
	TenantID  string `path:"tenantId" doc:"Tenant ID"`
	ServiceID string `path:"serviceId" doc:"Service ID"`
	Limit     int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum events to return"`
}

type UsageHistoryOutput struct {
	Body []UsageEventResponse
}

type ListNotificationsInput struct {
	CallerHeaders
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum notifications to return"`
}

type ListNotificationsOutput struct {
	Body []NotificationResponse
}

func registerInstances(
	api huma.API,
	lifecycle *app.LifecycleService,
	vault *app.VaultService,
	usage *app.UsageService,
	notifications domain.NotificationRepository,
) {
	huma.Register(api, huma.Operation{
		OperationID: "create-instance",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenantId}/instances",
		Summary:     "Provision a workflow instance for a service",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, input *CreateInstanceInput) (*CreateInstanceOutput, error) {
		inst, err := lifecycle.Create(ctx, input.caller(), input.TenantID, input.Body.ServiceID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateInstanceOutput{Body: toInstanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-create-instances",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenantId}/instances/bulk",
		Summary:     "Provision every entitled service without an instance",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, input *BulkCreateInput) (*BulkCreateOutput, error) {
		results, err := lifecycle.CreateAllMissing(ctx, input.caller(), input.TenantID, nil)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &BulkCreateOutput{}
		out.Body.Total = len(results)
		out.Body.Results = make([]BulkCreateItem, len(results))
		for i, r := range results {
			item := BulkCreateItem{ServiceID: r.ServiceID, InstanceID: r.InstanceID}
			if r.Err != nil {
				item.Error = r.Err.Error()
			} else {
				out.Body.Created++
			}
			out.Body.Results[i] = item
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-instance",
		Method:      http.MethodGet,
		Path:        "/api/v1/instances/{instanceId}",
		Summary:     "Get a workflow instance",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, input *GetInstanceInput) (*GetInstanceOutput, error) {
		inst, err := lifecycle.Get(ctx, input.caller(), input.InstanceID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetInstanceOutput{Body: toInstanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-instances",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenantId}/instances",
		Summary:     "List a tenant's workflow instances",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, input *ListInstancesInput) (*ListInstancesOutput, error) {
		instances, err := lifecycle.ListByTenant(ctx, input.caller(), input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]InstanceResponse, len(instances))
		for i, inst := range instances {
			resp[i] = toInstanceResponse(inst)
		}
		return &ListInstancesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-credential-slots",
		Method:      http.MethodGet,
		Path:        "/api/v1/instances/{instanceId}/credentials",
		Summary:     "List an instance's credential slots",
		Description: "Returns slot names, statuses, and instructions. Stored values are never returned.",
		Tags:        []string{"Credentials"},
	}, func(ctx context.Context, input *ListSlotsInput) (*ListSlotsOutput, error) {
		slots, err := vault.ListSlots(ctx, input.caller(), input.InstanceID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]SlotResponse, len(slots))
		for i, slot := range slots {
			resp[i] = toSlotResponse(slot)
		}
		return &ListSlotsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-credentials",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceId}/credentials",
		Summary:     "Supply credential values for an instance",
		Tags:        []string{"Credentials"},
	}, func(ctx context.Context, input *SetCredentialsInput) (*SetCredentialsOutput, error) {
		inst, err := vault.SetValues(ctx, input.caller(), input.InstanceID, input.Body.Values)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SetCredentialsOutput{Body: toInstanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-instance",
		Method:      http.MethodPost,
		Path:        "/api/v1/instances/{instanceId}/activate",
		Summary:     "Run the activation handshake",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, input *ActivateInput) (*ActivateOutput, error) {
		inst, err := lifecycle.Activate(ctx, input.caller(), input.InstanceID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ActivateOutput{Body: toInstanceResponse(inst)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-instance",
		Method:      http.MethodPost,
		Path:        "/api/v1/instances/{instanceId}/deactivate",
		Summary:     "Pause a running instance",
		Tags:        []string{"Instances"},
	}, func(ctx context.Context, input *ActivateInput) (*ActivateOutput, error) {
		inst, err := lifecycle.Deactivate(ctx, input.caller(), input.InstanceID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ActivateOutput{Body: toInstanceResponse(inst)}, nil
	})

	// Usage recording is called by the engine's completion callback, not
	// by portal users, so it carries no caller headers.
	huma.Register(api, huma.Operation{
		OperationID: "record-usage",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{tenantId}/usage/{serviceId}",
		Summary:     "Record consumption for a tenant-service pair",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *RecordUsageInput) (*RecordUsageOutput, error) {
		st, err := usage.Record(ctx, input.TenantID, input.ServiceID, input.Body.Quantity, input.Body.UnitCost)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RecordUsageOutput{Body: toUsageStatusResponse(st)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "current-usage",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenantId}/usage/{serviceId}",
		Summary:     "Get the current quota status",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *CurrentUsageInput) (*CurrentUsageOutput, error) {
		st, err := usage.Current(ctx, input.caller(), input.TenantID, input.ServiceID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CurrentUsageOutput{Body: toUsageStatusResponse(st)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "usage-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{tenantId}/usage/{serviceId}/events",
		Summary:     "List recent usage events",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *UsageHistoryInput) (*UsageHistoryOutput, error) {
		events, err := usage.History(ctx, input.caller(), input.TenantID, input.ServiceID, input.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]UsageEventResponse, len(events))
		for i, e := range events {
			resp[i] = UsageEventResponse{
				ID:         e.ID,
				Quantity:   e.Quantity,
				UnitCost:   e.UnitCost,
				OccurredAt: e.OccurredAt.Format(timeFormat),
			}
		}
		return &UsageHistoryOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "List the caller's notifications",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
		items, err := notifications.ListByRecipient(ctx, input.CallerID, input.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]NotificationResponse, len(items))
		for i, n := range items {
			resp[i] = NotificationResponse{
				ID:        n.ID,
				Title:     n.Title,
				Message:   n.Message,
				Severity:  string(n.Severity),
				ActionURL: n.ActionURL,
				CreatedAt: n.CreatedAt.Format(timeFormat),
			}
		}
		return &ListNotificationsOutput{Body: resp}, nil
	})
}
