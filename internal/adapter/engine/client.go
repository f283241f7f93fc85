// Package engine talks to the external workflow-automation engine.
//
// Handshake calls are bounded by the client timeout and are never
// retried here: recovery from a failed handshake is an explicit
// operator action (reconfigure/activate again), so an auto-retrying
// HTTP client would violate the failure semantics.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// Compile-time check: Client implements domain.AutomationEngine.
var _ domain.AutomationEngine = (*Client)(nil)

// Client is the HTTP implementation of the provisioning and activation
// handshakes.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an engine client for the given base URL. The
// timeout applies to each handshake call in its entirety.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type provisionRequest struct {
	TenantID  string `json:"tenant_id"`
	ServiceID string `json:"service_id"`
}

type provisionResponse struct {
	ExternalReference string `json:"external_reference"`
	WebhookEndpoint   string `json:"webhook_endpoint"`
	Status            string `json:"status"`
}

type activateRequest struct {
	WorkflowInstanceID string `json:"workflow_instance_id"`
	Activate           bool   `json:"activate"`
}

// Provision asks the engine to clone/allocate an automation instance
// for the pair. Non-2xx responses surface the engine's error text so
// it can be persisted on the instance.
func (c *Client) Provision(ctx context.Context, tenantID, serviceID string) (domain.ProvisionResult, error) {
	var resp provisionResponse
	err := c.post(ctx, "/v1/workflows/provision", provisionRequest{
		TenantID:  tenantID,
		ServiceID: serviceID,
	}, &resp)
	if err != nil {
		return domain.ProvisionResult{}, &domain.IntegrationError{Op: "provision", Err: err}
	}

	return domain.ProvisionResult{
		ExternalReference: resp.ExternalReference,
		WebhookEndpoint:   resp.WebhookEndpoint,
	}, nil
}

// SetActive flips the engine-side activation flag for a provisioned
// workflow.
func (c *Client) SetActive(ctx context.Context, externalReference string, active bool) error {
	err := c.post(ctx, "/v1/workflows/activate", activateRequest{
		WorkflowInstanceID: externalReference,
		Activate:           active,
	}, nil)
	if err != nil {
		return &domain.IntegrationError{Op: "activate", Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The engine's error text becomes the instance's error_message;
		// cap it so a misbehaving engine can't flood the column.
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("engine returned %d: %s", resp.StatusCode, bytes.TrimSpace(text))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
