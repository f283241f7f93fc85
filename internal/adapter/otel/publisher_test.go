package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"

	adapter "github.com/calegria/opsgate/internal/adapter/otel"
	"github.com/calegria/opsgate/internal/domain"
)

type capturePublisher struct {
	events []domain.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event domain.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func TestTracingPublisher_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &capturePublisher{}
	pub := adapter.NewTracingPublisher(inner)

	event := domain.Event{Kind: domain.EventQuotaWarning, TenantID: "t-1", ServiceID: "svc-1"}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inner.events) != 1 {
		t.Fatalf("inner publisher got %d events, want 1", len(inner.events))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "EventPublisher.Publish" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "EventPublisher.Publish")
	}

	assertAttribute(t, spans[0], "event.kind", "quota.warning")
	assertAttribute(t, spans[0], "tenant.id", "t-1")
}

func TestTracingPublisher_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &capturePublisher{err: errors.New("queue unavailable")}
	pub := adapter.NewTracingPublisher(inner)

	if err := pub.Publish(context.Background(), domain.Event{Kind: domain.EventQuotaReached}); err == nil {
		t.Fatal("expected error from inner publisher")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

type stubEngine struct {
	provisionErr error
	activations  []bool
}

func (e *stubEngine) Provision(_ context.Context, tenantID, serviceID string) (domain.ProvisionResult, error) {
	if e.provisionErr != nil {
		return domain.ProvisionResult{}, e.provisionErr
	}
	return domain.ProvisionResult{ExternalReference: "wf-" + tenantID + "-" + serviceID}, nil
}

func (e *stubEngine) SetActive(_ context.Context, _ string, active bool) error {
	e.activations = append(e.activations, active)
	return nil
}

func TestTracingEngine_Provision_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	eng := adapter.NewTracingEngine(&stubEngine{})

	result, err := eng.Provision(context.Background(), "t-1", "svc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExternalReference != "wf-t-1-svc-1" {
		t.Errorf("ExternalReference = %q, want pass-through result", result.ExternalReference)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "AutomationEngine.Provision" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "AutomationEngine.Provision")
	}
}

func TestTracingEngine_Provision_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	eng := adapter.NewTracingEngine(&stubEngine{provisionErr: errors.New("engine down")})

	if _, err := eng.Provision(context.Background(), "t-1", "svc-1"); err == nil {
		t.Fatal("expected error from inner engine")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

func TestTracingEngine_SetActive_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &stubEngine{}
	eng := adapter.NewTracingEngine(inner)

	if err := eng.SetActive(context.Background(), "wf-1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.activations) != 1 || !inner.activations[0] {
		t.Errorf("activations = %v, want [true]", inner.activations)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "workflow.reference", "wf-1")
}
