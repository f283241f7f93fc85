package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/calegria/opsgate/internal/domain"
)

// TracingEngine wraps a domain.AutomationEngine with OpenTelemetry
// tracing, so handshake latency and failures show up per call.
type TracingEngine struct {
	next   domain.AutomationEngine
	tracer trace.Tracer
}

// Compile-time check: TracingEngine implements domain.AutomationEngine.
var _ domain.AutomationEngine = (*TracingEngine)(nil)

// NewTracingEngine creates a tracing decorator around the given engine.
func NewTracingEngine(next domain.AutomationEngine) *TracingEngine {
	return &TracingEngine{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (e *TracingEngine) Provision(ctx context.Context, tenantID, serviceID string) (domain.ProvisionResult, error) {
	ctx, span := e.tracer.Start(ctx, "AutomationEngine.Provision",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("service.id", serviceID),
		),
	)
	defer span.End()

	result, err := e.next.Provision(ctx, tenantID, serviceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (e *TracingEngine) SetActive(ctx context.Context, externalReference string, active bool) error {
	ctx, span := e.tracer.Start(ctx, "AutomationEngine.SetActive",
		trace.WithAttributes(
			attribute.String("workflow.reference", externalReference),
			attribute.Bool("workflow.active", active),
		),
	)
	defer span.End()

	err := e.next.SetActive(ctx, externalReference, active)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
