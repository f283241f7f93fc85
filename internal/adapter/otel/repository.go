package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/calegria/opsgate/internal/domain"
)

const tracerName = "github.com/calegria/opsgate/internal/adapter/otel"

// TracingInstanceRepository wraps a domain.InstanceRepository with
// OpenTelemetry tracing. Each method creates a span with semantic
// attributes and records errors. The instance repository is the
// lifecycle hot path, which is why it gets the decorator.
type TracingInstanceRepository struct {
	next   domain.InstanceRepository
	tracer trace.Tracer
}

// Compile-time check: TracingInstanceRepository implements domain.InstanceRepository.
var _ domain.InstanceRepository = (*TracingInstanceRepository)(nil)

// NewTracingInstanceRepository creates a tracing decorator around the given repository.
func NewTracingInstanceRepository(next domain.InstanceRepository) *TracingInstanceRepository {
	return &TracingInstanceRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingInstanceRepository) Create(ctx context.Context, inst domain.WorkflowInstance, slots []domain.CredentialSlot) error {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", inst.TenantID),
			attribute.String("service.id", inst.ServiceID),
			attribute.Int("slots.count", len(slots)),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, inst, slots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingInstanceRepository) Get(ctx context.Context, id string) (domain.WorkflowInstance, error) {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.Get",
		trace.WithAttributes(attribute.String("instance.id", id)),
	)
	defer span.End()

	inst, err := r.next.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return inst, err
}

func (r *TracingInstanceRepository) GetByPair(ctx context.Context, tenantID, serviceID string) (domain.WorkflowInstance, error) {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.GetByPair",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("service.id", serviceID),
		),
	)
	defer span.End()

	inst, err := r.next.GetByPair(ctx, tenantID, serviceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return inst, err
}

func (r *TracingInstanceRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.WorkflowInstance, error) {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.ListByTenant",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	instances, err := r.next.ListByTenant(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(instances)))
	}
	return instances, err
}

func (r *TracingInstanceRepository) Update(ctx context.Context, inst domain.WorkflowInstance) error {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.Update",
		trace.WithAttributes(
			attribute.String("instance.id", inst.ID),
			attribute.String("instance.status", string(inst.Status)),
		),
	)
	defer span.End()

	err := r.next.Update(ctx, inst)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingInstanceRepository) ListSlots(ctx context.Context, instanceID string) ([]domain.CredentialSlot, error) {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.ListSlots",
		trace.WithAttributes(attribute.String("instance.id", instanceID)),
	)
	defer span.End()

	slots, err := r.next.ListSlots(ctx, instanceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return slots, err
}

func (r *TracingInstanceRepository) SetSlotValue(ctx context.Context, instanceID, name, value string, at time.Time) error {
	// The slot name is safe to record; the value never is.
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.SetSlotValue",
		trace.WithAttributes(
			attribute.String("instance.id", instanceID),
			attribute.String("slot.name", name),
		),
	)
	defer span.End()

	err := r.next.SetSlotValue(ctx, instanceID, name, value, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingInstanceRepository) RecordExecution(ctx context.Context, id string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "InstanceRepository.RecordExecution",
		trace.WithAttributes(attribute.String("instance.id", id)),
	)
	defer span.End()

	err := r.next.RecordExecution(ctx, id, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
