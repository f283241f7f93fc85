package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/calegria/opsgate/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// EventJobArgs carries a control-plane event into the async queue.
// River serializes this as JSON into its job queue table. It is a full
// snapshot of the event, so the worker never needs to query back.
type EventJobArgs struct {
	EventKind  string    `json:"kind"`
	TenantID   string    `json:"tenant_id"`
	ResellerID string    `json:"reseller_id"`
	ServiceID  string    `json:"service_id"`
	InstanceID string    `json:"instance_id"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "event.published" }

// RolloverJobArgs is the periodic quota-reset job. It carries no
// payload; the reset query decides which rows are due.
type RolloverJobArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (RolloverJobArgs) Kind() string { return "quota.rollover" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a control-plane event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		EventKind:  string(event.Kind),
		TenantID:   event.TenantID,
		ResellerID: event.ResellerID,
		ServiceID:  event.ServiceID,
		InstanceID: event.InstanceID,
		Detail:     event.Detail,
		OccurredAt: event.OccurredAt,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
