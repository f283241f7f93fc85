package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/calegria/opsgate/internal/domain"
)

// publish emits an event without letting a delivery failure propagate.
// Notification fan-out is fire-and-forget: the state transition that
// produced the event has already been persisted and must stand.
func publish(ctx context.Context, p domain.EventPublisher, event domain.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "publishing event failed",
			"kind", event.Kind,
			"tenant_id", event.TenantID,
			"error", err,
		)
	}
}
