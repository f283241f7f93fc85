package river

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/calegria/opsgate/internal/domain"
)

// NotificationWorker fans control-plane events out into the UI-facing
// notification store. It is the sole consumer of event jobs; the
// portal renders whatever lands in the notifications table.
type NotificationWorker struct {
	river.WorkerDefaults[EventJobArgs]

	notifications domain.NotificationRepository
}

// NewNotificationWorker creates the worker over the given store.
func NewNotificationWorker(notifications domain.NotificationRepository) *NotificationWorker {
	return &NotificationWorker{notifications: notifications}
}

// Work renders one event into a notification row.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	n := render(job.Args)
	if n.Recipient == "" {
		slog.InfoContext(ctx, "event has no notification recipient", "kind", job.Args.EventKind)
		return nil
	}

	if err := w.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("storing notification: %w", err)
	}

	slog.InfoContext(ctx, "notification stored",
		"kind", job.Args.EventKind,
		"recipient", n.Recipient,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// render maps an event to its notification: who hears about it, what
// it says, and the one actionable next step.
func render(args EventJobArgs) domain.Notification {
	n := domain.Notification{
		ID:        uuid.NewString(),
		Recipient: args.TenantID,
		Severity:  domain.SeverityInfo,
		CreatedAt: time.Now().UTC(),
	}

	switch domain.EventKind(args.EventKind) {
	case domain.EventInstanceCreated:
		n.Title = "Service provisioned"
		n.Message = "Your automation instance was created. Configure its credentials to continue."
		n.ActionURL = "/instances/" + args.InstanceID + "/credentials"
	case domain.EventProvisionFailed:
		n.Title = "Provisioning failed"
		n.Message = args.Detail
		n.Severity = domain.SeverityError
		n.ActionURL = "/instances/" + args.InstanceID
	case domain.EventInstanceConfigured:
		n.Title = "Credentials configured"
		n.Message = "All credentials are in place. You can activate the service now."
		n.ActionURL = "/instances/" + args.InstanceID
	case domain.EventInstanceActivated:
		n.Title = "Service activated"
		n.Message = "Your automation instance is live."
		n.ActionURL = "/instances/" + args.InstanceID
	case domain.EventActivationFailed:
		n.Title = "Activation failed"
		n.Message = args.Detail
		n.Severity = domain.SeverityError
		n.ActionURL = "/instances/" + args.InstanceID
	case domain.EventInstanceStopped:
		n.Title = "Service deactivated"
		n.Message = "Your automation instance was deactivated. Credentials are kept."
		n.ActionURL = "/instances/" + args.InstanceID
	case domain.EventQuotaWarning:
		n.Title = "Usage warning"
		n.Message = "You have used 80% of your quota (" + args.Detail + ")."
		n.Severity = domain.SeverityWarning
		n.ActionURL = "/usage/" + args.ServiceID
	case domain.EventQuotaReached:
		n.Title = "Usage limit reached"
		n.Message = "Your quota is exhausted (" + args.Detail + "). Contact your administrator to raise it."
		n.Severity = domain.SeverityError
		n.ActionURL = "/usage/" + args.ServiceID
	case domain.EventRequestSubmitted:
		n.Recipient = args.ResellerID
		n.Title = "Purchase request"
		n.Message = "A client requested access to a service."
		n.ActionURL = "/requests"
	case domain.EventRequestApproved:
		n.Title = "Request approved"
		n.Message = "Your service request was approved. The service is now unlocked."
		n.ActionURL = "/services/" + args.ServiceID
	case domain.EventRequestRejected:
		n.Title = "Request rejected"
		n.Message = "Your service request was rejected. Contact your administrator."
		n.Severity = domain.SeverityWarning
	case domain.EventEntitlementGranted:
		n.Title = "Service unlocked"
		n.Message = "A new service was unlocked for your account."
		n.ActionURL = "/services/" + args.ServiceID
	case domain.EventEntitlementRevoked:
		n.Title = "Service access revoked"
		n.Message = "Access to a service was revoked. Contact your administrator."
		n.Severity = domain.SeverityWarning
	default:
		n.Recipient = ""
	}

	return n
}
