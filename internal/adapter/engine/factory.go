package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calegria/opsgate/internal/domain"
)

// New selects an engine implementation by mode. "http" talks to a real
// engine at baseURL; "log" is a local stand-in that always succeeds,
// for development and tests. The control plane only ever sees the
// domain.AutomationEngine interface.
func New(mode, baseURL string, timeout time.Duration) (domain.AutomationEngine, error) {
	switch mode {
	case "http":
		return NewClient(baseURL, timeout), nil
	case "log":
		return &LogEngine{}, nil
	default:
		return nil, fmt.Errorf("unsupported engine mode: %q (use \"http\" or \"log\")", mode)
	}
}

// LogEngine is a no-op engine that logs handshakes and fabricates
// external references.
type LogEngine struct{}

// Compile-time check: LogEngine implements domain.AutomationEngine.
var _ domain.AutomationEngine = (*LogEngine)(nil)

func (e *LogEngine) Provision(ctx context.Context, tenantID, serviceID string) (domain.ProvisionResult, error) {
	ref := "wf-" + uuid.NewString()
	slog.InfoContext(ctx, "engine provision",
		"tenant_id", tenantID,
		"service_id", serviceID,
		"external_reference", ref,
	)
	return domain.ProvisionResult{ExternalReference: ref}, nil
}

func (e *LogEngine) SetActive(ctx context.Context, externalReference string, active bool) error {
	slog.InfoContext(ctx, "engine activation",
		"external_reference", externalReference,
		"active", active,
	)
	return nil
}
