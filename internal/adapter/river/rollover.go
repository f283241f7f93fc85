package river

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// QuotaResetter is the slice of the entitlement store the rollover job
// needs. domain.EntitlementRepository satisfies it.
type QuotaResetter interface {
	ResetExpired(ctx context.Context, now time.Time) (int64, error)
}

// RolloverWorker runs the scheduled quota reset. Resets happen here,
// on a fixed period, never as a side effect of a read: historical
// usage rows stay intact and reads stay cheap.
type RolloverWorker struct {
	river.WorkerDefaults[RolloverJobArgs]

	quotas QuotaResetter
}

// NewRolloverWorker creates the worker over the given quota store.
func NewRolloverWorker(quotas QuotaResetter) *RolloverWorker {
	return &RolloverWorker{quotas: quotas}
}

// Work resets every entitlement whose reset period has elapsed.
func (w *RolloverWorker) Work(ctx context.Context, job *river.Job[RolloverJobArgs]) error {
	reset, err := w.quotas.ResetExpired(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("quota rollover: %w", err)
	}

	if reset > 0 {
		slog.InfoContext(ctx, "quota rollover complete", "entitlements_reset", reset, "job_id", job.ID)
	}
	return nil
}
