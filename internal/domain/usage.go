package domain

import "time"

// WarnThreshold is the fraction of the usage limit at which the ledger
// starts surfacing a warning to the owning tenant.
const WarnThreshold = 0.8

// UsageEvent is one append-only consumption record. Events survive
// quota rollovers so historical reporting stays intact.
type UsageEvent struct {
	ID         string
	TenantID   string
	ServiceID  string
	Quantity   int64
	UnitCost   int64
	OccurredAt time.Time
}

// UsageStatus is the ledger's view of a tenant-service quota.
type UsageStatus struct {
	Consumed    int64
	Limit       int64
	ResetPeriod ResetPeriod
	Warning     bool
	AtLimit     bool
	OverLimit   bool
}

// StatusFor derives the quota flags for a consumed/limit pair. A zero
// limit means unmetered: no flags are ever raised.
func StatusFor(consumed, limit int64, reset ResetPeriod) UsageStatus {
	st := UsageStatus{Consumed: consumed, Limit: limit, ResetPeriod: reset}
	if limit <= 0 {
		return st
	}
	st.Warning = float64(consumed) >= WarnThreshold*float64(limit)
	st.AtLimit = consumed >= limit
	st.OverLimit = consumed > limit
	return st
}

// NextReset returns when the usage window starting at last rolls over,
// or the zero time for ResetNone.
func NextReset(period ResetPeriod, last time.Time) time.Time {
	switch period {
	case ResetDaily:
		return last.AddDate(0, 0, 1)
	case ResetWeekly:
		return last.AddDate(0, 0, 7)
	case ResetMonthly:
		return last.AddDate(0, 1, 0)
	default:
		return time.Time{}
	}
}
