package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/calegria/opsgate/internal/domain"
)

func TestRecord_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 100, domain.ResetMonthly)

	for _, q := range []int64{0, -1} {
		_, err := f.usageSvc.Record(context.Background(), tenantID, serviceID, q, 0)
		var valErr *domain.ValidationError
		if !errors.As(err, &valErr) {
			t.Errorf("quantity %d: expected ValidationError, got %v", q, err)
		}
	}
}

func TestRecord_NoEntitlement(t *testing.T) {
	f := newFixture(t)

	_, err := f.usageSvc.Record(context.Background(), tenantID, serviceID, 1, 0)
	if !errors.Is(err, domain.ErrEntitlementNotFound) {
		t.Errorf("expected ErrEntitlementNotFound, got %v", err)
	}
}

func TestRecord_WarningThreshold(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 100, domain.ResetMonthly)
	ctx := context.Background()

	st, err := f.usageSvc.Record(ctx, tenantID, serviceID, 79, 0)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if st.Warning {
		t.Error("79/100 should not warn")
	}

	st, err = f.usageSvc.Record(ctx, tenantID, serviceID, 1, 0)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !st.Warning {
		t.Error("80/100 should warn")
	}
	if st.AtLimit {
		t.Error("80/100 should not be at limit")
	}

	// The crossing publishes exactly one warning event.
	var warnings int
	for _, kind := range f.publisher.kinds() {
		if kind == domain.EventQuotaWarning {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("got %d warning events, want 1", warnings)
	}

	// Further consumption above the threshold does not re-warn.
	if _, err := f.usageSvc.Record(ctx, tenantID, serviceID, 5, 0); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	warnings = 0
	for _, kind := range f.publisher.kinds() {
		if kind == domain.EventQuotaWarning {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("got %d warning events after further usage, want still 1", warnings)
	}
}

func TestRecord_AtLimitAndBeyond(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 50, domain.ResetDaily)
	ctx := context.Background()

	st, err := f.usageSvc.Record(ctx, tenantID, serviceID, 50, 0)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !st.AtLimit {
		t.Error("50/50 should be at limit")
	}
	if st.OverLimit {
		t.Error("50/50 should not be over limit")
	}

	// Recording never blocks: the event past the limit still lands.
	st, err = f.usageSvc.Record(ctx, tenantID, serviceID, 10, 0)
	if err != nil {
		t.Fatalf("record past limit failed: %v", err)
	}
	if !st.OverLimit {
		t.Error("60/50 should be over limit")
	}
	if st.Consumed != 60 {
		t.Errorf("Consumed = %d, want 60", st.Consumed)
	}

	var reached int
	for _, kind := range f.publisher.kinds() {
		if kind == domain.EventQuotaReached {
			reached++
		}
	}
	if reached != 1 {
		t.Errorf("got %d limit events, want 1", reached)
	}
}

func TestRecord_UnmeteredNeverFlags(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)

	st, err := f.usageSvc.Record(context.Background(), tenantID, serviceID, 1_000_000, 0)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if st.Warning || st.AtLimit || st.OverLimit {
		t.Errorf("unmetered entitlement raised flags: %+v", st)
	}
}

func TestRecord_BumpsExecutionCounter(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)
	inst := f.create(t)
	ctx := context.Background()

	if _, err := f.usageSvc.Record(ctx, tenantID, serviceID, 1, 0); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	stored, _ := f.instances.Get(ctx, inst.ID)
	if stored.ExecutionCount != 1 {
		t.Errorf("ExecutionCount = %d, want 1", stored.ExecutionCount)
	}
	if stored.LastExecutedAt == nil {
		t.Error("LastExecutedAt should be set")
	}
}

func TestCurrent(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 100, domain.ResetWeekly)
	ctx := context.Background()

	if _, err := f.usageSvc.Record(ctx, tenantID, serviceID, 40, 0); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	st, err := f.usageSvc.Current(ctx, tenant, tenantID, serviceID)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if st.Consumed != 40 || st.Limit != 100 {
		t.Errorf("status = %d/%d, want 40/100", st.Consumed, st.Limit)
	}
	if st.ResetPeriod != domain.ResetWeekly {
		t.Errorf("ResetPeriod = %q, want %q", st.ResetPeriod, domain.ResetWeekly)
	}
}

func TestCurrent_OutOfScope(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 100, domain.ResetWeekly)

	stranger := domain.Caller{ID: "t-other", Role: domain.RoleTenant}
	_, err := f.usageSvc.Current(context.Background(), stranger, tenantID, serviceID)
	var authErr *domain.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)
	ctx := context.Background()

	for range 3 {
		if _, err := f.usageSvc.Record(ctx, tenantID, serviceID, 2, 10); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	events, err := f.usageSvc.History(ctx, tenant, tenantID, serviceID, 2)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2 (limit)", len(events))
	}
}
