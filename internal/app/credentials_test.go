package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/calegria/opsgate/internal/domain"
)

func TestListSlots_MarksSensitive(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)
	inst := f.create(t)

	slots, err := f.vaultSvc.ListSlots(context.Background(), tenant, inst.ID)
	if err != nil {
		t.Fatalf("list slots failed: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}

	byName := make(map[string]domain.CredentialSlot, len(slots))
	for _, slot := range slots {
		byName[slot.Name] = slot
	}

	if !byName["provider_api_key"].Sensitive() {
		t.Error("provider_api_key should be sensitive")
	}
	if byName["caller_id"].Sensitive() {
		t.Error("caller_id should not be sensitive")
	}
}

func TestListSlots_OutOfScope(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)
	inst := f.create(t)

	stranger := domain.Caller{ID: "t-other", Role: domain.RoleTenant}
	_, err := f.vaultSvc.ListSlots(context.Background(), stranger, inst.ID)
	var authErr *domain.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestSetValues_AdvancesSlotStatus(t *testing.T) {
	f := newFixture(t)
	f.grant(t, 0, domain.ResetNone)
	inst := f.create(t)

	_, err := f.vaultSvc.SetValues(context.Background(), tenant, inst.ID, map[string]string{
		"provider_api_key": "sk-1234567890abcdef",
	})
	if err != nil {
		t.Fatalf("set values failed: %v", err)
	}

	slots, _ := f.vaultSvc.ListSlots(context.Background(), tenant, inst.ID)
	for _, slot := range slots {
		want := domain.SlotPending
		if slot.Name == "provider_api_key" {
			want = domain.SlotConfigured
		}
		if slot.Status != want {
			t.Errorf("slot %s Status = %q, want %q", slot.Name, slot.Status, want)
		}
	}
}
