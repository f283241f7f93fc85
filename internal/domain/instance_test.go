package domain_test

import (
	"testing"

	"github.com/calegria/opsgate/internal/domain"
)

func TestNewWorkflowInstance(t *testing.T) {
	inst := domain.NewWorkflowInstance("i-1", "t-1", "svc-1")

	if inst.Status != domain.InstancePending {
		t.Errorf("Status = %q, want %q", inst.Status, domain.InstancePending)
	}
	if inst.Active {
		t.Error("new instance should not be active")
	}
	if inst.Config == nil {
		t.Error("Config should be initialized")
	}
	if inst.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestSlotSensitive(t *testing.T) {
	tests := []struct {
		name      string
		sensitive bool
	}{
		{"provider_api_key", true},
		{"client_secret", true},
		{"db_password", true},
		{"access_token", true},
		{"API_KEY", true},
		{"caller_id", false},
		{"webhook_url", false},
		{"phone_number", false},
	}

	for _, tt := range tests {
		slot := domain.CredentialSlot{Name: tt.name}
		if got := slot.Sensitive(); got != tt.sensitive {
			t.Errorf("Sensitive(%q) = %v, want %v", tt.name, got, tt.sensitive)
		}
	}
}
