package services

import (
	"testing"
)

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sep      string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			sep:      ",",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "value",
			sep:      ",",
			expected: []string{"value"},
		},
		{
			name:     "multiple values",
			input:    "a,b,c",
			sep:      ",",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "with spaces",
			input:    " a , b , c ",
			sep:      ",",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "empty parts filtered",
			input:    "a,,b,  ,c",
			sep:      ",",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "different separator",
			input:    "a;b;c",
			sep:      ";",
			expected: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input, tt.sep)
			if len(result) != len(tt.expected) {
				t.Errorf("splitAndTrim() returned %d items, expected %d", len(result), len(tt.expected))
				return
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %q, expected %q", i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestSystemConfigService_GetTyped(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)

	if !svc.GetBool("registration_open", false) {
		t.Error("registration_open should default to true from seed data")
	}
	if got := svc.GetInt("log_retention_days", 0); got != 30 {
		t.Errorf("log_retention_days = %d, expected 30", got)
	}
	if got := svc.GetInt("missing_key", 7); got != 7 {
		t.Errorf("missing key should use default, got %d", got)
	}

	if err := svc.Set("signup_allowed_domains", "example.com, acme.io"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := svc.GetList("signup_allowed_domains"); len(got) != 2 || got[1] != "acme.io" {
		t.Errorf("GetList() = %v", got)
	}
}

func TestSystemConfigService_UpdateSettings(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)

	err := svc.UpdateSettings(&UpdateSettingsRequest{Settings: map[string]string{
		"site_name":          "Automation Hub",
		"log_retention_days": "14",
	}})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if got := svc.GetWithDefault("site_name", ""); got != "Automation Hub" {
		t.Errorf("site_name = %q", got)
	}

	tests := []struct {
		name     string
		settings map[string]string
	}{
		{"unknown key", map[string]string{"does_not_exist": "x"}},
		{"bad int", map[string]string{"log_retention_days": "two weeks"}},
		{"bad bool", map[string]string{"registration_open": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertStatus(t, svc.UpdateSettings(&UpdateSettingsRequest{Settings: tt.settings}), 400)
		})
	}

	if got := svc.GetInt("log_retention_days", 0); got != 14 {
		t.Errorf("failed updates must not change stored values, got %d", got)
	}
}

func TestSystemConfigService_SecretsMasked(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)

	if err := svc.Set("email_password", "smtp-secret"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	grouped, err := svc.ListGrouped()
	if err != nil {
		t.Fatalf("ListGrouped() error = %v", err)
	}
	for _, cfg := range grouped["email"] {
		if cfg.Key == "email_password" && cfg.Value != secretMask {
			t.Errorf("secret should be masked, got %q", cfg.Value)
		}
	}

	group, err := svc.GetByGroup("email")
	if err != nil {
		t.Fatalf("GetByGroup() error = %v", err)
	}
	for _, cfg := range group {
		if cfg.Key == "email_password" && cfg.Value != secretMask {
			t.Errorf("group secret should be masked, got %q", cfg.Value)
		}
	}
	if _, err := svc.GetByGroup("nope"); err == nil {
		t.Error("expected not found for unknown group")
	}

	// Sending the mask back keeps the stored secret.
	if err := svc.UpdateSettings(&UpdateSettingsRequest{Settings: map[string]string{"email_password": secretMask}}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if got := svc.GetWithDefault("email_password", ""); got != "smtp-secret" {
		t.Errorf("email_password = %q, expected unchanged secret", got)
	}
}
