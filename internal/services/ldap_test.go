package services

import (
	"testing"

	"github.com/ZeremItay/autohub/internal/config"
	"github.com/go-ldap/ldap/v3"
)

func TestLDAPService_Disabled(t *testing.T) {
	svc := NewLDAPService(&config.LDAPConfig{Enabled: false})
	if svc.IsEnabled() {
		t.Fatal("IsEnabled() = true")
	}
	if _, err := svc.Authenticate("a@example.com", "secret"); err == nil {
		t.Error("Authenticate() should fail when LDAP is disabled")
	}
	if NewLDAPService(nil).IsEnabled() {
		t.Error("nil config should be disabled")
	}
}

func TestLDAPService_SearchFilterEscapes(t *testing.T) {
	svc := NewLDAPService(&config.LDAPConfig{Enabled: true, UserFilter: "(uid=%s)"})
	got := svc.searchFilter("bob*)(uid=*")
	want := `(uid=bob\2a\29\28uid=\2a)`
	if got != want {
		t.Errorf("searchFilter() = %q, want %q", got, want)
	}

	svc = NewLDAPService(&config.LDAPConfig{Enabled: true})
	if got := svc.searchFilter("a@example.com"); got != "(mail=a@example.com)" {
		t.Errorf("default searchFilter() = %q", got)
	}
}

func TestLDAPUserFromEntry(t *testing.T) {
	tests := []struct {
		name      string
		attrs     map[string][]string
		wantEmail string
		wantName  string
	}{
		{
			name:      "mail and display name",
			attrs:     map[string][]string{"mail": {"jane@corp.io"}, "displayName": {"Jane Doe"}, "cn": {"jdoe"}},
			wantEmail: "jane@corp.io",
			wantName:  "Jane Doe",
		},
		{
			name:      "active directory",
			attrs:     map[string][]string{"userPrincipalName": {"jane@corp.local"}, "cn": {"Jane"}},
			wantEmail: "jane@corp.local",
			wantName:  "Jane",
		},
		{
			name:      "falls back to login",
			attrs:     map[string][]string{},
			wantEmail: "login@corp.io",
			wantName:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := ldap.NewEntry("cn=jane,dc=corp", tt.attrs)
			user := ldapUserFromEntry(entry, "login@corp.io")
			if user.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", user.Email, tt.wantEmail)
			}
			if user.FullName != tt.wantName {
				t.Errorf("FullName = %q, want %q", user.FullName, tt.wantName)
			}
			if user.DN != "cn=jane,dc=corp" {
				t.Errorf("DN = %q", user.DN)
			}
		})
	}
}
