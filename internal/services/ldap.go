package services

import (
	"crypto/tls"
	"fmt"

	"github.com/ZeremItay/autohub/internal/config"
	"github.com/go-ldap/ldap/v3"
)

type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled
}

type LDAPUser struct {
	DN       string
	Email    string
	FullName string
}

// Authenticate looks the member up by login (usually the email address) and binds as them.
func (s *LDAPService) Authenticate(login, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, fmt.Errorf("LDAP is not enabled")
	}
	if password == "" {
		return nil, fmt.Errorf("invalid credentials")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var conn *ldap.Conn
	var err error

	if s.config.UseSSL {
		conn, err = ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host}))
	} else {
		conn, err = ldap.DialURL("ldap://" + addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		s.searchFilter(login),
		[]string{"dn", "cn", "displayName", "mail", "userPrincipalName"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in LDAP")
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found in LDAP")
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	return ldapUserFromEntry(entry, login), nil
}

func (s *LDAPService) searchFilter(login string) string {
	filter := s.config.UserFilter
	if filter == "" {
		filter = "(mail=%s)"
	}
	return fmt.Sprintf(filter, ldap.EscapeFilter(login))
}

func ldapUserFromEntry(entry *ldap.Entry, login string) *LDAPUser {
	user := &LDAPUser{
		DN:       entry.DN,
		Email:    entry.GetAttributeValue("mail"),
		FullName: entry.GetAttributeValue("displayName"),
	}
	// Active Directory often leaves mail empty.
	if user.Email == "" {
		user.Email = entry.GetAttributeValue("userPrincipalName")
	}
	if user.Email == "" {
		user.Email = login
	}
	if user.FullName == "" {
		user.FullName = entry.GetAttributeValue("cn")
	}
	return user
}
