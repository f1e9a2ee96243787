// Package oauth keeps provider credentials valid for the calendar adapters.
package oauth

import (
	"strings"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// Read-only scopes requested from each provider.
var (
	GoogleScopes    = []string{"https://www.googleapis.com/auth/calendar.readonly"}
	MicrosoftScopes = []string{"offline_access", "https://graph.microsoft.com/Calendars.Read"}
)

// ClientConfig holds the registered OAuth client of one provider.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Tenant selects the Azure AD tenant; "common" when empty.
	Tenant string
	// Endpoint overrides the provider endpoint, used against test servers.
	Endpoint *oauth2.Endpoint
}

// Configured reports whether client credentials were supplied.
func (c ClientConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// NewOAuth2Config builds the oauth2 config for provider, or nil when the
// provider does not use OAuth or the client is not configured.
func NewOAuth2Config(provider calendarDomain.ProviderType, c ClientConfig) *oauth2.Config {
	if !provider.RequiresOAuth() || !c.Configured() {
		return nil
	}

	cfg := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
	}

	switch provider {
	case calendarDomain.ProviderGoogle:
		cfg.Endpoint = google.Endpoint
		if len(cfg.Scopes) == 0 {
			cfg.Scopes = GoogleScopes
		}
	case calendarDomain.ProviderMicrosoft:
		tenant := c.Tenant
		if tenant == "" {
			tenant = "common"
		}
		cfg.Endpoint = microsoft.AzureADEndpoint(tenant)
		if len(cfg.Scopes) == 0 {
			cfg.Scopes = MicrosoftScopes
		}
	}

	if c.Endpoint != nil {
		cfg.Endpoint = *c.Endpoint
	}
	return cfg
}

// ScopesFromEnv parses a comma-separated list of scopes.
func ScopesFromEnv(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var scopes []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			scopes = append(scopes, trimmed)
		}
	}
	return scopes
}
