package domain

import (
	"slices"
	"strings"
)

// ProviderType identifies where a calendar comes from.
type ProviderType string

const (
	// ProviderGoogle is Google Calendar (OAuth2 + Calendar API v3).
	ProviderGoogle ProviderType = "google"
	// ProviderMicrosoft is Outlook/365 (OAuth2 + Microsoft Graph).
	ProviderMicrosoft ProviderType = "microsoft"
	// ProviderLocal is a calendar living on the user's device, exported as an
	// ICS feed or served over CalDAV.
	ProviderLocal ProviderType = "local"
)

type providerTraits struct {
	display string
	oauth   bool
}

var providerCatalog = map[ProviderType]providerTraits{
	ProviderGoogle:    {display: "Google Calendar", oauth: true},
	ProviderMicrosoft: {display: "Microsoft Outlook", oauth: true},
	ProviderLocal:     {display: "Device Calendar"},
}

var providerAliases = map[string]ProviderType{
	"outlook":   ProviderMicrosoft,
	"office365": ProviderMicrosoft,
	"ics":       ProviderLocal,
	"caldav":    ProviderLocal,
}

func (p ProviderType) String() string { return string(p) }

// IsValid reports whether p is one of the supported providers.
func (p ProviderType) IsValid() bool {
	_, ok := providerCatalog[p]
	return ok
}

// RequiresOAuth reports whether connecting p goes through an OAuth2 consent.
func (p ProviderType) RequiresOAuth() bool {
	return providerCatalog[p].oauth
}

// DisplayName returns the name shown to users, or the raw value when p is
// unknown.
func (p ProviderType) DisplayName() string {
	if t, ok := providerCatalog[p]; ok {
		return t.display
	}
	return string(p)
}

// ParseProviderType accepts a provider name or one of its aliases
// (outlook, office365, ics, caldav), case-insensitively.
func ParseProviderType(s string) (ProviderType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if p, ok := providerAliases[s]; ok {
		return p, nil
	}
	if p := ProviderType(s); p.IsValid() {
		return p, nil
	}
	return "", ErrUnknownProviderType
}

// AllProviderTypes returns every supported provider in name order.
func AllProviderTypes() []ProviderType {
	all := make([]ProviderType, 0, len(providerCatalog))
	for p := range providerCatalog {
		all = append(all, p)
	}
	SortProviders(all)
	return all
}

// SortProviders orders providers by name so fan-out results are stable.
func SortProviders(providers []ProviderType) {
	slices.Sort(providers)
}
