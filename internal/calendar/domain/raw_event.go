package domain

import "time"

// RawTime carries a provider timestamp before parsing. Timed values use
// DateTime (with TimeZone for zone-less forms); all-day values use Date.
type RawTime struct {
	DateTime string
	Date     string
	TimeZone string
}

// IsZero reports whether neither form was supplied.
func (t RawTime) IsZero() bool {
	return t.DateTime == "" && t.Date == ""
}

// RawEvent is an event as a provider adapter returns it, still in the
// provider's own vocabulary.
type RawEvent struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Start       RawTime
	End         RawTime
	// AllDay is set by providers that flag all-day events explicitly (Graph isAllDay).
	AllDay bool
	// Transparency is the provider's free/busy word: Google transparency,
	// Graph showAs, ICS TRANSP.
	Transparency string
	Status       string
	// Cancelled is set by providers that report cancellation as a flag (Graph isCancelled).
	Cancelled bool
	Recurring bool
}

// Credential is what an adapter needs to call its provider.
type Credential struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
	// Username is set for basic-auth providers (CalDAV); AccessToken then holds the password.
	Username string
}

// IsEmpty reports whether no secret is present.
func (c Credential) IsEmpty() bool {
	return c.AccessToken == ""
}

// ExpiresWithin reports whether the credential expires before now+d.
// A zero expiry never expires.
func (c Credential) ExpiresWithin(d time.Duration, now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return c.Expiry.Before(now.Add(d))
}
