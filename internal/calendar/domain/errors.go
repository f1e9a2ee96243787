package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Provider failure taxonomy. Adapters return (or wrap) one of these so callers
// can decide between re-auth, surfacing, and retrying later.
var (
	// ErrAuthExpired means the credential is no longer accepted and the single
	// refresh attempt did not help. The user has to re-authenticate.
	ErrAuthExpired = errors.New("provider authorization expired")
	// ErrPermissionDenied means the provider refused access to the calendar.
	ErrPermissionDenied = errors.New("provider permission denied")
	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrNetworkTimeout means the provider did not answer in time.
	ErrNetworkTimeout = errors.New("provider network timeout")
	// ErrUnknown covers every other provider failure.
	ErrUnknown = errors.New("provider error")
)

var (
	// ErrParse is wrapped by ParseError.
	ErrParse = errors.New("event parse error")
	// ErrSettingsNotFound is returned when a user has no stored preferences.
	ErrSettingsNotFound = errors.New("settings not found")
	// ErrProviderUnavailable is returned while a provider's circuit is open.
	ErrProviderUnavailable = errors.New("provider temporarily unavailable")
	// ErrProviderNotConfigured is returned when no adapter is registered for a provider.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrUnknownProviderType is returned for unrecognized provider names.
	ErrUnknownProviderType = errors.New("unknown provider type")
)

// ProviderError ties a failure to the provider that produced it.
type ProviderError struct {
	Provider ProviderType
	Kind     error
	Err      error
}

// NewProviderError builds a ProviderError. Kind must be one of the taxonomy sentinels.
func NewProviderError(provider ProviderType, kind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the caller may try again later without user action.
func (e *ProviderError) Retryable() bool {
	return errors.Is(e.Kind, ErrRateLimited) || errors.Is(e.Kind, ErrNetworkTimeout)
}

// ErrorKind returns the taxonomy sentinel carried by err, or ErrUnknown.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrAuthExpired, ErrPermissionDenied, ErrRateLimited, ErrNetworkTimeout} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnknown
}

// KindName returns a short label for the taxonomy entry of err, used in logs and API output.
func KindName(err error) string {
	switch ErrorKind(err) {
	case ErrAuthExpired:
		return "auth_expired"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrRateLimited:
		return "rate_limited"
	case ErrNetworkTimeout:
		return "network_timeout"
	default:
		return "unknown"
	}
}

// ClassifyHTTPStatus maps a provider HTTP status to the failure taxonomy.
func ClassifyHTTPStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrAuthExpired
	case http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrNetworkTimeout
	default:
		return ErrUnknown
	}
}

// ParseError describes a raw event whose start or end could not be determined.
type ParseError struct {
	Provider        ProviderType
	ProviderEventID string
	Field           string
	Value           string
	Err             error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s event %q: field %s", e.Provider, e.ProviderEventID, e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return ErrParse }

// ReconcileError reports a reconciliation that stopped part way through.
type ReconcileError struct {
	Provider ProviderType
	Op       string
	Err      error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// ErrConflictNotFound is returned when resolving a record that does not exist.
var ErrConflictNotFound = errors.New("conflict not found")
