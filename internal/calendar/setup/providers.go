// Package setup wires the provider adapters into a registry.
package setup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/caldav"
	googleCal "github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/google"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/ics"
	microsoftCal "github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/microsoft"
)

// ProviderConfig holds configuration for creating provider factories.
type ProviderConfig struct {
	// GoogleEndpoint overrides the Calendar API root.
	GoogleEndpoint string
	// MicrosoftBaseURL overrides the Graph API root.
	MicrosoftBaseURL string
	// HTTPClient is the base client of every adapter.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// RegisterProviders registers the google, microsoft and local adapters.
func RegisterProviders(registry *application.ProviderRegistry, config ProviderConfig) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry.Register(domain.ProviderGoogle, func(_ context.Context, conn domain.ProviderConnection) (application.ProviderAdapter, error) {
		var opts []googleCal.Option
		if config.GoogleEndpoint != "" {
			opts = append(opts, googleCal.WithEndpoint(config.GoogleEndpoint))
		}
		if config.HTTPClient != nil {
			opts = append(opts, googleCal.WithHTTPClient(config.HTTPClient))
		}
		return googleCal.NewAdapter(conn.Calendars(), logger, opts...), nil
	})

	registry.Register(domain.ProviderMicrosoft, func(_ context.Context, conn domain.ProviderConnection) (application.ProviderAdapter, error) {
		var opts []microsoftCal.Option
		if config.MicrosoftBaseURL != "" {
			opts = append(opts, microsoftCal.WithBaseURL(config.MicrosoftBaseURL))
		}
		if config.HTTPClient != nil {
			opts = append(opts, microsoftCal.WithHTTPClient(config.HTTPClient))
		}
		return microsoftCal.NewAdapter(conn.Calendars(), logger, opts...), nil
	})

	registry.Register(domain.ProviderLocal, func(_ context.Context, conn domain.ProviderConnection) (application.ProviderAdapter, error) {
		return NewLocalAdapter(conn, config.HTTPClient, logger)
	})

	logger.Debug("registered calendar providers", "providers", registry.SupportedProviders())
}

// NewLocalAdapter picks CalDAV for connections with a username and an ICS
// feed otherwise.
func NewLocalAdapter(conn domain.ProviderConnection, httpClient *http.Client, logger *slog.Logger) (application.ProviderAdapter, error) {
	source := strings.TrimSpace(conn.SourceURL)

	if conn.Username != "" {
		if source == "" {
			source = caldav.AppleCalDAVURL
		}
		var opts []caldav.Option
		if httpClient != nil {
			opts = append(opts, caldav.WithHTTPClient(httpClient))
		}
		return caldav.NewAdapter(source, conn.CalendarIDs, logger, opts...), nil
	}

	if source == "" {
		return nil, fmt.Errorf("%w: local connection has no source", domain.ErrProviderNotConfigured)
	}
	var opts []ics.Option
	if httpClient != nil {
		opts = append(opts, ics.WithHTTPClient(httpClient))
	}
	if len(conn.CalendarIDs) > 0 {
		opts = append(opts, ics.WithCalendarID(conn.CalendarIDs[0]))
	}
	return ics.NewAdapter(source, logger, opts...), nil
}
