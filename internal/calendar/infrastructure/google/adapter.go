// Package google reads events from Google Calendar.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const pageSize = 250

// Adapter implements the calendar provider adapter for Google Calendar.
type Adapter struct {
	calendarIDs []string
	endpoint    string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithEndpoint points the adapter at another API root, e.g. a test server.
func WithEndpoint(endpoint string) Option {
	return func(a *Adapter) { a.endpoint = endpoint }
}

// WithHTTPClient sets the base client; the bearer token is layered on top.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.httpClient = client }
}

// NewAdapter creates an adapter reading the given calendars ("primary" when empty).
func NewAdapter(calendarIDs []string, logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}
	a := &Adapter{calendarIDs: calendarIDs, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchEvents lists single events (recurrences expanded by Google) overlapping the window.
func (a *Adapter) FetchEvents(ctx context.Context, cred domain.Credential, windowStart, windowEnd time.Time) ([]domain.RawEvent, error) {
	svc, err := a.service(ctx, cred)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderGoogle, domain.ErrUnknown, err)
	}

	var events []domain.RawEvent
	for _, calendarID := range a.calendarIDs {
		call := svc.Events.List(calendarID).
			TimeMin(windowStart.UTC().Format(time.RFC3339)).
			TimeMax(windowEnd.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			ShowDeleted(false).
			MaxResults(pageSize)

		err := call.Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				events = append(events, toRawEvent(calendarID, page.TimeZone, item))
			}
			return nil
		})
		if err != nil {
			return nil, classify(err)
		}
		a.logger.Debug("listed google events", "calendar_id", calendarID, "total", len(events))
	}
	return events, nil
}

func (a *Adapter) service(ctx context.Context, cred domain.Credential) (*calendar.Service, error) {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	tokenType := cred.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   tokenType,
	}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if a.endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.endpoint))
	}
	return calendar.NewService(ctx, opts...)
}

func toRawEvent(calendarID, calendarZone string, item *calendar.Event) domain.RawEvent {
	return domain.RawEvent{
		ID:           item.Id,
		CalendarID:   calendarID,
		Title:        item.Summary,
		Description:  item.Description,
		Location:     item.Location,
		Start:        rawTime(item.Start, calendarZone),
		End:          rawTime(item.End, calendarZone),
		Transparency: item.Transparency,
		Status:       item.Status,
		Recurring:    item.RecurringEventId != "" || len(item.Recurrence) > 0,
	}
}

func rawTime(t *calendar.EventDateTime, calendarZone string) domain.RawTime {
	if t == nil {
		return domain.RawTime{}
	}
	zone := t.TimeZone
	if zone == "" {
		zone = calendarZone
	}
	return domain.RawTime{DateTime: t.DateTime, Date: t.Date, TimeZone: zone}
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		// Google reports quota exhaustion as 403.
		for _, item := range apiErr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return domain.NewProviderError(domain.ProviderGoogle, domain.ErrRateLimited, err)
			}
		}
		return infrastructure.StatusError(domain.ProviderGoogle, apiErr.Code, fmt.Errorf("google api: %w", err))
	}
	return infrastructure.ClassifyTransportError(domain.ProviderGoogle, err)
}
