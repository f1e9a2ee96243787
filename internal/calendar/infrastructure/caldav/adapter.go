// Package caldav reads events from CalDAV servers (iCloud, Fastmail, Nextcloud).
package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/ics"
)

// Common CalDAV server URLs.
const (
	AppleCalDAVURL    = "https://caldav.icloud.com"
	FastmailCalDAVURL = "https://caldav.fastmail.com"
)

// Adapter queries VEVENTs of one CalDAV account.
type Adapter struct {
	baseURL       string
	calendarPaths []string
	httpClient    *http.Client
	logger        *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets the base client; basic auth is layered on top.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.httpClient = client }
}

// NewAdapter creates an adapter for the server at baseURL. When calendarPaths
// is empty every calendar in the user's home set is read.
func NewAdapter(baseURL string, calendarPaths []string, logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		baseURL:       baseURL,
		calendarPaths: calendarPaths,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchEvents runs a time-range calendar-query per calendar and expands
// recurring objects locally.
func (a *Adapter) FetchEvents(ctx context.Context, cred domain.Credential, windowStart, windowEnd time.Time) ([]domain.RawEvent, error) {
	status := &statusRecorder{base: a.httpClient.Transport}
	client, err := a.client(cred, status)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderLocal, domain.ErrUnknown, err)
	}

	paths, err := a.findCalendarPaths(ctx, client)
	if err != nil {
		return nil, a.classify(err, status)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: windowStart.UTC(),
				End:   windowEnd.UTC(),
			}},
		},
	}

	var events []domain.RawEvent
	for _, path := range paths {
		objects, err := client.QueryCalendar(ctx, path, query)
		if err != nil {
			return nil, a.classify(fmt.Errorf("query %s: %w", path, err), status)
		}

		var comps []ics.Component
		for _, obj := range objects {
			comps = append(comps, componentsOf(obj)...)
		}
		expanded, err := ics.Expand(path, comps, windowStart, windowEnd)
		if err != nil {
			return nil, domain.NewProviderError(domain.ProviderLocal, domain.ErrUnknown, err)
		}
		a.logger.Debug("caldav calendar read", "path", path, "objects", len(objects), "events", len(expanded))
		events = append(events, expanded...)
	}
	return events, nil
}

func (a *Adapter) client(cred domain.Credential, status *statusRecorder) (*caldav.Client, error) {
	httpClient := &http.Client{
		Timeout:   a.httpClient.Timeout,
		Transport: status,
	}
	var hc webdav.HTTPClient = httpClient
	if cred.Username != "" {
		hc = webdav.HTTPClientWithBasicAuth(httpClient, cred.Username, cred.AccessToken)
	}
	client, err := caldav.NewClient(hc, a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return client, nil
}

func (a *Adapter) findCalendarPaths(ctx context.Context, client *caldav.Client) ([]string, error) {
	if len(a.calendarPaths) > 0 {
		return a.calendarPaths, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}
	if len(cals) == 0 {
		return nil, errors.New("no calendars found")
	}

	paths := make([]string, 0, len(cals))
	for _, cal := range cals {
		paths = append(paths, cal.Path)
	}
	return paths, nil
}

// classify prefers the last failing HTTP status; go-webdav does not export
// its status errors.
func (a *Adapter) classify(err error, status *statusRecorder) error {
	if code := status.lastFailure(); code != 0 {
		return infrastructure.StatusError(domain.ProviderLocal, code, err)
	}
	return infrastructure.ClassifyTransportError(domain.ProviderLocal, err)
}

// componentsOf converts the VEVENTs of a calendar object.
func componentsOf(obj caldav.CalendarObject) []ics.Component {
	if obj.Data == nil {
		return nil
	}
	var comps []ics.Component
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		comps = append(comps, toComponent(child))
	}
	return comps
}

func toComponent(ev *ical.Component) ics.Component {
	return ics.Component{
		UID:          text(ev, ical.PropUID),
		Summary:      text(ev, ical.PropSummary),
		Description:  text(ev, ical.PropDescription),
		Location:     text(ev, ical.PropLocation),
		Status:       text(ev, ical.PropStatus),
		Transp:       text(ev, ical.PropTransparency),
		Start:        stamp(ev.Props.Get(ical.PropDateTimeStart)),
		End:          stamp(ev.Props.Get(ical.PropDateTimeEnd)),
		Duration:     text(ev, ical.PropDuration),
		RRule:        text(ev, ical.PropRecurrenceRule),
		RDates:       stamps(ev.Props[ical.PropRecurrenceDates]),
		ExDates:      stamps(ev.Props[ical.PropExceptionDates]),
		RecurrenceID: stamp(ev.Props.Get(ical.PropRecurrenceID)),
	}
}

func text(ev *ical.Component, name string) string {
	prop := ev.Props.Get(name)
	if prop == nil {
		return ""
	}
	if v, err := prop.Text(); err == nil {
		return v
	}
	return prop.Value
}

func stamp(prop *ical.Prop) ics.Stamp {
	if prop == nil {
		return ics.Stamp{}
	}
	return ics.Stamp{Value: prop.Value, TZID: prop.Params.Get(ical.ParamTimezoneID)}
}

func stamps(props []ical.Prop) []ics.Stamp {
	out := make([]ics.Stamp, 0, len(props))
	for i := range props {
		out = append(out, stamp(&props[i]))
	}
	return out
}

// statusRecorder remembers the last non-2xx status seen by a client.
type statusRecorder struct {
	base http.RoundTripper

	mu   sync.Mutex
	code int
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	base := s.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		s.mu.Lock()
		s.code = resp.StatusCode
		s.mu.Unlock()
	}
	return resp, nil
}

func (s *statusRecorder) lastFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}
