package ics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/security"
)

// maxBodySize caps a downloaded feed.
const maxBodySize = 32 << 20

// Adapter reads a single iCalendar feed from a local file or an http(s) URL.
type Adapter struct {
	source     string
	calendarID string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets the client used for URL sources.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.httpClient = client }
}

// WithCalendarID sets the calendar ID stamped on every event. It defaults to the source.
func WithCalendarID(id string) Option {
	return func(a *Adapter) { a.calendarID = id }
}

// NewAdapter creates an adapter for source.
func NewAdapter(source string, logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		source:     source,
		calendarID: source,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsURL reports whether source is fetched over HTTP rather than read from disk.
func IsURL(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FetchEvents parses the feed and expands it into the window.
func (a *Adapter) FetchEvents(ctx context.Context, cred domain.Credential, windowStart, windowEnd time.Time) ([]domain.RawEvent, error) {
	body, err := a.open(ctx, cred)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	cal, err := ical.ParseCalendar(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderLocal, domain.ErrUnknown, fmt.Errorf("parse calendar: %w", err))
	}

	comps := make([]Component, 0, len(cal.Events()))
	for _, ev := range cal.Events() {
		comps = append(comps, FromVEvent(ev))
	}

	events, err := Expand(a.calendarID, comps, windowStart, windowEnd)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderLocal, domain.ErrUnknown, err)
	}
	a.logger.Debug("ics feed read", "source", a.source, "components", len(comps), "events", len(events))
	return events, nil
}

func (a *Adapter) open(ctx context.Context, cred domain.Credential) (io.ReadCloser, error) {
	if !IsURL(a.source) {
		f, err := security.Open(a.source)
		if err != nil {
			return nil, domain.NewProviderError(domain.ProviderLocal, domain.ErrUnknown, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.source, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderLocal, domain.ErrUnknown, err)
	}
	req.Header.Set("Accept", "text/calendar")
	switch {
	case cred.Username != "":
		req.SetBasicAuth(cred.Username, cred.AccessToken)
	case cred.AccessToken != "":
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, infrastructure.ClassifyTransportError(domain.ProviderLocal, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, infrastructure.StatusError(domain.ProviderLocal, resp.StatusCode,
			fmt.Errorf("GET %s: %s", a.source, resp.Status))
	}
	return resp.Body, nil
}

// FromVEvent copies the properties Expand needs out of a parsed VEVENT.
func FromVEvent(ev *ical.VEvent) Component {
	c := Component{UID: ev.Id()}
	for _, p := range ev.Properties {
		switch ical.ComponentProperty(p.IANAToken) {
		case ical.ComponentPropertySummary:
			c.Summary = p.Value
		case ical.ComponentPropertyDescription:
			c.Description = p.Value
		case ical.ComponentPropertyLocation:
			c.Location = p.Value
		case ical.ComponentPropertyStatus:
			c.Status = p.Value
		case ical.ComponentPropertyTransp:
			c.Transp = p.Value
		case ical.ComponentPropertyDtStart:
			c.Start = stampOf(p)
		case ical.ComponentPropertyDtEnd:
			c.End = stampOf(p)
		case ical.ComponentPropertyDuration:
			c.Duration = p.Value
		case ical.ComponentPropertyRrule:
			c.RRule = p.Value
		case ical.ComponentPropertyRdate:
			c.RDates = append(c.RDates, stampOf(p))
		case ical.ComponentPropertyExdate:
			c.ExDates = append(c.ExDates, stampOf(p))
		case ical.ComponentPropertyRecurrenceId:
			c.RecurrenceID = stampOf(p)
		}
	}
	return c
}

func stampOf(p ical.IANAProperty) Stamp {
	s := Stamp{Value: p.Value}
	if tz := p.ICalParameters[string(ical.ParameterTzid)]; len(tz) > 0 {
		s.TZID = tz[0]
	}
	return s
}
