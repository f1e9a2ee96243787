// Package microsoft reads events from Outlook calendars through Microsoft Graph.
package microsoft

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"
	pageSize       = 100
	// maxPages bounds paging against a server that keeps returning nextLinks.
	maxPages = 500
)

// Adapter implements the calendar provider adapter for Microsoft Graph.
type Adapter struct {
	calendarIDs []string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL points the adapter at another Graph root.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		if baseURL != "" {
			a.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the base client; the bearer token is layered on top.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.httpClient = client }
}

// NewAdapter creates an adapter reading the given calendars ("primary" is
// the user's default calendar).
func NewAdapter(calendarIDs []string, logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}
	a := &Adapter{calendarIDs: calendarIDs, baseURL: defaultBaseURL, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchEvents reads the calendar view, which expands recurring series, for the window.
func (a *Adapter) FetchEvents(ctx context.Context, cred domain.Credential, windowStart, windowEnd time.Time) ([]domain.RawEvent, error) {
	client := a.client(ctx, cred)

	var events []domain.RawEvent
	for _, calendarID := range a.calendarIDs {
		next := a.calendarViewURL(calendarID, windowStart, windowEnd)
		for page := 0; next != ""; page++ {
			if page >= maxPages {
				return nil, domain.NewProviderError(domain.ProviderMicrosoft, domain.ErrUnknown,
					fmt.Errorf("calendar %s: more than %d pages", calendarID, maxPages))
			}
			payload, err := a.fetchPage(ctx, client, next)
			if err != nil {
				return nil, err
			}
			for _, item := range payload.Value {
				events = append(events, item.toRawEvent(calendarID))
			}
			next = payload.NextLink
		}
	}
	a.logger.Debug("listed microsoft events", "total", len(events))
	return events, nil
}

func (a *Adapter) client(ctx context.Context, cred domain.Credential) *http.Client {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	}))
}

func (a *Adapter) calendarViewURL(calendarID string, start, end time.Time) string {
	path := "/me/calendarView"
	if calendarID != "primary" {
		path = "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView"
	}
	params := url.Values{}
	params.Set("startDateTime", start.UTC().Format(time.RFC3339))
	params.Set("endDateTime", end.UTC().Format(time.RFC3339))
	params.Set("$top", fmt.Sprint(pageSize))
	params.Set("$select", "id,subject,bodyPreview,location,start,end,isAllDay,showAs,isCancelled,type,seriesMasterId")
	return a.baseURL + path + "?" + params.Encode()
}

func (a *Adapter) fetchPage(ctx context.Context, client *http.Client, pageURL string) (*viewPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, domain.NewProviderError(domain.ProviderMicrosoft, domain.ErrUnknown, err)
	}
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, infrastructure.ClassifyTransportError(domain.ProviderMicrosoft, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp)
	}

	var payload viewPage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.NewProviderError(domain.ProviderMicrosoft, domain.ErrUnknown, fmt.Errorf("decode calendar view: %w", err))
	}
	return &payload, nil
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("microsoft graph: status=%d body=%s", resp.StatusCode, string(body))
	if retry := resp.Header.Get("Retry-After"); retry != "" {
		err = fmt.Errorf("%w (retry after %ss)", err, retry)
	}
	return infrastructure.StatusError(domain.ProviderMicrosoft, resp.StatusCode, err)
}

type viewPage struct {
	Value    []msEvent `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

type msEvent struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject"`
	BodyPreview    string     `json:"bodyPreview"`
	Start          msDateTime `json:"start"`
	End            msDateTime `json:"end"`
	Location       msLocation `json:"location"`
	ShowAs         string     `json:"showAs"`
	IsAllDay       bool       `json:"isAllDay"`
	IsCancelled    bool       `json:"isCancelled"`
	Type           string     `json:"type"`
	SeriesMasterID string     `json:"seriesMasterId"`
}

type msDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type msLocation struct {
	DisplayName string `json:"displayName"`
}

func (e msEvent) toRawEvent(calendarID string) domain.RawEvent {
	start := domain.RawTime{DateTime: e.Start.DateTime, TimeZone: e.Start.TimeZone}
	end := domain.RawTime{DateTime: e.End.DateTime, TimeZone: e.End.TimeZone}
	return domain.RawEvent{
		ID:           e.ID,
		CalendarID:   calendarID,
		Title:        e.Subject,
		Description:  e.BodyPreview,
		Location:     e.Location.DisplayName,
		Start:        start,
		End:          end,
		AllDay:       e.IsAllDay,
		Transparency: e.ShowAs,
		Cancelled:    e.IsCancelled,
		Recurring:    e.SeriesMasterID != "" || e.Type == "occurrence" || e.Type == "exception",
	}
}
