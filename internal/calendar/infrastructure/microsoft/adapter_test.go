package microsoft_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/microsoft"
)

var (
	windowStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
)

func TestAdapter_FollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		assert.Equal(t, `outlook.timezone="UTC"`, r.Header.Get("Prefer"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/me/calendarView":
			assert.Equal(t, "2024-03-04T00:00:00Z", r.URL.Query().Get("startDateTime"))
			assert.Equal(t, "2024-03-11T00:00:00Z", r.URL.Query().Get("endDateTime"))
			_, _ = fmt.Fprintf(w, `{
				"value": [{
					"id": "AAMk-1",
					"subject": "Planning",
					"start": {"dateTime": "2024-03-04T10:00:00.0000000", "timeZone": "UTC"},
					"end": {"dateTime": "2024-03-04T11:00:00.0000000", "timeZone": "UTC"},
					"showAs": "tentative",
					"type": "singleInstance"
				}],
				"@odata.nextLink": "%s/page2"
			}`, srv.URL)
		case "/page2":
			_, _ = fmt.Fprint(w, `{
				"value": [{
					"id": "AAMk-2",
					"subject": "Holiday",
					"start": {"dateTime": "2024-03-05T00:00:00.0000000", "timeZone": "UTC"},
					"end": {"dateTime": "2024-03-06T00:00:00.0000000", "timeZone": "UTC"},
					"isAllDay": true,
					"isCancelled": true,
					"showAs": "oof",
					"type": "occurrence",
					"seriesMasterId": "AAMk-series",
					"location": {"displayName": "Home"}
				}]
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	adapter := microsoft.NewAdapter(nil, nil, microsoft.WithBaseURL(srv.URL), microsoft.WithHTTPClient(srv.Client()))
	events, err := adapter.FetchEvents(context.Background(), domain.Credential{AccessToken: "graph-token"}, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "AAMk-1", events[0].ID)
	assert.Equal(t, "tentative", events[0].Transparency)
	assert.Equal(t, "2024-03-04T10:00:00.0000000", events[0].Start.DateTime)
	assert.False(t, events[0].Recurring)

	assert.True(t, events[1].AllDay)
	assert.True(t, events[1].Cancelled)
	assert.True(t, events[1].Recurring)
	assert.Equal(t, "Home", events[1].Location)
}

func TestAdapter_NamedCalendarPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/calendars/cal-42/calendarView", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"value": []}`)
	}))
	defer srv.Close()

	adapter := microsoft.NewAdapter([]string{"cal-42"}, nil, microsoft.WithBaseURL(srv.URL))
	events, err := adapter.FetchEvents(context.Background(), domain.Credential{AccessToken: "t"}, windowStart, windowEnd)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAdapter_ClassifiesStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:        domain.ErrAuthExpired,
		http.StatusForbidden:           domain.ErrPermissionDenied,
		http.StatusTooManyRequests:     domain.ErrRateLimited,
		http.StatusGatewayTimeout:      domain.ErrNetworkTimeout,
		http.StatusInternalServerError: domain.ErrUnknown,
	}
	for status, kind := range cases {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(status)
			}))
			defer srv.Close()

			adapter := microsoft.NewAdapter(nil, nil, microsoft.WithBaseURL(srv.URL))
			_, err := adapter.FetchEvents(context.Background(), domain.Credential{AccessToken: "t"}, windowStart, windowEnd)
			require.Error(t, err)
			assert.ErrorIs(t, err, kind)
		})
	}
}

func TestAdapter_TimeoutIsNetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	adapter := microsoft.NewAdapter(nil, nil, microsoft.WithBaseURL(srv.URL))
	_, err := adapter.FetchEvents(ctx, domain.Credential{AccessToken: "t"}, windowStart, windowEnd)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetworkTimeout)
}
