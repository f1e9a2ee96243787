package google_test

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
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/google"
)

var (
	windowStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
)

func newAdapter(srv *httptest.Server, calendars ...string) *google.Adapter {
	return google.NewAdapter(calendars, nil,
		google.WithEndpoint(srv.URL+"/"),
		google.WithHTTPClient(srv.Client()),
	)
}

func TestAdapter_FetchEventsFollowsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "2024-03-04T00:00:00Z", r.URL.Query().Get("timeMin"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = fmt.Fprint(w, `{
				"timeZone": "Europe/Berlin",
				"nextPageToken": "p2",
				"items": [{
					"id": "evt-1",
					"summary": "Standup",
					"status": "confirmed",
					"start": {"dateTime": "2024-03-04T09:00:00+01:00"},
					"end": {"dateTime": "2024-03-04T09:30:00+01:00"}
				}]
			}`)
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
		_, _ = fmt.Fprint(w, `{
			"items": [{
				"id": "evt-2_20240305",
				"summary": "Offsite",
				"transparency": "transparent",
				"recurringEventId": "evt-2",
				"start": {"date": "2024-03-05"},
				"end": {"date": "2024-03-06"}
			}]
		}`)
	}))
	defer srv.Close()

	events, err := newAdapter(srv).FetchEvents(context.Background(), domain.Credential{AccessToken: "access-1"}, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, "primary", events[0].CalendarID)
	assert.Equal(t, "2024-03-04T09:00:00+01:00", events[0].Start.DateTime)
	assert.Equal(t, "Europe/Berlin", events[0].Start.TimeZone)
	assert.False(t, events[0].Recurring)

	assert.Equal(t, "2024-03-05", events[1].Start.Date)
	assert.Equal(t, "transparent", events[1].Transparency)
	assert.True(t, events[1].Recurring)
}

func TestAdapter_ReadsEveryCalendar(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"items": []}`)
	}))
	defer srv.Close()

	_, err := newAdapter(srv, "work", "home").FetchEvents(context.Background(), domain.Credential{AccessToken: "a"}, windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, []string{"/calendars/work/events", "/calendars/home/events"}, paths)
}

func TestAdapter_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"invalid credentials"}}`, domain.ErrAuthExpired},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"forbidden","errors":[{"reason":"forbidden"}]}}`, domain.ErrPermissionDenied},
		{"quota", http.StatusForbidden, `{"error":{"code":403,"message":"slow down","errors":[{"reason":"rateLimitExceeded"}]}}`, domain.ErrRateLimited},
		{"throttled", http.StatusTooManyRequests, `{"error":{"code":429,"message":"slow down"}}`, domain.ErrRateLimited},
		{"server", http.StatusBadRequest, `{"error":{"code":400,"message":"bad"}}`, domain.ErrUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			_, err := newAdapter(srv).FetchEvents(context.Background(), domain.Credential{AccessToken: "a"}, windowStart, windowEnd)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, domain.ProviderGoogle, pe.Provider)
		})
	}
}
