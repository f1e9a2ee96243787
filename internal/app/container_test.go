package app_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/internal/app"
	calendarApp "github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/rendezvous/pkg/config"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		AppEnv:                "test",
		SQLitePath:            filepath.Join(dir, "rendezvous.db"),
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       10,
		OutboxMaxRetries:      3,
		OutboxRetentionDays:   1,
		SyncSchedule:          "@every 1h",
		SyncLookBehindDays:    1,
		SyncLookAheadDays:     7,
		SyncFullResync:        24 * time.Hour,
		SyncStaleAfter:        time.Hour,
		SyncConcurrency:       2,
		ProviderFetchTimeout:  5 * time.Second,
		TokenRefreshThreshold: 5 * time.Minute,
		SyncNotifyChannel:     "calendar_sync_requests",
		ICSWatchEnabled:       true,
	}
}

func newContainer(t *testing.T) (*app.Container, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := app.NewContainer(context.Background(), testConfig(dir), nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, dir
}

func writeCalendar(t *testing.T, dir string, start time.Time) string {
	t.Helper()
	body := fmt.Sprintf("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n"+
		"BEGIN:VEVENT\r\nUID:review\r\nSUMMARY:Design review\r\nDTSTART:%s\r\nDTEND:%s\r\nEND:VEVENT\r\n"+
		"END:VCALENDAR\r\n",
		start.Format("20060102T150405Z"), start.Add(time.Hour).Format("20060102T150405Z"))
	path := filepath.Join(dir, "work.ics")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewContainer_SQLiteWiresEveryService(t *testing.T) {
	c, dir := newContainer(t)

	assert.Equal(t, database.DriverSQLite, c.DB.Driver())
	assert.Nil(t, c.RedisClient)
	assert.NotNil(t, c.Sync)
	assert.NotNil(t, c.Connections)
	assert.NotNil(t, c.Availability)
	assert.NotNil(t, c.MutualAvailability)
	assert.NotNil(t, c.Importer)
	assert.NotNil(t, c.SyncWorker)
	assert.ElementsMatch(t,
		[]calendarDomain.ProviderType{calendarDomain.ProviderGoogle, calendarDomain.ProviderMicrosoft, calendarDomain.ProviderLocal},
		c.Providers.SupportedProviders(),
	)
	assert.Nil(t, c.NewSyncListener())
	assert.NoError(t, c.NotifySync(context.Background(), uuid.New()))

	_, err := os.Stat(filepath.Join(dir, "credentials.key"))
	assert.NoError(t, err)
}

func TestContainer_SyncsLocalCalendarFile(t *testing.T) {
	c, dir := newContainer(t)
	ctx := context.Background()
	userID := uuid.New()

	start := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	path := writeCalendar(t, dir, start)

	_, err := c.Connections.Connect(ctx, calendarApp.ConnectProviderCommand{
		UserID:    userID,
		Provider:  calendarDomain.ProviderLocal,
		SourceURL: path,
	})
	require.NoError(t, err)

	report, err := c.Sync.SyncUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total.Created)
	assert.Empty(t, report.Failed())

	events, err := c.Calendar.Events.ListUserEvents(ctx, userID, start.Add(-time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Design review", events[0].Title)
	assert.True(t, events[0].Start.Equal(start))

	c.FlushEvents(ctx)

	watcher, err := c.NewSourceWatcher(ctx)
	require.NoError(t, err)
	require.NotNil(t, watcher)
	assert.NoError(t, watcher.Close())

	result, err := c.Connections.Disconnect(ctx, userID, calendarDomain.ProviderLocal)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsRemoved)
}
