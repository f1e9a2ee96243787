package persistence_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	"github.com/felixgeelhaar/rendezvous/internal/identity/infrastructure/persistence"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/migrations"
)

func setupTokenTestDB(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "identity.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn))
	return conn
}

func TestSQLiteTokenRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewTokenRepository(setupTokenTestDB(t))
	userID := uuid.New()
	expiry := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	err := repo.Save(ctx, domain.StoredToken{
		UserID:       userID,
		Provider:     calendarDomain.ProviderGoogle,
		AccessToken:  []byte{0x00, 0xff, 0x10},
		RefreshToken: []byte("sealed-refresh"),
		TokenType:    domain.TokenTypeBearer,
		Expiry:       expiry,
		Scopes:       []string{"calendar.readonly", "openid"},
	})
	require.NoError(t, err)

	got, err := repo.FindByUserAndProvider(ctx, userID, calendarDomain.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte{0x00, 0xff, 0x10}, got.AccessToken)
	assert.Equal(t, []byte("sealed-refresh"), got.RefreshToken)
	assert.Equal(t, domain.TokenTypeBearer, got.TokenType)
	assert.True(t, expiry.Equal(got.Expiry))
	assert.Equal(t, []string{"calendar.readonly", "openid"}, got.Scopes)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteTokenRepository_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewTokenRepository(setupTokenTestDB(t))
	userID := uuid.New()

	first := domain.StoredToken{
		UserID:      userID,
		Provider:    calendarDomain.ProviderLocal,
		AccessToken: []byte("one"),
		TokenType:   domain.TokenTypeBasic,
		Username:    "alice",
	}
	require.NoError(t, repo.Save(ctx, first))

	second := first
	second.AccessToken = []byte("two")
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.FindByUserAndProvider(ctx, userID, calendarDomain.ProviderLocal)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("two"), got.AccessToken)
	assert.Empty(t, got.RefreshToken)
	assert.True(t, got.IsBasic())
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.Expiry.IsZero())

	require.NoError(t, repo.Delete(ctx, userID, calendarDomain.ProviderLocal))
	require.NoError(t, repo.Delete(ctx, userID, calendarDomain.ProviderLocal))

	got, err = repo.FindByUserAndProvider(ctx, userID, calendarDomain.ProviderLocal)
	require.NoError(t, err)
	assert.Nil(t, got)
}
