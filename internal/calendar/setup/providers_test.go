package setup_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/caldav"
	googleCal "github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/google"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/ics"
	microsoftCal "github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/microsoft"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/setup"
)

func TestRegisterProviders_AllProviders(t *testing.T) {
	registry := application.NewProviderRegistry()
	setup.RegisterProviders(registry, setup.ProviderConfig{})

	assert.True(t, registry.HasProvider(domain.ProviderGoogle))
	assert.True(t, registry.HasProvider(domain.ProviderMicrosoft))
	assert.True(t, registry.HasProvider(domain.ProviderLocal))
	assert.Len(t, registry.SupportedProviders(), 3)
}

func TestRegisterProviders_CreatesAdapters(t *testing.T) {
	registry := application.NewProviderRegistry()
	setup.RegisterProviders(registry, setup.ProviderConfig{})
	ctx := context.Background()
	userID := uuid.New()

	adapter, err := registry.CreateAdapter(ctx, domain.ProviderConnection{UserID: userID, Provider: domain.ProviderGoogle})
	require.NoError(t, err)
	assert.IsType(t, &googleCal.Adapter{}, adapter)

	adapter, err = registry.CreateAdapter(ctx, domain.ProviderConnection{UserID: userID, Provider: domain.ProviderMicrosoft})
	require.NoError(t, err)
	assert.IsType(t, &microsoftCal.Adapter{}, adapter)

	adapter, err = registry.CreateAdapter(ctx, domain.ProviderConnection{
		UserID:    userID,
		Provider:  domain.ProviderLocal,
		SourceURL: "/tmp/work.ics",
	})
	require.NoError(t, err)
	assert.IsType(t, &ics.Adapter{}, adapter)
}

func TestNewLocalAdapter(t *testing.T) {
	t.Run("username selects caldav", func(t *testing.T) {
		adapter, err := setup.NewLocalAdapter(domain.ProviderConnection{
			Provider: domain.ProviderLocal,
			Username: "ada@example.com",
		}, nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &caldav.Adapter{}, adapter)
	})

	t.Run("url without username is an ics feed", func(t *testing.T) {
		adapter, err := setup.NewLocalAdapter(domain.ProviderConnection{
			Provider:  domain.ProviderLocal,
			SourceURL: "https://example.com/feed.ics",
		}, nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &ics.Adapter{}, adapter)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := setup.NewLocalAdapter(domain.ProviderConnection{Provider: domain.ProviderLocal}, nil, nil)
		assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
	})
}
