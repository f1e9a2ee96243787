package oauth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/identity/application/oauth"
	"github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/crypto"
)

type memoryTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.StoredToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string]domain.StoredToken)}
}

func tokenKey(userID uuid.UUID, provider calendarDomain.ProviderType) string {
	return userID.String() + "/" + provider.String()
}

func (r *memoryTokenRepo) Save(_ context.Context, token domain.StoredToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenKey(token.UserID, token.Provider)] = token
	return nil
}

func (r *memoryTokenRepo) FindByUserAndProvider(_ context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (*domain.StoredToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenKey(userID, provider)]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

func (r *memoryTokenRepo) Delete(_ context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, tokenKey(userID, provider))
	return nil
}

func newEncrypter(t *testing.T) crypto.Encrypter {
	t.Helper()
	enc, err := crypto.NewAESGCM(make([]byte, crypto.KeySize))
	require.NoError(t, err)
	return enc
}

// tokenServer answers refresh_token grants. status != 200 makes it fail.
func tokenServer(t *testing.T, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		// Keep concurrent callers waiting on the same refresh.
		time.Sleep(50 * time.Millisecond)
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func oauthConfig(srv *httptest.Server) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"calendar"},
	}
}

func TestTokenService_ValidTokenIsReturnedWithoutRefresh(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int32
	srv := tokenServer(t, http.StatusOK, &hits)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	svc := oauth.NewTokenService(newMemoryTokenRepo(), newEncrypter(t), nil,
		oauth.WithOAuthClient(calendarDomain.ProviderGoogle, oauthConfig(srv)),
		oauth.WithClock(func() time.Time { return now }),
	)
	userID := uuid.New()
	require.NoError(t, svc.StoreCredential(ctx, userID, calendarDomain.ProviderGoogle, calendarDomain.Credential{
		AccessToken: "access-1",
		Expiry:      now.Add(time.Hour),
	}, "refresh-1"))

	cred, err := svc.GetValidToken(ctx, userID, calendarDomain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, int32(0), hits.Load())
}

func TestTokenService_ConcurrentCallersShareOneRefresh(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int32
	srv := tokenServer(t, http.StatusOK, &hits)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	repo := newMemoryTokenRepo()

	svc := oauth.NewTokenService(repo, newEncrypter(t), nil,
		oauth.WithOAuthClient(calendarDomain.ProviderGoogle, oauthConfig(srv)),
		oauth.WithHTTPClient(srv.Client()),
		oauth.WithClock(func() time.Time { return now }),
	)
	userID := uuid.New()
	require.NoError(t, svc.StoreCredential(ctx, userID, calendarDomain.ProviderGoogle, calendarDomain.Credential{
		AccessToken: "access-1",
		Expiry:      now.Add(time.Minute),
	}, "refresh-1"))

	var wg sync.WaitGroup
	results := make([]calendarDomain.Credential, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetValidToken(ctx, userID, calendarDomain.ProviderGoogle)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-2", results[i].AccessToken)
	}
	assert.Equal(t, int32(1), hits.Load())

	// The refresh token is kept when the server does not rotate it.
	stored, err := repo.FindByUserAndProvider(ctx, userID, calendarDomain.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.RefreshToken)
}

func TestTokenService_FailedRefreshIsAuthExpired(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int32
	srv := tokenServer(t, http.StatusBadRequest, &hits)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	svc := oauth.NewTokenService(newMemoryTokenRepo(), newEncrypter(t), nil,
		oauth.WithOAuthClient(calendarDomain.ProviderMicrosoft, oauthConfig(srv)),
		oauth.WithClock(func() time.Time { return now }),
	)
	userID := uuid.New()
	require.NoError(t, svc.StoreCredential(ctx, userID, calendarDomain.ProviderMicrosoft, calendarDomain.Credential{
		AccessToken: "access-1",
		Expiry:      now.Add(-time.Minute),
	}, "refresh-1"))

	_, err := svc.GetValidToken(ctx, userID, calendarDomain.ProviderMicrosoft)
	require.Error(t, err)
	assert.ErrorIs(t, err, calendarDomain.ErrAuthExpired)
	assert.Equal(t, int32(1), hits.Load())
}

func TestTokenService_MissingCredential(t *testing.T) {
	svc := oauth.NewTokenService(newMemoryTokenRepo(), newEncrypter(t), nil)

	_, err := svc.GetValidToken(context.Background(), uuid.New(), calendarDomain.ProviderGoogle)
	assert.ErrorIs(t, err, calendarDomain.ErrAuthExpired)
}

func TestTokenService_BasicCredentialNeverRefreshes(t *testing.T) {
	ctx := context.Background()
	svc := oauth.NewTokenService(newMemoryTokenRepo(), newEncrypter(t), nil)
	userID := uuid.New()

	require.NoError(t, svc.StoreCredential(ctx, userID, calendarDomain.ProviderLocal, calendarDomain.Credential{
		AccessToken: "app-password",
		TokenType:   domain.TokenTypeBasic,
		Username:    "alice",
	}, ""))

	cred, err := svc.GetValidToken(ctx, userID, calendarDomain.ProviderLocal)
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, "app-password", cred.AccessToken)

	require.NoError(t, svc.Disconnect(ctx, userID, calendarDomain.ProviderLocal))
	cred, err = svc.GetValidToken(ctx, userID, calendarDomain.ProviderLocal)
	require.NoError(t, err)
	assert.True(t, cred.IsEmpty())
}

func TestTokenService_AuthURLRequiresClient(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, http.StatusOK, &hits)
	svc := oauth.NewTokenService(newMemoryTokenRepo(), newEncrypter(t), nil,
		oauth.WithOAuthClient(calendarDomain.ProviderGoogle, oauthConfig(srv)),
	)

	url, err := svc.AuthURL(calendarDomain.ProviderGoogle, "state-1")
	require.NoError(t, err)
	assert.Contains(t, url, "state=state-1")
	assert.Contains(t, url, "access_type=offline")

	_, err = svc.AuthURL(calendarDomain.ProviderMicrosoft, "state-1")
	assert.Error(t, err)
}
