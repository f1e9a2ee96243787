package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	sharedCrypto "github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/crypto"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshThreshold is how close to expiry a token gets refreshed.
const DefaultRefreshThreshold = 5 * time.Minute

var (
	errNoCredential   = errors.New("no credential stored")
	errNoRefreshToken = errors.New("no refresh token")
	errNoOAuthClient  = errors.New("oauth client not configured")
)

// TokenService hands out valid provider credentials. Tokens that expire
// within the refresh threshold are renewed with a single refresh attempt;
// concurrent callers for the same (user, provider) share that attempt.
type TokenService struct {
	repo       domain.TokenRepository
	encrypter  sharedCrypto.Encrypter
	configs    map[calendarDomain.ProviderType]*oauth2.Config
	threshold  time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	clock      func() time.Time
	refreshes  singleflight.Group
}

// TokenServiceOption configures a TokenService.
type TokenServiceOption func(*TokenService)

// WithOAuthClient registers the OAuth client of a provider. A nil config is ignored.
func WithOAuthClient(provider calendarDomain.ProviderType, cfg *oauth2.Config) TokenServiceOption {
	return func(s *TokenService) {
		if cfg != nil {
			s.configs[provider] = cfg
		}
	}
}

// WithRefreshThreshold overrides DefaultRefreshThreshold.
func WithRefreshThreshold(d time.Duration) TokenServiceOption {
	return func(s *TokenService) {
		if d > 0 {
			s.threshold = d
		}
	}
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(client *http.Client) TokenServiceOption {
	return func(s *TokenService) { s.httpClient = client }
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.clock = clock }
}

// NewTokenService creates a token service.
func NewTokenService(repo domain.TokenRepository, encrypter sharedCrypto.Encrypter, logger *slog.Logger, opts ...TokenServiceOption) *TokenService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TokenService{
		repo:      repo,
		encrypter: encrypter,
		configs:   make(map[calendarDomain.ProviderType]*oauth2.Config),
		threshold: DefaultRefreshThreshold,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetValidToken returns a credential usable for the next provider call.
func (s *TokenService) GetValidToken(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (calendarDomain.Credential, error) {
	stored, token, err := s.load(ctx, userID, provider)
	if errors.Is(err, errNoCredential) && !provider.RequiresOAuth() {
		// Local feeds may be read without any secret.
		return calendarDomain.Credential{}, nil
	}
	if err != nil {
		return calendarDomain.Credential{}, err
	}

	cred := credentialFrom(stored, token)
	if stored.IsBasic() || !cred.ExpiresWithin(s.threshold, s.clock()) {
		return cred, nil
	}

	key := userID.String() + ":" + provider.String()
	v, err, shared := s.refreshes.Do(key, func() (any, error) {
		return s.refresh(ctx, userID, provider)
	})
	if err != nil {
		return calendarDomain.Credential{}, err
	}
	if shared {
		s.logger.Debug("joined in-flight token refresh", "user_id", userID, "provider", provider)
	}
	return v.(calendarDomain.Credential), nil
}

func (s *TokenService) refresh(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (calendarDomain.Credential, error) {
	// Another caller may have finished a refresh between our load and now.
	stored, token, err := s.load(ctx, userID, provider)
	if err != nil {
		return calendarDomain.Credential{}, err
	}
	if cred := credentialFrom(stored, token); !cred.ExpiresWithin(s.threshold, s.clock()) {
		return cred, nil
	}

	cfg := s.configs[provider]
	if cfg == nil {
		return calendarDomain.Credential{}, calendarDomain.NewProviderError(provider, calendarDomain.ErrAuthExpired, errNoOAuthClient)
	}
	if token.RefreshToken == "" {
		return calendarDomain.Credential{}, calendarDomain.NewProviderError(provider, calendarDomain.ErrAuthExpired, errNoRefreshToken)
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	// A token without an access token is never valid, so this performs
	// exactly one refresh request.
	fresh, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken}).Token()
	if err != nil {
		s.logger.Warn("token refresh failed",
			slog.String("user_id", userID.String()),
			slog.String("provider", provider.String()),
			slog.String("error", err.Error()),
		)
		return calendarDomain.Credential{}, calendarDomain.NewProviderError(provider, calendarDomain.ErrAuthExpired, fmt.Errorf("refresh: %w", err))
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}

	if err := s.save(ctx, userID, provider, fresh, stored.Username, stored.Scopes); err != nil {
		return calendarDomain.Credential{}, fmt.Errorf("store refreshed token: %w", err)
	}

	s.logger.Info("refreshed provider token",
		slog.String("user_id", userID.String()),
		slog.String("provider", provider.String()),
		slog.Time("expiry", fresh.Expiry),
	)
	return calendarDomain.Credential{
		AccessToken: fresh.AccessToken,
		TokenType:   fresh.Type(),
		Expiry:      fresh.Expiry,
	}, nil
}

// StoreCredential seals and saves a credential obtained out of band.
func (s *TokenService) StoreCredential(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType, cred calendarDomain.Credential, refreshToken string) error {
	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		TokenType:    cred.TokenType,
		RefreshToken: refreshToken,
		Expiry:       cred.Expiry,
	}
	var scopes []string
	if cfg := s.configs[provider]; cfg != nil {
		scopes = cfg.Scopes
	}
	return s.save(ctx, userID, provider, token, cred.Username, scopes)
}

// Disconnect forgets the stored credential.
func (s *TokenService) Disconnect(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) error {
	return s.repo.Delete(ctx, userID, provider)
}

// AuthURL returns the consent URL for provider.
func (s *TokenService) AuthURL(provider calendarDomain.ProviderType, state string) (string, error) {
	cfg := s.configs[provider]
	if cfg == nil {
		return "", fmt.Errorf("%s: %w", provider, errNoOAuthClient)
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a token and stores it.
func (s *TokenService) Exchange(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType, code string) error {
	cfg := s.configs[provider]
	if cfg == nil {
		return fmt.Errorf("%s: %w", provider, errNoOAuthClient)
	}
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return s.save(ctx, userID, provider, token, "", cfg.Scopes)
}

func (s *TokenService) load(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType) (*domain.StoredToken, *oauth2.Token, error) {
	stored, err := s.repo.FindByUserAndProvider(ctx, userID, provider)
	if err != nil {
		return nil, nil, fmt.Errorf("load credential: %w", err)
	}
	if stored == nil {
		return nil, nil, calendarDomain.NewProviderError(provider, calendarDomain.ErrAuthExpired, errNoCredential)
	}

	access, err := s.encrypter.Decrypt(stored.AccessToken)
	if err != nil {
		return nil, nil, calendarDomain.NewProviderError(provider, calendarDomain.ErrAuthExpired, fmt.Errorf("decrypt credential: %w", err))
	}
	token := &oauth2.Token{
		AccessToken: string(access),
		TokenType:   stored.TokenType,
		Expiry:      stored.Expiry,
	}
	if len(stored.RefreshToken) > 0 {
		refresh, err := s.encrypter.Decrypt(stored.RefreshToken)
		if err != nil {
			return nil, nil, calendarDomain.NewProviderError(provider, calendarDomain.ErrAuthExpired, fmt.Errorf("decrypt refresh token: %w", err))
		}
		token.RefreshToken = string(refresh)
	}
	return stored, token, nil
}

func (s *TokenService) save(ctx context.Context, userID uuid.UUID, provider calendarDomain.ProviderType, token *oauth2.Token, username string, scopes []string) error {
	access, err := s.encrypter.Encrypt([]byte(token.AccessToken))
	if err != nil {
		return err
	}
	var refresh []byte
	if token.RefreshToken != "" {
		if refresh, err = s.encrypter.Encrypt([]byte(token.RefreshToken)); err != nil {
			return err
		}
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = domain.TokenTypeBearer
	}
	now := s.clock().UTC()
	return s.repo.Save(ctx, domain.StoredToken{
		UserID:       userID,
		Provider:     provider,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
		Username:     username,
		Expiry:       token.Expiry,
		Scopes:       scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func credentialFrom(stored *domain.StoredToken, token *oauth2.Token) calendarDomain.Credential {
	return calendarDomain.Credential{
		AccessToken: token.AccessToken,
		TokenType:   stored.TokenType,
		Expiry:      token.Expiry,
		Username:    stored.Username,
	}
}
