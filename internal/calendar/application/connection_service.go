package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	sharedApplication "github.com/felixgeelhaar/rendezvous/internal/shared/application"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/lock"
	"github.com/google/uuid"
)

// UnitOfWork groups the writes of one connection change.
type UnitOfWork = sharedApplication.UnitOfWork

// CredentialStore keeps provider secrets.
type CredentialStore interface {
	// StoreCredential saves the credential and, for OAuth providers, the
	// refresh token used to renew it.
	StoreCredential(ctx context.Context, userID uuid.UUID, provider domain.ProviderType, cred domain.Credential, refreshToken string) error
}

// ConnectProviderCommand contains the data needed to connect a provider.
type ConnectProviderCommand struct {
	UserID      uuid.UUID
	Provider    domain.ProviderType
	CalendarIDs []string
	// SourceURL is an ICS file path or URL, or a CalDAV endpoint.
	SourceURL string
	Username  string
	// Secret is a CalDAV password or a pre-issued access token.
	Secret       string
	RefreshToken string
	Expiry       time.Time
}

// DisconnectResult is the result of disconnecting a provider.
type DisconnectResult struct {
	Provider      domain.ProviderType
	EventsRemoved int
	SyncCancelled bool
}

// SyncCanceller stops in-flight runs of a user.
type SyncCanceller interface {
	Cancel(userID uuid.UUID) bool
}

// ConnectionService manages the providers connected by a user.
type ConnectionService struct {
	connections domain.ConnectionRepository
	events      domain.EventRepository
	cursors     domain.SyncCursorRepository
	tokens      TokenService
	credentials CredentialStore
	syncs       SyncCanceller
	locker      lock.Locker
	publisher   EventPublisher
	uow         UnitOfWork
	logger      *slog.Logger
	clock       func() time.Time
}

// ConnectionServiceDeps groups the collaborators of a ConnectionService.
// Credentials, Syncs, Publisher and UnitOfWork are optional.
type ConnectionServiceDeps struct {
	Connections domain.ConnectionRepository
	Events      domain.EventRepository
	Cursors     domain.SyncCursorRepository
	Tokens      TokenService
	Credentials CredentialStore
	Syncs       SyncCanceller
	Locker      lock.Locker
	Publisher   EventPublisher
	UnitOfWork  UnitOfWork
	Logger      *slog.Logger
}

// NewConnectionService creates a ConnectionService. The locker must be the
// one handed to the Reconciler so a disconnect waits for a running reconcile.
func NewConnectionService(deps ConnectionServiceDeps) *ConnectionService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyedMutex()
	}
	return &ConnectionService{
		connections: deps.Connections,
		events:      deps.Events,
		cursors:     deps.Cursors,
		tokens:      deps.Tokens,
		credentials: deps.Credentials,
		syncs:       deps.Syncs,
		locker:      deps.Locker,
		publisher:   deps.Publisher,
		uow:         deps.UnitOfWork,
		logger:      deps.Logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Connect stores a connection and its secret. Connecting an already
// connected provider replaces its settings.
func (s *ConnectionService) Connect(ctx context.Context, cmd ConnectProviderCommand) (*domain.ProviderConnection, error) {
	if !cmd.Provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProviderType, cmd.Provider)
	}
	if cmd.Provider == domain.ProviderLocal && strings.TrimSpace(cmd.SourceURL) == "" {
		return nil, fmt.Errorf("local provider requires a source URL")
	}

	conn := domain.ProviderConnection{
		UserID:      cmd.UserID,
		Provider:    cmd.Provider,
		Enabled:     true,
		CalendarIDs: cmd.CalendarIDs,
		SourceURL:   cmd.SourceURL,
		Username:    cmd.Username,
		UpdatedAt:   s.clock(),
	}

	err := s.inTx(ctx, "connect_provider", func(txCtx context.Context) error {
		if err := s.connections.Save(txCtx, conn); err != nil {
			return fmt.Errorf("failed to save connection: %w", err)
		}
		if cmd.Secret == "" || s.credentials == nil {
			return nil
		}
		cred := domain.Credential{
			AccessToken: cmd.Secret,
			TokenType:   "Bearer",
			Expiry:      cmd.Expiry,
			Username:    cmd.Username,
		}
		if cmd.Username != "" && !cmd.Provider.RequiresOAuth() {
			cred.TokenType = "Basic"
		}
		if err := s.credentials.StoreCredential(txCtx, cmd.UserID, cmd.Provider, cred, cmd.RefreshToken); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("provider connected", "user_id", cmd.UserID, "provider", cmd.Provider)
	return &conn, nil
}

// List returns the user's connections.
func (s *ConnectionService) List(ctx context.Context, userID uuid.UUID) (domain.ProviderConnections, error) {
	return s.connections.FindByUser(ctx, userID)
}

// Disconnect cancels any in-flight sync of the user, forgets the provider's
// credential and removes its connection, cursor and stored events. After it
// returns no older run writes events of the provider again.
func (s *ConnectionService) Disconnect(ctx context.Context, userID uuid.UUID, provider domain.ProviderType) (*DisconnectResult, error) {
	result := &DisconnectResult{Provider: provider}
	if s.syncs != nil {
		result.SyncCancelled = s.syncs.Cancel(userID)
	}

	release, err := s.locker.Acquire(ctx, lockKey(userID, provider))
	if err != nil {
		return nil, fmt.Errorf("failed to lock provider: %w", err)
	}
	defer release()

	err = s.inTx(ctx, "disconnect_provider", func(txCtx context.Context) error {
		if s.tokens != nil {
			if err := s.tokens.Disconnect(txCtx, userID, provider); err != nil {
				return fmt.Errorf("failed to forget credential: %w", err)
			}
		}
		if err := s.connections.Delete(txCtx, userID, provider); err != nil {
			return fmt.Errorf("failed to delete connection: %w", err)
		}
		if err := s.cursors.Delete(txCtx, userID, provider); err != nil {
			return fmt.Errorf("failed to delete sync cursor: %w", err)
		}
		removed, err := s.events.DeleteByProvider(txCtx, userID, provider)
		if err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		result.EventsRemoved = removed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		evt := domain.NewProviderDisconnectedEvent(userID, provider, result.EventsRemoved)
		if err := s.publisher.PublishEvents(ctx, evt); err != nil {
			s.logger.Warn("failed to publish disconnect event", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("provider disconnected",
		"user_id", userID,
		"provider", provider,
		"events_removed", result.EventsRemoved,
		"sync_cancelled", result.SyncCancelled,
	)
	return result, nil
}

func (s *ConnectionService) inTx(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, fn)
	if err != nil {
		s.logger.Debug("transaction aborted",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}
	return err
}
