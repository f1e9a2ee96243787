package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	sharedDomain "github.com/felixgeelhaar/rendezvous/internal/shared/domain"
)

// AuthExpiredSubscriber pauses a provider connection once its credential is
// rejected, so scheduled cycles stop hammering it until the user reconnects.
type AuthExpiredSubscriber struct {
	connections domain.ConnectionRepository
	logger      *slog.Logger
}

// NewAuthExpiredSubscriber creates a new subscriber.
func NewAuthExpiredSubscriber(connections domain.ConnectionRepository, logger *slog.Logger) *AuthExpiredSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthExpiredSubscriber{connections: connections, logger: logger}
}

// EventTypes returns the routing keys this subscriber handles.
func (s *AuthExpiredSubscriber) EventTypes() []string {
	return []string{domain.RoutingKeyProviderSyncFailed}
}

// Handle processes a provider sync failure.
func (s *AuthExpiredSubscriber) Handle(ctx context.Context, env sharedDomain.Envelope) error {
	if env.RoutingKey != domain.RoutingKeyProviderSyncFailed {
		return nil
	}

	var payload struct {
		Provider domain.ProviderType `json:"provider"`
		Kind     string              `json:"kind"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal sync failure: %w", err)
	}
	if payload.Kind != domain.KindName(domain.ErrAuthExpired) {
		return nil
	}

	userID := env.AggregateID
	conns, err := s.connections.FindByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load connections: %w", err)
	}
	conn, ok := conns[payload.Provider]
	if !ok || !conn.Enabled {
		return nil
	}

	conn.Enabled = false
	if err := s.connections.Save(ctx, conn); err != nil {
		return fmt.Errorf("failed to pause connection: %w", err)
	}

	s.logger.Warn("provider connection paused after expired authorization",
		"user_id", userID,
		"provider", payload.Provider,
	)
	return nil
}
