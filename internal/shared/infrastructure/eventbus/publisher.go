package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/rendezvous/internal/shared/domain"
)

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	// Publish sends a message to the event bus.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}

// DomainPublisher serializes domain events into envelopes and hands them to a Publisher.
type DomainPublisher struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewDomainPublisher wraps a Publisher.
func NewDomainPublisher(publisher Publisher, logger *slog.Logger) *DomainPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DomainPublisher{publisher: publisher, logger: logger}
}

// PublishEvents publishes every event and joins the failures.
func (p *DomainPublisher) PublishEvents(ctx context.Context, events ...domain.DomainEvent) error {
	var errs []error
	for _, event := range events {
		env, err := domain.NewEnvelope(event)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", event.RoutingKey(), err))
			continue
		}
		body, err := json.Marshal(env)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s: %w", event.RoutingKey(), err))
			continue
		}
		if err := p.publisher.Publish(ctx, env.RoutingKey, body); err != nil {
			p.logger.Warn("failed to publish domain event",
				"routing_key", env.RoutingKey,
				"event_id", env.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopPublisher is a no-op publisher for testing/development.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the message but doesn't actually publish.
func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish",
		"routing_key", routingKey,
		"size", len(payload),
	)
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}

// Fanout hands every message to several publishers, e.g. the broker and
// the local bus.
type Fanout []Publisher

// Publish sends to every publisher and joins the failures.
func (f Fanout) Publish(ctx context.Context, routingKey string, payload []byte) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, routingKey, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
