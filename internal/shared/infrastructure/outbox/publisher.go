package outbox

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/rendezvous/internal/shared/domain"
)

// Publisher writes domain events to the outbox instead of the bus. Called
// inside a unit of work, the events commit or roll back with the state change.
type Publisher struct {
	repo Repository
}

// NewPublisher creates an outbox-backed event publisher.
func NewPublisher(repo Repository) *Publisher {
	return &Publisher{repo: repo}
}

// PublishEvents stores the events for the processor to forward.
func (p *Publisher) PublishEvents(ctx context.Context, events ...domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return fmt.Errorf("encode %s: %w", event.RoutingKey(), err)
		}
		msgs = append(msgs, msg)
	}
	return p.repo.Save(ctx, msgs...)
}
