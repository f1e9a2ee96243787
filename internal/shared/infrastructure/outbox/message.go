// Package outbox stores domain events in the same transaction as the state
// change that produced them and forwards them to the bus afterwards.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/google/uuid"
)

// Message is one row of the outbox table.
type Message struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	RoutingKey    string
	// Payload is the JSON domain.Envelope handed to the bus unchanged.
	Payload       json.RawMessage
	CorrelationID string
	CreatedAt     time.Time

	// Delivery state, maintained by the Processor.
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage wraps event in an envelope and encodes it.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	env, err := domain.NewEnvelope(event)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return &Message{
		EventID:       env.EventID,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		RoutingKey:    env.RoutingKey,
		Payload:       payload,
		CorrelationID: env.CorrelationID,
		CreatedAt:     env.OccurredAt.UTC(),
	}, nil
}

// Pending reports whether the message still waits for delivery.
func (m *Message) Pending() bool {
	return m.PublishedAt == nil && m.DeadLetteredAt == nil
}
