package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/rendezvous/internal/shared/domain"
)

// Handler reacts to a published envelope.
type Handler func(ctx context.Context, env domain.Envelope) error

// AllEvents subscribes a handler to every routing key.
const AllEvents = "#"

// InProcessBus delivers events synchronously to local handlers. It is used
// when no broker is configured.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// NewInProcessBus creates an empty bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{handlers: make(map[string][]Handler), logger: logger}
}

// Subscribe registers h for routingKey, or for everything with AllEvents.
func (b *InProcessBus) Subscribe(routingKey string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], h)
}

// Publish decodes the envelope and runs the matching handlers. Handler
// failures are logged, never returned.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Error("failed to unmarshal event payload", "routing_key", routingKey, "error", err)
		return nil
	}
	if env.RoutingKey == "" {
		env.RoutingKey = routingKey
	}

	b.mu.RLock()
	handlers := append(append([]Handler(nil), b.handlers[routingKey]...), b.handlers[AllEvents]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, env); err != nil {
			b.logger.Error("event handler failed",
				"routing_key", routingKey,
				"event_id", env.EventID,
				"error", err,
			)
		}
	}
	return nil
}

// Close is a no-op.
func (b *InProcessBus) Close() error {
	return nil
}
