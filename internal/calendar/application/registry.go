package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
)

// AdapterFactory builds an adapter for a user's provider connection.
type AdapterFactory func(ctx context.Context, conn domain.ProviderConnection) (ProviderAdapter, error)

// ProviderRegistry maps provider types to adapter factories. Factories are
// registered explicitly at start-up; nothing is looked up by name later.
type ProviderRegistry struct {
	mu        sync.RWMutex
	factories map[domain.ProviderType]AdapterFactory
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: make(map[domain.ProviderType]AdapterFactory)}
}

// Register sets the factory for a provider type, replacing any previous one.
func (r *ProviderRegistry) Register(provider domain.ProviderType, factory AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

// CreateAdapter builds the adapter for a connection.
func (r *ProviderRegistry) CreateAdapter(ctx context.Context, conn domain.ProviderConnection) (ProviderAdapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[conn.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotConfigured, conn.Provider)
	}
	return factory(ctx, conn)
}

// HasProvider returns true if a factory is registered.
func (r *ProviderRegistry) HasProvider(provider domain.ProviderType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[provider]
	return ok
}

// SupportedProviders returns the registered provider types in stable order.
func (r *ProviderRegistry) SupportedProviders() []domain.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]domain.ProviderType, 0, len(r.factories))
	for p := range r.factories {
		providers = append(providers, p)
	}
	domain.SortProviders(providers)
	return providers
}
