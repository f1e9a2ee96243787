package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	sharedDomain "github.com/felixgeelhaar/rendezvous/internal/shared/domain"
	"github.com/google/uuid"
)

type fakeAdapter struct {
	mu     sync.Mutex
	events []domain.RawEvent
	err    error
	delay  time.Duration
	calls  int
	// block, when set, holds FetchEvents until the context ends.
	block bool
}

func (a *fakeAdapter) FetchEvents(ctx context.Context, _ domain.Credential, _, _ time.Time) ([]domain.RawEvent, error) {
	a.mu.Lock()
	a.calls++
	events, err, delay, block := a.events, a.err, a.delay, a.block
	a.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (a *fakeAdapter) setEvents(events ...domain.RawEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = events
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeTokens struct {
	mu           sync.Mutex
	errs         map[domain.ProviderType]error
	disconnected []domain.ProviderType
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{errs: make(map[domain.ProviderType]error)}
}

func (t *fakeTokens) GetValidToken(_ context.Context, _ uuid.UUID, provider domain.ProviderType) (domain.Credential, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.errs[provider]; err != nil {
		return domain.Credential{}, err
	}
	return domain.Credential{AccessToken: "token-" + string(provider), TokenType: "Bearer"}, nil
}

func (t *fakeTokens) Disconnect(_ context.Context, _ uuid.UUID, provider domain.ProviderType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected = append(t.disconnected, provider)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sharedDomain.DomainEvent
}

func (p *recordingPublisher) PublishEvents(_ context.Context, events ...sharedDomain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.RoutingKey())
	}
	return keys
}

func registryFor(adapters map[domain.ProviderType]*fakeAdapter) *application.ProviderRegistry {
	registry := application.NewProviderRegistry()
	for provider, adapter := range adapters {
		registry.Register(provider, func(context.Context, domain.ProviderConnection) (application.ProviderAdapter, error) {
			return adapter, nil
		})
	}
	return registry
}

func timed(id, start, end string) domain.RawEvent {
	return domain.RawEvent{
		ID:    id,
		Title: id,
		Start: domain.RawTime{DateTime: start},
		End:   domain.RawTime{DateTime: end},
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func canonical(userID uuid.UUID, provider domain.ProviderType, pid, start, end string) domain.Event {
	return domain.Event{
		ID:              domain.EventID(userID, provider, pid),
		UserID:          userID,
		Provider:        provider,
		ProviderEventID: pid,
		Title:           pid,
		Start:           mustTime(start),
		End:             mustTime(end),
		Timezone:        "UTC",
		Availability:    domain.AvailabilityBusy,
		Status:          domain.StatusConfirmed,
	}
}
