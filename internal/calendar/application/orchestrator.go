package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// OrchestratorConfig configures provider fetching.
type OrchestratorConfig struct {
	// FetchTimeout bounds each provider call independently.
	FetchTimeout time.Duration

	// BreakerFailureThreshold is the number of consecutive provider-side
	// failures that opens a provider's circuit.
	BreakerFailureThreshold uint32

	// BreakerOpenTimeout is how long an open circuit rejects calls.
	BreakerOpenTimeout time.Duration

	// BreakerInterval resets the failure counts of a closed circuit.
	BreakerInterval time.Duration
}

// DefaultOrchestratorConfig returns a 30s per-provider timeout and a circuit
// that opens after 5 consecutive failures for one minute.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		FetchTimeout:            30 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      time.Minute,
		BreakerInterval:         5 * time.Minute,
	}
}

// FetchResult holds per-provider events and errors of one FetchAll call.
// A provider appears in at most one of the two maps.
type FetchResult struct {
	mu      sync.Mutex
	Events  map[domain.ProviderType][]domain.Event
	Errors  map[domain.ProviderType]error
	Skipped map[domain.ProviderType]int
}

// NewFetchResult creates an empty result.
func NewFetchResult() *FetchResult {
	return &FetchResult{
		Events:  make(map[domain.ProviderType][]domain.Event),
		Errors:  make(map[domain.ProviderType]error),
		Skipped: make(map[domain.ProviderType]int),
	}
}

// AddEvents records a provider's normalized events.
func (r *FetchResult) AddEvents(provider domain.ProviderType, events []domain.Event, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events[provider] = events
	if skipped > 0 {
		r.Skipped[provider] = skipped
	}
}

// AddError records a provider's failure.
func (r *FetchResult) AddError(provider domain.ProviderType, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors[provider] = err
}

// HasErrors returns true if any provider failed.
func (r *FetchResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// SucceededProviders returns the providers that returned events, in stable order.
func (r *FetchResult) SucceededProviders() []domain.ProviderType {
	providers := make([]domain.ProviderType, 0, len(r.Events))
	for p := range r.Events {
		providers = append(providers, p)
	}
	domain.SortProviders(providers)
	return providers
}

// FetchOrchestrator fetches and normalizes events from many providers at once.
type FetchOrchestrator struct {
	registry    *ProviderRegistry
	connections domain.ConnectionRepository
	tokens      TokenService
	normalizer  *Normalizer
	config      OrchestratorConfig
	logger      *slog.Logger
	metrics     observability.Metrics

	breakersMu sync.Mutex
	breakers   map[domain.ProviderType]*gobreaker.CircuitBreaker[[]domain.RawEvent]
}

// NewFetchOrchestrator creates a FetchOrchestrator.
func NewFetchOrchestrator(
	registry *ProviderRegistry,
	connections domain.ConnectionRepository,
	tokens TokenService,
	config OrchestratorConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *FetchOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultOrchestratorConfig().FetchTimeout
	}
	if config.BreakerFailureThreshold == 0 {
		config.BreakerFailureThreshold = DefaultOrchestratorConfig().BreakerFailureThreshold
	}
	return &FetchOrchestrator{
		registry:    registry,
		connections: connections,
		tokens:      tokens,
		normalizer:  NewNormalizer(),
		config:      config,
		logger:      logger,
		metrics:     metrics,
		breakers:    make(map[domain.ProviderType]*gobreaker.CircuitBreaker[[]domain.RawEvent]),
	}
}

// FetchAll fetches every provider concurrently. One provider failing never
// affects the others; its error lands in the result's Errors map. The
// returned error is only set when the user's connections cannot be read.
func (o *FetchOrchestrator) FetchAll(ctx context.Context, userID uuid.UUID, providers []domain.ProviderType, window domain.TimeWindow) (*FetchResult, error) {
	conns, err := o.connections.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider connections: %w", err)
	}

	result := NewFetchResult()
	var wg sync.WaitGroup
	for _, provider := range providers {
		conn, ok := conns[provider]
		if !ok {
			result.AddError(provider, domain.NewProviderError(provider, domain.ErrUnknown, domain.ErrProviderNotConfigured))
			continue
		}

		wg.Add(1)
		go func(conn domain.ProviderConnection) {
			defer wg.Done()
			events, skipped, err := o.fetchProvider(ctx, userID, conn, window)
			if err != nil {
				o.logger.Warn("provider fetch failed",
					"user_id", userID,
					"provider", conn.Provider,
					"kind", domain.KindName(err),
					"error", err,
				)
				result.AddError(conn.Provider, err)
				return
			}
			result.AddEvents(conn.Provider, events, skipped)
		}(conn)
	}
	wg.Wait()

	return result, nil
}

func (o *FetchOrchestrator) fetchProvider(ctx context.Context, userID uuid.UUID, conn domain.ProviderConnection, window domain.TimeWindow) ([]domain.Event, int, error) {
	provider := conn.Provider
	start := time.Now()
	tags := []observability.Tag{observability.T("provider", string(provider))}
	defer func() {
		o.metrics.Timing(observability.MetricFetchDuration, time.Since(start), tags...)
	}()

	cred, err := o.tokens.GetValidToken(ctx, userID, provider)
	if err != nil {
		o.metrics.Counter(observability.MetricFetchFailed, 1, tags...)
		return nil, 0, classify(provider, err)
	}

	adapter, err := o.registry.CreateAdapter(ctx, conn)
	if err != nil {
		o.metrics.Counter(observability.MetricFetchFailed, 1, tags...)
		return nil, 0, classify(provider, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.config.FetchTimeout)
	defer cancel()

	raws, err := o.breaker(provider).Execute(func() ([]domain.RawEvent, error) {
		return adapter.FetchEvents(fetchCtx, cred, window.Start, window.End)
	})
	if err != nil {
		o.metrics.Counter(observability.MetricFetchFailed, 1, tags...)
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, 0, domain.NewProviderError(provider, domain.ErrNetworkTimeout, domain.ErrProviderUnavailable)
		case ctx.Err() != nil:
			return nil, 0, ctx.Err()
		case errors.Is(fetchCtx.Err(), context.DeadlineExceeded):
			return nil, 0, domain.NewProviderError(provider, domain.ErrNetworkTimeout, err)
		}
		return nil, 0, classify(provider, err)
	}

	events := make([]domain.Event, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		if raw.CalendarID == "" && len(conn.CalendarIDs) == 1 {
			raw.CalendarID = conn.CalendarIDs[0]
		}
		event, err := o.normalizer.Normalize(provider, userID, raw)
		if err != nil {
			skipped++
			o.logger.Warn("skipping unparseable event",
				"user_id", userID,
				"provider", provider,
				"provider_event_id", raw.ID,
				"error", err,
			)
			continue
		}
		events = append(events, event)
	}

	o.metrics.Counter(observability.MetricFetchEvents, int64(len(events)), tags...)
	if skipped > 0 {
		o.metrics.Counter(observability.MetricFetchSkipped, int64(skipped), tags...)
	}
	return events, skipped, nil
}

func (o *FetchOrchestrator) breaker(provider domain.ProviderType) *gobreaker.CircuitBreaker[[]domain.RawEvent] {
	o.breakersMu.Lock()
	defer o.breakersMu.Unlock()

	if b, ok := o.breakers[provider]; ok {
		return b
	}

	threshold := o.config.BreakerFailureThreshold
	b := gobreaker.NewCircuitBreaker[[]domain.RawEvent](gobreaker.Settings{
		Name:        string(provider),
		MaxRequests: 1,
		Interval:    o.config.BreakerInterval,
		Timeout:     o.config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Per-user credential problems say nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrAuthExpired) ||
				errors.Is(err, domain.ErrPermissionDenied) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Info("provider circuit state changed",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	o.breakers[provider] = b
	return b
}

// classify wraps err in a ProviderError unless it already is one.
func classify(provider domain.ProviderType, err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(provider, domain.ErrNetworkTimeout, err)
	}
	return domain.NewProviderError(provider, domain.ErrorKind(err), err)
}
