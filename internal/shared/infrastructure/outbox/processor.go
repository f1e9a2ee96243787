package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/rendezvous/internal/shared/application"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
)

// Metric names recorded by the processor.
const (
	MetricPublished  = "outbox.published"
	MetricFailed     = "outbox.failed"
	MetricDead       = "outbox.dead"
	MetricLagSeconds = "outbox.lag_seconds"
)

const pruneEvery = time.Hour

// ProcessorConfig tunes the relay loop.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxRetries is the number of attempts before a message is dead-lettered.
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// Retention is how long published messages are kept. Zero keeps them.
	Retention time.Duration
}

// DefaultProcessorConfig returns the worker defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     500 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		Retention:        7 * 24 * time.Hour,
	}
}

// Stats describes the relay since start.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

// Processor relays stored events to the bus: calendar.synced and friends
// reach the in-process subscribers, and RabbitMQ when it is configured.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	uow       application.UnitOfWork

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statsMu   sync.Mutex
	stats     Stats
	lastPrune time.Time
}

// NewProcessor creates a stopped processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   observability.NoopMetrics{},
	}
}

// WithUnitOfWork runs each batch in a transaction so row locks taken by
// GetUnpublished hold until the batch is marked.
func (p *Processor) WithUnitOfWork(uow application.UnitOfWork) *Processor {
	p.uow = uow
	return p
}

// WithMetrics records relay counters and the lag gauge into m.
func (p *Processor) WithMetrics(m observability.Metrics) *Processor {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Start launches the polling loop. Starting a running processor is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)
	return nil
}

// Stop cancels the loop and waits for the batch in flight.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether the loop was started and not stopped.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox batch failed", "error", err)
			}
		}
	}
}

// ProcessOnce relays one batch synchronously, then prunes old rows at most
// once an hour.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	if err := application.WithUnitOfWork(ctx, p.uow, p.relayBatch); err != nil {
		p.noteError(err)
		return err
	}
	p.prune(ctx)
	return nil
}

func (p *Processor) relayBatch(ctx context.Context) error {
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		return err
	}
	p.noteBatch(batch)

	for _, msg := range batch {
		if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
			p.giveUpOrRetry(ctx, msg, err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark outbox message published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			continue
		}
		p.update(func(s *Stats) { s.PublishedCount++ })
		p.metrics.Counter(MetricPublished, 1, observability.T("routing_key", msg.RoutingKey))
	}
	return nil
}

func (p *Processor) giveUpOrRetry(ctx context.Context, msg *Message, cause error) {
	attempt := msg.RetryCount + 1
	log := p.logger.With(
		"id", msg.ID,
		"event_id", msg.EventID,
		"routing_key", msg.RoutingKey,
		observability.CorrelationIDKey, msg.CorrelationID,
		"attempt", attempt,
	)

	if p.config.MaxRetries <= 0 || attempt >= p.config.MaxRetries {
		log.Error("outbox message dead-lettered", "error", cause)
		p.noteFailure(cause, true)
		p.metrics.Counter(MetricDead, 1, observability.T("routing_key", msg.RoutingKey))
		if err := p.repo.MarkDead(ctx, msg.ID, cause.Error()); err != nil {
			log.Error("failed to dead-letter outbox message", "error", err)
		}
		return
	}

	delay := p.backoff(attempt)
	log.Warn("outbox publish failed, will retry", "retry_in", delay, "error", cause)
	p.noteFailure(cause, false)
	p.metrics.Counter(MetricFailed, 1, observability.T("routing_key", msg.RoutingKey))
	if err := p.repo.MarkFailed(ctx, msg.ID, cause.Error(), time.Now().Add(delay)); err != nil {
		log.Error("failed to record outbox failure", "error", err)
	}
}

// backoff doubles from RetryBackoffBase per attempt, capped at RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	base, ceiling := p.config.RetryBackoffBase, p.config.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}

func (p *Processor) prune(ctx context.Context) {
	if p.config.Retention <= 0 {
		return
	}
	p.statsMu.Lock()
	due := time.Since(p.lastPrune) >= pruneEvery
	if due {
		p.lastPrune = time.Now()
	}
	p.statsMu.Unlock()
	if !due {
		return
	}

	n, err := p.repo.DeleteOld(ctx, p.config.Retention)
	switch {
	case err != nil:
		p.logger.Warn("failed to prune outbox", "error", err)
	case n > 0:
		p.logger.Debug("pruned outbox", "deleted", n)
	}
}

// GetStats returns a copy of the relay statistics.
func (p *Processor) GetStats() Stats {
	running := p.IsRunning()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	s.IsRunning = running
	return s
}

func (p *Processor) update(fn func(*Stats)) {
	p.statsMu.Lock()
	fn(&p.stats)
	p.statsMu.Unlock()
}

func (p *Processor) noteError(err error) {
	now := time.Now()
	p.update(func(s *Stats) {
		s.LastError = err.Error()
		s.LastErrorAt = &now
	})
}

func (p *Processor) noteFailure(err error, dead bool) {
	p.noteError(err)
	p.update(func(s *Stats) {
		if dead {
			s.DeadCount++
		} else {
			s.FailedCount++
		}
	})
}

// noteBatch tracks how far behind the relay is: the age of the oldest
// message it picked up.
func (p *Processor) noteBatch(batch []*Message) {
	now := time.Now()
	var oldest *time.Time
	for _, msg := range batch {
		if oldest == nil || msg.CreatedAt.Before(*oldest) {
			created := msg.CreatedAt
			oldest = &created
		}
	}
	lag := 0.0
	if oldest != nil {
		lag = now.Sub(*oldest).Seconds()
	}
	p.update(func(s *Stats) {
		s.LastProcessedAt = &now
		s.OldestMessageAt = oldest
		s.LagSeconds = lag
	})
	p.metrics.Gauge(MetricLagSeconds, lag)
}
