// Package app wires the rendezvous services from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	availabilityQueries "github.com/felixgeelhaar/rendezvous/internal/availability/application/queries"
	availabilityDomain "github.com/felixgeelhaar/rendezvous/internal/availability/domain"
	"github.com/felixgeelhaar/rendezvous/internal/availability/infrastructure/importer"
	calendarApp "github.com/felixgeelhaar/rendezvous/internal/calendar/application"
	calendarSubs "github.com/felixgeelhaar/rendezvous/internal/calendar/application/subscribers"
	calendarWorkers "github.com/felixgeelhaar/rendezvous/internal/calendar/application/workers"
	calendarDomain "github.com/felixgeelhaar/rendezvous/internal/calendar/domain"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/ics"
	calendarPersistence "github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/persistence"
	"github.com/felixgeelhaar/rendezvous/internal/calendar/infrastructure/trigger"
	calendarSetup "github.com/felixgeelhaar/rendezvous/internal/calendar/setup"
	identityOAuth "github.com/felixgeelhaar/rendezvous/internal/identity/application/oauth"
	identityDomain "github.com/felixgeelhaar/rendezvous/internal/identity/domain"
	sharedCrypto "github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/rendezvous/pkg/config"
	"github.com/felixgeelhaar/rendezvous/pkg/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyFileName is the generated credential key stored next to the SQLite file.
const keyFileName = "credentials.key"

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Infrastructure
	DB          database.Connection
	RedisClient *redis.Client
	UnitOfWork  *database.UnitOfWork

	// Repositories
	Calendar        calendarPersistence.Repositories
	PreferencesRepo availabilityDomain.PreferencesRepository
	TokenRepo       identityDomain.TokenRepository
	OutboxRepo      outbox.Repository

	// Calendar sync
	Tokens       *identityOAuth.TokenService
	Providers    *calendarApp.ProviderRegistry
	Locker       lock.Locker
	Orchestrator *calendarApp.FetchOrchestrator
	Reconciler   *calendarApp.Reconciler
	Conflicts    *calendarApp.ConflictResolver
	Sync         *calendarApp.SyncService
	Connections  *calendarApp.ConnectionService

	// Availability
	Availability       *availabilityQueries.ComputeAvailabilityHandler
	MutualAvailability *availabilityQueries.ComputeMutualAvailabilityHandler
	SuggestWindows     *availabilityQueries.SuggestWindowsHandler
	Importer           *importer.Importer

	// Events
	Bus             *eventbus.InProcessBus
	EventPublisher  eventbus.Publisher
	OutboxProcessor *outbox.Processor

	// Workers
	SyncWorker *calendarWorkers.SyncWorker
}

// NewContainer opens the configured store, applies migrations and builds
// every service. Redis and RabbitMQ are used when configured; outside of
// development an unreachable one is an error.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	conn, err := database.NewConnection(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxConns:   cfg.DatabaseMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = conn
	logger.Info("connected to database", "driver", conn.Driver())

	if err := migrations.Run(ctx, conn); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}

	factory := NewRepositoryFactory(conn)
	c.Calendar = factory.Calendar()
	c.PreferencesRepo = factory.Preferences()
	c.TokenRepo = factory.Tokens()
	c.OutboxRepo = factory.Outbox()
	c.UnitOfWork = factory.UnitOfWork()

	encrypter, err := c.encrypter()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Tokens = identityOAuth.NewTokenService(c.TokenRepo, encrypter, logger, c.tokenOptions()...)

	c.Providers = calendarApp.NewProviderRegistry()
	calendarSetup.RegisterProviders(c.Providers, calendarSetup.ProviderConfig{Logger: logger})

	if c.RedisClient != nil {
		c.Locker = lock.NewRedisLocker(c.RedisClient, logger)
	} else {
		c.Locker = lock.NewKeyedMutex()
	}

	events := outbox.NewPublisher(c.OutboxRepo)

	orchestratorConfig := calendarApp.DefaultOrchestratorConfig()
	orchestratorConfig.FetchTimeout = cfg.ProviderFetchTimeout
	c.Orchestrator = calendarApp.NewFetchOrchestrator(c.Providers, c.Calendar.Connections, c.Tokens, orchestratorConfig, logger, c.Metrics)
	c.Reconciler = calendarApp.NewReconciler(c.Calendar.Events, c.Calendar.Cursors, c.Locker, logger, c.Metrics)
	c.Conflicts = calendarApp.NewConflictResolver(c.Calendar.Conflicts, events, logger)
	c.Sync = calendarApp.NewSyncService(
		c.Calendar.Connections,
		c.Calendar.Cursors,
		c.Calendar.Events,
		c.Orchestrator,
		c.Reconciler,
		c.Conflicts,
		events,
		calendarApp.SyncConfig{
			LookBehind:         cfg.LookBehind(),
			LookAhead:          cfg.LookAhead(),
			FullResyncInterval: cfg.SyncFullResync,
		},
		logger,
		c.Metrics,
	)
	c.Connections = calendarApp.NewConnectionService(calendarApp.ConnectionServiceDeps{
		Connections: c.Calendar.Connections,
		Events:      c.Calendar.Events,
		Cursors:     c.Calendar.Cursors,
		Tokens:      c.Tokens,
		Credentials: c.Tokens,
		Syncs:       c.Sync,
		Locker:      c.Locker,
		Publisher:   events,
		UnitOfWork:  c.UnitOfWork,
		Logger:      logger,
	})

	c.Availability = availabilityQueries.NewComputeAvailabilityHandler(c.PreferencesRepo, c.Calendar.Events, logger)
	c.MutualAvailability = availabilityQueries.NewComputeMutualAvailabilityHandler(c.PreferencesRepo, c.Calendar.Events, logger)
	c.SuggestWindows = availabilityQueries.NewSuggestWindowsHandler(c.PreferencesRepo, c.Availability)
	c.Importer, err = importer.New(c.PreferencesRepo, c.UnitOfWork, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	authExpired := calendarSubs.NewAuthExpiredSubscriber(c.Calendar.Connections, logger)
	for _, key := range authExpired.EventTypes() {
		c.Bus.Subscribe(key, authExpired.Handle)
	}

	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval:     cfg.OutboxPollInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       cfg.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
		Retention:        time.Duration(cfg.OutboxRetentionDays) * 24 * time.Hour,
	}, logger).WithUnitOfWork(c.UnitOfWork).WithMetrics(c.Metrics)

	c.SyncWorker = calendarWorkers.NewSyncWorker(c.Sync, c.Calendar.Cursors, c.Calendar.Connections, calendarWorkers.SyncWorkerConfig{
		Schedule:    cfg.SyncSchedule,
		StaleAfter:  cfg.SyncStaleAfter,
		Concurrency: cfg.SyncConcurrency,
		RunOnStart:  true,
	}, logger)

	c.registerHealthChecks()
	return c, nil
}

func (c *Container) initRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, reconcile lock stays in-process", "error", err)
		return nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, reconcile lock stays in-process", "error", err)
		return nil
	}
	c.RedisClient = client
	c.Logger.Info("connected to Redis")
	return nil
}

// initPublisher always delivers to the in-process bus and, when a broker is
// configured, to RabbitMQ as well.
func (c *Container) initPublisher() error {
	c.Bus = eventbus.NewInProcessBus(c.Logger)
	c.EventPublisher = c.Bus
	if c.Config.RabbitMQURL == "" {
		return nil
	}

	broker, err := eventbus.NewRabbitMQPublisher(eventbus.RabbitMQConfig{
		URL:    c.Config.RabbitMQURL,
		Logger: c.Logger,
	})
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, events stay in-process", "error", err)
		return nil
	}
	c.EventPublisher = eventbus.Fanout{broker, c.Bus}
	c.Logger.Info("connected to RabbitMQ")
	return nil
}

// encrypter uses ENCRYPTION_KEY when set. Otherwise a key file next to the
// SQLite database is created on first use; PostgreSQL deployments must set it.
func (c *Container) encrypter() (sharedCrypto.Encrypter, error) {
	if c.Config.EncryptionKey != "" {
		enc, err := sharedCrypto.NewAESGCMFromBase64Key(c.Config.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}
		return enc, nil
	}
	if c.DB.Driver() != database.DriverSQLite {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required with %s", c.DB.Driver())
	}

	dbPath := c.Config.SQLitePath
	if dbPath == "" {
		dbPath = database.DefaultSQLitePath()
	}
	enc, err := sharedCrypto.LoadOrCreateKeyFile(filepath.Join(filepath.Dir(dbPath), keyFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to load credential key: %w", err)
	}
	return enc, nil
}

func (c *Container) tokenOptions() []identityOAuth.TokenServiceOption {
	opts := []identityOAuth.TokenServiceOption{
		identityOAuth.WithRefreshThreshold(c.Config.TokenRefreshThreshold),
	}
	scopes := identityOAuth.ScopesFromEnv(c.Config.OAuthScopes)

	clients := map[calendarDomain.ProviderType]identityOAuth.ClientConfig{
		calendarDomain.ProviderGoogle: {
			ClientID:     c.Config.GoogleClientID,
			ClientSecret: c.Config.GoogleClientSecret,
			RedirectURL:  c.Config.OAuthRedirectURL,
			Scopes:       scopes,
		},
		calendarDomain.ProviderMicrosoft: {
			ClientID:     c.Config.MicrosoftClientID,
			ClientSecret: c.Config.MicrosoftClientSecret,
			RedirectURL:  c.Config.OAuthRedirectURL,
			Scopes:       scopes,
			Tenant:       c.Config.MicrosoftTenant,
		},
	}
	for provider, client := range clients {
		if oauthConfig := identityOAuth.NewOAuth2Config(provider, client); oauthConfig != nil {
			opts = append(opts, identityOAuth.WithOAuthClient(provider, oauthConfig))
		}
	}
	return opts
}

func (c *Container) registerHealthChecks() {
	c.Health.Register("database", observability.PingChecker("database", true, c.DB.Ping))
	if c.RedisClient != nil {
		c.Health.Register("redis", observability.PingChecker("redis", false, func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}
}

// RegisterWorkerChecks adds readiness checks for the background loops. Only
// long-running processes call it.
func (c *Container) RegisterWorkerChecks() {
	c.Health.Register("sync_worker", observability.RunningChecker("sync_worker", c.SyncWorker.IsRunning))
	if c.Config.OutboxProcessorEnabled {
		c.Health.Register("outbox", observability.RunningChecker("outbox", c.OutboxProcessor.IsRunning))
	}
}

// FlushEvents forwards pending outbox messages once. One-shot commands call
// it so their events are delivered without a running worker.
func (c *Container) FlushEvents(ctx context.Context) {
	if err := c.OutboxProcessor.ProcessOnce(ctx); err != nil {
		c.Logger.Warn("failed to flush outbox", "error", err)
	}
}

// NotifySync asks running workers to sync the user now. It is a no-op
// unless the store is PostgreSQL.
func (c *Container) NotifySync(ctx context.Context, userID uuid.UUID) error {
	return trigger.Notify(ctx, c.DB, c.Config.SyncNotifyChannel, userID)
}

// NewSyncListener returns a LISTEN loop feeding the sync worker, or nil
// when the store is not PostgreSQL.
func (c *Container) NewSyncListener() *trigger.Listener {
	if c.DB.Driver() != database.DriverPostgres {
		return nil
	}
	return trigger.NewListener(c.Config.DatabaseURL, c.Config.SyncNotifyChannel, c.SyncWorker, c.Logger)
}

// NewSourceWatcher watches the local calendar files of every user with a
// local connection and triggers their sync on change. Returns nil when
// watching is disabled.
func (c *Container) NewSourceWatcher(ctx context.Context) (*ics.Watcher, error) {
	if !c.Config.ICSWatchEnabled {
		return nil, nil
	}
	watcher, err := ics.NewWatcher(func(_ context.Context, userID uuid.UUID) {
		c.SyncWorker.Trigger(userID)
	}, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	users, err := c.Calendar.Connections.FindUsersWithConnections(ctx)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	watched := 0
	for _, userID := range users {
		conns, err := c.Calendar.Connections.FindByUser(ctx, userID)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to load connections: %w", err)
		}
		local, ok := conns[calendarDomain.ProviderLocal]
		if !ok || !local.Enabled || local.SourceURL == "" || ics.IsURL(local.SourceURL) || local.Username != "" {
			continue
		}
		if err := watcher.Watch(local.SourceURL, userID); err != nil {
			c.Logger.Warn("cannot watch calendar file", "user_id", userID, "path", local.SourceURL, "error", err)
			continue
		}
		watched++
	}
	c.Logger.Info("watching local calendar files", "files", watched)
	return watcher, nil
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.SyncWorker != nil && c.SyncWorker.IsRunning() {
		c.SyncWorker.Stop()
		c.Logger.Info("sync worker stopped")
	}

	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("error closing database", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DB.Driver())
		}
	}
}
