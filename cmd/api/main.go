package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharmatrace/trace-engine/internal/application"
	"github.com/pharmatrace/trace-engine/internal/config"
	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/internal/infrastructure/cache"
	mongoRepo "github.com/pharmatrace/trace-engine/internal/infrastructure/mongodb"
	"github.com/pharmatrace/trace-engine/internal/infrastructure/postgres"
	"github.com/pharmatrace/trace-engine/pkg/cloudevents"
	"github.com/pharmatrace/trace-engine/pkg/kafka"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	"github.com/pharmatrace/trace-engine/pkg/middleware"
	"github.com/pharmatrace/trace-engine/pkg/mongodb"
	"github.com/pharmatrace/trace-engine/pkg/outbox"
	outboxMongo "github.com/pharmatrace/trace-engine/pkg/outbox/mongodb"
	"github.com/pharmatrace/trace-engine/pkg/resilience"
	"github.com/pharmatrace/trace-engine/pkg/tracing"
)

const serviceName = "trace-engine"

// engine is the wired service set that transport adapters are built on. This
// binary mounts only the operational endpoints; the services are reached in
// process.
type engine struct {
	directory    *application.PrefixDirectory
	recorder     *application.EventRecorder
	batchNumbers *application.BatchNumberService
	status       *application.StatusService
	destruction  *application.DestructionService
	returns      *application.ReturnsService

	checks map[string]func(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting trace engine", "batchStore", cfg.BatchStore)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = cfg.OTLPEndpoint
	tracingConfig.Environment = cfg.Environment
	tracingConfig.Enabled = cfg.TracingEnabled
	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		// Continue without tracing
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	var mongoClient *mongodb.Client
	err = resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		var connErr error
		mongoClient, connErr = mongodb.NewClient(ctx, cfg.Mongo())
		if connErr != nil {
			logger.WithError(connErr).Warn("MongoDB not reachable, retrying")
		}
		return connErr
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.MongoDatabase)

	eng, closers, err := build(ctx, cfg, mongoClient, logger, m)
	if err != nil {
		logger.WithError(err).Error("Failed to build trace engine")
		os.Exit(1)
	}
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.WithError(err).Warn("Failed to close resource")
			}
		}
	}()
	eng.logBacklog(ctx, logger)

	producer := kafka.NewProducer(cfg.Kafka())
	defer producer.Close()
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("kafka-producer"), logger, m)
	instrumentedProducer := kafka.NewInstrumentedProducer(producer, breaker, m, logger)

	publisher := outbox.NewPublisher(
		outboxMongo.NewOutboxRepository(mongoClient.Database()),
		instrumentedProducer,
		logger,
		m,
		&outbox.PublisherConfig{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			Retention:    7 * 24 * time.Hour,
		},
	)
	if err := publisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer publisher.Stop()
	logger.Info("Outbox publisher started", "brokers", cfg.KafkaBrokers)

	router := gin.New()
	middleware.Setup(router, logger, m)
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, eng.checks))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Server stopped")
}

// logBacklog reports workflow records left waiting by earlier runs
func (e *engine) logBacklog(ctx context.Context, logger *logging.Logger) {
	const limit = 1000
	destructions, err := e.destruction.ListPending(ctx, limit)
	if err != nil {
		logger.WithError(err).Warn("Failed to list pending destruction requests")
		return
	}
	receipts, err := e.returns.ListPending(ctx, domain.ReturnReceiving, limit)
	if err != nil {
		logger.WithError(err).Warn("Failed to list pending return receipts")
		return
	}
	shipments, err := e.returns.ListPending(ctx, domain.ReturnShipping, limit)
	if err != nil {
		logger.WithError(err).Warn("Failed to list pending return shipments")
		return
	}
	logger.Info("Pending lifecycle workflows",
		"destructions", len(destructions),
		"returnReceipts", len(receipts),
		"returnShipments", len(shipments),
	)
}

// build wires stores and services. The returned closers release optional
// backends in order.
func build(ctx context.Context, cfg *config.Config, mongoClient *mongodb.Client, logger *logging.Logger, m *metrics.Metrics) (*engine, []func() error, error) {
	db := mongoClient.Database()
	factory := cloudevents.NewEventFactory(cloudevents.SourceTraceEngine)
	var closers []func() error

	checks := map[string]func(ctx context.Context) error{
		"mongodb": mongoClient.HealthCheck,
	}

	events := mongoRepo.NewEventStore(db, factory, m, logger)
	statuses := mongoRepo.NewStatusRepository(db, factory, m, logger)
	destructions := mongoRepo.NewDestructionRepository(db, factory, m, logger)
	returns := mongoRepo.NewReturnRepository(db, factory, m, logger)
	suppliers := mongoRepo.NewSupplierRegistry(db, m, logger)
	providers := mongoRepo.NewLogisticsProviderRegistry(db, m, logger)
	actors := mongoRepo.NewActorRepository(db, m, logger)

	type indexer interface {
		EnsureIndexes(ctx context.Context) error
	}
	indexers := []indexer{events, statuses, destructions, returns, suppliers, providers}

	var batches domain.BatchRepository
	var numbers domain.BatchNumberRegistry
	switch cfg.BatchStore {
	case config.BatchStorePostgres:
		pg, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.PostgresDSN))
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pg.Close)
		if err := postgres.Migrate(ctx, pg); err != nil {
			return nil, closers, err
		}
		batches = postgres.NewBatchRepository(pg, m)
		numbers = postgres.NewBatchNumberRegistry(pg, m)
		checks["postgres"] = pg.PingContext
	default:
		mongoBatches := mongoRepo.NewBatchRepository(db, m, logger)
		mongoNumbers := mongoRepo.NewBatchNumberRegistry(db, m, logger)
		indexers = append(indexers, mongoBatches, mongoNumbers)
		batches, numbers = mongoBatches, mongoNumbers
	}

	for _, idx := range indexers {
		if err := idx.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure indexes")
		}
	}

	var prefixCache domain.PrefixCache
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL, 0)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, client.Close)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		prefixCache = cache.NewRedisCache(client)
		logger.Info("Using Redis prefix cache")
	} else {
		prefixCache = cache.NewMemoryCache(cfg.PrefixCacheCapacity)
	}

	registryBreaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("party-registry"), logger, m)
	recorder := application.NewEventRecorder(events, logger, m)

	return &engine{
		directory:    application.NewPrefixDirectory(prefixCache, []domain.PartyRegistry{suppliers, providers}, registryBreaker, cfg.PrefixCacheTTL, logger, m),
		recorder:     recorder,
		batchNumbers: application.NewBatchNumberService(numbers, logger, m),
		status:       application.NewStatusService(statuses, actors, logger, m),
		destruction:  application.NewDestructionService(destructions, batches, recorder, cfg.DestructionApprovalThreshold, logger, m),
		returns:      application.NewReturnsService(returns, batches, logger, m),
		checks:       checks,
	}, closers, nil
}
