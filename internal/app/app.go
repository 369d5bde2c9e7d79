package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/order"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/repository/memory"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	sweepInterval      = time.Minute
	browserIdleTTL     = 30 * time.Minute
	checkoutIdleTTL    = time.Hour
	simulatedOrderTime = 500 * time.Millisecond
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	instanceID string

	rdb         *redis.Client
	producer    *pkgkafka.Producer
	consumer    *pkgkafka.Consumer
	broadcaster *notify.Broadcaster
	catalog     *catalog.Registry
	checkout    *service.CheckoutService

	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	// bgCtx scopes background loops; cancelled on Shutdown.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{
		cfg:        cfg,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
	a.bgCtx, a.bgCancel = context.WithCancel(context.Background())

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		a.bgCancel()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	// Cart store.
	var slots repository.Slots
	switch cfg.StoreBackend {
	case config.BackendMemory:
		slots = memory.New(cfg.CartTTLDuration())
		logger.Warn("using in-memory cart store; carts are lost on restart")
	default:
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPass
		redisCfg.DB = cfg.RedisDB

		rdb, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			a.bgCancel()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		a.rdb = rdb
		slots = redisrepo.NewSlots(rdb, cfg.CartTTLDuration())
		healthHandler.RegisterCritical("redis", database.RedisChecker(rdb))
	}
	store := repository.NewCartStore(slots, logger)

	// Cart change notification, relayed across replicas when Kafka is configured.
	a.broadcaster = notify.NewBroadcaster(logger)
	if cfg.RelayEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.broadcaster.AddRelay(event.NewProducer(a.producer, a.instanceID, logger))

		consumerHandler := event.NewConsumerHandler(a.broadcaster, a.instanceID, logger)
		a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     event.GroupID(a.instanceID),
			Topic:       event.TopicCartChanged,
			MinBytes:    1,
			MaxBytes:    1 << 20,
			StartOffset: kafka.LastOffset,
		}, consumerHandler.Handle, logger)

		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("cart change relay enabled",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("instance_id", a.instanceID),
		)
	}

	// Upstream clients, one breaker per upstream.
	baseClient := httpclient.New(httpclient.DefaultConfig())
	catalogClient := catalog.NewClient(cfg.CatalogServiceURL,
		httpclient.NewCircuitBreakerClient(baseClient, a.breakerConfig("catalog"), logger), logger)

	var placer order.Placer
	if cfg.OrderServiceURL != "" {
		placer = order.NewHTTPPlacer(cfg.OrderServiceURL,
			httpclient.NewCircuitBreakerClient(baseClient, a.breakerConfig("order"), logger), logger)
	} else {
		placer = order.NewSimulatedPlacer(simulatedOrderTime, logger)
		logger.Warn("ORDER_SERVICE_URL not set; orders are simulated")
	}

	// Build the dependency graph.
	a.catalog = catalog.NewRegistry(catalogClient, cfg.CatalogPageSize, browserIdleTTL)
	carts := service.NewCartService(store, catalogClient, a.broadcaster, logger)
	a.checkout = service.NewCheckoutService(store, carts, placer, checkoutIdleTTL, logger)

	// HTTP router.
	router := handler.NewRouter(a.bgCtx, handler.Deps{
		Catalog:        a.catalog,
		Products:       catalogClient,
		Carts:          carts,
		Checkout:       a.checkout,
		Broadcaster:    a.broadcaster,
		Health:         healthHandler,
		PageSize:       cfg.CatalogPageSize,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	// No WriteTimeout: cart event streams stay open. Non-streaming routes
	// are bounded by the router's request timeout.
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Ends open event streams so Shutdown does not wait on them.
	a.httpServer.RegisterOnShutdown(a.broadcaster.Close)

	return a, nil
}

func (a *App) breakerConfig(upstream string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         upstream,
		MaxRequests:  a.cfg.CBMaxRequests,
		Interval:     time.Duration(a.cfg.CBIntervalSecs) * time.Second,
		Timeout:      time.Duration(a.cfg.CBTimeoutSecs) * time.Second,
		FailureRatio: a.cfg.CBFailureRatio,
		MinRequests:  a.cfg.CBMinRequests,
	}
}

// Run starts the HTTP server and background loops and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.goBackground(func(ctx context.Context) { a.catalog.Run(ctx, sweepInterval) })
	a.goBackground(func(ctx context.Context) { a.checkout.Run(ctx, sweepInterval) })
	if a.consumer != nil {
		a.goBackground(func(ctx context.Context) {
			if err := a.consumer.Start(ctx); err != nil {
				a.logger.Error("cart relay consumer stopped", slog.String("error", err.Error()))
			}
		})
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

func (a *App) goBackground(fn func(ctx context.Context)) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn(a.bgCtx)
	}()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests, end event streams)
// 2. Background loops and the relay consumer
// 3. In-flight relays, then the Kafka producer
// 4. Tracer (flush pending spans)
// 5. Redis client
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.bgCancel()
	a.bg.Wait()
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}

	a.broadcaster.Close()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}
