package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/farellandr/ridehail/config"
	"github.com/farellandr/ridehail/internal/events"
	"github.com/farellandr/ridehail/internal/handlers"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/idempotency"
	"github.com/farellandr/ridehail/internal/middleware"
	"github.com/farellandr/ridehail/internal/payments"
	"github.com/farellandr/ridehail/internal/reconcile"
	"github.com/farellandr/ridehail/internal/store"
)

const (
	idempotencyKeyPrefix = "ridehail:idempotency:"
	shutdownTimeout      = 10 * time.Second
)

// Dependencies is everything the router hands to the handlers.
type Dependencies struct {
	Repositories   *store.Repositories
	Gateway        payments.Gateway
	Publisher      events.Publisher
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	RideOptions    middleware.RideOptions
	Auth           middleware.AuthConfig
}

func Start() error {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	logger := slog.Default()
	repos := store.NewRepositories(db)
	gateway := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeEphemeralKeyVersion)

	idemStore, purger, closeIdem, err := newIdempotencyStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize idempotency store: %v", err)
	}
	defer closeIdem()

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	var signer *helpers.ReceiptSigner
	if cfg.ReceiptSigningKey != "" {
		signer = helpers.NewReceiptSigner(cfg.ReceiptSigningKey)
	} else {
		logger.Warn("RECEIPT_SIGNING_KEY is not set, ride receipts are disabled")
	}

	reconciler := reconcile.NewReconciler(repos.PaymentAttempts, gateway, publisher, reconcile.Options{Grace: cfg.ReconcileGrace()}, logger.With("component", "reconciler"))
	scheduler := reconcile.NewScheduler(reconciler, purger, cfg.ReconcileSchedule, logger.With("component", "scheduler"))
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start reconciliation scheduler: %v", err)
	}
	defer func() { <-scheduler.Stop().Done() }()

	r := NewRouter(Dependencies{
		Repositories:   repos,
		Gateway:        gateway,
		Publisher:      publisher,
		Idempotency:    idemStore,
		IdempotencyTTL: cfg.IdempotencyTTL(),
		RideOptions: middleware.RideOptions{
			VerifyPayments: cfg.VerifyRidePayments,
			ReceiptSigner:  signer,
		},
		Auth: middleware.AuthConfig{
			JWKSURL:        cfg.ClerkJWKSURL,
			ExpectedIssuer: cfg.ClerkIssuer,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %v", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %v", err)
	}
	return nil
}

// newIdempotencyStore uses Redis when REDIS_URL is set and an embedded Bolt
// file otherwise. Only the Bolt store needs periodic purging.
func newIdempotencyStore(cfg *config.Config, logger *slog.Logger) (idempotency.Store, reconcile.Purger, func(), error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		logger.Info("using redis idempotency store")
		return idempotency.NewRedisStore(client, idempotencyKeyPrefix), nil, func() { _ = client.Close() }, nil
	}

	bolt, err := idempotency.NewBoltStore(cfg.IdempotencyBoltPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("using bolt idempotency store", "path", cfg.IdempotencyBoltPath)
	return bolt, bolt, func() { _ = bolt.Close() }, nil
}

func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL is not set, events will only be logged")
		return events.NewFallbackProducer(logger)
	}
	producer, err := events.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.Warn("failed to connect to RabbitMQ, events will only be logged", "error", err)
		return events.NewFallbackProducer(logger)
	}
	return producer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Dependencies) *gin.Engine {
	handlers.RegisterValidators()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	setupRoutes(r, deps)
	return r
}

func setupRoutes(r *gin.Engine, deps Dependencies) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.Use(middleware.DatabaseMiddleware(deps.Repositories))
	r.Use(middleware.PaymentsMiddleware(deps.Gateway))
	r.Use(middleware.EventsMiddleware(deps.Publisher))
	r.Use(middleware.RideOptionsMiddleware(deps.RideOptions))

	idem := middleware.IdempotencyMiddleware(deps.Idempotency, deps.IdempotencyTTL)

	api := r.Group("/api")
	{
		stripe := api.Group("/stripe")
		{
			stripe.POST("/create", idem, handlers.CreatePaymentIntent)
			stripe.POST("/pay", idem, handlers.ConfirmPaymentIntent)
		}

		api.POST("/user", idem, handlers.CreateUser)

		ride := api.Group("/ride")
		{
			ride.POST("/create", idem, handlers.CreateRide)
			ride.GET("/:id", handlers.GetRide)
			ride.GET("/:id/receipt", handlers.GetRideReceipt)
		}

		user := api.Group("/user/:id")
		if deps.Auth.JWKSURL != "" {
			user.Use(middleware.ClerkAuthMiddleware(deps.Auth), middleware.RequireSelf())
		}
		{
			user.GET("", handlers.GetUser)
			user.PATCH("", handlers.UpdateProfile)
			user.GET("/rides", handlers.ListUserRides)
		}
	}
}
