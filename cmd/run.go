package cmd

import (
	"context"
	"fmt"
	"time"

	"creditledger/api"
	"creditledger/application"
	"creditledger/config"
	"creditledger/database"
	"creditledger/events"
	"creditledger/infrastructure"
	"creditledger/observability"
	"creditledger/repository"
	"creditledger/service"

	log "github.com/sirupsen/logrus"
)

// Run starts the HTTP service and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	log.Info("Starting credit ledger...")

	cfg := config.Get()
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required to serve")
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	eventBus := events.NewBus()
	metrics := observability.NewMetrics()
	metrics.Attach(eventBus)

	healthChecks := []api.HealthCheck{{Name: "postgres", Check: db.Ping}}

	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return err
		}
		defer natsClient.Close()

		mapper := infrastructure.NewEventSubjectMapper()
		if err := natsClient.EnsureStream(infrastructure.CreditEventStream, mapper.GetAllSubjects()); err != nil {
			return err
		}
		infrastructure.NewNATSEventPublisher(natsClient, mapper).Attach(eventBus)
		healthChecks = append(healthChecks, api.HealthCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsClient.IsConnected() {
					return fmt.Errorf("not connected")
				}
				return nil
			},
		})
	} else {
		log.Info("NATS_SERVERS not set, events stay in-process")
	}

	var redisStore *infrastructure.RedisStore
	if cfg.RedisURL != "" {
		client, err := infrastructure.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		redisStore = infrastructure.NewRedisStore(client)
		healthChecks = append(healthChecks, api.HealthCheck{Name: "redis", Check: redisStore.Ping})
	} else {
		log.Info("REDIS_URL not set, webhook deduplication and sweep locking disabled")
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	creditService := service.NewCreditService(uowFactory, cfg.CreditPolicy())
	userService := service.NewUserService(uowFactory, cfg.NewUserCredits)
	messageService := service.NewMessageService(uowFactory)

	verifier, err := api.NewWebhookVerifier(cfg.WebhookSecret)
	if err != nil {
		return err
	}

	handlers := api.NewHandlers(creditService, userService)
	handlers.Messages = messageService
	handlers.Webhook = verifier
	handlers.Metrics = metrics
	handlers.CronToken = cfg.CronToken
	handlers.DailyRefreshAmount = cfg.DailyRefreshAmount
	handlers.HealthChecks = healthChecks
	if redisStore != nil {
		handlers.Deliveries = redisStore
	}

	server := api.NewServer(cfg.HTTPAddr, api.SetupRouter(handlers))
	serverErrs := server.Start()

	if cfg.RefreshSweepEnabled {
		var lock application.SweepLock
		if redisStore != nil {
			lock = redisStore
		}
		worker := application.NewRefreshWorker(creditService, lock, cfg.DailyRefreshAmount)
		stopWorker := worker.Start(ctx, cfg.RefreshSweepInterval)
		defer stopWorker()
	}

	log.WithField("environment", cfg.Environment).Info("Credit ledger is running")

	select {
	case <-ctx.Done():
	case err := <-serverErrs:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down credit ledger...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during shutdown")
	}
	return nil
}
