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
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"solaralert/internal/clients"
	"solaralert/internal/config"
	"solaralert/internal/handlers"
	"solaralert/internal/observability"
	"solaralert/internal/publisher"
	"solaralert/internal/repository"
	"solaralert/internal/service"
	"solaralert/internal/worker"
	"solaralert/pkg/database"
	"solaralert/pkg/redis"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("error", "text").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	if envErr != nil {
		logger.Info("no .env file found, using environment variables")
	}
	logger.Info("space weather alert engine starting")

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	db, err := database.Connect(cfg.DB, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("failed to get sql.DB", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	redisClient, err := redis.Connect(cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	subscriberRepo := repository.NewSubscriberRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	snapshotRepo := repository.NewFeedSnapshotRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	swpcClient := clients.NewSWPCClient(cfg.Feeds)
	donkiClient := clients.NewDONKIClient(cfg.Feeds, clock)
	smsClient := clients.NewSMSClient(cfg.SMS)
	emailClient := clients.NewEmailClient(cfg.Email)

	var geocoder clients.Geocoder
	if cfg.Mapbox.Token != "" {
		geocoder = clients.NewMapboxClient(cfg.Mapbox.Token, cfg.Mapbox.Timeout)
	} else {
		logger.Warn("MAPBOX_TOKEN not set, auroral alerts will not be delivered")
	}

	var alertPublisher service.AlertPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic, logger)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("kafka publisher close failed", "error", err)
			}
		}()
		alertPublisher = kafkaPublisher
		logger.Info("kafka alert publishing enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.AlertTopic)
	}

	filter := service.NewDuplicateFilter(alertRepo, cacheRepo, cfg.Alerts.CooldownWindow, logger)
	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		SMS:         smsClient,
		Email:       emailClient,
		Alerts:      alertRepo,
		Deliveries:  deliveryRepo,
		Publisher:   alertPublisher,
		Filter:      filter,
		Concurrency: cfg.Alerts.DispatchConcurrency,
		Clock:       clock,
		Logger:      logger,
		Metrics:     metrics,
	})
	feedService := service.NewFeedService(swpcClient, donkiClient, snapshotRepo, clock, logger, metrics)
	alertService := service.NewAlertService(service.AlertServiceDeps{
		Feeds:       feedService,
		Subscribers: subscriberRepo,
		Alerts:      alertRepo,
		Cache:       cacheRepo,
		Filter:      filter,
		Dispatcher:  dispatcher,
		Geocoder:    geocoder,
		LockTTL:     cfg.Alerts.CycleTimeout,
		Clock:       clock,
		Logger:      logger,
		Metrics:     metrics,
	})
	subscriberService := service.NewSubscriberService(subscriberRepo, cacheRepo, logger)
	deliveryService := service.NewDeliveryService(deliveryRepo, clock, logger)
	exportService := service.NewExportService(alertRepo, clock)

	scheduler := worker.NewScheduler(cfg.App.ShutdownTimeout, logger)
	scheduler.AddWorker(worker.NewAlertWorker(alertService, cfg.Alerts.PollInterval, cfg.Alerts.CycleTimeout, clock, logger))
	if cfg.Retention.Enabled {
		scheduler.AddWorker(worker.NewRetentionWorker(snapshotRepo, cfg.Retention.SnapshotTTL, cfg.Retention.SweepInterval, clock, logger))
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	health := handlers.NewHealthHandler(
		map[string]handlers.Check{
			"database": sqlDB.PingContext,
			"redis":    cacheRepo.Ping,
		},
		map[string]handlers.StatsFunc{
			"redis": func(ctx context.Context) (any, error) {
				return redis.GetStats(ctx, redisClient)
			},
			"subscribers": func(ctx context.Context) (any, error) {
				return subscriberRepo.CountSubscribed(ctx)
			},
		},
		clock,
	)

	router := handlers.NewRouter(handlers.RouterConfig{
		Debug:             cfg.App.Debug,
		FrontendURL:       cfg.App.FrontendURL,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, handlers.Handlers{
		Alerts: handlers.NewAlertHandler(alertService, deliveryService, exportService, logger),
		Users:  handlers.NewUserHandler(subscriberService, logger),
		Health: health,
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("http server failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}
