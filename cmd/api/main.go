package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pocketbook/internal/config"
	"pocketbook/internal/database"
	"pocketbook/internal/events"
	"pocketbook/internal/logger"
	"pocketbook/internal/preferences"
	"pocketbook/internal/server"
	"pocketbook/internal/validator"
	"pocketbook/internal/worker"
	"pocketbook/internal/writer"
)

// @title           Pocketbook API
// @version         1.0
// @description     Pocketbook is a personal bookkeeping ledger: accounts, categories, transactions and budgets across independent ledgers.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("Failed to close database", "error", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	var prefs preferences.Store = preferences.NewMemoryStore()
	if appConfig.RedisAddr != "" {
		redisStore, err := preferences.NewRedisStore(ctx, preferences.RedisOptions{
			Addr:     appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			return err
		}
		defer redisStore.Close()
		prefs = redisStore
		log.Infow("Current ledger stored in Redis", "addr", appConfig.RedisAddr)
	} else {
		log.Info("REDIS_ADDR not set, current ledger kept in memory")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if appConfig.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(events.AMQPConfig{
			URL:      appConfig.AMQPURL,
			Exchange: appConfig.AMQPExchange,
		}, logger.Named("events"))
		if err != nil {
			return err
		}
		publisher = amqpPublisher
		log.Infow("Publishing domain events", "exchange", appConfig.AMQPExchange)
	} else {
		log.Info("AMQP_URL not set, domain events disabled")
	}
	defer publisher.Close()

	queue := writer.NewQueue()
	defer queue.Close()

	validator.Register()

	svc := server.NewServices(server.Deps{
		DB:                  dbManager.DB(),
		Queue:               queue,
		Preferences:         prefs,
		Publisher:           publisher,
		AccessKeyHash:       appConfig.AccessKeyHash,
		RolloverConcurrency: appConfig.RolloverConcurrency,
	})
	if appConfig.AccessKeyHash == "" {
		log.Warn("ACCESS_KEY_HASH not set, every token request will be rejected")
	}

	if err := svc.Ledger.VerifyInvariants(); err != nil {
		log.Errorw("Ledger invariants violated at startup", "error", err)
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	if appConfig.RolloverInterval > 0 {
		rollover := worker.NewRolloverWorker(svc.Budget, svc.Ledger, appConfig.RolloverInterval)
		go func() {
			defer close(workerDone)
			rollover.Run(workerCtx)
		}()
	} else {
		close(workerDone)
		log.Info("Budget rollover worker disabled")
	}

	router := server.NewRouter(server.RouterConfig{
		JWTSecret: appConfig.JWTSecret,
		TokenTTL:  appConfig.JWTExpirationDur,
	}, svc)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Pocketbook server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stopWorker()
		<-workerDone
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP server shutdown failed", "error", err)
	}
	stopWorker()
	<-workerDone

	log.Info("Pocketbook server stopped")
	return nil
}
