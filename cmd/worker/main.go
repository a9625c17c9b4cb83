package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/bootstrap"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/config"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/server"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/trigger"
	"github.com/joho/godotenv"
	"github.com/streadway/amqp"
)

const metricsInterval = 5 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger("cleaner-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, cleanupFunc, err := bootstrap.NewIngestionService(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build ingestion service")
	}
	defer cleanupFunc()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to open channel")
	}
	defer ch.Close()

	opsServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.APIPort),
		Handler: server.SetupOpsRoutes(server.NewOpsService("cleaner-worker", logger)),
	}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Ops server stopped")
		}
	}()

	go func() {
		ticker := time.NewTicker(metricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.LogMetrics()
			}
		}
	}()

	consumer := trigger.NewConsumer(ch, cfg.QueueName, service, logger)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Consumer stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down ops server")
	}

	logger.LogMetrics()
	logger.Info("Worker stopped")
}
