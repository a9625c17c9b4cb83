package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/bootstrap"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/config"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/ingestion"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/joho/godotenv"
)

func setup(ctx context.Context) (string, *ingestion.IngestionService, *logging.Logger, func(), error) {
	prefix := ""
	if len(os.Args) > 1 {
		prefix = os.Args[1]
	}

	cfg, err := config.New()
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger("cleaner", cfg.LogLevel)

	service, cleanupFunc, err := bootstrap.NewIngestionService(ctx, cfg, logger)
	if err != nil {
		return "", nil, nil, nil, err
	}

	return prefix, service, logger, cleanupFunc, nil
}

func execute(ctx context.Context, prefix string, service *ingestion.IngestionService, logger *logging.Logger) error {
	logger.WithField("prefix", prefix).Info("Starting cleaning run")

	summary, err := service.Execute(ctx, prefix)
	if summary != nil {
		for _, result := range summary.Results {
			entry := logger.WithFile(result.Key).
				WithField("accepted", result.Report.Accepted).
				WithField("rejected", result.Report.Rejected).
				WithField("duplicates", result.Report.Duplicates)
			if result.Skipped {
				entry = entry.WithField("skipped", result.Reason)
			}
			entry.Info("File summary")
		}
	}
	return err
}

func cleanup(logger *logging.Logger, cleanupFunc func()) {
	logger.Info("Cleaning up resources...")
	cleanupFunc()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	startTime := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prefix, service, logger, cleanupFunc, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup(logger, cleanupFunc)

	if err := execute(ctx, prefix, service, logger); err != nil {
		logger.WithError(err).Error("Error during cleaning run")
		cleanup(logger, cleanupFunc)
		os.Exit(1)
	}

	logger.WithField("duration", time.Since(startTime).String()).Info("Cleaning run finished")
}
