package main

import (
	"context"
	"log"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/bootstrap"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/config"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/trigger"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger("cleaner-lambda", cfg.LogLevel)

	// The pool outlives individual invocations; the runtime tears it down.
	service, _, err := bootstrap.NewIngestionService(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build ingestion service")
	}

	lambda.Start(trigger.LambdaHandler(service))
}
