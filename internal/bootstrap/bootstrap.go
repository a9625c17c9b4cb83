// Package bootstrap builds the cleaning service from configuration for the
// command line, Lambda and queue entry points.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/batch"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/config"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/database"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/ingestion"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/rules"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/storage"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewStores returns the input and output stores. The local backend reads and
// writes below the same root.
func NewStores(ctx context.Context, cfg *config.Config) (storage.ObjectStore, storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return storage.NewS3Store(client, cfg.InputBucket), storage.NewS3Store(client, cfg.OutputBucket), nil
	default:
		store := storage.NewLocalStore(cfg.LocalStorageRoot)
		return store, store, nil
	}
}

// NewDBManager connects the ledger, or returns a no-op ledger when
// DATABASE_URL is not set. The returned func releases the pool.
func NewDBManager(ctx context.Context, cfg *config.Config) (database.DBManager, func(), error) {
	if cfg.DatabaseURL == "" {
		return database.NoopDBManager{}, func() {}, nil
	}

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	return database.NewPostgresDBManager(dbpool), dbpool.Close, nil
}

// NewIngestionService wires stores, ledger, rules and workers together.
func NewIngestionService(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*ingestion.IngestionService, func(), error) {
	input, output, err := NewStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	dbManager, cleanup, err := NewDBManager(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is not set, processing ledger disabled")
	}

	fileProcessor := ingestion.NewFileProcessor(
		input,
		output,
		dbManager,
		batch.NewProcessor(rules.New()),
		logger,
		ingestion.FileProcessorConfig{
			OutputPrefix:  cfg.OutputPrefix,
			MaxInputBytes: cfg.MaxInputBytes,
			SinkPostgres:  cfg.SinkPostgres,
		},
	)

	service := ingestion.NewIngestionService(
		ingestion.Setup{},
		ingestion.NewAsyncWorker(logger),
		fileProcessor,
		logger,
		ingestion.Config{NumFileWorkers: cfg.NumFileWorkers},
	)

	return service, cleanup, nil
}
