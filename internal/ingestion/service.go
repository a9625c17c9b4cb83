package ingestion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/trigger"
)

type Config struct {
	NumFileWorkers int
}

// ExecutionSummary is the outcome of a scan run: one result per cleaned or
// skipped file and the errors of the files that failed.
type ExecutionSummary struct {
	Results []models.FileResult
	Errors  map[string][]models.AppError
}

type IngestionService struct {
	setupService  ISetup
	asyncWorker   Worker
	fileProcessor Processor
	logger        *logging.Logger
	config        Config
}

func NewIngestionService(setupService ISetup, worker Worker, processor Processor, logger *logging.Logger, cfg Config) *IngestionService {
	return &IngestionService{
		setupService:  setupService,
		asyncWorker:   worker,
		fileProcessor: processor,
		logger:        logger,
		config:        cfg,
	}
}

// HandleObject cleans a single object.
func (h *IngestionService) HandleObject(ctx context.Context, key string) (models.FileResult, error) {
	return h.fileProcessor.ProcessFile(ctx, key)
}

// HandleEvent cleans every object of a notification in order. A failing object
// does not stop the others; the returned error lists every failure.
func (h *IngestionService) HandleEvent(ctx context.Context, event trigger.StorageEvent) error {
	h.logger.WithField("objects", len(event.Objects)).Info("Event received")

	var failed []string
	for _, obj := range event.Objects {
		h.logger.WithFile(obj.Key).Info("Processing file")
		if _, err := h.HandleObject(ctx, obj.Key); err != nil {
			failed = append(failed, err.Error())
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d objects failed: %s", len(failed), len(event.Objects), strings.Join(failed, "; "))
	}

	return nil
}

// Execute orchestrates the cleaning of every CSV object below prefix.
func (h *IngestionService) Execute(ctx context.Context, prefix string) (*ExecutionSummary, error) {
	// Step 0: Setup the run environment.
	environmentConfig, err := h.setupService.build()
	if err != nil {
		return nil, err
	}

	channels, waitGroups, fileErrorsMap, results := environmentConfig.GetValues()

	// Step 0.1: Find the files to clean.
	fileInfos, err := h.fileProcessor.ScanForFiles(ctx, prefix)
	if err != nil {
		h.logger.WithError(err).Error("Failed to scan files")
		return nil, err
	}

	// Step 0.2: Setup the async worker channels and wait groups VERY IMPORTANT: can cause panic if not done
	h.asyncWorker.WithChannels(channels).WithWaitGroups(waitGroups)

	// Step 1: Send one job per file. Sharing MainWg with the error and result workers.
	dispatcherRunner, _, err := h.asyncWorker.SetupJobDispatcherWorker(fileInfos)
	if err != nil {
		return nil, err
	}

	// Step 2: Setup the error and result collectors
	errorWorkerRunner, _, err := h.asyncWorker.SetupErrorWorker()
	if err != nil {
		return nil, err
	}
	resultWorkerRunner, mainWaitGroup, err := h.asyncWorker.SetupResultWorker()
	if err != nil {
		return nil, err
	}

	// Step 3: Setup file workers, each file is cleaned as an independent batch
	fileWorkersRunner, fileWaitGroup, err := h.asyncWorker.SetupFileWorkers(h.config.NumFileWorkers)
	if err != nil {
		return nil, err
	}

	dispatcherRunner.Run(ctx)
	errorWorkerRunner.Run(fileErrorsMap)
	resultWorkerRunner.Run(results)
	fileWorkersRunner.Run(ctx, h.fileProcessor.ProcessFile)

	// Step 4: Wait for all processing to complete.
	h.logger.Debug("Waiting for file workers to finish...")
	fileWaitGroup.Wait()

	// Step 4.1: Close the collector channels after every producer is done.
	close(channels.Errors)
	close(channels.Results)

	h.logger.Debug("Waiting for collectors to finish...")
	mainWaitGroup.Wait()

	summary := &ExecutionSummary{Results: *results, Errors: fileErrorsMap.Errors}
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Key < summary.Results[j].Key
	})

	h.logger.LogMetrics()

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if len(summary.Errors) > 0 {
		return summary, fmt.Errorf("%d of %d files failed", len(summary.Errors), len(fileInfos))
	}

	h.logger.Info("Cleaning run finished.")
	return summary, nil
}
