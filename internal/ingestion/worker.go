package ingestion

import (
	"context"
	"errors"
	"sync"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
)

// maxErrorsPerFile bounds how many errors are kept for a single file.
const maxErrorsPerFile = 100

type Runner[T any] struct {
	Run T
}

// FileHandler cleans one object. FileProcessor.ProcessFile is the production handler.
type FileHandler func(ctx context.Context, key string) (models.FileResult, error)

// Worker defines the interface for asynchronous processing tasks.
type Worker interface {
	WithChannels(channels *models.ExtractionChannels) Worker
	WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker
	SetupJobDispatcherWorker(fileInfos []models.FileInfo) (Runner[func(context.Context)], *sync.WaitGroup, error)
	SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error)
	SetupResultWorker() (Runner[func(*[]models.FileResult)], *sync.WaitGroup, error)
	SetupFileWorkers(numberOfWorkers int) (Runner[func(context.Context, FileHandler)], *sync.WaitGroup, error)
}

type AsyncWorker struct {
	logger     *logging.Logger
	channels   *models.ExtractionChannels
	waitGroups *models.ExtractionWaitGroups
}

func NewAsyncWorker(logger *logging.Logger) *AsyncWorker {
	return &AsyncWorker{logger: logger}
}

func (w *AsyncWorker) WithChannels(channels *models.ExtractionChannels) Worker {
	w.channels = channels
	return w
}

func (w *AsyncWorker) WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker {
	w.waitGroups = waitGroups
	return w
}

// FileWorker handles jobs until the jobs channel is closed. Each job is one
// file with its own batch, so no state is shared between jobs.
func (w *AsyncWorker) FileWorker(ctx context.Context, workerID int, handler FileHandler) {
	defer w.waitGroups.FileWg.Done()
	for job := range w.channels.Jobs {
		if err := ctx.Err(); err != nil {
			w.channels.Errors <- models.AppError{FileKey: job.Key, Message: "Cancelled before processing", Err: err}
			continue
		}

		w.logger.WithFile(job.Key).Debugf("File worker %d started job", workerID)
		result, err := handler(ctx, job.Key)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				w.channels.Errors <- *appErr
			} else {
				w.channels.Errors <- models.AppError{FileKey: job.Key, Message: "Failed to process file", Err: err}
			}
			continue
		}

		w.channels.Results <- result
		w.logger.WithFile(job.Key).Debugf("File worker %d finished job", workerID)
	}
}

func (w *AsyncWorker) SetupFileWorkers(numberOfWorkers int) (Runner[func(context.Context, FileHandler)], *sync.WaitGroup, error) {
	if numberOfWorkers <= 0 {
		return Runner[func(context.Context, FileHandler)]{}, nil, errors.New("number of file workers must be positive")
	}

	return Runner[func(context.Context, FileHandler)]{
		Run: func(ctx context.Context, handler FileHandler) {
			for i := 1; i <= numberOfWorkers; i++ {
				w.waitGroups.FileWg.Add(1)
				go w.FileWorker(ctx, i, handler)
			}
		},
	}, w.waitGroups.FileWg, nil
}

func (w *AsyncWorker) ErrorWorker(fileErrorsMap *models.FileErrorMap) {
	defer w.waitGroups.MainWg.Done()
	for appErr := range w.channels.Errors {
		w.logger.Errorf("Caught error: %s", appErr.Error())
		if appErr.FileKey == "" {
			continue
		}

		fileErrorsMap.Mu.Lock()
		if len(fileErrorsMap.Errors[appErr.FileKey]) < maxErrorsPerFile {
			fileErrorsMap.Errors[appErr.FileKey] = append(fileErrorsMap.Errors[appErr.FileKey], appErr)
		} else {
			// File has too many errors, keep the first ones for manual inspection
			w.logger.WithFile(appErr.FileKey).Warn("File has too many errors, dropping")
		}
		fileErrorsMap.Mu.Unlock()
	}
}

func (w *AsyncWorker) SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error) {
	return Runner[func(*models.FileErrorMap)]{
		Run: func(fileErrorsMap *models.FileErrorMap) {
			w.waitGroups.MainWg.Add(1)
			go w.ErrorWorker(fileErrorsMap)
		},
	}, w.waitGroups.MainWg, nil
}

func (w *AsyncWorker) ResultWorker(results *[]models.FileResult) {
	defer w.waitGroups.MainWg.Done()
	for result := range w.channels.Results {
		*results = append(*results, result)
	}
}

func (w *AsyncWorker) SetupResultWorker() (Runner[func(*[]models.FileResult)], *sync.WaitGroup, error) {
	return Runner[func(*[]models.FileResult)]{
		Run: func(results *[]models.FileResult) {
			w.waitGroups.MainWg.Add(1)
			go w.ResultWorker(results)
		},
	}, w.waitGroups.MainWg, nil
}

// DispatchJobs feeds the jobs channel and closes it when every file was sent
// or ctx is done.
func (w *AsyncWorker) DispatchJobs(ctx context.Context, fileInfos []models.FileInfo) {
	defer close(w.channels.Jobs)
	defer w.waitGroups.MainWg.Done()

	for _, fileInfo := range fileInfos {
		select {
		case <-ctx.Done():
			w.logger.WithError(ctx.Err()).Warn("Dispatch stopped before all files were sent")
			return
		case w.channels.Jobs <- models.FileProcessingJob{Key: fileInfo.Key}:
			w.logger.WithFile(fileInfo.Key).Debug("Dispatched job")
		}
	}
}

func (w *AsyncWorker) SetupJobDispatcherWorker(fileInfos []models.FileInfo) (Runner[func(context.Context)], *sync.WaitGroup, error) {
	return Runner[func(context.Context)]{
		Run: func(ctx context.Context) {
			w.waitGroups.MainWg.Add(1)
			go w.DispatchJobs(ctx, fileInfos)
		},
	}, w.waitGroups.MainWg, nil
}
