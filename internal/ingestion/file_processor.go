package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/database"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/parser"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/sink"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/storage"
	"github.com/ThiagoRGoveia/epi-cleaning/pkg/checksum"
	"github.com/sirupsen/logrus"
)

const (
	SkipReasonNotCSV           = "not a csv object"
	SkipReasonAlreadyProcessed = "already processed"
)

// Processor defines the interface for file processing operations.
type Processor interface {
	ScanForFiles(ctx context.Context, prefix string) ([]models.FileInfo, error)
	ProcessFile(ctx context.Context, key string) (models.FileResult, error)
}

// BatchProcessor is satisfied by *batch.Processor.
type BatchProcessor interface {
	ProcessWithReport(rows []models.RawRecord) ([]models.CleanRecord, models.BatchReport)
}

type FileProcessorConfig struct {
	OutputPrefix  string
	MaxInputBytes int64
	SinkPostgres  bool
}

// FileProcessor runs one input object through decode, cleaning and output,
// keeping the processing ledger up to date.
type FileProcessor struct {
	input     storage.ObjectStore
	output    storage.ObjectStore
	dbManager database.DBManager
	batch     BatchProcessor
	logger    *logging.Logger
	config    FileProcessorConfig
	now       func() time.Time
}

func NewFileProcessor(
	input, output storage.ObjectStore,
	dbManager database.DBManager,
	batch BatchProcessor,
	logger *logging.Logger,
	cfg FileProcessorConfig,
) *FileProcessor {
	return &FileProcessor{
		input:     input,
		output:    output,
		dbManager: dbManager,
		batch:     batch,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// IsCSVKey reports whether an object key names a CSV extract. The match is case sensitive.
func IsCSVKey(key string) bool {
	return strings.HasSuffix(key, ".csv")
}

// ScanForFiles lists the CSV objects below prefix.
func (fp *FileProcessor) ScanForFiles(ctx context.Context, prefix string) ([]models.FileInfo, error) {
	fp.logger.WithField("prefix", prefix).Info("Scanning for files")

	objects, err := fp.input.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", prefix, err)
	}

	fileInfos := make([]models.FileInfo, 0, len(objects))
	for _, obj := range objects {
		if !IsCSVKey(obj.Key) {
			fp.logger.WithFile(obj.Key).Debug("Skipping non-CSV object")
			continue
		}
		fileInfos = append(fileInfos, obj)
	}

	fp.logger.Infof("Found %d files to process.", len(fileInfos))
	return fileInfos, nil
}

// ProcessFile cleans one object and writes the result next to the other outputs.
// Non-CSV keys and keys already cleaned with identical content are skipped without error.
func (fp *FileProcessor) ProcessFile(ctx context.Context, key string) (models.FileResult, error) {
	start := time.Now()
	result := models.FileResult{Key: key}
	log := fp.logger.WithFile(key)

	if !IsCSVKey(key) {
		log.Info("Skipped non-CSV file")
		result.Skipped = true
		result.Reason = SkipReasonNotCSV
		fp.logger.RecordFileSkipped()
		return result, nil
	}

	content, err := fp.readObject(ctx, key)
	if err != nil {
		failureType := "read_error"
		if errors.Is(err, parser.ErrInputTooLarge) {
			failureType = "input_too_large"
		}
		return result, fp.fail(key, failureType, "Failed to read input", err)
	}

	result.Checksum = checksum.BytesChecksum(content)
	isProcessed, err := fp.dbManager.IsFileAlreadyProcessed(ctx, key, result.Checksum)
	if err != nil {
		return result, fp.fail(key, "ledger_error", "Failed to check processing ledger", err)
	}
	if isProcessed {
		log.WithField("checksum", result.Checksum).Info("File has already been processed. Skipping.")
		result.Skipped = true
		result.Reason = SkipReasonAlreadyProcessed
		fp.logger.RecordFileSkipped()
		return result, nil
	}

	fileID, err := fp.dbManager.InsertFileRecord(ctx, key, fp.now(), database.FILE_STATUS_PROCESSING, result.Checksum)
	if err != nil {
		return result, fp.fail(key, "ledger_error", "Failed to insert file record", err)
	}

	result, err = fp.clean(ctx, fileID, result, content)
	if err != nil {
		fp.updateStatus(ctx, fileID, database.FILE_STATUS_FATAL, result, []string{err.Error()})
		return result, err
	}

	fp.updateStatus(ctx, fileID, database.FILE_STATUS_DONE, result, nil)
	fp.logger.RecordFileProcessed(result.Report, time.Since(start))
	log.WithFields(logrus.Fields{
		"output_key":    result.OutputKey,
		"rows_read":     result.Report.RowsRead,
		"accepted":      result.Report.Accepted,
		"rejected":      result.Report.Rejected,
		"duplicates":    result.Report.Duplicates,
		"skipped_lines": result.SkippedLines,
	}).Info("File cleaned")

	return result, nil
}

func (fp *FileProcessor) readObject(ctx context.Context, key string) ([]byte, error) {
	rc, err := fp.input.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return parser.ReadAllLimited(rc, fp.config.MaxInputBytes)
}

func (fp *FileProcessor) clean(ctx context.Context, fileID int, result models.FileResult, content []byte) (models.FileResult, error) {
	parsed, err := parser.ReadRecords(bytes.NewReader(content))
	if err != nil {
		return result, fp.fail(result.Key, "parse_error", "Failed to decode CSV", err)
	}
	result.SkippedLines = parsed.SkippedLines

	records, report := fp.batch.ProcessWithReport(parsed.Records)
	result.Report = report

	var buf bytes.Buffer
	if err := sink.WriteJSON(&buf, records); err != nil {
		return result, fp.fail(result.Key, "encode_error", "Failed to encode output", err)
	}

	outputKey := sink.OutputKey(result.Key, fp.config.OutputPrefix)
	fp.logger.WithFile(result.Key).Debugf("Uploading cleaned file to: %s", outputKey)
	if err := fp.output.Put(ctx, outputKey, bytes.NewReader(buf.Bytes()), sink.ContentType); err != nil {
		return result, fp.fail(result.Key, "upload_error", "Failed to write output", err)
	}
	result.OutputKey = outputKey

	if fp.config.SinkPostgres {
		if err := fp.dbManager.InsertCleanRecords(ctx, fileID, records); err != nil {
			return result, fp.fail(result.Key, "sink_error", "Failed to load records into postgres", err)
		}
	}

	return result, nil
}

// updateStatus records the outcome even when ctx was cancelled mid file.
func (fp *FileProcessor) updateStatus(ctx context.Context, fileID int, status string, result models.FileResult, errs []string) {
	err := fp.dbManager.UpdateFileStatus(context.WithoutCancel(ctx), fileID, status, result, errs)
	if err != nil {
		fp.logger.WithFile(result.Key).WithError(err).Errorf("Failed to update status to %s", status)
	}
}

func (fp *FileProcessor) fail(key, failureType, message string, err error) error {
	fp.logger.RecordFileFailure(failureType)
	fp.logger.WithFile(key).WithError(err).Error(message)
	return &models.AppError{FileKey: key, Message: message, Err: err}
}
