package database

import (
	"context"
	"errors"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
)

const (
	FILE_STATUS_PROCESSING = "PROCESSING"
	FILE_STATUS_DONE       = "DONE"
	FILE_STATUS_FATAL      = "FATAL"
)

var ErrFileRecordNotFound = errors.New("file record not found")

// DBManager is the processing ledger. It remembers which inputs were cleaned,
// with which outcome, and optionally keeps the accepted records.
type DBManager interface {
	CreateFileRecordsTable(ctx context.Context) error
	CreateCleanRecordsTable(ctx context.Context) error
	InsertFileRecord(ctx context.Context, fileName string, date time.Time, status string, checksum string) (int, error)
	UpdateFileStatus(ctx context.Context, fileID int, status string, result models.FileResult, errors []string) error
	IsFileAlreadyProcessed(ctx context.Context, fileName string, checksum string) (bool, error)
	GetLatestFileRecord(ctx context.Context, fileName string) (*models.FileRecord, error)
	InsertCleanRecords(ctx context.Context, fileID int, records []models.CleanRecord) error
}

// NoopDBManager is used when no database is configured. Nothing is remembered,
// so every input is processed.
type NoopDBManager struct{}

func (NoopDBManager) CreateFileRecordsTable(context.Context) error  { return nil }
func (NoopDBManager) CreateCleanRecordsTable(context.Context) error { return nil }

func (NoopDBManager) InsertFileRecord(context.Context, string, time.Time, string, string) (int, error) {
	return 0, nil
}

func (NoopDBManager) UpdateFileStatus(context.Context, int, string, models.FileResult, []string) error {
	return nil
}

func (NoopDBManager) IsFileAlreadyProcessed(context.Context, string, string) (bool, error) {
	return false, nil
}

func (NoopDBManager) GetLatestFileRecord(context.Context, string) (*models.FileRecord, error) {
	return nil, ErrFileRecordNotFound
}

func (NoopDBManager) InsertCleanRecords(context.Context, int, []models.CleanRecord) error {
	return nil
}
