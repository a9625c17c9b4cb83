package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return dbpool, nil
}

type PostgresDBManager struct {
	dbpool *pgxpool.Pool
}

func NewPostgresDBManager(pool *pgxpool.Pool) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool}
}

func (m *PostgresDBManager) CreateFileRecordsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS file_records (
		id SERIAL PRIMARY KEY,
		file_name VARCHAR(1024) NOT NULL,
		processed_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('PROCESSING', 'DONE', 'FATAL')),
		checksum VARCHAR(64),
		output_key VARCHAR(1024),
		rows_read INTEGER NOT NULL DEFAULT 0,
		accepted INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		skipped_lines INTEGER NOT NULL DEFAULT 0,
		reject_by_rule jsonb,
		errors jsonb
	);
	CREATE INDEX IF NOT EXISTS idx_file_records_name_checksum ON file_records (file_name, checksum, status);
	CREATE INDEX IF NOT EXISTS idx_file_records_file_name ON file_records (file_name, id DESC);`

	_, err := m.dbpool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("error creating file_records table: %w", err)
	}

	return nil
}

// CreateCleanRecordsTable creates the table that receives accepted records when
// the postgres sink is enabled. Pass-through columns are kept in extra.
func (m *PostgresDBManager) CreateCleanRecordsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS clean_records (
		id BIGSERIAL PRIMARY KEY,
		file_id INTEGER NOT NULL,
		case_id BIGINT NOT NULL,
		fecha_not DATE NOT NULL,
		clasificacion VARCHAR(20) NOT NULL,
		ano INTEGER NOT NULL,
		semana INTEGER NOT NULL,
		anio_semana VARCHAR(10) NOT NULL,
		diresa TEXT NOT NULL,
		red TEXT NOT NULL,
		microred TEXT NOT NULL,
		establecimiento TEXT NOT NULL,
		institucion VARCHAR(20) NOT NULL,
		asintomatico TEXT NOT NULL,
		extra jsonb
	);
	CREATE INDEX IF NOT EXISTS idx_clean_records_case ON clean_records (case_id, fecha_not);`

	_, err := m.dbpool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("error creating clean_records table: %w", err)
	}

	return nil
}

func (m *PostgresDBManager) InsertFileRecord(ctx context.Context, fileName string, date time.Time, status string, checksum string) (int, error) {
	query := `
	INSERT INTO file_records (file_name, processed_at, status, checksum)
	VALUES ($1, $2, $3, $4)
	RETURNING id;`

	var fileID int
	err := m.dbpool.QueryRow(ctx, query, fileName, date, status, checksum).Scan(&fileID)
	if err != nil {
		return 0, fmt.Errorf("error inserting file record: %w", err)
	}

	return fileID, nil
}

func (m *PostgresDBManager) UpdateFileStatus(ctx context.Context, fileID int, status string, result models.FileResult, errors []string) error {
	query := `
	UPDATE file_records
	SET status = $1,
		output_key = $2,
		rows_read = $3,
		accepted = $4,
		duplicates = $5,
		rejected = $6,
		skipped_lines = $7,
		reject_by_rule = $8,
		errors = $9
	WHERE id = $10;`

	report := result.Report
	var errorsValue any
	if len(errors) > 0 {
		errorsValue = errors
	}

	_, err := m.dbpool.Exec(ctx, query,
		status,
		result.OutputKey,
		report.RowsRead,
		report.Accepted,
		report.Duplicates,
		report.Rejected,
		result.SkippedLines,
		report.RejectByRule,
		errorsValue,
		fileID,
	)
	if err != nil {
		return fmt.Errorf("error updating file status: %w", err)
	}

	return nil
}

// IsFileAlreadyProcessed reports whether this name was already cleaned with
// this exact content. The same bytes under another name are cleaned again.
func (m *PostgresDBManager) IsFileAlreadyProcessed(ctx context.Context, fileName string, checksum string) (bool, error) {
	query := `
	SELECT id
	FROM file_records
	WHERE file_name = $1 AND checksum = $2 AND status = 'DONE'
	LIMIT 1;`

	var id int

	err := m.dbpool.QueryRow(ctx, query, fileName, checksum).Scan(&id)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error finding file record by checksum: %w", err)
	}

	return true, nil
}

// GetLatestFileRecord returns the most recent ledger entry for an input key.
func (m *PostgresDBManager) GetLatestFileRecord(ctx context.Context, fileName string) (*models.FileRecord, error) {
	query := `
	SELECT id, file_name, processed_at, status, COALESCE(checksum, ''), COALESCE(output_key, ''),
		rows_read, accepted, duplicates, rejected, reject_by_rule
	FROM file_records
	WHERE file_name = $1
	ORDER BY id DESC
	LIMIT 1;`

	record := &models.FileRecord{}
	err := m.dbpool.QueryRow(ctx, query, fileName).Scan(
		&record.ID,
		&record.FileName,
		&record.ProcessedAt,
		&record.Status,
		&record.Checksum,
		&record.OutputKey,
		&record.Report.RowsRead,
		&record.Report.Accepted,
		&record.Report.Duplicates,
		&record.Report.Rejected,
		&record.Report.RejectByRule,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrFileRecordNotFound, fileName)
		}
		return nil, fmt.Errorf("error querying file record %s: %w", fileName, err)
	}

	return record, nil
}

var cleanRecordColumns = []string{
	"file_id", "case_id", "fecha_not", "clasificacion", "ano", "semana", "anio_semana",
	"diresa", "red", "microred", "establecimiento", "institucion", "asintomatico", "extra",
}

// cleanRecordRow lays out a record in cleanRecordColumns order.
func cleanRecordRow(fileID int, rec models.CleanRecord) ([]any, error) {
	fecha, err := time.Parse("2006-01-02", rec.FechaNot)
	if err != nil {
		return nil, fmt.Errorf("record %d has an invalid fecha_not %q: %w", rec.ID, rec.FechaNot, err)
	}

	var extra any
	if len(rec.Extra) > 0 {
		extra = rec.Extra
	}

	return []any{
		fileID, rec.ID, fecha, rec.Clasificacion, rec.Ano, rec.Semana, rec.AnioSemana,
		rec.Diresa, rec.Red, rec.Microred, rec.Establecimiento, rec.Institucion, rec.Asintomatico, extra,
	}, nil
}

// InsertCleanRecords bulk loads accepted records with COPY in one transaction.
func (m *PostgresDBManager) InsertCleanRecords(ctx context.Context, fileID int, records []models.CleanRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	copySource := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return cleanRecordRow(fileID, records[i])
	})

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"clean_records"}, cleanRecordColumns, copySource)
	if err != nil {
		return fmt.Errorf("unable to copy records for file %d: %w", fileID, err)
	}

	return tx.Commit(ctx)
}
