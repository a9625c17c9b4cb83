package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with the service name and per-process counters.
type Logger struct {
	*logrus.Logger
	serviceName string
	metrics     *Metrics
}

// Metrics keeps running totals in memory.
type Metrics struct {
	mu                  sync.RWMutex
	filesProcessed      int64
	filesSkipped        int64
	filesFailed         int64
	rowsRead            int64
	rowsAccepted        int64
	rowsRejected        int64
	rowsDuplicated      int64
	processingTimeTotal time.Duration
	failuresByType      map[string]int64
	startTime           time.Time
}

// NewLogger builds a JSON logger writing to stdout. level is one of
// DEBUG, INFO, WARN or ERROR; anything else means INFO.
func NewLogger(serviceName, level string) *Logger {
	return NewLoggerWithOutput(serviceName, level, os.Stdout)
}

func NewLoggerWithOutput(serviceName, level string, out io.Writer) *Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	switch strings.ToUpper(level) {
	case "DEBUG":
		log.SetLevel(logrus.DebugLevel)
	case "WARN":
		log.SetLevel(logrus.WarnLevel)
	case "ERROR":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	log.SetOutput(out)

	return &Logger{
		Logger:      log,
		serviceName: serviceName,
		metrics:     NewMetrics(),
	}
}

func NewMetrics() *Metrics {
	return &Metrics{
		failuresByType: make(map[string]int64),
		startTime:      time.Now(),
	}
}

// WithFile scopes an entry to one input object.
func (l *Logger) WithFile(key string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"service": l.serviceName,
		"file":    key,
	})
}

func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"service": l.serviceName,
		"error":   err.Error(),
	})
}

// RecordFileProcessed adds one cleaned file and its batch counters.
func (l *Logger) RecordFileProcessed(report models.BatchReport, duration time.Duration) {
	l.metrics.mu.Lock()
	defer l.metrics.mu.Unlock()
	l.metrics.filesProcessed++
	l.metrics.rowsRead += int64(report.RowsRead)
	l.metrics.rowsAccepted += int64(report.Accepted)
	l.metrics.rowsRejected += int64(report.Rejected)
	l.metrics.rowsDuplicated += int64(report.Duplicates)
	l.metrics.processingTimeTotal += duration
}

func (l *Logger) RecordFileSkipped() {
	l.metrics.mu.Lock()
	defer l.metrics.mu.Unlock()
	l.metrics.filesSkipped++
}

func (l *Logger) RecordFileFailure(failureType string) {
	l.metrics.mu.Lock()
	defer l.metrics.mu.Unlock()
	l.metrics.filesFailed++
	l.metrics.failuresByType[failureType]++
}

type MetricsSnapshot struct {
	Service           string           `json:"service"`
	Uptime            string           `json:"uptime"`
	FilesProcessed    int64            `json:"files_processed"`
	FilesSkipped      int64            `json:"files_skipped"`
	FilesFailed       int64            `json:"files_failed"`
	RowsRead          int64            `json:"rows_read"`
	RowsAccepted      int64            `json:"rows_accepted"`
	RowsRejected      int64            `json:"rows_rejected"`
	RowsDuplicated    int64            `json:"rows_duplicated"`
	AvgProcessingTime string           `json:"avg_processing_time"`
	FailuresByType    map[string]int64 `json:"failures_by_type"`
	AcceptanceRate    float64          `json:"acceptance_rate_percent"`
}

func (l *Logger) GetMetrics() MetricsSnapshot {
	l.metrics.mu.RLock()
	defer l.metrics.mu.RUnlock()

	var avgProcessingTime time.Duration
	if l.metrics.filesProcessed > 0 {
		avgProcessingTime = l.metrics.processingTimeTotal / time.Duration(l.metrics.filesProcessed)
	}

	failuresByType := make(map[string]int64, len(l.metrics.failuresByType))
	for k, v := range l.metrics.failuresByType {
		failuresByType[k] = v
	}

	var acceptanceRate float64
	if l.metrics.rowsRead > 0 {
		acceptanceRate = float64(l.metrics.rowsAccepted) / float64(l.metrics.rowsRead) * 100
	}

	return MetricsSnapshot{
		Service:           l.serviceName,
		Uptime:            time.Since(l.metrics.startTime).String(),
		FilesProcessed:    l.metrics.filesProcessed,
		FilesSkipped:      l.metrics.filesSkipped,
		FilesFailed:       l.metrics.filesFailed,
		RowsRead:          l.metrics.rowsRead,
		RowsAccepted:      l.metrics.rowsAccepted,
		RowsRejected:      l.metrics.rowsRejected,
		RowsDuplicated:    l.metrics.rowsDuplicated,
		AvgProcessingTime: avgProcessingTime.String(),
		FailuresByType:    failuresByType,
		AcceptanceRate:    acceptanceRate,
	}
}

func (l *Logger) LogMetrics() {
	metrics := l.GetMetrics()
	l.WithFields(logrus.Fields{
		"service":             l.serviceName,
		"uptime":              metrics.Uptime,
		"files_processed":     metrics.FilesProcessed,
		"files_skipped":       metrics.FilesSkipped,
		"files_failed":        metrics.FilesFailed,
		"rows_read":           metrics.RowsRead,
		"rows_accepted":       metrics.RowsAccepted,
		"rows_rejected":       metrics.RowsRejected,
		"rows_duplicated":     metrics.RowsDuplicated,
		"avg_processing_time": metrics.AvgProcessingTime,
		"failures_by_type":    metrics.FailuresByType,
		"acceptance_rate":     metrics.AcceptanceRate,
	}).Info("Metrics snapshot")
}
