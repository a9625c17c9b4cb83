package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/database"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDBManager struct {
	database.NoopDBManager
	mock.Mock
}

func (m *MockDBManager) GetLatestFileRecord(ctx context.Context, fileName string) (*models.FileRecord, error) {
	args := m.Called(ctx, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FileRecord), args.Error(1)
}

func newTestLogger() *logging.Logger {
	return logging.NewLoggerWithOutput("api", "ERROR", &bytes.Buffer{})
}

func TestFileStatusService_GetFileRecord(t *testing.T) {
	t.Run("should return the latest file record", func(t *testing.T) {
		dbManager := new(MockDBManager)
		service := NewFileStatusService(dbManager, newTestLogger())

		expected := &models.FileRecord{
			ID:          12,
			FileName:    "uploads/2024/casos.csv",
			ProcessedAt: time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC),
			Status:      database.FILE_STATUS_DONE,
			Checksum:    "ef46db3751d8e999",
			OutputKey:   "processed/casos.json",
			Report:      models.BatchReport{RowsRead: 10, Accepted: 8, Rejected: 2, RejectByRule: map[int]int{8: 2}},
		}
		dbManager.On("GetLatestFileRecord", mock.Anything, "uploads/2024/casos.csv").Return(expected, nil).Once()

		req := httptest.NewRequest("GET", "/files/uploads/2024/casos.csv", nil)
		rr := httptest.NewRecorder()

		service.GetFileRecord(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var actual models.FileRecord
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&actual))
		assert.Equal(t, *expected, actual)

		dbManager.AssertExpectations(t)
	})

	t.Run("should return error when file name is not provided", func(t *testing.T) {
		service := NewFileStatusService(new(MockDBManager), newTestLogger())

		req := httptest.NewRequest("GET", "/files/", nil)
		rr := httptest.NewRecorder()

		service.GetFileRecord(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("should return not found for unknown files", func(t *testing.T) {
		dbManager := new(MockDBManager)
		service := NewFileStatusService(dbManager, newTestLogger())
		dbManager.On("GetLatestFileRecord", mock.Anything, "nope.csv").
			Return(nil, fmt.Errorf("%w: nope.csv", database.ErrFileRecordNotFound)).Once()

		req := httptest.NewRequest("GET", "/files/nope.csv", nil)
		rr := httptest.NewRecorder()

		service.GetFileRecord(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("should return error when db manager fails", func(t *testing.T) {
		dbManager := new(MockDBManager)
		service := NewFileStatusService(dbManager, newTestLogger())
		dbManager.On("GetLatestFileRecord", mock.Anything, "casos.csv").Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest("GET", "/files/casos.csv", nil)
		rr := httptest.NewRecorder()

		service.GetFileRecord(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		dbManager.AssertExpectations(t)
	})

	t.Run("should reject other methods", func(t *testing.T) {
		service := NewFileStatusService(new(MockDBManager), newTestLogger())

		req := httptest.NewRequest("DELETE", "/files/casos.csv", nil)
		rr := httptest.NewRecorder()

		service.GetFileRecord(rr, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestSetupRoutes(t *testing.T) {
	logger := newTestLogger()
	logger.RecordFileSkipped()
	router := SetupRoutes(NewFileStatusService(new(MockDBManager), logger), NewOpsService("api", logger))

	t.Run("health", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"healthy","service":"api"}`, rr.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var metrics logging.MetricsSnapshot
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&metrics))
		assert.Equal(t, int64(1), metrics.FilesSkipped)
	})
}
