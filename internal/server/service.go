package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/database"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
)

type FileStatusService struct {
	DBManager database.DBManager
	logger    *logging.Logger
}

func NewFileStatusService(dbManager database.DBManager, logger *logging.Logger) *FileStatusService {
	return &FileStatusService{DBManager: dbManager, logger: logger}
}

// GetFileRecord answers GET /files/{key} with the latest ledger entry of an
// input key. Keys may contain slashes.
func (h *FileStatusService) GetFileRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fileName := strings.TrimPrefix(r.URL.Path, "/files/")
	if fileName == "" {
		http.Error(w, "File name is required in the URL path /files/{name}", http.StatusBadRequest)
		return
	}

	record, err := h.DBManager.GetLatestFileRecord(r.Context(), fileName)
	if err != nil {
		if errors.Is(err, database.ErrFileRecordNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		h.logger.WithFile(fileName).WithError(err).Error("Failed to retrieve file record")
		http.Error(w, "Failed to retrieve file record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, record)
}

// OpsService serves liveness and the in-process counters.
type OpsService struct {
	serviceName string
	logger      *logging.Logger
}

func NewOpsService(serviceName string, logger *logging.Logger) *OpsService {
	return &OpsService{serviceName: serviceName, logger: logger}
}

func (h *OpsService) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

func (h *OpsService) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger.GetMetrics())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
