package server

import (
	"net/http"
)

func SetupRoutes(fileHandler *FileStatusService, opsHandler *OpsService) *http.ServeMux {
	mux := SetupOpsRoutes(opsHandler)

	mux.HandleFunc("/files/", fileHandler.GetFileRecord)

	return mux
}

// SetupOpsRoutes registers only /health and /metrics, for processes that
// have no ledger to expose.
func SetupOpsRoutes(opsHandler *OpsService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", opsHandler.Health)
	mux.HandleFunc("/metrics", opsHandler.Metrics)

	return mux
}
