package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/config"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/database"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	logger := logging.NewLogger("api", cfg.LogLevel)

	dbpool, err := database.ConnectDB(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to the database")
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(dbpool)

	router := server.SetupRoutes(
		server.NewFileStatusService(dbManager, logger),
		server.NewOpsService("api", logger),
	)

	logger.Infof("Server starting on port %s", cfg.APIPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.APIPort), router); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}
