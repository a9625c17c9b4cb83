package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/database"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx := context.Background()
	dbpool, err := database.ConnectDB(ctx, connStr)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(dbpool)

	fmt.Println("Creating file_records table...")
	if err := dbManager.CreateFileRecordsTable(ctx); err != nil {
		log.Fatalf("Failed to create file_records table: %v", err)
	}

	fmt.Println("Creating clean_records table...")
	if err := dbManager.CreateCleanRecordsTable(ctx); err != nil {
		log.Fatalf("Failed to create clean_records table: %v", err)
	}

	fmt.Println("Database setup completed successfully.")
}
