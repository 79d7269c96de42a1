package main

import (
	"context"
	"database/sql"
	"log"

	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/database/bunstore"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	log.Println("Starting BookMatch index build...")

	cfg := config.GetConfig()

	dbConn, err := sql.Open(sqliteshim.ShimName, cfg.ArtifactDBPath)
	if err != nil {
		log.Fatalf("Failed to open artifact database %s: %v", cfg.ArtifactDBPath, err)
	}
	defer func() {
		if closeErr := dbConn.Close(); closeErr != nil {
			log.Printf("[Warning] Failed to close database: %v", closeErr)
		}
	}()

	store, err := bunstore.NewBunStore(dbConn, sqlitedialect.New())
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}

	if err := Run(context.Background(), cfg, store); err != nil {
		log.Fatalf("Index build failed: %v", err)
	}

	log.Println("Index build completed.")
}
