package main

import (
	"log"

	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/infrastructure/server"
)

func main() {
	log.Println("Starting BookMatch API...")

	// Load Configuration
	cfg := config.GetConfig()

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
