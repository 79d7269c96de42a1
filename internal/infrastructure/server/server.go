package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/database/bunstore"
	httpserver "github.com/bookmatch/bookmatch-api/internal/server"
	"github.com/bookmatch/bookmatch-api/internal/serving"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	dbConn     *sql.DB
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg: cfg,
	}
}

func (s *Server) Run() error {
	ctx := context.Background()

	// ==========================================
	// Initialize Dependencies (Dependency Injection)
	// ==========================================

	var err error
	s.dbConn, err = sql.Open(sqliteshim.ShimName, s.cfg.ArtifactDBPath)
	if err != nil {
		return fmt.Errorf("open artifact database %s: %w", s.cfg.ArtifactDBPath, err)
	}
	defer func() {
		if closeErr := s.dbConn.Close(); closeErr != nil {
			log.Printf("[Warning] Failed to close database: %v", closeErr)
		}
	}()

	bunStore, err := bunstore.NewBunStore(s.dbConn, sqlitedialect.New())
	if err != nil {
		return fmt.Errorf("initialize artifact store: %w", err)
	}

	// Load the initial dataset version. An incomplete artifact set is fatal
	// at startup; once serving, failed reloads keep the previous version.
	manager, err := serving.NewManager(ctx, func(ctx context.Context) (*serving.Dataset, error) {
		return serving.LoadDataset(ctx, bunStore, s.cfg)
	})
	if err != nil {
		return fmt.Errorf("load initial dataset: %w", err)
	}

	// ==========================================
	// Initialize and Start HTTP Server
	// ==========================================

	apiServer := httpserver.NewServer(manager, s.cfg)
	handler := apiServer.RegisterRoutes()

	addr := fmt.Sprintf(":%d", s.cfg.APIPort)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("[System] Starting REST API Server on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Error] HTTP server failed: %v", err)
		}
	}()

	<-stop
	log.Println("[System] Shutdown signal received. Draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Error] HTTP shutdown error: %v", err)
	}

	log.Println("[System] Server stopped gracefully.")
	return nil
}
