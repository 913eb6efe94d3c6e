// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/api"
	"github.com/LowellObservatory/indi-allsky/api/resources"
	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/repository/sqldb"
	"github.com/LowellObservatory/indi-allsky/internal/storage"
)

// Server runs the sync API HTTP endpoint.
type Server struct {
	config *config.Config
	db     database.DB
	srv    *http.Server
}

// New connects the database, prepares the schema and wires the sync
// routes.
func New(cfg *config.Config) (*Server, error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema initialization failed: %w", err)
	}

	layout, err := storage.NewLayout(cfg.ImageFolder)
	if err != nil {
		db.Close()
		return nil, err
	}

	res := resources.NewResources(
		sqldb.NewCameraRepository(db),
		sqldb.NewAssetRepository(db),
		sqldb.NewSyncUserRepository(db),
		layout,
		cfg,
	)

	router := api.NewRouter(res)
	handler := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CombinedLoggingHandler(os.Stdout, router),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config: cfg,
		db:     db,
		srv:    srv,
	}, nil
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	go func() {
		nuts.L.Infof("[Server] Starting sync API on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	if err := s.db.Close(); err != nil {
		nuts.L.Warnf("[Server] Error closing database: %v", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}
