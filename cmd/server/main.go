// Package main is the entry point for the medication safety HTTP API server.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/api"
	"github.com/medsafety-mcp-server/internal/config"
	"github.com/medsafety-mcp-server/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := configManager.GetConfig()
	log.Printf("Starting medication safety API server on %s:%d", cfg.Server.Host, cfg.Server.Port)

	// Schema first; the handlers assume current migrations.
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelMigrate()
	if err := database.Migrate(migrateCtx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logrus.StandardLogger()); err != nil {
		return fmt.Errorf("migrating knowledge base: %w", err)
	}

	server, err := api.NewServer(configManager)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
