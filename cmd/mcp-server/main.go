// Package main is the entry point for the medication safety MCP server
// backed by the full PostgreSQL knowledge base.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/agent"
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
	log.Printf("Starting %s %s", cfg.MCP.ServerName, cfg.MCP.ServerVersion)

	// Schema first; the tool handlers assume current migrations.
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelMigrate()
	if err := database.Migrate(migrateCtx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logrus.StandardLogger()); err != nil {
		return fmt.Errorf("migrating knowledge base: %w", err)
	}

	server, err := agent.NewServer(configManager)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}

	log.Println("Medication safety MCP server stopped")
	return nil
}
