// Package main is the self-contained entry point for the medication safety
// MCP server. This version requires no external databases: the knowledge
// base is an embedded SQLite file under the data directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/medsafety-mcp-server/internal/agent"
	"github.com/medsafety-mcp-server/internal/config"
	"github.com/medsafety-mcp-server/internal/kb"
	"github.com/medsafety-mcp-server/internal/setup"
)

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// dispatch routes maintenance subcommands. Anything else starts the server,
// so the binary stays usable as a plain MCP stdio command.
func dispatch(args []string) error {
	if len(args) == 0 {
		return serve()
	}

	switch args[0] {
	case "setup":
		return setup.NewCLI("lite").Run(args[1:])
	case "export":
		return runExport(args[1:])
	case "import":
		return runImport(args[1:])
	default:
		return serve()
	}
}

func serve() error {
	cfg := config.LoadLiteConfig()

	log.Printf("Starting medication safety MCP server (lite) with transport: %s", cfg.Transport)
	log.Printf("Data directory: %s", cfg.DataDir)

	server, err := agent.NewLiteServer(cfg)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}

	log.Println("Medication safety MCP server (lite) stopped")
	return nil
}

// runExport writes the knowledge base as JSON to the named file, or to
// stdout when no file (or "-") is given.
func runExport(args []string) error {
	cfg := config.LoadLiteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	store, err := kb.NewSQLiteStore(cfg.KBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	out := os.Stdout
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return store.ExportJSON(context.Background(), out)
}

// runImport merges a JSON export into the knowledge base.
func runImport(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mcp-server-lite import <file>")
	}

	cfg := config.LoadLiteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	store, err := kb.NewSQLiteStore(cfg.KBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	imported, skipped, err := store.ImportJSON(context.Background(), f)
	if err != nil {
		return err
	}
	log.Printf("Imported %d records, skipped %d", imported, skipped)
	return nil
}
