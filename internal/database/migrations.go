package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// Migrator applies versioned schema migrations to the knowledge base.
type Migrator struct {
	m   *migrate.Migrate
	log *logrus.Entry
}

// NewMigrator opens the migration source directory against the given
// database. Callers own Close.
func NewMigrator(databaseURL, sourceDir string, logger *logrus.Logger) (*Migrator, error) {
	m, err := migrate.New("file://"+sourceDir, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening migration source %s: %w", sourceDir, err)
	}

	return &Migrator{
		m:   m,
		log: logger.WithField("component", "migrations"),
	}, nil
}

// Up applies every pending migration. An already current schema is not an
// error.
func (g *Migrator) Up(ctx context.Context) error {
	err := g.m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		g.log.Info("Schema already current")
		return nil
	case err != nil:
		return fmt.Errorf("applying migrations: %w", err)
	}

	g.logVersion("Schema migrated")
	return nil
}

// Down rolls back the most recent migration.
func (g *Migrator) Down(ctx context.Context) error {
	err := g.m.Steps(-1)
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		g.log.Info("Nothing to roll back")
		return nil
	case err != nil:
		return fmt.Errorf("rolling back migration: %w", err)
	}

	g.logVersion("Schema rolled back")
	return nil
}

// Version reports the current schema version and whether it is dirty.
func (g *Migrator) Version() (uint, bool, error) {
	return g.m.Version()
}

func (g *Migrator) logVersion(msg string) {
	version, dirty, err := g.m.Version()
	if err != nil {
		g.log.WithError(err).Warn("Could not read schema version")
		return
	}
	g.log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info(msg)
}

// Close releases the migration source and database handles.
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	if srcErr != nil {
		return fmt.Errorf("closing migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration target: %w", dbErr)
	}
	return nil
}

// Migrate brings the knowledge base schema up to date and closes the
// migrator. Intended for server startup, where a missing migrations
// directory is a fatal configuration error.
func Migrate(ctx context.Context, databaseURL, sourceDir string, logger *logrus.Logger) error {
	mig, err := NewMigrator(databaseURL, sourceDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mig.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Could not close migrator")
		}
	}()

	return mig.Up(ctx)
}
