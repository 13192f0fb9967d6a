// Package database manages the Postgres connection pool and schema
// migrations backing the curated medication knowledge base.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// Config holds the pool settings for the knowledge base connection.
type Config struct {
	Host        string
	Port        int
	Database    string
	Username    string
	Password    string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	SSLMode     string
}

// FromDomain converts the application database configuration to pool
// settings. MinConns follows the configured idle connection count.
func FromDomain(cfg *domain.DatabaseConfig) Config {
	return Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Database:    cfg.Database,
		Username:    cfg.Username,
		Password:    cfg.Password,
		MaxConns:    int32(cfg.MaxOpenConns),
		MinConns:    int32(cfg.MaxIdleConns),
		MaxConnLife: cfg.ConnMaxLifetime,
		MaxConnIdle: 30 * time.Minute,
		SSLMode:     cfg.SSLMode,
	}
}

// dsn renders the config as a postgres URL. Credentials are URL-escaped, so
// passwords with reserved characters survive the round trip.
func (c Config) dsn() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// DB is the shared connection pool handle for the knowledge base.
type DB struct {
	Pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewConnection opens a pgx pool against the configured database and
// verifies it with a ping before returning.
func NewConnection(ctx context.Context, config Config, logger *logrus.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.dsn())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.MaxConnLife
	poolConfig.MaxConnIdleTime = config.MaxConnIdle

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging knowledge base: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     config.Host,
		"port":     config.Port,
		"database": config.Database,
		"pool_max": config.MaxConns,
		"pool_min": config.MinConns,
	}).Info("Knowledge base pool established")

	return &DB{Pool: pool, log: logger}, nil
}

// Close shuts the pool down. Safe on a handle that never connected.
func (db *DB) Close() {
	if db.Pool == nil {
		return
	}
	db.Pool.Close()
	db.log.Info("Knowledge base pool closed")
}

// Health pings the database.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stats exposes pgxpool counters for diagnostics.
func (db *DB) Stats() *pgxpool.Stat {
	return db.Pool.Stat()
}
