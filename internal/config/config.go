package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/medsafety-mcp-server/internal/domain"
)

// Manager loads and serves the application configuration. Each Manager owns
// its own viper instance, so constructing one never touches global state.
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager merges defaults, an optional config.yaml, and MEDSAFETY_*
// environment variables, in ascending precedence.
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) load() error {
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")
	for _, dir := range []string{".", "./config", "/etc/medsafety-mcp-server/"} {
		m.v.AddConfigPath(dir)
	}

	m.v.SetEnvPrefix("MEDSAFETY")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	setDefaults(m.v)

	// A missing config file is fine; defaults and environment cover it.
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls_enabled", false)

	// Knowledge base
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "medsafety_mcp")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	// Caches. The directory cache fronts alias and interaction lookups; the
	// result cache stores finished analysis envelopes.
	v.SetDefault("cache.directory_url", "redis://localhost:6379/0")
	v.SetDefault("cache.result_url", "redis://localhost:6379/1")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Remote drug directory. Disabled unless a base URL is set.
	v.SetDefault("directory.base_url", "")
	v.SetDefault("directory.timeout", "10s")
	v.SetDefault("directory.rate_limit", 20)
	v.SetDefault("directory.retry_count", 3)

	// Analysis tuning
	v.SetDefault("analysis.max_concurrency", 8)
	v.SetDefault("analysis.memo_cache_size", 2048)
	v.SetDefault("analysis.alias_cache_size", 4096)
	v.SetDefault("analysis.heuristic_table_path", "")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP surface
	v.SetDefault("mcp.server_name", "medsafety-mcp-server")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
	v.SetDefault("mcp.request_timeout", "30s")
	v.SetDefault("mcp.enable_caching", true)
	v.SetDefault("mcp.result_cache_ttl", "15m")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Validate rejects configurations the servers cannot run with.
func (m *Manager) Validate() error {
	cfg := m.config

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if cfg.Directory.BaseURL != "" {
		if cfg.Directory.Timeout <= 0 {
			return fmt.Errorf("directory timeout must be positive")
		}
		if cfg.Directory.RateLimit <= 0 {
			return fmt.Errorf("directory rate limit must be positive")
		}
	}

	if cfg.Analysis.MaxConcurrency < 1 {
		return fmt.Errorf("analysis max concurrency must be at least 1")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}

// GetDatabaseURL renders the database settings as a postgres URL, as
// expected by golang-migrate. Credentials are URL-escaped.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.Username, db.Password),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Database,
	}
	if db.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(db.SSLMode)
	}
	return u.String()
}
