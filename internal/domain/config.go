package domain

import (
	"time"
)

// Config aggregates every section of the full server configuration. The
// standalone binary uses the lighter LiteConfig in internal/config instead.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// DatabaseConfig is the Postgres connection for the curated knowledge base.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig holds the Redis URLs. DirectoryURL backs the directory lookup
// cache; ResultURL backs the agent result cache. Either may be empty to run
// without that cache.
type CacheConfig struct {
	DirectoryURL string        `mapstructure:"directory_url"`
	ResultURL    string        `mapstructure:"result_url"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// DirectoryConfig points at the remote canonical drug directory service. An
// empty BaseURL disables the remote client; lookups are then served by the
// knowledge base and bundled dataset only.
type DirectoryConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// AnalysisConfig tunes the analysis core.
type AnalysisConfig struct {
	MaxConcurrency     int    `mapstructure:"max_concurrency"`
	MemoCacheSize      int    `mapstructure:"memo_cache_size"`
	AliasCacheSize     int    `mapstructure:"alias_cache_size"`
	HeuristicTablePath string `mapstructure:"heuristic_table_path"`
}

// LoggingConfig selects level, format, and destination for log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig names the MCP server identity and its transport.
type MCPConfig struct {
	ServerName     string        `mapstructure:"server_name"`
	ServerVersion  string        `mapstructure:"server_version"`
	TransportType  string        `mapstructure:"transport_type"` // "stdio" or "http"
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnableCaching  bool          `mapstructure:"enable_caching"`
	ResultCacheTTL time.Duration `mapstructure:"result_cache_ttl"`
}
