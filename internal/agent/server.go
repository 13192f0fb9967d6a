// Package agent exposes the medication safety analysis core over the Model
// Context Protocol. The same six tools are served by both deployment modes:
// the full server backed by Postgres and Redis, and the lite server backed
// by an embedded SQLite knowledge base.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/agent/caching"
	"github.com/medsafety-mcp-server/internal/agent/health"
	"github.com/medsafety-mcp-server/internal/config"
	"github.com/medsafety-mcp-server/internal/database"
	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/internal/heuristic"
	"github.com/medsafety-mcp-server/internal/kb"
	"github.com/medsafety-mcp-server/internal/repository"
	"github.com/medsafety-mcp-server/internal/service"
	"github.com/medsafety-mcp-server/pkg/directory"
)

const (
	liteServerName = "medsafety-mcp-server-lite"
	serverVersion  = "1.0.0"
)

// Server wires the analysis core to an MCP endpoint, served over stdio or
// streamable HTTP.
type Server struct {
	name      string
	version   string
	transport string
	httpAddr  string

	mcpServer  *mcp.Server
	dispatcher *service.Dispatcher
	analysis   *service.AnalysisService
	ranker     *service.AlternativeRanker
	cache      *caching.AnalysisCache
	health     *health.Checker
	logger     *logrus.Logger

	closers []func() error
}

// Option customizes server construction.
type Option func(*Server) error

// WithLogger overrides the logger built from configuration.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithVersion overrides the advertised server version, typically with a
// build-time value.
func WithVersion(version string) Option {
	return func(s *Server) error {
		if strings.TrimSpace(version) == "" {
			return fmt.Errorf("version must not be empty")
		}
		s.version = version
		return nil
	}
}

// NewLiteServer builds the self-contained agent: SQLite knowledge base
// seeded from the bundled dataset, compiled-in heuristic table, in-memory
// result cache, and optionally a remote directory with the local store as
// fallback. It needs no external services.
func NewLiteServer(cfg *config.LiteConfig, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultLiteConfig()
	}

	s := &Server{
		name:      liteServerName,
		version:   serverVersion,
		transport: cfg.Transport,
		httpAddr:  fmt.Sprintf(":%d", cfg.HTTPPort),
		logger:    newLogger(cfg.LogLevel, cfg.LogFormat),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("preparing data directory: %w", err)
	}

	store, err := kb.NewSQLiteStore(cfg.KBPath())
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}
	s.addCloser(store.Close)

	storeDirectory := kb.NewStoreDirectory(store)
	var dir domain.DrugDirectory = storeDirectory
	if cfg.DirectoryURL != "" {
		client := directory.NewClient(domain.DirectoryConfig{
			BaseURL:    cfg.DirectoryURL,
			APIKey:     cfg.DirectoryAPIKey,
			Timeout:    10 * time.Second,
			RateLimit:  20,
			RetryCount: 3,
		})
		dir = directory.NewResilientDirectory(client,
			directory.WithFallback(storeDirectory),
			directory.WithLogger(s.logger),
		)
	}

	table, err := heuristic.Load(cfg.HeuristicTablePath)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("loading heuristic table: %w", err)
	}

	cache := caching.New(caching.Config{
		DefaultTTL: cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxItems,
		Enabled:    true,
	}, s.logger)

	checker := health.New(health.Config{}, s.logger)
	checker.Register("knowledge_base", true, store.Ping)
	checker.Register("result_cache", false, func(ctx context.Context) error {
		if !cache.Healthy(ctx) {
			return fmt.Errorf("cache round trip failed")
		}
		return nil
	})

	if err := s.assemble(dir, table, kb.NewStoreAlternatives(store), cache, checker,
		service.NormalizerConfig{CacheSize: cfg.CacheMaxItems}, service.ResolverConfig{}); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"kb_path":         cfg.KBPath(),
		"remote":          cfg.DirectoryURL != "",
		"heuristic_table": table.Version(),
	}).Info("Lite agent initialized")

	return s, nil
}

// NewServer builds the full agent: Postgres-backed knowledge base, Redis
// directory and result caches, and optionally a remote directory fronting
// the repository with circuit breaking.
func NewServer(manager *config.Manager, opts ...Option) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("config manager is required")
	}
	cfg := manager.GetConfig()

	s := &Server{
		name:    cfg.MCP.ServerName,
		version: cfg.MCP.ServerVersion,
		logger:  newLogger(cfg.Logging.Level, cfg.Logging.Format),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := database.NewConnection(ctx, database.FromDomain(&cfg.Database), s.logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to knowledge base: %w", err)
	}
	s.addCloser(func() error {
		db.Close()
		return nil
	})

	aliases := repository.NewAliasRepository(db.Pool, s.logger)
	interactions := repository.NewInteractionRepository(db.Pool, s.logger)
	alternatives := repository.NewAlternativeRepository(db.Pool, s.logger)

	base := repository.NewDirectory(aliases, interactions)
	var dir domain.DrugDirectory = base
	var remote *directory.Client
	if cfg.Directory.BaseURL != "" {
		remote = directory.NewClient(cfg.Directory)
		dir = directory.NewResilientDirectory(remote,
			directory.WithFallback(base),
			directory.WithLogger(s.logger),
		)
	}

	var cachedDir *directory.CachedDirectory
	if cfg.Cache.DirectoryURL != "" {
		cachedDir, err = directory.NewCachedDirectory(dir, cfg.Cache, s.logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("initializing directory cache: %w", err)
		}
		s.addCloser(cachedDir.Close)
		dir = cachedDir
	}

	table, err := heuristic.Load(cfg.Analysis.HeuristicTablePath)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("loading heuristic table: %w", err)
	}

	var resultRedis *redis.Client
	if cfg.MCP.EnableCaching && cfg.Cache.ResultURL != "" {
		redisOpts, err := redis.ParseURL(cfg.Cache.ResultURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("parsing result cache URL: %w", err)
		}
		resultRedis = redis.NewClient(redisOpts)
		s.addCloser(resultRedis.Close)
	}
	cache := caching.New(caching.Config{
		RedisClient: resultRedis,
		DefaultTTL:  cfg.MCP.ResultCacheTTL,
		MaxEntries:  cfg.Analysis.MemoCacheSize,
		Enabled:     cfg.MCP.EnableCaching,
	}, s.logger)

	checker := health.New(health.Config{}, s.logger)
	checker.Register("knowledge_base", true, db.Health)
	if cachedDir != nil {
		checker.Register("directory_cache", false, cachedDir.Ping)
	}
	if remote != nil {
		client := remote
		checker.Register("drug_directory", false, func(ctx context.Context) error {
			_, err := client.LookupAlias(ctx, "aspirin")
			return err
		})
	}
	checker.Register("result_cache", false, func(ctx context.Context) error {
		if !cache.Healthy(ctx) {
			return fmt.Errorf("cache round trip failed")
		}
		return nil
	})

	if err := s.assemble(dir, table, repository.NewAlternatives(alternatives), cache, checker,
		service.NormalizerConfig{
			CacheSize:      cfg.Analysis.AliasCacheSize,
			MaxConcurrency: cfg.Analysis.MaxConcurrency,
		},
		service.ResolverConfig{
			MemoSize:       cfg.Analysis.MemoCacheSize,
			MaxConcurrency: cfg.Analysis.MaxConcurrency,
		}); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"server":          s.name,
		"version":         s.version,
		"remote":          remote != nil,
		"directory_cache": cachedDir != nil,
		"result_cache":    resultRedis != nil,
		"heuristic_table": table.Version(),
	}).Info("Agent initialized")

	return s, nil
}

// assemble builds the analysis core on the resolved backends and registers
// the MCP tools. Shared by both deployment modes.
func (s *Server) assemble(
	dir domain.DrugDirectory,
	table *heuristic.Table,
	alternatives domain.AlternativeSource,
	cache *caching.AnalysisCache,
	checker *health.Checker,
	normalizerConfig service.NormalizerConfig,
	resolverConfig service.ResolverConfig,
) error {
	normalizer, err := service.NewNormalizer(dir, normalizerConfig, s.logger)
	if err != nil {
		return fmt.Errorf("building normalizer: %w", err)
	}

	resolver, err := service.NewTieredResolver(dir, table, resolverConfig, s.logger)
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	engine := service.NewPGxEngine(s.logger)

	analysis, err := service.NewAnalysisService(normalizer, resolver, engine, s.logger)
	if err != nil {
		return fmt.Errorf("building analysis service: %w", err)
	}

	dispatcher, err := service.NewDispatcher(analysis, s.logger)
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}

	ranker, err := service.NewAlternativeRanker(alternatives, normalizer, resolver, s.logger)
	if err != nil {
		return fmt.Errorf("building ranker: %w", err)
	}

	s.analysis = analysis
	s.dispatcher = dispatcher
	s.ranker = ranker
	s.cache = cache
	s.health = checker

	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)
	s.registerTools()

	return nil
}

// Run serves the agent until ctx is canceled or the client disconnects.
// The transport is stdio unless the configuration selected streamable HTTP.
func (s *Server) Run(ctx context.Context) error {
	s.health.Start()
	defer s.health.Stop()

	transport := s.transport
	if transport != "http" {
		transport = "stdio"
	}

	s.logger.WithFields(logrus.Fields{
		"server":    s.name,
		"version":   s.version,
		"transport": transport,
	}).Info("Agent listening")

	if transport == "http" {
		return s.runHTTP(ctx)
	}
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// runHTTP serves the MCP endpoint over streamable HTTP, alongside the
// liveness and readiness probes container schedulers expect.
func (s *Server) runHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.health.Status()
		code := http.StatusOK
		if status.Overall == health.StateUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.WithError(err).Debug("Encoding health status failed")
		}
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.health.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              s.httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down MCP endpoint: %w", err)
		}
		return ctx.Err()
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("serving MCP endpoint: %w", err)
		}
		return nil
	}
}

// Close releases backends in reverse construction order.
func (s *Server) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.WithError(err).Warn("Close failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.closers = nil
	return firstErr
}

// CacheStats reports result cache effectiveness.
func (s *Server) CacheStats() caching.Stats {
	return s.cache.Stats()
}

// Health exposes the component checker, for readiness probes.
func (s *Server) Health() *health.Checker {
	return s.health
}

func (s *Server) addCloser(close func() error) {
	s.closers = append(s.closers, close)
}

// newLogger builds the process logger. Stdout carries the MCP stream, so
// logs always go to stderr regardless of the configured output.
func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
