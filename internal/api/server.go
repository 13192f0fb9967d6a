// Package api exposes the medication safety analysis core over HTTP. It
// serves the same analyses as the MCP agent, plus a websocket endpoint that
// streams per-stage progress while an analysis runs.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/agent/health"
	"github.com/medsafety-mcp-server/internal/config"
	"github.com/medsafety-mcp-server/internal/database"
	"github.com/medsafety-mcp-server/internal/domain"
	"github.com/medsafety-mcp-server/internal/heuristic"
	"github.com/medsafety-mcp-server/internal/middleware"
	"github.com/medsafety-mcp-server/internal/repository"
	"github.com/medsafety-mcp-server/internal/service"
	"github.com/medsafety-mcp-server/pkg/directory"
)

// Components are the analysis backends the HTTP surface serves. Tests
// inject lightweight builds; NewServer wires the production set.
type Components struct {
	Dispatcher *service.Dispatcher
	Analysis   *service.AnalysisService
	Ranker     *service.AlternativeRanker
	Health     *health.Checker
}

// Server is the HTTP API server.
type Server struct {
	cfg    *domain.Config
	router *gin.Engine
	server *http.Server

	dispatcher *service.Dispatcher
	analysis   *service.AnalysisService
	ranker     *service.AlternativeRanker
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

// NewServer builds the production API server: Postgres knowledge base,
// optional remote drug directory with circuit breaking, and optional Redis
// directory cache. Migrations are the caller's concern and must have run
// before this is called.
func NewServer(manager *config.Manager, opts ...Option) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("config manager is required")
	}
	cfg := manager.GetConfig()

	s := &Server{
		cfg:    cfg,
		logger: buildLogger(cfg.Logging),
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

	normalizer, err := service.NewNormalizer(dir, service.NormalizerConfig{
		CacheSize:      cfg.Analysis.AliasCacheSize,
		MaxConcurrency: cfg.Analysis.MaxConcurrency,
	}, s.logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("building normalizer: %w", err)
	}

	resolver, err := service.NewTieredResolver(dir, table, service.ResolverConfig{
		MemoSize:       cfg.Analysis.MemoCacheSize,
		MaxConcurrency: cfg.Analysis.MaxConcurrency,
	}, s.logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("building resolver: %w", err)
	}

	analysis, err := service.NewAnalysisService(normalizer, resolver, service.NewPGxEngine(s.logger), s.logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("building analysis service: %w", err)
	}

	dispatcher, err := service.NewDispatcher(analysis, s.logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("building dispatcher: %w", err)
	}

	ranker, err := service.NewAlternativeRanker(repository.NewAlternatives(alternatives), normalizer, resolver, s.logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("building ranker: %w", err)
	}

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

	s.dispatcher = dispatcher
	s.analysis = analysis
	s.ranker = ranker
	s.health = checker
	s.buildRouter()

	s.logger.WithFields(logrus.Fields{
		"remote":          remote != nil,
		"directory_cache": cachedDir != nil,
		"heuristic_table": table.Version(),
	}).Info("API server initialized")

	return s, nil
}

// NewServerWithComponents builds the API server over pre-wired backends.
// Used by tests and by deployments that share one analysis core between
// transports.
func NewServerWithComponents(cfg *domain.Config, components Components, logger *logrus.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if components.Dispatcher == nil || components.Analysis == nil || components.Ranker == nil {
		return nil, fmt.Errorf("dispatcher, analysis service, and ranker are required")
	}
	if logger == nil {
		logger = buildLogger(cfg.Logging)
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: components.Dispatcher,
		analysis:   components.Analysis,
		ranker:     components.Ranker,
		health:     components.Health,
		logger:     logger,
	}
	if s.health == nil {
		s.health = health.New(health.Config{}, logger)
	}
	s.buildRouter()
	return s, nil
}

// buildRouter assembles the gin engine with the middleware chain and routes.
func (s *Server) buildRouter() {
	if s.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS())

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)

	v1 := router.Group("/api/v1")

	// The stream endpoint is exempt from the request budget: a websocket
	// session lives as long as the client holds it open.
	v1.GET("/analyze/stream", s.handleAnalyzeStream)

	timed := v1.Group("", middleware.RequestTimeout(s.requestBudget()))
	timed.POST("/analyze", s.handleAnalyze)
	timed.POST("/interactions/check", s.handleCheckInteraction)
	timed.GET("/alternatives/:drug", s.handleAlternatives)
	timed.POST("/pgx/review", s.handleReviewPGx)

	s.router = router
}

// requestBudget is the per-request deadline for the JSON endpoints. It
// follows the server write timeout so a handler cannot outlive its
// connection.
func (s *Server) requestBudget() time.Duration {
	if s.cfg.Server.WriteTimeout > 0 {
		return s.cfg.Server.WriteTimeout
	}
	return 30 * time.Second
}

// Start serves HTTP until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.health.Start()
	defer s.health.Stop()

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.Server.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.cfg.Server.CertFile, s.cfg.Server.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.WithFields(logrus.Fields{
		"addr": addr,
		"tls":  s.cfg.Server.TLSEnabled,
	}).Info("API server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("serving API: %w", err)
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

func (s *Server) addCloser(close func() error) {
	s.closers = append(s.closers, close)
}

// buildLogger builds the process logger from the logging configuration.
func buildLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if strings.EqualFold(cfg.Output, "stderr") {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	parsed, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
