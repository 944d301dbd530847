package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sinkwatch/internal/analysis"
	apihttp "github.com/GriffinCanCode/sinkwatch/internal/api/http"
	"github.com/GriffinCanCode/sinkwatch/internal/api/middleware"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/config"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sinkwatch/internal/instrument"
	"github.com/GriffinCanCode/sinkwatch/internal/logging"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
	"github.com/GriffinCanCode/sinkwatch/internal/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	pool       *sandbox.Pool
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// SandboxConfig converts the environment settings into a runtime config
func SandboxConfig(cfg *config.Config) sandbox.Config {
	sc := sandbox.DefaultConfig()
	sc.Timeout = cfg.Sandbox.Timeout
	sc.MaxCallStack = cfg.Sandbox.MaxCallStack
	sc.TimerBudget = cfg.Sandbox.TimerBudget
	sc.IntervalRuns = cfg.Sandbox.IntervalRuns
	return sc
}

// FetchConfig converts the environment settings into a fetcher config
func FetchConfig(cfg *config.Config) page.FetchConfig {
	return page.FetchConfig{
		Timeout:           cfg.Fetch.Timeout,
		Retries:           cfg.Fetch.Retries,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		UserAgent:         cfg.Fetch.UserAgent,
	}
}

// NewAnalyzer builds the runtime pool and the analyzer on top of it. The
// caller owns the pool and must close it.
func NewAnalyzer(cfg *config.Config, logger *zap.Logger, recorder analysis.Recorder) (*analysis.Analyzer, *sandbox.Pool, error) {
	cat := instrument.DefaultCatalogue()
	if path := cfg.Instrument.CataloguePath; path != "" {
		loaded, err := instrument.LoadCatalogue(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load catalogue: %w", err)
		}
		cat = loaded
		logger.Info("Loaded catalogue", zap.String("path", path), zap.Int("hooks", len(cat.Hooks)))
	}

	pool, err := sandbox.NewPool(SandboxConfig(cfg), cfg.Sandbox.PoolSize, cfg.Sandbox.AcquireTTL, logger.Named("sandbox"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	analyzer, err := analysis.New(pool, analysis.Options{
		Catalogue:    cat,
		ResultGlobal: cfg.Instrument.ResultGlobal,
		Render: instrument.RenderOptions{
			MaxLength:      cfg.Instrument.MaxLength,
			MemberFallback: cfg.Instrument.MemberFallback,
		},
	}, logger.Named("analysis"), recorder)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return analyzer, pool, nil
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing sinkwatch server",
		zap.String("port", cfg.Server.Port),
		zap.Int("pool_size", cfg.Sandbox.PoolSize),
		zap.Duration("script_timeout", cfg.Sandbox.Timeout),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	analyzer, pool, err := NewAnalyzer(cfg, logger.Logger, metrics)
	if err != nil {
		return nil, err
	}

	deps := apihttp.Deps{
		Analyzer: analyzer,
		Pool:     pool,
		Metrics:  metrics,
		Logger:   logger.Named("http"),
		Deadline: cfg.Server.Deadline,
	}
	if cfg.Fetch.Enabled {
		deps.Fetcher = page.NewFetcher(FetchConfig(cfg), logger.Named("fetch"))
	} else {
		logger.Info("URL analysis disabled")
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Named("access")))
	router.Use(monitoring.Middleware(metrics))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.Server.MaxBodySize))

	// Register routes
	apihttp.NewHandlers(deps).Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		pool:    pool,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight analyses until ctx
// expires and releases the sandbox pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	if closeErr := s.pool.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	// Sync logger before exit
	_ = s.logger.Sync()
	return err
}
