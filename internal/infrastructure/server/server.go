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

	apihttp "github.com/GriffinCanCode/dspconsole/internal/api/http"
	"github.com/GriffinCanCode/dspconsole/internal/api/middleware"
	"github.com/GriffinCanCode/dspconsole/internal/api/ws"
	"github.com/GriffinCanCode/dspconsole/internal/domain/pipeline"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/config"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/tracing"
)

// Server wraps the status API and its dependencies
type Server struct {
	router *gin.Engine
	http   *http.Server
	tracer *tracing.Tracer
	logger *zap.Logger
	config *config.Config
	addr   string
	done   chan error

	// cancelled on shutdown so streaming handlers return
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer builds the router over a running console
func NewServer(cfg *config.Config, console *pipeline.Console, driver *pipeline.Driver, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")
	metrics := console.Metrics
	tracer := tracing.New("dspconsole", logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
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

	handlers := apihttp.NewHandlers(console, driver)
	wsHandler := ws.NewHandler(console.Plots, metrics, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/status", handlers.Status)

	// Components
	router.GET("/registry", handlers.ListRegistry)
	router.GET("/filters", handlers.ListFilters)
	router.GET("/displays", handlers.ListDisplays)
	router.GET("/displays/:name/plot", handlers.GetPlot)

	// Live plots
	router.GET("/ws/plots", wsHandler.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", handlers.GetMetricsSummary)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	return &Server{
		router: router,
		http: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		tracer:     tracer,
		logger:     logger,
		config:     cfg,
		done:       make(chan error, 1),
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
	}
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background. Bind errors
// are returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.Address(), err)
	}
	s.addr = ln.Addr().String()
	s.logger.Info("Starting HTTP server", zap.String("addr", s.addr))

	go func() {
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
		s.done <- err
	}()
	return nil
}

// Addr returns the bound address once Start succeeded
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires. Open WebSocket streams end when the base context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	defer s.tracer.Close()
	s.cancelBase()

	if s.addr == "" {
		return nil
	}
	if err := s.http.Shutdown(ctx); err != nil {
		_ = s.http.Close()
		return fmt.Errorf("shutdown http server: %w", err)
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
