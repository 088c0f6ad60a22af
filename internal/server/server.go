package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	apihttp "github.com/kiedeng/wecom-integration/internal/api/http"
	"github.com/kiedeng/wecom-integration/internal/api/middleware"
	"github.com/kiedeng/wecom-integration/internal/api/ws"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/config"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/logging"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/monitoring"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/tracing"
	"github.com/kiedeng/wecom-integration/internal/wecom"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	router  *gin.Engine
	wecom   *wecom.Client
	console *ws.Console
	tracer  *tracing.Tracer
	httpSrv *http.Server
}

// New creates a server from configuration. Missing credentials do not
// fail startup; the health endpoint reports them and the signing
// endpoints fail per-request, which keeps local frontend work possible
// without a registered corp.
func New(cfg *config.Config) (*Server, error) {
	metrics := monitoring.NewMetrics()
	console := ws.NewConsole(metrics)

	logCfg := logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	}
	var extra []zapcore.Core
	if cfg.Logging.Development {
		extra = append(extra, console.Core(zapcore.DebugLevel))
	}
	log, err := logging.New(logCfg, extra...)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		log.Warn("starting without full credentials", zap.Error(err))
	}

	wecomClient := wecom.New(cfg.WeCom, log)
	handlers := apihttp.NewHandlers(wecomClient, cfg.Frontend.URL, cfg.Validate, metrics, log)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	tracer := tracing.New("wecom-backend", log.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Frontend.URL)))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	router.GET("/", handlers.Root)
	router.GET("/api/health", handlers.Health)

	// JS-SDK bootstrap and OAuth
	router.GET("/api/wechat/config", handlers.WeChatConfig)
	router.GET("/api/oauth/url", handlers.OAuthURL)
	router.GET("/oauth/callback", handlers.OAuthCallback)

	// Authenticated page operations
	router.GET("/api/user/info", handlers.UserInfo)
	router.POST("/api/send/message", handlers.SendMessage)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Logging.Development {
		router.GET("/api/debug/info", handlers.DebugInfo)
		router.GET("/debug/console", console.HandleConnection)
	}

	return &Server{
		cfg:     cfg,
		log:     log,
		router:  router,
		wecom:   wecomClient,
		console: console,
		tracer:  tracer,
	}, nil
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.log.Info("starting server",
		zap.String("addr", addr),
		zap.String("frontend", s.cfg.Frontend.URL),
		zap.Bool("development", s.cfg.Logging.Development))

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.tracer.Close()
	s.log.Sync()
	return err
}
