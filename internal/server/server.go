package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/arbiterlabs/arbiter/internal/config"
	"github.com/arbiterlabs/arbiter/internal/server/middleware"
	v1 "github.com/arbiterlabs/arbiter/internal/server/v1"
)

type Server struct {
	router *gin.Engine
	config *config.Config
	logger *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger, handler *v1.Handler) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(otelgin.Middleware("arbiter"))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rl := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	group := engine.Group("/v1")
	group.Use(rl.Middleware())
	handler.RegisterRoutes(group)

	return &Server{
		router: engine,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	s.logger.Info("starting server", zap.String("port", s.config.Server.Port))
	return s.router.Run(":" + s.config.Server.Port)
}
