package router

import (
	"github.com/gin-gonic/gin"

	"ananse-ntentan/backend/internal/api"
	"ananse-ntentan/backend/internal/chat"
	"ananse-ntentan/backend/pkg/config"
	"ananse-ntentan/backend/pkg/di"
	"ananse-ntentan/backend/pkg/errors"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/middleware"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.SetTrustedProxies(cfg.Security.TrustedProxies)

	// Request IDs first so every downstream log line can carry one
	engine.Use(middleware.RequestIDMiddleware())

	// Logger middleware to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Recovery with structured logging instead of gin's default
	engine.Use(errors.RecoveryWithLogger())

	// Rate limiting applies to all routes
	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	storyController := api.NewStoryController(
		r.Container.StoryService,
		r.Container.Files,
		r.Container.Pipeline,
		r.Config.Media.MaxAudioSize,
		r.Config.Media.MaxImageSize,
		r.Logger,
	)
	feedController := api.NewFeedController(r.Container.StoryService)
	fileController := api.NewFileController(r.Container.Files)
	chatController := api.NewChatController(r.Container.MessageService)
	styleController := api.NewStyleController(r.Container.StyleService)

	storyController.RegisterRoutes(r.Engine)
	feedController.RegisterRoutes(r.Engine)
	fileController.RegisterRoutes(r.Engine)
	chatController.RegisterRoutes(r.Engine)
	styleController.RegisterRoutes(r.Engine)

	r.setupHealthRoutes()

	// WebSocket route
	r.Engine.GET("/ws", func(c *gin.Context) {
		chat.ServeWS(r.Container.Hub, c)
	})

	if r.Config.Security.OpenAPISpec != "" {
		r.AddOpenAPIValidation(r.Config.Security.OpenAPISpec)
	}
}

// CORS needs to explicitly allow the WebSocket upgrade headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		if origin != "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
