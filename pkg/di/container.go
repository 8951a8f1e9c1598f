// Package di wires the application's dependencies together in one
// place so main and the router never construct services themselves.
package di

import (
	"context"

	"gorm.io/gorm"

	"ananse-ntentan/backend/internal/ai"
	"ananse-ntentan/backend/internal/chat"
	"ananse-ntentan/backend/internal/imagegen"
	"ananse-ntentan/backend/internal/media"
	"ananse-ntentan/backend/internal/pipeline"
	"ananse-ntentan/backend/internal/service"
	"ananse-ntentan/backend/internal/videogen"
	"ananse-ntentan/backend/pkg/cache"
	"ananse-ntentan/backend/pkg/config"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/secrets"
	"ananse-ntentan/backend/shared/redis"
)

// Container holds all the dependencies for the application
type Container struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *logger.Logger

	Redis *redis.Client
	Cache *cache.Cache
	Files media.Store

	AI     *ai.Client
	Images *imagegen.Generator
	Video  *videogen.Assembler

	StoryService   *service.StoryService
	StyleService   *service.StyleService
	MessageService *service.MessageService

	Pipeline *pipeline.Service
	Hub      *chat.Hub
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		cfg = config.Get()
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.JSON = cfg.Logging.Format != "text"
	log := logger.New(logCfg)

	// Secrets come from Vault when configured, with environment
	// fallback. Init failure is non-fatal for local development.
	if err := secrets.Init(log); err != nil {
		log.Warn("secrets manager unavailable, using environment only", "error", err)
	}
	ctx := context.Background()
	geminiKey := secrets.GetSecretWithDefault(ctx, secrets.KeyGeminiAPI, "")
	stabilityKey := secrets.GetSecretWithDefault(ctx, secrets.KeyStabilityAPI, "")

	aiClient := ai.NewClient(ai.Config{
		APIKey:      geminiKey,
		Model:       cfg.Providers.GeminiModel,
		ImageModel:  cfg.Providers.GeminiImageModel,
		AspectRatio: cfg.Providers.GeminiAspectRatio,
		Timeout:     cfg.Providers.TextTimeout,
	}, log)

	stability := imagegen.NewStabilityClient(stabilityKey, cfg.Providers.StabilityEngine, cfg.Providers.ImageTimeout)

	// Story panels and visual chat panels use separate generators so
	// each can pace its provider calls independently.
	storyImages := imagegen.NewGenerator(cfg.Providers.ImageProvider, aiClient, stability, cfg.Features.ImageGenDelay, log)
	chatImages := imagegen.NewGenerator(cfg.Providers.ImageProvider, aiClient, stability, cfg.Features.VisualPanelDelay, log)

	video := videogen.NewAssembler(log)

	redisClient := redis.NewClient(cfg)

	var styleCache *cache.Cache
	if cfg.Cache.Enabled {
		styleCache = cache.NewCache()
	}

	files := media.NewGormStore(db)

	storyService := service.NewStoryService(db, redisClient, log)
	styleService := service.NewStyleService(db, styleCache)
	messageService := service.NewMessageService(db, log)

	pipe := pipeline.New(storyService, styleService, aiClient, storyImages, video, files, pipeline.Options{
		EnableImages:     cfg.Features.EnableImageGeneration,
		EnableVideo:      cfg.Features.EnableVideoGeneration && video.Available(),
		VideoProbability: cfg.Features.VideoGenerationProbability,
		TextTimeout:      cfg.Providers.TextTimeout,
		ImageTimeout:     cfg.Providers.ImageTimeout,
		VideoTimeout:     cfg.Providers.VideoTimeout,
	}, log)

	visual := chat.NewVisualComposer(aiClient, chatImages, files, cfg.Features.VisualChatDailyLimit, log)
	coauthor := chat.NewCoAuthor(aiClient, messageService, log)
	hub := chat.NewHub(messageService, visual, coauthor, log)

	return &Container{
		DB:             db,
		Config:         cfg,
		Logger:         log,
		Redis:          redisClient,
		Cache:          styleCache,
		Files:          files,
		AI:             aiClient,
		Images:         storyImages,
		Video:          video,
		StoryService:   storyService,
		StyleService:   styleService,
		MessageService: messageService,
		Pipeline:       pipe,
		Hub:            hub,
	}, nil
}
