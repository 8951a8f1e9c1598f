package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration (story status cache)
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Generative provider configuration
	Providers struct {
		GeminiModel       string
		GeminiImageModel  string
		GeminiAspectRatio string
		ImageProvider     string // gemini-image | stability
		StabilityEngine   string
		TextTimeout       time.Duration
		ImageTimeout      time.Duration
		VideoTimeout      time.Duration
	}

	// Media upload limits
	Media struct {
		MaxAudioSize int64
		MaxImageSize int64
	}

	// Feature flags and pipeline tuning
	Features struct {
		EnableImageGeneration      bool
		EnableVideoGeneration      bool
		VideoGenerationProbability float64 // clamped to [0,1]
		VisualChatDailyLimit       int
		ImageGenDelay              time.Duration
		VisualPanelDelay           time.Duration
		VisualSweepAge             time.Duration
		VisualSweepPeriod          time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		OpenAPISpec    string // path to the OpenAPI document; empty disables request validation
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings (in-memory style/template cache)
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "5000")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "ananse")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		// Provider config
		instance.Providers.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-pro")
		instance.Providers.GeminiImageModel = getEnvString("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image")
		instance.Providers.GeminiAspectRatio = getEnvString("GEMINI_IMAGE_ASPECT_RATIO", "1:1")
		instance.Providers.ImageProvider = getEnvString("IMAGE_PROVIDER", "gemini-image")
		instance.Providers.StabilityEngine = getEnvString("STABILITY_ENGINE", "stable-diffusion-xl-1024-v1-0")
		instance.Providers.TextTimeout = getEnvDuration("PROVIDER_TEXT_TIMEOUT", 60*time.Second)
		instance.Providers.ImageTimeout = getEnvDuration("PROVIDER_IMAGE_TIMEOUT", 120*time.Second)
		instance.Providers.VideoTimeout = getEnvDuration("PROVIDER_VIDEO_TIMEOUT", 300*time.Second)

		// Media limits
		instance.Media.MaxAudioSize = getEnvInt64("MAX_FILE_SIZE_AUDIO", 10<<20) // 10MB
		instance.Media.MaxImageSize = getEnvInt64("MAX_FILE_SIZE_IMAGE", 5<<20)  // 5MB

		// Feature flags
		instance.Features.EnableImageGeneration = getEnvBool("ENABLE_IMAGE_GENERATION", false)
		instance.Features.EnableVideoGeneration = getEnvBool("ENABLE_VIDEO_GENERATION", false)
		instance.Features.VideoGenerationProbability = clamp01(getEnvFloat("VIDEO_GENERATION_PROBABILITY", 0.25))
		instance.Features.VisualChatDailyLimit = getEnvInt("VISUAL_CHAT_DAILY_LIMIT", 5)
		instance.Features.ImageGenDelay = getEnvDuration("IMAGE_GEN_DELAY", time.Second)
		instance.Features.VisualPanelDelay = getEnvDuration("VISUAL_PANEL_DELAY", 500*time.Millisecond)
		instance.Features.VisualSweepAge = getEnvDuration("VISUAL_SWEEP_AGE", 10*time.Minute)
		instance.Features.VisualSweepPeriod = getEnvDuration("VISUAL_SWEEP_PERIOD", 5*time.Minute)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
		instance.Security.OpenAPISpec = getEnvString("OPENAPI_SPEC", "")

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
