package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Extraction providers.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Config holds the configuration for the application.
type Config struct {
	ExtractionProvider string
	GeminiAPIKey       string
	GeminiModel        string
	GroqAPIKey         string
	GroqBaseURL        string
	GroqVisionModel    string

	DatabasePath    string
	UploadDir       string
	Port            string
	AuthJWTSecret   string
	MaxUploadImages int
	MaxUploadBytes  int64
	LogLevel        string

	// Telegram Config (optional for the HTTP server, required for the bot)
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	return Load("")
}

// Load reads configuration from the environment, a .env file in the working
// directory and an optional YAML file. Environment values win.
func Load(cfgFile string) (*Config, error) {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("EXTRACTION_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("DATABASE_PATH", "data/diet-coach.db")
	v.SetDefault("UPLOAD_DIR", "data/uploads")
	v.SetDefault("PORT", "8080")
	v.SetDefault("MAX_UPLOAD_IMAGES", 10)
	v.SetDefault("MAX_UPLOAD_BYTES", 32<<20)
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		ExtractionProvider: strings.ToLower(v.GetString("EXTRACTION_PROVIDER")),
		GeminiAPIKey:       v.GetString("GEMINI_API_KEY"),
		GeminiModel:        v.GetString("GEMINI_MODEL"),
		GroqAPIKey:         v.GetString("GROQ_API_KEY"),
		GroqBaseURL:        v.GetString("GROQ_BASE_URL"),
		GroqVisionModel:    v.GetString("GROQ_VISION_MODEL"),
		DatabasePath:       v.GetString("DATABASE_PATH"),
		UploadDir:          v.GetString("UPLOAD_DIR"),
		Port:               v.GetString("PORT"),
		AuthJWTSecret:      v.GetString("AUTH_JWT_SECRET"),
		MaxUploadImages:    v.GetInt("MAX_UPLOAD_IMAGES"),
		MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_BYTES"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		TelegramBotToken:   v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: v.GetString("TELEGRAM_WEBHOOK_URL"),
	}

	switch cfg.ExtractionProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return nil, fmt.Errorf("EXTRACTION_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderGroq, cfg.ExtractionProvider)
	}

	if cfg.MaxUploadImages <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_IMAGES must be positive, got %d", cfg.MaxUploadImages)
	}

	ids, err := parseUserIDs(v.GetString("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.TelegramAllowedUserIDs = ids

	return cfg, nil
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", field, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
