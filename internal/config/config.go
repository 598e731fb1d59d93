package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken     string `env:"BOT_TOKEN,required"`
	OwnerChatID  int64  `env:"OWNER_CHAT_ID,required"`
	GeminiAPIKey string `env:"GEMINI_API_KEY,required"`

	// Storage: Postgres when DATABASE_URL is set, Badger under DataDir otherwise
	DatabaseURL string `env:"DATABASE_URL"`
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`

	// Media: S3 when bucket is set, local disk under DataDir otherwise
	MediaS3Bucket    string `env:"MEDIA_S3_BUCKET"`
	MediaS3Prefix    string `env:"MEDIA_S3_PREFIX" envDefault:"media"`
	MediaS3Region    string `env:"MEDIA_S3_REGION" envDefault:"us-east-1"`
	MediaS3Endpoint  string `env:"MEDIA_S3_ENDPOINT"`
	MediaS3AccessKey string `env:"MEDIA_S3_ACCESS_KEY"`
	MediaS3SecretKey string `env:"MEDIA_S3_SECRET_KEY"`

	// Models
	ChatModel      string `env:"GEMINI_CHAT_MODEL" envDefault:"gemini-2.5-flash"`
	TitleModel     string `env:"GEMINI_TITLE_MODEL" envDefault:"gemini-2.5-flash-lite"`
	ImageModel     string `env:"GEMINI_IMAGE_MODEL" envDefault:"imagen-4.0-generate-001"`
	StudioModel    string `env:"GEMINI_STUDIO_MODEL" envDefault:"gemini-2.5-flash-image"`
	ReasoningModel string `env:"GEMINI_REASONING_MODEL" envDefault:"gemini-2.5-pro"`
	TTSModel       string `env:"GEMINI_TTS_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	STTModel       string `env:"GEMINI_STT_MODEL" envDefault:"gemini-2.5-flash"`

	// Voice
	VoiceEnabled bool          `env:"VOICE_ENABLED" envDefault:"true"`
	AutoListen   bool          `env:"AUTO_LISTEN" envDefault:"false"`
	SpeechOutput bool          `env:"SPEECH_OUTPUT" envDefault:"true"`
	VoiceName    string        `env:"VOICE_NAME" envDefault:"Kore"`
	VoiceLocale  string        `env:"VOICE_LOCALE" envDefault:"en-US"`
	ListenWindow time.Duration `env:"VOICE_LISTEN_WINDOW" envDefault:"6s"`
	MicDevice    string        `env:"MIC_DEVICE"`

	// Bot behavior
	ConfirmTimeout     time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"60s"`
	DropPendingUpdates bool          `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Logging
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogTelegramChatID int64  `env:"LOG_TELEGRAM_CHAT_ID"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ListenWindow <= 0 {
		return nil, fmt.Errorf("parse config: VOICE_LISTEN_WINDOW must be positive")
	}
	return cfg, nil
}

// Storage is the subset of the configuration offline tools need.
type Storage struct {
	DatabaseURL string `env:"DATABASE_URL"`
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
}

func LoadStorage() (*Storage, error) {
	cfg := &Storage{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse storage config: %w", err)
	}
	return cfg, nil
}

// IsOwner reports whether the chat belongs to the assistant's owner.
func (c *Config) IsOwner(chatID int64) bool {
	return chatID == c.OwnerChatID
}

func (c *Config) UsePostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func (c *Config) UseS3() bool {
	return strings.TrimSpace(c.MediaS3Bucket) != ""
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
