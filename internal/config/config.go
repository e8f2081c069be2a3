package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR"        envDefault:":8080"`
	GinMode        string `env:"GIN_MODE"         envDefault:"release"`
	LogLevel       string `env:"LOG_LEVEL"        envDefault:"info"`
	LogFile        string `env:"LOG_FILE"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`

	Inference Inference

	TelegramToken      string `env:"TELEGRAM_TOKEN"`
	DBPath             string `env:"DB_PATH"              envDefault:"db.sqlite"`
	ReadinessProbeSpec string `env:"READINESS_PROBE_SPEC" envDefault:"@every 1m"`
}

type Inference struct {
	Provider       string        `env:"INFERENCE_PROVIDER" envDefault:"openai"`
	Timeout        time.Duration `env:"INFERENCE_TIMEOUT"  envDefault:"0s"`
	SummaryModel   string        `env:"SUMMARY_MODEL"`
	TitleModel     string        `env:"TITLE_MODEL"`
	EmbeddingModel string        `env:"EMBEDDING_MODEL"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	OllamaHost     string        `env:"OLLAMA_HOST"        envDefault:"http://127.0.0.1:11434"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	c.Inference.Provider = strings.ToLower(strings.TrimSpace(c.Inference.Provider))

	switch c.Inference.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.Inference.OpenAIAPIKey) == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.Inference.Provider)
		}
	case ProviderOllama:
		if strings.TrimSpace(c.Inference.OllamaHost) == "" {
			return fmt.Errorf("OLLAMA_HOST is required for provider %q", c.Inference.Provider)
		}
	default:
		return fmt.Errorf("unknown INFERENCE_PROVIDER %q", c.Inference.Provider)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive (got %d)", c.MaxUploadBytes)
	}

	if c.Inference.Timeout < 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must not be negative (got %s)", c.Inference.Timeout)
	}

	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
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
