package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration read once at startup.
type Config struct {
	// Server
	Port           int           `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// LLM provider. Models and endpoints are fixed per provider; only the
	// selection and the credentials are configurable.
	ModelProvider string `env:"MODEL_PROVIDER" envDefault:"openai"` // "openai" or "deepseek"
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	DeepSeekKey   string `env:"DEEPSEEK_API_KEY"`

	// Extraction
	MaxAttempts int    `env:"EXTRACTION_MAX_ATTEMPTS" envDefault:"3"`
	PromptsPath string `env:"PROMPTS_PATH"` // optional YAML override of the embedded prompts

	// Audit log
	AuditProvider string `env:"AUDIT_PROVIDER" envDefault:"none"` // "none" or "postgres"
	DBURL         string `env:"DB_URL"`

	// Queue (optional request/reply transport)
	QueueURL   string `env:"QUEUE_URL"`
	QueueGroup string `env:"QUEUE_GROUP" envDefault:"nlu-workers"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
