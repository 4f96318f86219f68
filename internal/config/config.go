package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StorageBackend string

const (
	BackendCSV    StorageBackend = "csv"
	BackendSQLite StorageBackend = "sqlite"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Credential store
	UserDBPath             string `env:"USER_DB_PATH" envDefault:"user_credentials.csv"`
	PasswordHash           string `env:"PASSWORD_HASH" envDefault:"sha256"`
	BootstrapAdminUser     string `env:"BOOTSTRAP_ADMIN_USER" envDefault:"admin"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD" envDefault:"admin123"`

	// Interaction log
	StorageBackend  StorageBackend `env:"STORAGE_BACKEND" envDefault:"csv"`
	HistoryFilePath string         `env:"HISTORY_FILE_PATH" envDefault:"interaction_history.csv"`
	SQLitePath      string         `env:"SQLITE_PATH" envDefault:"data/interactions.db"`

	// Sessions; an empty secret is replaced by a random per-process key
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"12h"`

	// LLM settings
	LLMProvider       LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	YandexOAuthToken  string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID    string        `env:"YANDEX_FOLDER_ID"`
	SuggestionTimeout time.Duration `env:"SUGGESTION_TIMEOUT" envDefault:"60s"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Classifier and datasets
	ModelPath      string `env:"MODEL_PATH" envDefault:"data/depression_model.json"`
	DatasetPath    string `env:"DATASET_PATH" envDefault:"mental_health_dataset.csv"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Telegram front-end
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ReportChatID     int64  `env:"REPORT_CHAT_ID"`
	ReportCron       string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
}

// publicJWTSecrets are placeholders that appear in docs and sample env files.
var publicJWTSecrets = []string{"change-me", "changeme", "secret"}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendCSV, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}
	switch c.PasswordHash {
	case "sha256", "bcrypt":
	default:
		return fmt.Errorf("unknown password hash: %s", c.PasswordHash)
	}
	for _, weak := range publicJWTSecrets {
		if c.JWTSecret == weak {
			return fmt.Errorf("JWT_SECRET %q is a well-known placeholder, set a private value or leave it empty", weak)
		}
	}
	if c.SuggestionTimeout <= 0 {
		return fmt.Errorf("SUGGESTION_TIMEOUT must be positive")
	}
	return nil
}
