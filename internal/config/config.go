package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		Mode            string        `yaml:"mode"` // gin mode: debug, release, test
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Database struct {
		Type string `yaml:"type"` // "postgres" or "sqlite"
		URL  string `yaml:"url"`  // PostgreSQL URL or SQLite path
	} `yaml:"database"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Log struct {
		Mode  string `yaml:"mode"` // dev or prod
		Level string `yaml:"level"`
	} `yaml:"log"`
	LLM struct {
		Providers               []ProviderConfig `yaml:"providers"`
		Timeout                 time.Duration    `yaml:"timeout"`
		HistoryTurns            int              `yaml:"history_turns"`
		MaxFailuresBeforeSwitch int              `yaml:"max_failures_before_switch"`
		SystemPrompt            string           `yaml:"system_prompt"`
	} `yaml:"llm"`
	Training struct {
		EpochDelay    time.Duration `yaml:"epoch_delay"`
		SeedIfEmpty   bool          `yaml:"seed_if_empty"`
		DefaultEpochs int           `yaml:"default_epochs"`
		MaxEpochs     int           `yaml:"max_epochs"`
	} `yaml:"training"`
	Notifications struct {
		Telegram struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"`
			ChatID   int64  `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notifications"`
	Security struct {
		MasterKey string `yaml:"master_key"` // base64, 32 bytes; empty disables memory encryption
	} `yaml:"security"`
}

// ProviderConfig holds configuration for a single external model provider.
type ProviderConfig struct {
	Type              string        `yaml:"type"` // gemini, anthropic, groq, openrouter, openai
	APIKey            string        `yaml:"api_key"`
	ModelName         string        `yaml:"model_name"`
	BaseURL           string        `yaml:"base_url"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// LoadConfig reads configuration from the specified YAML file. A missing file
// is not an error: defaults and environment overrides are applied either way.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := &Config{}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	return config, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Database.URL, "DATABASE_URL")
	override(&c.Database.Type, "DATABASE_TYPE")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Security.MasterKey, "MASTER_KEY")
	override(&c.Notifications.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	override(&c.Server.Port, "PORT")

	envKeys := map[string]string{
		"gemini":     "GEMINI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"groq":       "GROQ_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
		"openai":     "OPENAI_API_KEY",
	}
	for i := range c.LLM.Providers {
		p := &c.LLM.Providers[i]
		if p.APIKey == "" {
			if key, ok := envKeys[p.Type]; ok {
				p.APIKey = os.Getenv(key)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.URL == "" && c.Database.Type == "sqlite" {
		c.Database.URL = "./data/learnchat.db"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 20 * time.Second
	}
	if c.LLM.HistoryTurns == 0 {
		c.LLM.HistoryTurns = 6
	}
	if c.LLM.MaxFailuresBeforeSwitch == 0 {
		c.LLM.MaxFailuresBeforeSwitch = 3
	}
	if c.Training.EpochDelay == 0 {
		c.Training.EpochDelay = 2 * time.Second
	}
	if c.Training.MaxEpochs == 0 {
		c.Training.MaxEpochs = 50
	}
}

// Validate reports configuration that cannot produce a working server.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported server mode %q", c.Server.Mode)
	}
	if c.Database.URL == "" {
		return errors.New("database url is required")
	}
	if c.Auth.JWTSecret == "" {
		if c.Log.Mode != "dev" {
			return errors.New("auth.jwt_secret (or JWT_SECRET) is required")
		}
		c.Auth.JWTSecret = "dev-only-insecure-secret"
	}
	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		return errors.New("notifications.telegram.bot_token is required when telegram is enabled")
	}
	return nil
}
