// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	devPassword  = "changeme"
	devJWTSecret = "dev-jwt-secret-change-me"
	// devSecretKey is 32 zero bytes; production refuses it.
	devSecretKey = "0000000000000000000000000000000000000000000000000000000000000000"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string `envconfig:"APP_HOST" default:"0.0.0.0"`
	Port string `envconfig:"APP_PORT" default:"8080"`
	Env  string `envconfig:"APP_ENV" default:"development"` // "development", "production", "testing"

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING"` // "json" or "console"; derived from Env when empty

	// PostgreSQL connection
	DBHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	DBPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	DBUser     string `envconfig:"POSTGRES_USER" default:"copyforge"`
	DBPassword string `envconfig:"POSTGRES_PASSWORD" default:"changeme"`
	DBName     string `envconfig:"POSTGRES_DB" default:"copyforge"`
	DBSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	// Valkey / Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     string `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// AI provider settings
	AIProvider       string        `envconfig:"AI_PROVIDER" default:"gemini"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"1"`
	AIRetryBackoff   time.Duration `envconfig:"AI_RETRY_BACKOFF" default:"500ms"`
	AIMaxPromptToken int           `envconfig:"AI_MAX_PROMPT_TOKENS" default:"0"`
	AITokenEncoding  string        `envconfig:"AI_TOKEN_ENCODING"` // e.g. "cl100k_base"; counting disabled when empty

	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`

	GeminiKey     string `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`

	ClaudeKey     string `envconfig:"CLAUDE_API_KEY"`
	ClaudeModel   string `envconfig:"CLAUDE_MODEL" default:"claude-sonnet-4-6"`
	ClaudeBaseURL string `envconfig:"CLAUDE_BASE_URL" default:"https://api.anthropic.com"`

	MistralKey     string `envconfig:"MISTRAL_API_KEY"`
	MistralModel   string `envconfig:"MISTRAL_MODEL" default:"mistral-large-latest"`
	MistralBaseURL string `envconfig:"MISTRAL_BASE_URL" default:"https://api.mistral.ai/v1"`

	OllamaModel   string `envconfig:"OLLAMA_MODEL" default:"llama3.1"`
	OllamaBaseURL string `envconfig:"OLLAMA_BASE_URL"`

	// Storefront app credentials
	ShopifyAPIKey      string `envconfig:"SHOPIFY_API_KEY"`
	ShopifyAPISecret   string `envconfig:"SHOPIFY_API_SECRET"`
	ShopifyScopes      string `envconfig:"SHOPIFY_SCOPES" default:"read_products,write_products"`
	ShopifyAPIVersion  string `envconfig:"SHOPIFY_API_VERSION" default:"2024-01"`
	ShopifyRedirectURL string `envconfig:"SHOPIFY_REDIRECT_URL" default:"http://localhost:8080/oauth/callback"`

	// Security
	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-jwt-secret-change-me"`
	SecretKey string `envconfig:"SECRET_KEY" default:"0000000000000000000000000000000000000000000000000000000000000000"`

	// Batch lock lifetime per shop.
	BatchLockTTL time.Duration `envconfig:"BATCH_LOCK_TTL" default:"30m"`

	// API rate limit per merchant (or per IP before authentication).
	RateLimit  int           `envconfig:"RATE_LIMIT" default:"120"`
	RateWindow time.Duration `envconfig:"RATE_WINDOW" default:"1m"`

	// Optional integrations
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"copyforge-reports"`
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists. Returns an error if critical
// values are missing or still at their development defaults in production.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot express as tags.
func (c *Config) Validate() error {
	key, err := hex.DecodeString(c.SecretKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("SECRET_KEY must be 64 hex characters (32 bytes)")
	}
	if c.AIMaxAttempts < 1 {
		return fmt.Errorf("AI_MAX_ATTEMPTS must be at least 1")
	}

	if c.Env == "production" {
		if c.DBPassword == devPassword {
			return fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.SecretKey == devSecretKey {
			return fmt.Errorf("SECRET_KEY must be set in production")
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// RedisAddr returns the Redis address (host:port).
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Encoding returns the log encoding, defaulting to console in development
// and JSON everywhere else.
func (c *Config) Encoding() string {
	if c.LogEncoding != "" {
		return c.LogEncoding
	}
	if c.IsDev() {
		return "console"
	}
	return "json"
}

// Scopes splits the comma-separated storefront scopes.
func (c *Config) Scopes() []string {
	var out []string
	for _, s := range strings.Split(c.ShopifyScopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
