package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	apperrors "finquery/backend/pkg/errors"
)

// Supported reasoning model providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// PlaceholderAPIKey is used in development when no credential is configured,
// so that local OpenAI-compatible gateways that ignore auth keep working.
const PlaceholderAPIKey = "dummy-key"

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Reasoning model
	LLMProvider     string
	ModelBaseURL    string
	ModelAPIKey     string
	ModelID         string
	AnthropicAPIKey string
	AnthropicModel  string

	// Embeddings
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string

	// Persisted state (read-only at runtime)
	DatabasePath     string
	VectorIndexPath  string
	VectorCollection string

	// Agent limits
	RetrievalTopK    int
	MaxAgentSteps    int
	AgentTimeout     time.Duration
	MaxPromptChars   int
	SQLSampleRows    int
	SQLMaxResultRows int

	// Discord
	DiscordBotToken string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// FromEnv reads the environment without loading .env or validating.
func FromEnv() *Config {
	modelBaseURL := getEnv("MODEL_BASE_URL", "https://api.openai.com/v1")
	modelAPIKey := getEnv("OPENAI_API_KEY", "")

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LLMProvider:      getEnv("LLM_PROVIDER", ProviderOpenAI),
		ModelBaseURL:     modelBaseURL,
		ModelAPIKey:      modelAPIKey,
		ModelID:          getEnv("MODEL_ID", "gpt-4o-mini"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", modelBaseURL),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", modelAPIKey),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		DatabasePath:     getEnv("DATABASE_PATH", "data/sample_financial_data.db"),
		VectorIndexPath:  getEnv("VECTOR_INDEX_PATH", "memory/index"),
		VectorCollection: getEnv("VECTOR_COLLECTION", "memory"),
		RetrievalTopK:    getEnvInt("RETRIEVAL_TOP_K", 4),
		MaxAgentSteps:    getEnvInt("MAX_AGENT_STEPS", 15),
		AgentTimeout:     getEnvDuration("AGENT_TIMEOUT", 2*time.Minute),
		MaxPromptChars:   getEnvInt("MAX_PROMPT_CHARS", 0),
		SQLSampleRows:    getEnvInt("SQL_SAMPLE_ROWS", 3),
		SQLMaxResultRows: getEnvInt("SQL_MAX_RESULT_ROWS", 50),
		DiscordBotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
	}
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	required := map[string]string{
		"DATABASE_PATH":     c.DatabasePath,
		"VECTOR_INDEX_PATH": c.VectorIndexPath,
		"VECTOR_COLLECTION": c.VectorCollection,
		"EMBEDDING_MODEL":   c.EmbeddingModel,
	}
	for _, field := range []string{"DATABASE_PATH", "VECTOR_INDEX_PATH", "VECTOR_COLLECTION", "EMBEDDING_MODEL"} {
		if required[field] == "" {
			return apperrors.NewConfigMissingRequired(field)
		}
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.ModelID == "" {
			return apperrors.NewConfigMissingRequired("MODEL_ID")
		}
		if c.ModelBaseURL == "" {
			return apperrors.NewConfigMissingRequired("MODEL_BASE_URL")
		}
	case ProviderAnthropic:
		if c.AnthropicModel == "" {
			return apperrors.NewConfigMissingRequired("ANTHROPIC_MODEL")
		}
	default:
		return apperrors.NewConfigValidationFailed("LLM_PROVIDER", fmt.Sprintf("unsupported provider %q", c.LLMProvider))
	}

	if c.RetrievalTopK <= 0 {
		return apperrors.NewConfigValidationFailed("RETRIEVAL_TOP_K", "must be positive")
	}
	if c.MaxAgentSteps <= 0 {
		return apperrors.NewConfigValidationFailed("MAX_AGENT_STEPS", "must be positive")
	}
	if c.AgentTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("AGENT_TIMEOUT", "must be positive")
	}
	if c.MaxPromptChars < 0 {
		return apperrors.NewConfigValidationFailed("MAX_PROMPT_CHARS", "must not be negative")
	}
	if c.SQLMaxResultRows <= 0 {
		return apperrors.NewConfigValidationFailed("SQL_MAX_RESULT_ROWS", "must be positive")
	}

	// Credentials are only enforced in production; development talks to local gateways.
	if c.IsProduction() {
		if c.LLMProvider == ProviderOpenAI && c.ModelAPIKey == "" {
			return apperrors.NewConfigMissingRequired("OPENAI_API_KEY")
		}
		if c.LLMProvider == ProviderAnthropic && c.AnthropicAPIKey == "" {
			return apperrors.NewConfigMissingRequired("ANTHROPIC_API_KEY")
		}
		if c.EmbeddingAPIKey == "" {
			return apperrors.NewConfigMissingRequired("EMBEDDING_API_KEY")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// APIKeyOrPlaceholder returns key, or the placeholder outside production.
func (c *Config) APIKeyOrPlaceholder(key string) string {
	if key == "" && !c.IsProduction() {
		return PlaceholderAPIKey
	}
	return key
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
