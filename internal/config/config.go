package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port        string `json:"port"`
	Host        string `json:"host"`
	Environment string `json:"environment"`

	// Hugging Face settings
	HFAPIToken     string        `json:"-"` // Don't expose in JSON
	HFHubURL       string        `json:"hf_hub_url"`
	HFInferenceURL string        `json:"hf_inference_url"`
	HFTimeout      time.Duration `json:"hf_timeout"`

	// Models
	SummarizationModel string `json:"summarization_model"`
	SentimentModel     string `json:"sentiment_model"`
	EmbeddingModel     string `json:"embedding_model"`
	ModelDevice        string `json:"model_device"`
	SummaryDecoding    string `json:"summary_decoding"`
	MinSummaryLength   int    `json:"min_summary_length"`
	MaxSummaryLength   int    `json:"max_summary_length"`
	MaxInputChars      int    `json:"max_input_chars"`

	// Crawler settings
	CrawlTimeout      time.Duration `json:"crawl_timeout"`
	CrawlUserAgent    string        `json:"crawl_user_agent"`
	StrictNewsDomains bool          `json:"strict_news_domains"`
	RequireKorean     bool          `json:"require_korean"`
	ExtraNewsDomains  []string      `json:"extra_news_domains"`

	// Keyword settings
	MaxKeywords     int    `json:"max_keywords"`
	DefaultKeywords int    `json:"default_keywords"`
	KeywordStrategy string `json:"keyword_strategy"` // "embedding" or "frequency"

	// History settings
	HistorySize int           `json:"history_size"`
	HistoryTTL  time.Duration `json:"history_ttl"`

	// Slack sharing, disabled without a bot token
	SlackBotToken string `json:"-"`
	SlackChannel  string `json:"slack_channel"`

	// Model warm-up
	WarmOnStart         bool   `json:"warm_on_start"`
	ModelWarmupSchedule string `json:"model_warmup_schedule"` // cron expression, empty disables

	// Logging and error reporting
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	SentryDSN string `json:"-"`
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		Host:                getEnvOrDefault("HOST", "0.0.0.0"),
		Environment:         getEnvOrDefault("ENVIRONMENT", "development"),
		HFAPIToken:          getEnvOrDefault("HF_API_TOKEN", ""),
		HFHubURL:            getEnvOrDefault("HF_HUB_URL", "https://huggingface.co/api/models"),
		HFInferenceURL:      getEnvOrDefault("HF_INFERENCE_URL", "https://api-inference.huggingface.co/models"),
		HFTimeout:           getEnvOrDefaultDuration("HF_TIMEOUT", 60*time.Second),
		SummarizationModel:  getEnvOrDefault("SUMMARIZATION_MODEL", "gogamza/kobart-summarization"),
		SentimentModel:      getEnvOrDefault("SENTIMENT_MODEL", "snunlp/KR-FinBert-SC"),
		EmbeddingModel:      getEnvOrDefault("EMBEDDING_MODEL", "jhgan/ko-sroberta-multitask"),
		ModelDevice:         getEnvOrDefault("MODEL_DEVICE", "cpu"),
		SummaryDecoding:     getEnvOrDefault("SUMMARY_DECODING", "beam"),
		MinSummaryLength:    getEnvOrDefaultInt("MIN_SUMMARY_LENGTH", 50),
		MaxSummaryLength:    getEnvOrDefaultInt("MAX_SUMMARY_LENGTH", 150),
		MaxInputChars:       getEnvOrDefaultInt("MAX_INPUT_CHARS", 2048),
		CrawlTimeout:        getEnvOrDefaultDuration("CRAWL_TIMEOUT", 10*time.Second),
		CrawlUserAgent:      getEnvOrDefault("CRAWL_USER_AGENT", DefaultUserAgent),
		StrictNewsDomains:   getEnvOrDefaultBool("STRICT_NEWS_DOMAINS", false),
		RequireKorean:       getEnvOrDefaultBool("REQUIRE_KOREAN", true),
		ExtraNewsDomains:    parseStringSlice(getEnvOrDefault("EXTRA_NEWS_DOMAINS", "")),
		MaxKeywords:         getEnvOrDefaultInt("MAX_KEYWORDS", 10),
		DefaultKeywords:     getEnvOrDefaultInt("DEFAULT_KEYWORDS", 5),
		KeywordStrategy:     getEnvOrDefault("KEYWORD_STRATEGY", "embedding"),
		HistorySize:         getEnvOrDefaultInt("HISTORY_SIZE", 5),
		HistoryTTL:          getEnvOrDefaultDuration("HISTORY_TTL", 24*time.Hour),
		SlackBotToken:       getEnvOrDefault("SLACK_BOT_TOKEN", ""),
		SlackChannel:        getEnvOrDefault("SLACK_CHANNEL", "#news"),
		WarmOnStart:         getEnvOrDefaultBool("WARM_ON_START", false),
		ModelWarmupSchedule: getEnvOrDefault("MODEL_WARMUP_SCHEDULE", ""),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		SentryDSN:           getEnvOrDefault("SENTRY_DSN", ""),
	}

	return config, config.validate()
}

// validate checks that configuration values are usable
func (c *Config) validate() error {
	if c.MaxKeywords < 1 {
		return &ConfigError{Field: "MAX_KEYWORDS", Message: "must be at least 1"}
	}
	if c.DefaultKeywords < 1 || c.DefaultKeywords > c.MaxKeywords {
		return &ConfigError{Field: "DEFAULT_KEYWORDS", Message: "must be between 1 and MAX_KEYWORDS"}
	}
	if c.MinSummaryLength < 1 || c.MinSummaryLength > c.MaxSummaryLength {
		return &ConfigError{Field: "MIN_SUMMARY_LENGTH", Message: "must be positive and not exceed MAX_SUMMARY_LENGTH"}
	}
	if c.MaxInputChars < 1 {
		return &ConfigError{Field: "MAX_INPUT_CHARS", Message: "must be at least 1"}
	}
	switch c.SummaryDecoding {
	case "greedy", "beam", "sample":
	default:
		return &ConfigError{Field: "SUMMARY_DECODING", Message: "must be one of greedy, beam, sample"}
	}
	switch c.KeywordStrategy {
	case "embedding", "frequency":
	default:
		return &ConfigError{Field: "KEYWORD_STRATEGY", Message: "must be embedding or frequency"}
	}
	if c.CrawlTimeout <= 0 {
		return &ConfigError{Field: "CRAWL_TIMEOUT", Message: "must be positive"}
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseStringSlice parses comma-separated string into slice
func parseStringSlice(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
