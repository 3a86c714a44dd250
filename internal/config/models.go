package config

import (
	"time"

	"github.com/mikey/attachment-triage/internal/core"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider    string
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// RetryConfig represents the per-email retry budget and backoff shape
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Jitter         float64
	AttemptTimeout time.Duration
}

// RateLimitConfig sizes the shared token bucket
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:    c.GetString("llm.provider"),
		MaxBodySize: c.GetInt("llm.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetRetry returns the retry configuration
func (c *Config) GetRetry() (RetryConfig, error) {
	base, err := c.GetDuration("retry.base_delay")
	if err != nil {
		return RetryConfig{}, &core.ConfigurationError{Field: "retry.base_delay", Reason: err.Error()}
	}
	max, err := c.GetDuration("retry.max_delay")
	if err != nil {
		return RetryConfig{}, &core.ConfigurationError{Field: "retry.max_delay", Reason: err.Error()}
	}
	timeout, err := c.GetDuration("retry.attempt_timeout")
	if err != nil {
		return RetryConfig{}, &core.ConfigurationError{Field: "retry.attempt_timeout", Reason: err.Error()}
	}
	return RetryConfig{
		MaxAttempts:    c.GetInt("retry.max_attempts"),
		BaseDelay:      base,
		MaxDelay:       max,
		Jitter:         c.GetFloat64("retry.jitter"),
		AttemptTimeout: timeout,
	}, nil
}

// GetRateLimit returns the rate limiter configuration
func (c *Config) GetRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RPS:   c.GetFloat64("ratelimit.rps"),
		Burst: c.GetInt("ratelimit.burst"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, &core.ConfigurationError{Field: "cache.ttl", Reason: err.Error()}
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, &core.ConfigurationError{Field: "cache.cleanup_frequency", Reason: err.Error()}
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}, nil
}

// Validate checks everything the pipeline needs before any email is
// processed; any violation is fatal for the run.
func (c *Config) Validate() error {
	switch provider := c.GetString("llm.provider"); provider {
	case "openai":
		if c.GetString("openai.api_key") == "" {
			return &core.ConfigurationError{Field: "openai.api_key", Reason: "required for provider openai"}
		}
	case "gemini":
		if c.GetString("gemini.api_key") == "" {
			return &core.ConfigurationError{Field: "gemini.api_key", Reason: "required for provider gemini"}
		}
	case "bedrock":
		if c.GetString("bedrock.region") == "" {
			return &core.ConfigurationError{Field: "bedrock.region", Reason: "required for provider bedrock"}
		}
	default:
		return &core.ConfigurationError{Field: "llm.provider", Reason: "must be one of openai, gemini, bedrock"}
	}

	retry, err := c.GetRetry()
	if err != nil {
		return err
	}
	if retry.MaxAttempts < 1 {
		return &core.ConfigurationError{Field: "retry.max_attempts", Reason: "must be at least 1"}
	}
	if retry.Jitter < 0 || retry.Jitter > 1 {
		return &core.ConfigurationError{Field: "retry.jitter", Reason: "must be in [0, 1]"}
	}

	if c.GetInt("runner.workers") < 1 {
		return &core.ConfigurationError{Field: "runner.workers", Reason: "must be at least 1"}
	}
	if c.GetFloat64("ratelimit.rps") <= 0 {
		return &core.ConfigurationError{Field: "ratelimit.rps", Reason: "must be positive"}
	}
	if c.GetInt("ratelimit.burst") < 1 {
		return &core.ConfigurationError{Field: "ratelimit.burst", Reason: "must be at least 1"}
	}

	if _, err := c.GetCache(); err != nil {
		return err
	}
	switch c.GetString("cache.type") {
	case "memory", "sqlite", "mysql":
	default:
		return &core.ConfigurationError{Field: "cache.type", Reason: "must be one of memory, sqlite, mysql"}
	}

	switch c.GetString("eval.missing_prediction") {
	case "zero", "exclude":
	default:
		return &core.ConfigurationError{Field: "eval.missing_prediction", Reason: "must be zero or exclude"}
	}

	return nil
}
