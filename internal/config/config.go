// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Agent       AgentConfig       `mapstructure:"agent"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Headless    HeadlessConfig    `mapstructure:"headless"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Seed        SeedConfig        `mapstructure:"seed"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                     int `mapstructure:"port"`
	ReadTimeoutSeconds       int `mapstructure:"read_timeout_seconds"`
	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout_seconds"`
	WriteTimeoutSeconds      int `mapstructure:"write_timeout_seconds"`
	RequestTimeoutSeconds    int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds   int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DatabaseConfig controls access to the relational database. An empty
// URL selects the in-memory store.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// AgentConfig governs the background intelligence agent.
type AgentConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	TargetPerHour       int     `mapstructure:"target_per_hour"`
	Workers             int     `mapstructure:"workers"`
	QueueDepth          int     `mapstructure:"queue_depth"`
	QualityThreshold    float64 `mapstructure:"quality_threshold"`
	ErrorBackoffSeconds int     `mapstructure:"error_backoff_seconds"`
	MaxContentChars     int     `mapstructure:"max_content_chars"`
	MinContentChars     int     `mapstructure:"min_content_chars"`
	SkipUnchanged       bool    `mapstructure:"skip_unchanged"`
}

// LLMConfig groups the insight producer backends.
type LLMConfig struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig configures the OpenAI chat completion producer. BaseURL
// overrides the API endpoint, mainly for proxies and tests.
type OpenAIConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// AnthropicConfig configures the Anthropic messages producer.
type AnthropicConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// FetchConfig configures the plain HTTP content fetcher. A
// MaxBodyBytes of zero disables the response size cap.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// StorageConfig sets the snapshot blob store location. The URI scheme
// selects the backend: gs://, file://, or memory://.
type StorageConfig struct {
	URI         string `mapstructure:"uri"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for insight event notifications. An
// empty project ID selects the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// CacheConfig controls the read-side response cache.
type CacheConfig struct {
	Enabled                bool `mapstructure:"enabled"`
	TTLSeconds             int  `mapstructure:"ttl_seconds"`
	CleanupIntervalSeconds int  `mapstructure:"cleanup_interval_seconds"`
}

// RateLimitConfig throttles authenticated API clients.
type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PerMinute int  `mapstructure:"per_minute"`
	Burst     int  `mapstructure:"burst"`
}

// MaintenanceConfig schedules the nightly pruning job.
type MaintenanceConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Schedule     string `mapstructure:"schedule"`
	KeepInsights int    `mapstructure:"keep_insights"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SeedConfig lists domains to register on startup.
type SeedConfig struct {
	Domains []string `mapstructure:"domains"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LLMRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare aliases used by hosting platforms alongside the prefixed
	// LLMRANK_* names.
	aliases := map[string]string{
		"database.url":          "DATABASE_URL",
		"llm.openai.api_key":    "OPENAI_API_KEY",
		"llm.anthropic.api_key": "ANTHROPIC_API_KEY",
	}
	for key, env := range aliases {
		if err := v.BindEnv(key, "LLMRANK_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.read_header_timeout_seconds", 5)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.api_key", "mcp_81b5be8a0aeb934314741b4c3f4b9436")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("agent.enabled", true)
	v.SetDefault("agent.target_per_hour", 500)
	v.SetDefault("agent.workers", 4)
	v.SetDefault("agent.queue_depth", 64)
	v.SetDefault("agent.quality_threshold", 0.70)
	v.SetDefault("agent.error_backoff_seconds", 10)
	v.SetDefault("agent.max_content_chars", 2000)
	v.SetDefault("agent.min_content_chars", 100)
	v.SetDefault("agent.skip_unchanged", true)
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.max_tokens", 200)
	v.SetDefault("llm.openai.temperature", 0.7)
	v.SetDefault("llm.openai.timeout_seconds", 30)
	v.SetDefault("llm.anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("llm.anthropic.max_tokens", 200)
	v.SetDefault("llm.anthropic.timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "llmrank-agent/3.0 (+https://llmrank.io)")
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("storage.uri", "memory://")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.topic", "insights")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.cleanup_interval_seconds", 60)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.per_minute", 120)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "0 2 * * *")
	v.SetDefault("maintenance.keep_insights", 1000)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Agent.Enabled {
		if c.Agent.TargetPerHour <= 0 {
			return fmt.Errorf("agent.target_per_hour must be > 0")
		}
		if c.Agent.Workers <= 0 {
			return fmt.Errorf("agent.workers must be > 0")
		}
		if c.Agent.QueueDepth <= 0 {
			return fmt.Errorf("agent.queue_depth must be > 0")
		}
	}
	if c.Agent.QualityThreshold < 0 || c.Agent.QualityThreshold > 1 {
		return fmt.Errorf("agent.quality_threshold must be within [0,1]")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0 when cache is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("ratelimit.per_minute must be > 0 when ratelimit is enabled")
	}
	if c.Maintenance.Enabled {
		if c.Maintenance.Schedule == "" {
			return fmt.Errorf("maintenance.schedule must be set when maintenance is enabled")
		}
		if c.Maintenance.KeepInsights <= 0 {
			return fmt.Errorf("maintenance.keep_insights must be > 0")
		}
	}
	return nil
}

// RequestTimeout is the per-request handler budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful server shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// CacheTTL is the lifetime of cached read-side responses.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// CacheCleanupInterval is the sweep period for expired cache entries.
func (c Config) CacheCleanupInterval() time.Duration {
	return time.Duration(c.Cache.CleanupIntervalSeconds) * time.Second
}

// ProcessInterval is the pacing gap between domain pulls needed to hit
// the hourly target.
func (c AgentConfig) ProcessInterval() time.Duration {
	if c.TargetPerHour <= 0 {
		return time.Hour
	}
	return time.Hour / time.Duration(c.TargetPerHour)
}

// ErrorBackoff is the pause after a failed processing attempt.
func (c AgentConfig) ErrorBackoff() time.Duration {
	return time.Duration(c.ErrorBackoffSeconds) * time.Second
}

// FetchTimeout bounds a single content fetch.
func (c FetchConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
