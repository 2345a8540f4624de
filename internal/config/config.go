// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"RADAR_HOST" yaml:"host"`
	Port int    `envconfig:"RADAR_PORT" yaml:"port"`

	// Query validation
	MaxQueryLength int `envconfig:"RADAR_MAX_QUERY_LENGTH" yaml:"max_query_length"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Fetch (outbound connection pool) configuration
	Fetch FetchConfig `yaml:"fetch"`

	// Search provider configuration
	Search SearchConfig `yaml:"search"`

	// Filter configuration
	Filter FilterConfig `yaml:"filter"`

	// Generative provider configuration
	GenAI GenAIConfig `yaml:"genai"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Type       string `envconfig:"RADAR_CACHE_TYPE" yaml:"type"`
	Capacity   int    `envconfig:"RADAR_CACHE_CAPACITY" yaml:"capacity"`
	TTLSeconds int    `envconfig:"RADAR_CACHE_TTL_SECONDS" yaml:"ttl_seconds"`
	RedisURL   string `envconfig:"RADAR_REDIS_URL" yaml:"redis_url"`
}

// TTL returns the cache entry time-to-live as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// FetchConfig holds outbound HTTP pool settings.
type FetchConfig struct {
	TimeoutSeconds int `envconfig:"RADAR_FETCH_TIMEOUT_SECONDS" yaml:"timeout_seconds"`
	MaxConnections int `envconfig:"RADAR_MAX_CONNECTIONS" yaml:"max_connections"`
	MaxKeepalive   int `envconfig:"RADAR_MAX_KEEPALIVE" yaml:"max_keepalive"`
}

// Timeout returns the per-call timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SearchConfig holds search provider settings.
type SearchConfig struct {
	SerperAPIKey string `envconfig:"SERPER_API_KEY" yaml:"serper_api_key"`
	SerperURL    string `envconfig:"RADAR_SERPER_URL" yaml:"serper_url"`
	ResultCount  int    `envconfig:"RADAR_SEARCH_RESULTS" yaml:"result_count"`
	FetchPages   bool   `envconfig:"RADAR_FETCH_PAGES" yaml:"fetch_pages"`
	PageCharCap  int    `envconfig:"RADAR_PAGE_CHAR_CAP" yaml:"page_char_cap"`
}

// FilterConfig holds spam/ad filter settings.
type FilterConfig struct {
	SnippetCharCap   int      `envconfig:"RADAR_SNIPPET_CHAR_CAP" yaml:"snippet_char_cap"`
	ContextCharLimit int      `envconfig:"RADAR_CONTEXT_CHAR_LIMIT" yaml:"context_char_limit"`
	ExtraKeywords    []string `envconfig:"RADAR_SPAM_KEYWORDS" yaml:"extra_keywords"`
}

// GenAIConfig holds generative provider settings.
// Providers are tried in rotation order: Gemini, Groq, OpenRouter.
type GenAIConfig struct {
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY" yaml:"gemini_api_key"`
	GeminiModel      string `envconfig:"RADAR_GEMINI_MODEL" yaml:"gemini_model"`
	GroqAPIKey       string `envconfig:"GROQ_API_KEY" yaml:"groq_api_key"`
	GroqModel        string `envconfig:"RADAR_GROQ_MODEL" yaml:"groq_model"`
	OpenRouterAPIKey string `envconfig:"OPENROUTER_KEY" yaml:"openrouter_api_key"`
	OpenRouterModel  string `envconfig:"RADAR_OPENROUTER_MODEL" yaml:"openrouter_model"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"RADAR_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"RADAR_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"RADAR_KAFKA_GROUP" yaml:"kafka_group"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RADAR_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RADAR_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit   float64 `envconfig:"RADAR_RATE_LIMIT" yaml:"rate_limit"` // req/sec per client, 0 = disabled
	RateBurst   int     `envconfig:"RADAR_RATE_BURST" yaml:"rate_burst"`
	CORSOrigins string  `envconfig:"RADAR_CORS_ORIGINS" yaml:"cors_origins"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled  bool   `envconfig:"RADAR_METRICS_ENABLED" yaml:"enabled"`
	Path     string `envconfig:"RADAR_METRICS_PATH" yaml:"path"`
	RedisURL string `envconfig:"RADAR_METRICS_REDIS_URL" yaml:"redis_url"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080
	cfg.MaxQueryLength = 100

	cfg.Cache = CacheConfig{
		Type:       "memory",
		Capacity:   10,
		TTLSeconds: 3600,
		RedisURL:   "redis://localhost:6379",
	}

	cfg.Fetch = FetchConfig{
		TimeoutSeconds: 12,
		MaxConnections: 10,
		MaxKeepalive:   5,
	}

	cfg.Search = SearchConfig{
		SerperURL:   "https://google.serper.dev/search",
		ResultCount: 5,
		FetchPages:  true,
		PageCharCap: 10000,
	}

	cfg.Filter = FilterConfig{
		SnippetCharCap:   500,
		ContextCharLimit: 8000,
	}

	cfg.GenAI = GenAIConfig{
		GeminiModel:     "gemini-1.5-flash",
		GroqModel:       "llama3-70b-8192",
		OpenRouterModel: "deepseek/deepseek-chat",
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit:   0,
		RateBurst:   10,
		CORSOrigins: "*",
	}

	cfg.Metrics = MetricsConfig{
		Enabled: true,
		Path:    "/metrics",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.MaxQueryLength < 1 {
		errs = append(errs, "max_query_length must be positive")
	}

	validCacheTypes := map[string]bool{"memory": true, "redis": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory or redis)", c.Cache.Type))
	}

	if c.Cache.Capacity < 1 {
		errs = append(errs, "cache capacity must be positive")
	}

	if c.Cache.TTLSeconds < 1 {
		errs = append(errs, "cache ttl_seconds must be positive")
	}

	if c.Fetch.TimeoutSeconds < 1 {
		errs = append(errs, "fetch timeout_seconds must be positive")
	}

	if c.Fetch.MaxConnections < 1 {
		errs = append(errs, "fetch max_connections must be positive")
	}

	if c.Fetch.MaxKeepalive < 0 || c.Fetch.MaxKeepalive > c.Fetch.MaxConnections {
		errs = append(errs, "fetch max_keepalive must be between 0 and max_connections")
	}

	if c.Filter.SnippetCharCap < 1 {
		errs = append(errs, "filter snippet_char_cap must be positive")
	}

	if c.Filter.ContextCharLimit < c.Filter.SnippetCharCap {
		errs = append(errs, "filter context_char_limit must be at least snippet_char_cap")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
