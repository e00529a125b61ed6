package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the content pipeline
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	Listen         string        `mapstructure:"listen"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains the language-model provider configuration
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// SearchConfig contains retrieval provider configurations
type SearchConfig struct {
	Tavily    TavilyConfig    `mapstructure:"tavily"`
	Firecrawl FirecrawlConfig `mapstructure:"firecrawl"`
	CacheTTL  time.Duration   `mapstructure:"cache_ttl"`
	Enrich    bool            `mapstructure:"enrich"`
}

// TavilyConfig contains Tavily AI search settings
type TavilyConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	MaxResults  int           `mapstructure:"max_results"`
	SearchDepth string        `mapstructure:"search_depth"` // basic or advanced
	Timeout     time.Duration `mapstructure:"timeout"`
}

// FirecrawlConfig contains Firecrawl scraping settings
type FirecrawlConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PipelineConfig contains content pipeline settings
type PipelineConfig struct {
	DefaultWordCount  int           `mapstructure:"default_word_count"`
	MinWordCount      int           `mapstructure:"min_word_count"`
	MaxWordCount      int           `mapstructure:"max_word_count"`
	MaxSummarySources int           `mapstructure:"max_summary_sources"`
	StageTimeout      time.Duration `mapstructure:"stage_timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// DSN builds a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// Load loads configuration from file and environment variables
func Load(path string) (*Config, error) {
	viper.SetConfigName("contentforge")
	viper.SetConfigType("yaml")
	if path != "" {
		viper.AddConfigPath(path)
	}
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("CONTENTFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional - defaults plus env are enough to run
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.listen", ":8080")
	viper.SetDefault("general.default_timeout", "30s")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_tokens", 2000)
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.max_retries", 3)

	viper.SetDefault("search.tavily.max_results", 10)
	viper.SetDefault("search.tavily.search_depth", "advanced")
	viper.SetDefault("search.tavily.timeout", "30s")
	viper.SetDefault("search.firecrawl.endpoint", "https://api.firecrawl.dev/v0")
	viper.SetDefault("search.firecrawl.timeout", "30s")
	viper.SetDefault("search.cache_ttl", "15m")
	viper.SetDefault("search.enrich", false)

	viper.SetDefault("pipeline.default_word_count", 800)
	viper.SetDefault("pipeline.min_word_count", 100)
	viper.SetDefault("pipeline.max_word_count", 5000)
	viper.SetDefault("pipeline.max_summary_sources", 8)
	viper.SetDefault("pipeline.stage_timeout", "5m")

	viper.SetDefault("storage.postgres.host", "")
	viper.SetDefault("storage.postgres.port", 5432)
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", "5s")
	viper.SetDefault("storage.redis.host", "")
	viper.SetDefault("storage.redis.port", 6379)
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.timeout", "5s")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.periodic_logs", false)
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if apiKey := os.Getenv("TAVILY_API_KEY"); apiKey != "" {
		viper.Set("search.tavily.api_key", apiKey)
	}
	if apiKey := os.Getenv("FIRECRAWL_API_KEY"); apiKey != "" {
		viper.Set("search.firecrawl.api_key", apiKey)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("storage.postgres.url", url)
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		viper.Set("storage.postgres.host", host)
	}
	if port := os.Getenv("POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("storage.postgres.port", p)
		}
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		viper.Set("storage.postgres.user", user)
	}
	if pass := os.Getenv("POSTGRES_PASSWORD"); pass != "" {
		viper.Set("storage.postgres.password", pass)
	}
	if db := os.Getenv("POSTGRES_DB"); db != "" {
		viper.Set("storage.postgres.dbname", db)
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("storage.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("storage.redis.password", password)
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.LLM.Provider == "" {
		return fmt.Errorf("llm provider must be configured")
	}
	if config.Pipeline.MinWordCount <= 0 {
		return fmt.Errorf("pipeline.min_word_count must be positive")
	}
	if config.Pipeline.MaxWordCount < config.Pipeline.MinWordCount {
		return fmt.Errorf("pipeline.max_word_count must be >= min_word_count")
	}
	if config.Pipeline.MaxSummarySources <= 0 {
		return fmt.Errorf("pipeline.max_summary_sources must be positive")
	}
	return nil
}
