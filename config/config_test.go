package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.Pipeline.DefaultWordCount != 800 || cfg.Pipeline.MinWordCount != 100 || cfg.Pipeline.MaxWordCount != 5000 {
		t.Fatalf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxSummarySources != 8 {
		t.Fatalf("max summary sources = %d", cfg.Pipeline.MaxSummarySources)
	}
	if cfg.Search.Tavily.MaxResults != 10 || cfg.Search.Tavily.SearchDepth != "advanced" {
		t.Fatalf("tavily defaults = %+v", cfg.Search.Tavily)
	}
	if cfg.Search.CacheTTL != 15*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.Search.CacheTTL)
	}
	if cfg.General.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.General.Listen)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("TAVILY_API_KEY", "tv-env")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/cf?sslmode=disable")
	t.Setenv("REDIS_HOST", "redis-env")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Fatalf("llm api key = %q", cfg.LLM.APIKey)
	}
	if cfg.Search.Tavily.APIKey != "tv-env" {
		t.Fatalf("tavily api key = %q", cfg.Search.Tavily.APIKey)
	}
	if cfg.Storage.Postgres.URL != "postgres://u:p@db:5432/cf?sslmode=disable" {
		t.Fatalf("postgres url = %q", cfg.Storage.Postgres.URL)
	}
	if cfg.Storage.Redis.Host != "redis-env" {
		t.Fatalf("redis host = %q", cfg.Storage.Redis.Host)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{URL: "postgres://explicit"}
	dsn, err := p.DSN()
	if err != nil || dsn != "postgres://explicit" {
		t.Fatalf("dsn = %q, err = %v", dsn, err)
	}

	p = PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "cf"}
	dsn, err = p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if dsn != "postgres://u:p@db:5432/cf?sslmode=disable" {
		t.Fatalf("dsn = %q", dsn)
	}

	p = PostgresConfig{}
	if _, err := p.DSN(); err == nil || !strings.Contains(err.Error(), "postgres not configured") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		LLM:      LLMConfig{Provider: "openai"},
		Pipeline: PipelineConfig{MinWordCount: 100, MaxWordCount: 50, MaxSummarySources: 8},
	}
	if err := validate(cfg); err == nil {
		t.Fatalf("expected max < min to fail validation")
	}
	cfg.Pipeline.MaxWordCount = 5000
	if err := validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.LLM.Provider = ""
	if err := validate(cfg); err == nil {
		t.Fatalf("expected missing provider to fail validation")
	}
}
