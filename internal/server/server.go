package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/contentforge/contentforge/config"
	"github.com/contentforge/contentforge/internal/pipeline"
	"github.com/contentforge/contentforge/internal/provider"
	"github.com/contentforge/contentforge/internal/readability"
	"github.com/contentforge/contentforge/internal/search"
	"github.com/contentforge/contentforge/internal/search/firecrawl"
	"github.com/contentforge/contentforge/internal/search/tavily"
	"github.com/contentforge/contentforge/internal/store"
	"github.com/contentforge/contentforge/internal/telemetry"
)

// Run wires the full pipeline behind an HTTP API and blocks serving it.
func Run(addr string, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := store.Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	tele := telemetry.New(cfg.Telemetry)

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	var primary, secondary search.Searcher
	if cfg.Search.Tavily.APIKey != "" {
		primary = tavily.Search{
			APIKey:      cfg.Search.Tavily.APIKey,
			SearchDepth: cfg.Search.Tavily.SearchDepth,
			HTTPClient:  &http.Client{Timeout: cfg.Search.Tavily.Timeout},
		}
	}
	if cfg.Search.Firecrawl.APIKey != "" {
		secondary = firecrawl.Search{
			APIKey:     cfg.Search.Firecrawl.APIKey,
			Endpoint:   cfg.Search.Firecrawl.Endpoint,
			HTTPClient: &http.Client{Timeout: cfg.Search.Firecrawl.Timeout},
		}
	}

	// Redis-backed search cache is optional; without it every research
	// invocation hits the providers directly.
	var cache *search.Cache
	if cfg.Storage.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis connection failed (%s:%d): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
		cache = search.NewCache(rdb, cfg.Search.CacheTTL)
	}

	var enricher *readability.Fetcher
	if cfg.Search.Enrich {
		enricher = &readability.Fetcher{}
	}

	research := pipeline.NewResearchStage(cfg, llm, primary, secondary, cache, enricher, tele)
	writer := pipeline.NewWritingStage(cfg, llm, tele)
	orch := pipeline.NewOrchestrator(cfg, research, writer, tele)

	api := e.Group("/api")
	ch := NewContentHandler(cfg, st, orch, tele)
	ch.Register(api.Group("/content"))
	api.GET("/stats", ch.stats)

	if addr == "" {
		addr = cfg.General.Listen
	}
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
