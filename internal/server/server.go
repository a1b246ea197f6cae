package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/marketscout/config"
	"github.com/mohammad-safakhou/marketscout/internal/agent/core"
	"github.com/mohammad-safakhou/marketscout/internal/agent/telemetry"
	"github.com/mohammad-safakhou/marketscout/internal/capability"
	"github.com/mohammad-safakhou/marketscout/tools/web_search"
)

// Run builds the dependency graph from config and serves until the listener
// fails.
func Run(cfg *config.Config) error {
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
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Shared dependencies (top-level DI)
	ctx := context.Background()
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	var llm core.LLMProvider
	if llmProvider, err := core.NewLLMProvider(cfg.LLM); err != nil {
		baseLogger.Printf("llm provider unavailable: %v", err)
	} else {
		llm = llmProvider
	}

	searcher, err := buildSearcher(cfg.Search)
	if err != nil {
		return fmt.Errorf("building searcher: %w", err)
	}

	storage, err := core.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("building storage: %w", err)
	}

	registry, err := capability.NewRegistry(capability.DefaultToolCards(), nil)
	if err != nil {
		return fmt.Errorf("building capability registry: %w", err)
	}

	var orch *core.Orchestrator
	if llm != nil {
		orch = core.NewOrchestrator(llm, searcher, tele)
		orch.Research = core.StageConfig{MaxTurns: cfg.Agents.ResearchMaxTurns, Model: cfg.LLM.Routing.Research}
		orch.Analysis = core.StageConfig{MaxTurns: cfg.Agents.AnalysisMaxTurns, Model: cfg.LLM.Routing.Analysis}
		orch.Strategy = core.StageConfig{MaxTurns: cfg.Agents.StrategyMaxTurns, Model: cfg.LLM.Routing.Strategy}
		orch.SearchMax = cfg.Search.MaxResults
	}

	h := &ResearchHandler{
		Orch:           orch,
		Storage:        storage,
		Registry:       registry,
		Telemetry:      tele,
		Logger:         log.New(log.Writer(), "[RESEARCH-API] ", log.LstdFlags),
		StreamInterval: cfg.Server.StreamInterval,
	}
	h.Register(e.Group("/api"))

	return e.Start(cfg.Server.Listen)
}

func buildSearcher(cfg config.SearchConfig) (web_search.WebSearcher, error) {
	if cfg.MinInterval > 0 {
		web_search.SetMinInterval(cfg.MinInterval)
	}
	switch cfg.Provider {
	case "brave":
		return web_search.NewWebSearcher(web_search.BraveProvider, cfg.BraveAPIKey)
	default:
		return web_search.NewWebSearcher(web_search.SerperProvider, cfg.SerperAPIKey)
	}
}
