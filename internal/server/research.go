package server

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mohammad-safakhou/marketscout/internal/agent/core"
	"github.com/mohammad-safakhou/marketscout/internal/agent/telemetry"
	"github.com/mohammad-safakhou/marketscout/internal/capability"
)

var apiTracer = otel.Tracer("marketscout/server")

// ResearchHandler serves the market-research API. Orch is nil when no LLM
// provider is configured; execution endpoints answer 503 in that case.
type ResearchHandler struct {
	Orch           *core.Orchestrator
	Storage        core.Storage
	Registry       *capability.Registry
	Telemetry      *telemetry.Telemetry
	Logger         *log.Logger
	StreamInterval time.Duration
}

// Register mounts the handler under the given group.
func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/research/execute", h.execute)
	g.POST("/research/stream", h.stream)
	g.GET("/research/types", h.types)
	g.GET("/research/:id", h.getReport)
	g.GET("/agents/status", h.agentsStatus)
	g.GET("/tools/list", h.toolsList)
}

func (h *ResearchHandler) parseRequest(c echo.Context) (core.ResearchRequest, error) {
	var body ResearchRequest
	if err := c.Bind(&body); err != nil {
		return core.ResearchRequest{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(body.Query) == "" {
		return core.ResearchRequest{}, echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	rt := body.ResearchType
	if rt == "" {
		rt = string(core.MarketOverview)
	}
	researchType, err := core.ParseResearchType(rt)
	if err != nil {
		return core.ResearchRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return core.ResearchRequest{
		Query:        body.Query,
		ResearchType: researchType,
		Company:      body.Company,
		Competitors:  body.Competitors,
		Industry:     body.Industry,
	}, nil
}

// execute runs the workflow synchronously and returns the full report.
func (h *ResearchHandler) execute(c echo.Context) error {
	if h.Orch == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "llm provider not configured")
	}
	req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	ctx, span := apiTracer.Start(c.Request().Context(), "ResearchHandler.execute")
	defer span.End()
	span.SetAttributes(attribute.String("research_type", string(req.ResearchType)))

	researchID := uuid.NewString()
	h.Logger.Printf("executing research %s: %q (%s)", researchID, req.Query, req.ResearchType)

	env := h.Orch.Execute(ctx, req, nil)
	if env.Status != core.StatusCompleted {
		return echo.NewHTTPError(http.StatusInternalServerError, env.Error)
	}

	if err := h.Storage.SaveReport(ctx, researchID, env); err != nil {
		// The run succeeded; a broken store must not hide the report.
		h.Logger.Printf("saving report %s failed: %v", researchID, err)
	}

	return c.JSON(http.StatusOK, ResearchResponse{
		ResearchID:    researchID,
		Status:        env.Status,
		ResearchType:  string(req.ResearchType),
		Results:       env.Results,
		Summary:       env.Summary,
		Timestamp:     time.Now().UTC(),
		WorkflowTrace: env.WorkflowTrace,
	})
}

// getReport fetches a stored report by research ID.
func (h *ResearchHandler) getReport(c echo.Context) error {
	id := c.Param("id")
	env, err := h.Storage.GetReport(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrReportNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ResearchResponse{
		ResearchID:    id,
		Status:        env.Status,
		Results:       env.Results,
		Summary:       env.Summary,
		Timestamp:     time.Now().UTC(),
		WorkflowTrace: env.WorkflowTrace,
	})
}

// types lists the selectable research types.
func (h *ResearchHandler) types(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"research_types": []ResearchTypeInfo{
			{ID: string(core.MarketOverview), Name: "Market Overview", Description: "Market size, growth, key players and industry news"},
			{ID: string(core.CompetitorAnalysis), Name: "Competitor Analysis", Description: "Competitive landscape, positioning and SWOT"},
			{ID: string(core.TrendAnalysis), Name: "Trend Analysis", Description: "Emerging trends and directional signals"},
			{ID: string(core.FullReport), Name: "Full Report", Description: "Comprehensive research, analysis and strategy"},
		},
	})
}

// agentsStatus reports the pipeline roster and collaborator availability.
func (h *ResearchHandler) agentsStatus(c echo.Context) error {
	available := h.Orch != nil
	agents := []AgentStatus{
		{Name: core.AgentResearch, Role: "Data gathering", Tools: h.toolNames("research"), Available: available},
		{Name: core.AgentAnalyze, Role: "Insight extraction", Tools: h.toolNames("analysis"), Available: available},
		{Name: core.AgentStrategize, Role: "Recommendation synthesis", Tools: h.toolNames("strategy"), Available: available},
		{Name: core.AgentCompile, Role: "Report compilation", Tools: []string{}, Available: true},
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents":    agents,
		"llm_ready": available,
		"telemetry": h.Telemetry.Snapshot(),
	})
}

// toolsList exposes the capability registry per agent.
func (h *ResearchHandler) toolsList(c echo.Context) error {
	out := map[string]interface{}{}
	for _, agent := range []string{"research", "analysis", "strategy"} {
		cards := h.Registry.ByAgent(agent)
		list := make([]map[string]interface{}, 0, len(cards))
		for _, tc := range cards {
			list = append(list, map[string]interface{}{
				"name":         tc.Name,
				"version":      tc.Version,
				"description":  tc.Description,
				"input_schema": tc.InputSchema,
			})
		}
		out[agent] = list
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tools": out})
}

func (h *ResearchHandler) toolNames(agent string) []string {
	cards := h.Registry.ByAgent(agent)
	names := make([]string, 0, len(cards))
	for _, tc := range cards {
		names = append(names, tc.Name)
	}
	return names
}
