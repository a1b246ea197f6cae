package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/marketscout/internal/agent/core"
	"github.com/mohammad-safakhou/marketscout/internal/capability"
	"github.com/mohammad-safakhou/marketscout/tools/web_search/models"
)

// finalLLM always ends a reasoning loop immediately with a final answer.
type finalLLM struct{}

func (finalLLM) Complete(ctx context.Context, messages []core.Message, model string) (string, error) {
	return `{"action": "final", "answer": "Findings summarized."}`, nil
}

func (finalLLM) CompleteWithTokens(_ context.Context, _ []core.Message, _ string) (string, int64, int64, error) {
	return `{"action": "final", "answer": "Findings summarized."}`, 10, 5, nil
}

func (finalLLM) GetAvailableModels() []string { return []string{"stub"} }

func (finalLLM) CalculateCost(_, _ int64, _ string) float64 { return 0 }

type fixedSearcher struct{}

func (fixedSearcher) Discover(_ context.Context, _ string, _ int) ([]models.Result, error) {
	return []models.Result{{Title: "t", URL: "u", Snippet: "s"}}, nil
}

func (fixedSearcher) DiscoverNews(_ context.Context, _ string, _ int) ([]models.Result, error) {
	return []models.Result{{Title: "t", URL: "u", Snippet: "s"}}, nil
}

func newTestHandler(t *testing.T, withOrch bool) (*echo.Echo, *ResearchHandler) {
	t.Helper()
	registry, err := capability.NewRegistry(capability.DefaultToolCards(), nil)
	if err != nil {
		t.Fatal(err)
	}
	h := &ResearchHandler{
		Storage:        core.NewMemoryStorage(),
		Registry:       registry,
		Logger:         log.New(log.Writer(), "[RESEARCH-API] ", log.LstdFlags),
		StreamInterval: 10 * time.Millisecond,
	}
	if withOrch {
		h.Orch = core.NewOrchestrator(finalLLM{}, fixedSearcher{}, nil)
	}
	e := echo.New()
	h.Register(e.Group("/api"))
	return e, h
}

func TestExecuteUnavailableWithoutLLM(t *testing.T) {
	e, _ := newTestHandler(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/research/execute",
		strings.NewReader(`{"query": "electric vehicles"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExecuteRejectsMissingQuery(t *testing.T) {
	e, _ := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/research/execute", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExecuteRejectsUnknownResearchType(t *testing.T) {
	e, _ := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/research/execute",
		strings.NewReader(`{"query": "x", "research_type": "astrology"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExecuteAndFetchReport(t *testing.T) {
	e, _ := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/research/execute",
		strings.NewReader(`{"query": "electric vehicles", "research_type": "market_overview"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ResearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ResearchID == "" || resp.Status != core.StatusCompleted {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.WorkflowTrace == nil || !resp.WorkflowTrace.ResearchCompleted {
		t.Fatalf("workflow trace missing: %+v", resp.WorkflowTrace)
	}

	// The stored report is retrievable by ID.
	fetch := httptest.NewRequest(http.MethodGet, "/api/research/"+resp.ResearchID, nil)
	fetchRec := httptest.NewRecorder()
	e.ServeHTTP(fetchRec, fetch)
	if fetchRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on fetch, got %d", fetchRec.Code)
	}
}

func TestGetReportNotFound(t *testing.T) {
	e, _ := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/research/does-not-exist", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResearchTypes(t *testing.T) {
	e, _ := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/research/types", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		ResearchTypes []ResearchTypeInfo `json:"research_types"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.ResearchTypes) != 4 {
		t.Fatalf("expected 4 research types, got %d", len(body.ResearchTypes))
	}
}

func TestToolsList(t *testing.T) {
	e, _ := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/tools/list", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Tools map[string][]map[string]interface{} `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tools["research"]) != 4 || len(body.Tools["analysis"]) != 6 || len(body.Tools["strategy"]) != 6 {
		t.Fatalf("unexpected tool roster: %v", body.Tools)
	}
}

func TestStreamEmitsOneTerminalEvent(t *testing.T) {
	e, _ := newTestHandler(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/research/stream",
		strings.NewReader(`{"query": "electric vehicles"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	terminal := 0
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event payload %q: %v", line, err)
		}
		if ev.Agent == core.AgentComplete {
			terminal++
			if ev.Result == nil || ev.Result.Status != core.StatusCompleted {
				t.Fatalf("terminal event must carry the envelope: %+v", ev)
			}
		}
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminal)
	}
}
