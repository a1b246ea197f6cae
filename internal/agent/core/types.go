package core

import (
	"context"
	"fmt"
	"time"
)

// ResearchType selects which flavor of report the pipeline produces.
type ResearchType string

const (
	MarketOverview     ResearchType = "market_overview"
	CompetitorAnalysis ResearchType = "competitor_analysis"
	TrendAnalysis      ResearchType = "trend_analysis"
	FullReport         ResearchType = "full_report"
)

// ParseResearchType validates a research type token.
func ParseResearchType(s string) (ResearchType, error) {
	switch ResearchType(s) {
	case MarketOverview, CompetitorAnalysis, TrendAnalysis, FullReport:
		return ResearchType(s), nil
	default:
		return "", fmt.Errorf("unknown research type: %q", s)
	}
}

// ResearchRequest is the caller-facing input of one workflow run.
type ResearchRequest struct {
	Query        string       `json:"query"`
	ResearchType ResearchType `json:"research_type"`
	Company      string       `json:"company,omitempty"`
	Competitors  []string     `json:"competitors,omitempty"`
	Industry     string       `json:"industry,omitempty"`
}

// Workflow status tokens. Any token containing "failed" short-circuits the
// remaining stages.
const (
	StatusStarting         = "starting"
	StatusResearchRunning  = "research_running"
	StatusResearchComplete = "research_complete"
	StatusResearchFailed   = "research_failed"
	StatusAnalysisRunning  = "analysis_running"
	StatusAnalysisComplete = "analysis_complete"
	StatusAnalysisFailed   = "analysis_failed"
	StatusStrategyRunning  = "strategy_running"
	StatusStrategyComplete = "strategy_complete"
	StatusStrategyFailed   = "strategy_failed"
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
)

// Stage/agent names as reported in progress events and traces.
const (
	AgentResearch   = "research"
	AgentAnalyze    = "analyze"
	AgentStrategize = "strategize"
	AgentCompile    = "compile"
	AgentComplete   = "complete"
)

// WorkflowState is the single record threaded through one pipeline run.
// It is owned exclusively by the orchestrator and never shared across runs.
type WorkflowState struct {
	Query        string       `json:"query"`
	ResearchType ResearchType `json:"research_type"`
	Company      string       `json:"company,omitempty"`
	Competitors  []string     `json:"competitors,omitempty"`
	Industry     string       `json:"industry,omitempty"`

	ResearchData *StageOutcome          `json:"research_data,omitempty"`
	AnalysisData *StageOutcome          `json:"analysis_data,omitempty"`
	StrategyData *StageOutcome          `json:"strategy_data,omitempty"`
	FinalReport  map[string]interface{} `json:"final_report,omitempty"`

	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	CurrentAgent string `json:"current_agent"`
}

// StageOutcome packages the result of one stage run. Tool results accumulate
// per capability name: invoking the same capability twice keeps both results.
type StageOutcome struct {
	ToolResults  map[string][]interface{} `json:"tool_results"`
	Summary      string                   `json:"summary,omitempty"`
	ToolsInvoked []string                 `json:"tools_invoked,omitempty"`
	Error        string                   `json:"error,omitempty"`

	// SearchRecords is the flat list of successful search records the
	// research stage gathered, in call order. Later stages read it instead
	// of digging through ToolResults.
	SearchRecords []map[string]interface{} `json:"search_records,omitempty"`

	// Research-stage counters carried into the final report.
	Searches int `json:"num_searches,omitempty"`
	Records  int `json:"results_gathered,omitempty"`
	// Analysis-stage counter.
	DataPoints int `json:"data_points_analyzed,omitempty"`
}

// Failed reports whether the stage produced no usable output.
func (s *StageOutcome) Failed() bool {
	return s == nil || s.Error != ""
}

// Empty reports whether the stage collected nothing at all.
func (s *StageOutcome) Empty() bool {
	return s == nil || (len(s.ToolResults) == 0 && s.Summary == "")
}

// WorkflowTrace records which stages ran to completion.
type WorkflowTrace struct {
	ResearchCompleted bool   `json:"research_completed"`
	AnalysisCompleted bool   `json:"analysis_completed"`
	StrategyCompleted bool   `json:"strategy_completed"`
	FinalAgent        string `json:"final_agent"`
}

// Envelope is the caller-facing result of one workflow run. The orchestrator
// always returns a well-formed envelope, even on total failure.
type Envelope struct {
	Status        string                 `json:"status"`
	Results       map[string]interface{} `json:"results"`
	Summary       string                 `json:"summary"`
	Error         string                 `json:"error,omitempty"`
	WorkflowTrace *WorkflowTrace         `json:"workflow_trace,omitempty"`
}

// Message is one role-tagged instruction in an LLM conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMProvider interface defines the contract for LLM providers
type LLMProvider interface {
	// Complete generates a response for an ordered message sequence
	Complete(ctx context.Context, messages []Message, model string) (string, error)

	// CompleteWithTokens generates a response and returns token usage
	CompleteWithTokens(ctx context.Context, messages []Message, model string) (string, int64, int64, error)

	// GetAvailableModels returns available models
	GetAvailableModels() []string

	// CalculateCost calculates the cost for a given number of tokens
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// Storage persists completed report envelopes keyed by research ID.
type Storage interface {
	SaveReport(ctx context.Context, id string, env Envelope) error
	GetReport(ctx context.Context, id string) (Envelope, error)
}

// ErrReportNotFound is returned by Storage.GetReport for unknown IDs.
var ErrReportNotFound = fmt.Errorf("report not found")

// StageConfig carries the tunable per-stage settings.
type StageConfig struct {
	MaxTurns int
	Timeout  time.Duration
	Model    string
}
