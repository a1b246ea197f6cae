package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/marketscout/internal/agent/telemetry"
	"github.com/mohammad-safakhou/marketscout/tools/web_search"
)

// Orchestrator wires the four stages into a fail-fast pipeline. One
// Orchestrator serves many concurrent runs; all per-run state lives in the
// WorkflowState and StageContext values built inside Execute.
type Orchestrator struct {
	LLM       LLMProvider
	Searcher  web_search.WebSearcher
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger

	Research StageConfig
	Analysis StageConfig
	Strategy StageConfig

	SearchMax int
}

// NewOrchestrator applies defaults for anything the caller left zero.
func NewOrchestrator(llm LLMProvider, searcher web_search.WebSearcher, tel *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		LLM:       llm,
		Searcher:  searcher,
		Telemetry: tel,
		Logger:    log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		Research:  StageConfig{MaxTurns: 12},
		Analysis:  StageConfig{MaxTurns: 10},
		Strategy:  StageConfig{MaxTurns: 25},
		SearchMax: 10,
	}
}

// Execute runs one workflow to completion. It never returns an error and
// never panics: every failure mode collapses into a structured envelope. The
// reporter may be nil when the caller does not stream progress.
func (o *Orchestrator) Execute(ctx context.Context, req ResearchRequest, reporter *Reporter) (env Envelope) {
	runID := fmt.Sprintf("%d", time.Now().UnixNano())
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%v", r)
			o.Logger.Printf("run panicked: %v", r)
			env = failedEnvelope(msg, nil)
			o.Telemetry.RecordRunEvent(telemetry.RunEvent{ID: runID, Query: req.Query, Duration: time.Since(start), Success: false, Error: msg})
			reporter.Finish(&env)
		}
	}()

	tracer := otel.Tracer("marketscout/orchestrator")
	ctx, span := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("research_type", string(req.ResearchType)),
	))
	defer span.End()

	state := &WorkflowState{
		Query:        req.Query,
		ResearchType: req.ResearchType,
		Company:      req.Company,
		Competitors:  req.Competitors,
		Industry:     req.Industry,
		Status:       StatusStarting,
	}

	o.runResearch(ctx, state, reporter)
	if shouldContinue(state.Status) {
		o.runAnalysis(ctx, state, reporter)
	}
	if shouldContinue(state.Status) {
		o.runStrategy(ctx, state, reporter)
	}
	if shouldContinue(state.Status) {
		o.compile(ctx, state, reporter)
	}

	env = o.finalEnvelope(state)
	o.Telemetry.RecordRunEvent(telemetry.RunEvent{
		ID:       runID,
		Query:    req.Query,
		Duration: time.Since(start),
		Success:  env.Status == StatusCompleted,
		Error:    env.Error,
	})
	reporter.Finish(&env)
	return env
}

// shouldContinue implements the fail-fast rule: any status containing
// "failed" terminates the run.
func shouldContinue(status string) bool {
	return !strings.Contains(status, "failed")
}

func (o *Orchestrator) stageContext(state *WorkflowState, cfg StageConfig, upstream *StageOutcome) *StageContext {
	return &StageContext{
		State:     state,
		LLM:       o.LLM,
		Model:     cfg.Model,
		Searcher:  o.Searcher,
		Upstream:  upstream,
		Telemetry: o.Telemetry,
		SearchMax: o.SearchMax,
	}
}

func (o *Orchestrator) runner(agent string, cfg StageConfig, caps []Capability, reporter *Reporter) *StageRunner {
	return &StageRunner{
		Agent:        agent,
		MaxTurns:     cfg.MaxTurns,
		Capabilities: caps,
		Logger:       o.Logger,
		Reporter:     reporter,
		Telemetry:    o.Telemetry,
	}
}

func (o *Orchestrator) runResearch(ctx context.Context, state *WorkflowState, reporter *Reporter) {
	state.Status = StatusResearchRunning
	state.CurrentAgent = AgentResearch
	reporter.Publish(Event{Agent: AgentResearch, Status: "started"})

	ctx, span := otel.Tracer("marketscout/orchestrator").Start(ctx, "stage.research")
	defer span.End()

	sc := o.stageContext(state, o.Research, nil)
	system, task := researchInstructions(state)
	outcome := o.runner(AgentResearch, o.Research, ResearchCapabilities(), reporter).Run(ctx, sc, system, task)
	finishResearchOutcome(sc, outcome)
	state.ResearchData = outcome

	if outcome.Failed() {
		state.Status = StatusResearchFailed
		state.Error = outcome.Error
		o.Logger.Printf("research failed: %s", outcome.Error)
		reporter.Publish(Event{Agent: AgentResearch, Status: "error", Error: outcome.Error})
		return
	}
	state.Status = StatusResearchComplete
	o.Logger.Printf("research complete: %d searches, %d records", outcome.Searches, outcome.Records)
	reporter.Publish(Event{Agent: AgentResearch, Status: "completed"})
}

func (o *Orchestrator) runAnalysis(ctx context.Context, state *WorkflowState, reporter *Reporter) {
	state.Status = StatusAnalysisRunning
	state.CurrentAgent = AgentAnalyze
	reporter.Publish(Event{Agent: AgentAnalyze, Status: "started"})

	ctx, span := otel.Tracer("marketscout/orchestrator").Start(ctx, "stage.analysis")
	defer span.End()

	// Local guard, independent of the fail-fast rule: a caller re-entering
	// with a half-built state must not reach the model.
	if state.ResearchData.Failed() || state.ResearchData.Empty() {
		state.Status = StatusAnalysisFailed
		state.Error = "No research data to analyze"
		reporter.Publish(Event{Agent: AgentAnalyze, Status: "error", Error: state.Error})
		return
	}

	sc := o.stageContext(state, o.Analysis, state.ResearchData)
	system, task := analysisInstructions(state)
	outcome := o.runner(AgentAnalyze, o.Analysis, AnalysisCapabilities(), reporter).Run(ctx, sc, system, task)
	finishAnalysisOutcome(sc, outcome)
	state.AnalysisData = outcome

	if outcome.Failed() {
		state.Status = StatusAnalysisFailed
		state.Error = outcome.Error
		o.Logger.Printf("analysis failed: %s", outcome.Error)
		reporter.Publish(Event{Agent: AgentAnalyze, Status: "error", Error: outcome.Error})
		return
	}
	state.Status = StatusAnalysisComplete
	o.Logger.Printf("analysis complete: %d tool calls", len(outcome.ToolsInvoked))
	reporter.Publish(Event{Agent: AgentAnalyze, Status: "completed"})
}

func (o *Orchestrator) runStrategy(ctx context.Context, state *WorkflowState, reporter *Reporter) {
	state.Status = StatusStrategyRunning
	state.CurrentAgent = AgentStrategize
	reporter.Publish(Event{Agent: AgentStrategize, Status: "started"})

	ctx, span := otel.Tracer("marketscout/orchestrator").Start(ctx, "stage.strategy")
	defer span.End()

	if state.AnalysisData.Failed() || state.AnalysisData.Empty() {
		state.Status = StatusStrategyFailed
		state.Error = "No analysis data to strategize from"
		reporter.Publish(Event{Agent: AgentStrategize, Status: "error", Error: state.Error})
		return
	}

	sc := o.stageContext(state, o.Strategy, state.AnalysisData)
	system, task := strategyInstructions(state)
	outcome := o.runner(AgentStrategize, o.Strategy, StrategyCapabilities(), reporter).Run(ctx, sc, system, task)
	state.StrategyData = outcome

	if outcome.Failed() {
		state.Status = StatusStrategyFailed
		state.Error = outcome.Error
		o.Logger.Printf("strategy failed: %s", outcome.Error)
		reporter.Publish(Event{Agent: AgentStrategize, Status: "error", Error: outcome.Error})
		return
	}
	state.Status = StatusStrategyComplete
	o.Logger.Printf("strategy complete: %d tool calls", len(outcome.ToolsInvoked))
	reporter.Publish(Event{Agent: AgentStrategize, Status: "completed"})
}

func (o *Orchestrator) compile(ctx context.Context, state *WorkflowState, reporter *Reporter) {
	state.CurrentAgent = AgentCompile
	reporter.Publish(Event{Agent: AgentCompile, Status: "started"})

	_, span := otel.Tracer("marketscout/orchestrator").Start(ctx, "stage.compile")
	defer span.End()

	state.FinalReport = CompileReport(state.ResearchData, state.AnalysisData, state.StrategyData)
	state.Status = StatusCompleted
	state.CurrentAgent = AgentComplete
	reporter.Publish(Event{Agent: AgentCompile, Status: "completed"})
}

// finalEnvelope converts terminal workflow state into the caller-facing
// envelope.
func (o *Orchestrator) finalEnvelope(state *WorkflowState) Envelope {
	wt := &WorkflowTrace{
		ResearchCompleted: state.ResearchData != nil && !state.ResearchData.Failed(),
		AnalysisCompleted: state.AnalysisData != nil && !state.AnalysisData.Failed(),
		StrategyCompleted: state.StrategyData != nil && !state.StrategyData.Failed(),
		FinalAgent:        state.CurrentAgent,
	}
	if state.Status != StatusCompleted {
		return failedEnvelope(state.Error, wt)
	}
	return Envelope{
		Status:        StatusCompleted,
		Results:       state.FinalReport,
		Summary:       executiveSummary(state.StrategyData),
		WorkflowTrace: wt,
	}
}

func failedEnvelope(msg string, trace *WorkflowTrace) Envelope {
	return Envelope{
		Status:        StatusFailed,
		Error:         msg,
		Results:       map[string]interface{}{},
		Summary:       fmt.Sprintf("Research failed: %s", msg),
		WorkflowTrace: trace,
	}
}
