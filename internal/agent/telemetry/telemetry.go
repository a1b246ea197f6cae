package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/marketscout/config"
)

// Telemetry provides run monitoring and LLM cost tracking
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
}

// Metrics holds various performance metrics
type Metrics struct {
	mu sync.RWMutex

	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	TotalRunTime   time.Duration

	StageExecutions map[string]int64
	StageFailures   map[string]int64
	StageDurations  map[string]time.Duration

	SearchRequests map[string]int64
	SearchFailures map[string]int64

	LLMRequests   map[string]int64
	LLMTokensUsed map[string]int64
}

// CostTracker tracks LLM costs per model and per stage
type CostTracker struct {
	mu sync.RWMutex

	ModelCosts  map[string]float64
	StageCosts  map[string]float64
	TotalCost   float64
	TotalTokens int64
}

// RunEvent represents one complete workflow run
type RunEvent struct {
	ID       string
	Query    string
	Duration time.Duration
	Success  bool
	Error    string
}

// StageEvent represents one stage execution
type StageEvent struct {
	Stage     string
	Duration  time.Duration
	Success   bool
	ToolCalls int
	Error     string
}

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketscout_runs_total",
		Help: "Workflow runs by outcome.",
	}, []string{"outcome"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketscout_stage_duration_seconds",
		Help:    "Stage execution duration.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketscout_searches_total",
		Help: "Search collaborator calls by tool and outcome.",
	}, []string{"tool", "outcome"})
	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketscout_llm_tokens_total",
		Help: "LLM tokens consumed by model.",
	}, []string{"model"})
)

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			StageExecutions: make(map[string]int64),
			StageFailures:   make(map[string]int64),
			StageDurations:  make(map[string]time.Duration),
			SearchRequests:  make(map[string]int64),
			SearchFailures:  make(map[string]int64),
			LLMRequests:     make(map[string]int64),
			LLMTokensUsed:   make(map[string]int64),
		},
		costTracker: &CostTracker{
			ModelCosts: make(map[string]float64),
			StageCosts: make(map[string]float64),
		},
	}
}

// RecordRunEvent records one complete workflow run
func (t *Telemetry) RecordRunEvent(ev RunEvent) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.metrics.mu.Lock()
	t.metrics.TotalRuns++
	t.metrics.TotalRunTime += ev.Duration
	if ev.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
	t.metrics.mu.Unlock()
	outcome := "success"
	if !ev.Success {
		outcome = "failure"
	}
	runsTotal.WithLabelValues(outcome).Inc()
	if !ev.Success && ev.Error != "" {
		t.logger.Printf("run %s failed after %v: %s", ev.ID, ev.Duration, ev.Error)
	}
}

// RecordStageEvent records one stage execution
func (t *Telemetry) RecordStageEvent(ev StageEvent) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.metrics.mu.Lock()
	t.metrics.StageExecutions[ev.Stage]++
	t.metrics.StageDurations[ev.Stage] += ev.Duration
	if !ev.Success {
		t.metrics.StageFailures[ev.Stage]++
	}
	t.metrics.mu.Unlock()
	stageDuration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
}

// RecordSearch records a search collaborator call
func (t *Telemetry) RecordSearch(tool string, success bool) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.metrics.mu.Lock()
	t.metrics.SearchRequests[tool]++
	if !success {
		t.metrics.SearchFailures[tool]++
	}
	t.metrics.mu.Unlock()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	searchesTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordLLMUsage records token usage and cost for one LLM call
func (t *Telemetry) RecordLLMUsage(model, stage string, tokens int64, cost float64) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.metrics.mu.Lock()
	t.metrics.LLMRequests[model]++
	t.metrics.LLMTokensUsed[model] += tokens
	t.metrics.mu.Unlock()
	llmTokens.WithLabelValues(model).Add(float64(tokens))
	if t.config.CostTracking {
		t.costTracker.mu.Lock()
		t.costTracker.ModelCosts[model] += cost
		t.costTracker.StageCosts[stage] += cost
		t.costTracker.TotalCost += cost
		t.costTracker.TotalTokens += tokens
		t.costTracker.mu.Unlock()
	}
}

// Snapshot returns a copy of the current metrics for reporting endpoints.
func (t *Telemetry) Snapshot() map[string]interface{} {
	if t == nil {
		return map[string]interface{}{}
	}
	t.metrics.mu.RLock()
	stages := make(map[string]int64, len(t.metrics.StageExecutions))
	for k, v := range t.metrics.StageExecutions {
		stages[k] = v
	}
	out := map[string]interface{}{
		"total_runs":       t.metrics.TotalRuns,
		"successful_runs":  t.metrics.SuccessfulRuns,
		"failed_runs":      t.metrics.FailedRuns,
		"stage_executions": stages,
	}
	t.metrics.mu.RUnlock()
	t.costTracker.mu.RLock()
	out["total_cost"] = t.costTracker.TotalCost
	out["total_tokens"] = t.costTracker.TotalTokens
	t.costTracker.mu.RUnlock()
	return out
}
