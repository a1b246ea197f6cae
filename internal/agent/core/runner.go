package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/marketscout/internal/agent/telemetry"
	"github.com/mohammad-safakhou/marketscout/tools/web_search"
)

// StageContext carries everything a capability may touch during one stage
// run. One StageContext is built per stage per run; nothing in it is shared
// across concurrent workflows.
type StageContext struct {
	State    *WorkflowState
	LLM      LLMProvider
	Model    string
	Searcher web_search.WebSearcher

	// SearchResults accumulates every successful record the research stage
	// gathered, in call order.
	SearchResults []map[string]interface{}

	// SearchMax caps results per search call.
	SearchMax int

	// Upstream is the previous stage's outcome: research data for the
	// analysis stage, analysis data for the strategy stage.
	Upstream *StageOutcome

	Telemetry *telemetry.Telemetry
}

// Capability is one named operation a stage's reasoning loop may invoke.
type Capability struct {
	Name        string
	Description string
	ArgsHint    string
	Run         func(ctx context.Context, sc *StageContext, input string) (interface{}, error)
}

// action is the control schema the reasoning loop expects from the model.
type action struct {
	Action string `json:"action"`
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Answer string `json:"answer"`
}

// StageRunner executes one stage as a bounded reasoning loop: the model picks
// capabilities turn by turn until it produces a final answer or hits the
// iteration ceiling. The ceiling is a hard guarantee; partial results
// gathered before the cut-off are always preserved.
type StageRunner struct {
	Agent        string
	MaxTurns     int
	Capabilities []Capability
	Logger       *log.Logger
	Reporter     *Reporter
	Telemetry    *telemetry.Telemetry
}

// Run drives the loop to completion and never returns a nil outcome.
func (sr *StageRunner) Run(ctx context.Context, sc *StageContext, system, task string) *StageOutcome {
	start := time.Now()
	outcome := &StageOutcome{ToolResults: make(map[string][]interface{})}

	messages := []Message{
		{Role: "system", Content: sr.controlPreamble(system)},
		{Role: "user", Content: task},
	}

	maxTurns := sr.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	for turn := 1; turn <= maxTurns; turn++ {
		sr.Reporter.Publish(Event{
			Agent:         sr.Agent,
			Status:        "running",
			Iteration:     turn,
			MaxIterations: maxTurns,
		})

		reply, inTok, outTok, err := sr.complete(ctx, sc, messages)
		if err != nil {
			// The model is unreachable; keep whatever the loop gathered.
			outcome.Error = fmt.Sprintf("llm call failed on turn %d: %v", turn, err)
			sr.logf("%s stage aborted on turn %d: %v", sr.Agent, turn, err)
			sr.recordStage(start, outcome, len(outcome.ToolsInvoked))
			return outcome
		}
		sc.Telemetry.RecordLLMUsage(sc.Model, sr.Agent, inTok+outTok, sr.cost(sc, inTok, outTok))

		act, ok := parseAction(reply)
		if !ok || act.Action == "final" || act.Action == "" {
			// Either an explicit final answer or a reply that ignored the
			// control schema; both end the loop with the text as summary.
			summary := act.Answer
			if !ok {
				summary = reply
			}
			outcome.Summary = summary
			sr.recordStage(start, outcome, len(outcome.ToolsInvoked))
			return outcome
		}

		tool, found := sr.capability(act.Tool)
		if !found {
			messages = append(messages, Message{Role: "assistant", Content: reply})
			messages = append(messages, Message{Role: "user", Content: fmt.Sprintf("Unknown tool %q. Available tools: %s", act.Tool, sr.toolNames())})
			continue
		}

		sr.Reporter.Publish(Event{
			Agent:         sr.Agent,
			Status:        "tool_call",
			Iteration:     turn,
			MaxIterations: maxTurns,
			Tool:          tool.Name,
		})
		sr.logf("%s stage turn %d/%d: %s(%q)", sr.Agent, turn, maxTurns, tool.Name, act.Input)

		result := sr.invoke(ctx, sc, tool, act.Input)
		outcome.ToolResults[tool.Name] = append(outcome.ToolResults[tool.Name], result)
		outcome.ToolsInvoked = append(outcome.ToolsInvoked, tool.Name)

		feedback, merr := json.Marshal(result)
		if merr != nil {
			feedback = []byte(fmt.Sprintf("%v", result))
		}
		messages = append(messages, Message{Role: "assistant", Content: reply})
		messages = append(messages, Message{Role: "user", Content: fmt.Sprintf("Result of %s: %s", tool.Name, truncate(string(feedback), 4000))})
	}

	// Ceiling reached without a final answer; partials stand on their own.
	sr.logf("%s stage hit iteration ceiling (%d turns)", sr.Agent, maxTurns)
	if outcome.Summary == "" {
		outcome.Summary = fmt.Sprintf("Stopped after %d iterations with %d tool results gathered.", maxTurns, len(outcome.ToolsInvoked))
	}
	sr.recordStage(start, outcome, len(outcome.ToolsInvoked))
	return outcome
}

// invoke runs one capability, converting its failure into an error record
// instead of letting it abort the loop. A single broken tool call must never
// discard the results already gathered.
func (sr *StageRunner) invoke(ctx context.Context, sc *StageContext, tool Capability, input string) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			sr.logf("%s capability %s panicked: %v", sr.Agent, tool.Name, r)
			result = map[string]interface{}{
				"error":  fmt.Sprintf("panic: %v", r),
				"source": tool.Name,
			}
		}
	}()
	out, err := tool.Run(ctx, sc, input)
	if err != nil {
		sr.logf("%s capability %s failed: %v", sr.Agent, tool.Name, err)
		return map[string]interface{}{
			"error":  err.Error(),
			"source": tool.Name,
		}
	}
	return out
}

func (sr *StageRunner) complete(ctx context.Context, sc *StageContext, messages []Message) (string, int64, int64, error) {
	return sc.LLM.CompleteWithTokens(ctx, messages, sc.Model)
}

func (sr *StageRunner) cost(sc *StageContext, inTok, outTok int64) float64 {
	return sc.LLM.CalculateCost(inTok, outTok, sc.Model)
}

func (sr *StageRunner) capability(name string) (Capability, bool) {
	for _, c := range sr.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

func (sr *StageRunner) toolNames() string {
	names := make([]string, 0, len(sr.Capabilities))
	for _, c := range sr.Capabilities {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

// controlPreamble appends the action schema and tool roster to the stage's
// system instruction.
func (sr *StageRunner) controlPreamble(system string) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nYou have the following tools:\n")
	for _, c := range sr.Capabilities {
		fmt.Fprintf(&b, "- %s: %s (input: %s)\n", c.Name, c.Description, c.ArgsHint)
	}
	b.WriteString("\nRespond with exactly one JSON object per turn, no prose around it:\n")
	b.WriteString(`{"action": "tool", "tool": "<name>", "input": "<argument>"}` + "\n")
	b.WriteString("or, when you have enough information:\n")
	b.WriteString(`{"action": "final", "answer": "<your findings>"}`)
	return b.String()
}

func (sr *StageRunner) recordStage(start time.Time, outcome *StageOutcome, toolCalls int) {
	sr.Telemetry.RecordStageEvent(telemetry.StageEvent{
		Stage:     sr.Agent,
		Duration:  time.Since(start),
		Success:   outcome.Error == "",
		ToolCalls: toolCalls,
		Error:     outcome.Error,
	})
}

func (sr *StageRunner) logf(format string, args ...interface{}) {
	if sr.Logger != nil {
		sr.Logger.Printf(format, args...)
	}
}

// parseAction extracts the control action from a model reply. ok is false
// when the reply does not follow the schema at all.
func parseAction(reply string) (action, bool) {
	candidate := ExtractFenced(reply)
	var act action
	if err := json.Unmarshal([]byte(candidate), &act); err != nil {
		return action{}, false
	}
	switch act.Action {
	case "tool":
		if act.Tool == "" {
			return action{}, false
		}
		return act, true
	case "final":
		return act, true
	default:
		return action{}, false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
