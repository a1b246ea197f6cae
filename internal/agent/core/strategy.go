package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const maxSectionLen = 1500

// formatAnalysisData renders the analysis stage's outcome for a synthesis
// prompt: one JSON section per analytical tool, each truncated, plus the
// analyst's own summary. Sections are emitted in sorted tool order so the
// prompt is deterministic.
func formatAnalysisData(upstream *StageOutcome) string {
	if upstream == nil || (len(upstream.ToolResults) == 0 && upstream.Summary == "") {
		return "No analysis data available."
	}
	names := make([]string, 0, len(upstream.ToolResults))
	for name := range upstream.ToolResults {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		payload, err := json.Marshal(upstream.ToolResults[name])
		if err != nil {
			continue
		}
		section := string(payload)
		if len(section) > maxSectionLen {
			section = section[:maxSectionLen] + "..."
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", name, section)
	}
	if upstream.Summary != "" {
		fmt.Fprintf(&b, "## analyst summary\n%s\n", upstream.Summary)
	}
	return b.String()
}

// strategySkill builds one LLM-backed synthesis capability over the analysis
// stage's outcome.
func strategySkill(name, description, argsHint, instruction string) Capability {
	return Capability{
		Name:        name,
		Description: description,
		ArgsHint:    argsHint,
		Run: func(ctx context.Context, sc *StageContext, input string) (interface{}, error) {
			prompt := fmt.Sprintf("%s\n\nFocus: %s\n\nAnalysis findings:\n%s\n\nRespond with a single JSON object.",
				instruction, input, formatAnalysisData(sc.Upstream))
			reply, inTok, outTok, err := sc.LLM.CompleteWithTokens(ctx, []Message{
				{Role: "system", Content: "You are a business strategist. Turn analytical findings into concrete, prioritized guidance. Answer in JSON."},
				{Role: "user", Content: prompt},
			}, sc.Model)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			sc.Telemetry.RecordLLMUsage(sc.Model, AgentStrategize, inTok+outTok, sc.LLM.CalculateCost(inTok, outTok, sc.Model))
			return Normalize(reply), nil
		},
	}
}

// StrategyCapabilities returns the synthesis roster for the strategy stage.
func StrategyCapabilities() []Capability {
	return []Capability{
		strategySkill("generate_strategic_recommendations", "Actionable recommendations", "focus area",
			"Generate prioritized strategic recommendations grounded in the analysis. Each recommendation names its rationale and expected impact."),
		strategySkill("assess_risks", "Risks with mitigation strategies", "risk context",
			"Assess the material risks visible in the analysis. For each risk give likelihood, impact and a mitigation."),
		strategySkill("identify_opportunities", "Growth and improvement opportunities", "opportunity context",
			"Identify growth and improvement opportunities the analysis supports, ranked by attractiveness."),
		strategySkill("create_action_plan", "Phased implementation roadmap", "objective",
			"Create a phased action plan (immediate / near-term / long-term) toward the objective."),
		strategySkill("generate_executive_summary", "Executive-level findings summary", "summary context",
			"Write an executive summary of the full engagement: situation, key findings, recommendation headline. Key: executive_summary."),
		strategySkill("competitive_response_strategy", "Responses to competitive threats", "competitive context",
			"Propose responses to the competitive threats identified in the analysis."),
	}
}

// strategyInstructions builds the stage instruction pair for the given
// research type.
func strategyInstructions(state *WorkflowState) (system, task string) {
	system = "You are a strategy coordinator. Use the synthesis tools to turn the analysis into guidance. Always produce an executive summary before finishing, then close with a short synthesis of the overall strategic position."

	var b strings.Builder
	fmt.Fprintf(&b, "Develop strategic guidance for: %s\n", state.Query)
	switch state.ResearchType {
	case MarketOverview:
		b.WriteString("Emphasize market entry and positioning recommendations.\n")
	case CompetitorAnalysis:
		b.WriteString("Emphasize competitive response and differentiation.\n")
	case TrendAnalysis:
		b.WriteString("Emphasize opportunities and risks arising from the trends.\n")
	case FullReport:
		b.WriteString("Cover recommendations, risks, opportunities, an action plan and a competitive response.\n")
	}
	if state.Company != "" {
		fmt.Fprintf(&b, "Primary company: %s\n", state.Company)
	}
	return system, b.String()
}
