package core

import (
	"context"
	"fmt"
	"strings"
)

const maxRecordsForPrompt = 20
const maxSnippetLen = 200

// formatResearchData renders the research stage's records for an analytical
// prompt. Error markers are skipped; at most maxRecordsForPrompt records are
// included with snippets cut to maxSnippetLen characters.
func formatResearchData(records []map[string]interface{}) string {
	var b strings.Builder
	n := 0
	for _, rec := range records {
		if _, failed := rec["error"]; failed {
			continue
		}
		if n >= maxRecordsForPrompt {
			break
		}
		title, _ := rec["title"].(string)
		url, _ := rec["url"].(string)
		snippet, _ := rec["snippet"].(string)
		category, _ := rec["category"].(string)
		if len(snippet) > maxSnippetLen {
			snippet = snippet[:maxSnippetLen]
		}
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", category, title, url, snippet)
		n++
	}
	if n == 0 {
		return "No research data available."
	}
	return b.String()
}

// analysisSkill builds one LLM-backed extraction capability. Each call
// formats the upstream research records, asks the model to perform the
// extraction, and normalizes the reply.
func analysisSkill(name, description, argsHint, instruction string) Capability {
	return Capability{
		Name:        name,
		Description: description,
		ArgsHint:    argsHint,
		Run: func(ctx context.Context, sc *StageContext, input string) (interface{}, error) {
			var records []map[string]interface{}
			if sc.Upstream != nil {
				records = sc.Upstream.SearchRecords
			}
			prompt := fmt.Sprintf("%s\n\nSubject: %s\n\nResearch data:\n%s\n\nRespond with a single JSON object.",
				instruction, input, formatResearchData(records))
			reply, inTok, outTok, err := sc.LLM.CompleteWithTokens(ctx, []Message{
				{Role: "system", Content: "You are a market analyst. Extract concrete, sourced insights from research data. Answer in JSON."},
				{Role: "user", Content: prompt},
			}, sc.Model)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			sc.Telemetry.RecordLLMUsage(sc.Model, AgentAnalyze, inTok+outTok, sc.LLM.CalculateCost(inTok, outTok, sc.Model))
			return Normalize(reply), nil
		},
	}
}

// AnalysisCapabilities returns the extraction roster for the analysis stage.
func AnalysisCapabilities() []Capability {
	return []Capability{
		analysisSkill("analyze_market_size", "Extract market size and growth data", "market or topic",
			"Extract market size figures, growth rates and forecasts from the research data. Include the source of each figure."),
		analysisSkill("analyze_market_segments", "Identify market segments", "market to segment",
			"Identify the market segments visible in the research data, with relative size or importance where stated."),
		analysisSkill("analyze_competitive_landscape", "Map key players and positions", "market or industry",
			"Map the competitive landscape: key players, their positioning, strengths and apparent market standing."),
		analysisSkill("perform_swot_analysis", "Strengths, weaknesses, opportunities and threats", "company or topic",
			"Perform a SWOT analysis grounded in the research data. Keys: strengths, weaknesses, opportunities, threats."),
		analysisSkill("identify_trends", "Identify emerging trends", "industry or topic",
			"Identify emerging trends and directional signals in the research data, with supporting evidence."),
		analysisSkill("extract_key_statistics", "Extract concrete statistics", "what to look for",
			"Extract every concrete statistic (numbers, percentages, dates, monetary figures) relevant to the subject."),
	}
}

// analysisInstructions builds the stage instruction pair for the given
// research type.
func analysisInstructions(state *WorkflowState) (system, task string) {
	system = "You are a market analysis coordinator. Use the analytical tools to extract insights from the gathered research data. Run the tools relevant to the request, then summarize the strongest findings."

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the research data for: %s\n", state.Query)
	switch state.ResearchType {
	case MarketOverview:
		b.WriteString("Prioritize market size, segments and key statistics.\n")
	case CompetitorAnalysis:
		b.WriteString("Prioritize the competitive landscape and SWOT analysis.\n")
	case TrendAnalysis:
		b.WriteString("Prioritize trend identification and supporting statistics.\n")
	case FullReport:
		b.WriteString("Run the full analytical battery: size, segments, landscape, SWOT, trends, statistics.\n")
	}
	if state.Company != "" {
		fmt.Fprintf(&b, "Primary company: %s\n", state.Company)
	}
	return system, b.String()
}

// finishAnalysisOutcome records how much research data the stage worked on.
func finishAnalysisOutcome(sc *StageContext, outcome *StageOutcome) {
	if sc.Upstream != nil {
		outcome.DataPoints = len(sc.Upstream.SearchRecords)
	}
}
