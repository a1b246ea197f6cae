package core

// CompileReport merges the three stage outcomes into the final report shape.
// Pure function: no external calls, deterministic, and absent inputs become
// empty containers rather than nulls.
func CompileReport(research, analysis, strategy *StageOutcome) map[string]interface{} {
	report := map[string]interface{}{
		"executive_summary": executiveSummary(strategy),
		"analysis":          toolResultsOrEmpty(analysis),
		"strategic_guidance": map[string]interface{}{
			"recommendations": toolResultsOrEmpty(strategy),
		},
		"data_sources": map[string]interface{}{
			"searches_performed":   outcomeSearches(research),
			"data_points_analyzed": outcomeDataPoints(analysis),
		},
		"agent_workflow": map[string]interface{}{
			"research_tools_used": toolsInvokedOrEmpty(research),
			"analysis_performed":  toolsInvokedOrEmpty(analysis),
			"strategy_produced":   toolsInvokedOrEmpty(strategy),
		},
	}
	if analysis != nil && analysis.Summary != "" {
		report["analyst_summary"] = analysis.Summary
	}
	if strategy != nil && strategy.Summary != "" {
		report["strategist_synthesis"] = strategy.Summary
	}
	return report
}

// executiveSummary pulls the synthesized summary out of the strategy stage's
// executive-summary results, falling back through the shapes the normalizer
// can produce. Empty string when the stage never produced one.
func executiveSummary(strategy *StageOutcome) string {
	if strategy == nil {
		return ""
	}
	results := strategy.ToolResults["generate_executive_summary"]
	for i := len(results) - 1; i >= 0; i-- {
		m, ok := results[i].(map[string]interface{})
		if !ok {
			continue
		}
		if s, ok := m["executive_summary"].(string); ok && s != "" {
			return s
		}
		if s, ok := m["summary"].(string); ok && s != "" {
			return s
		}
		if s, ok := m["raw"].(string); ok && s != "" {
			return s
		}
	}
	return strategy.Summary
}

func toolResultsOrEmpty(o *StageOutcome) map[string][]interface{} {
	if o == nil || o.ToolResults == nil {
		return map[string][]interface{}{}
	}
	return o.ToolResults
}

func toolsInvokedOrEmpty(o *StageOutcome) []string {
	if o == nil || o.ToolsInvoked == nil {
		return []string{}
	}
	return o.ToolsInvoked
}

func outcomeSearches(o *StageOutcome) int {
	if o == nil {
		return 0
	}
	return o.Searches
}

func outcomeDataPoints(o *StageOutcome) int {
	if o == nil {
		return 0
	}
	return o.DataPoints
}
