package core

import (
	"encoding/json"
	"testing"
)

func sampleOutcomes() (*StageOutcome, *StageOutcome, *StageOutcome) {
	research := &StageOutcome{
		ToolResults: map[string][]interface{}{
			"search_web": {map[string]interface{}{"query": "ev", "results": []interface{}{}}},
		},
		ToolsInvoked: []string{"search_web"},
		Searches:     1,
		Records:      3,
	}
	analysis := &StageOutcome{
		ToolResults: map[string][]interface{}{
			"analyze_market_size": {map[string]interface{}{"market_size": "$500B"}},
		},
		ToolsInvoked: []string{"analyze_market_size"},
		Summary:      "Market is large.",
		DataPoints:   3,
	}
	strategy := &StageOutcome{
		ToolResults: map[string][]interface{}{
			"generate_executive_summary": {map[string]interface{}{"executive_summary": "Invest now."}},
		},
		ToolsInvoked: []string{"generate_executive_summary"},
		Summary:      "Position aggressively.",
	}
	return research, analysis, strategy
}

func TestCompileReportIdempotent(t *testing.T) {
	research, analysis, strategy := sampleOutcomes()
	a, err := json.Marshal(CompileReport(research, analysis, strategy))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(CompileReport(research, analysis, strategy))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("compile is not idempotent:\n%s\n%s", a, b)
	}
}

func TestCompileReportShape(t *testing.T) {
	research, analysis, strategy := sampleOutcomes()
	report := CompileReport(research, analysis, strategy)

	if report["executive_summary"] != "Invest now." {
		t.Fatalf("executive summary not extracted: %v", report["executive_summary"])
	}
	ds := report["data_sources"].(map[string]interface{})
	if ds["searches_performed"] != 1 || ds["data_points_analyzed"] != 3 {
		t.Fatalf("counters wrong: %v", ds)
	}
	wf := report["agent_workflow"].(map[string]interface{})
	tools := wf["research_tools_used"].([]string)
	if len(tools) != 1 || tools[0] != "search_web" {
		t.Fatalf("workflow trace wrong: %v", wf)
	}
	if report["analyst_summary"] != "Market is large." {
		t.Fatalf("analyst summary missing: %v", report)
	}
	if report["strategist_synthesis"] != "Position aggressively." {
		t.Fatalf("strategist synthesis missing: %v", report)
	}
}

func TestCompileReportAbsentInputs(t *testing.T) {
	report := CompileReport(nil, nil, nil)
	if report["executive_summary"] != "" {
		t.Fatalf("absent strategy gives empty summary, got %v", report["executive_summary"])
	}
	ds := report["data_sources"].(map[string]interface{})
	if ds["searches_performed"] != 0 || ds["data_points_analyzed"] != 0 {
		t.Fatalf("absent inputs give zero counters: %v", ds)
	}
	wf := report["agent_workflow"].(map[string]interface{})
	if wf["research_tools_used"].([]string) == nil {
		t.Fatal("absent inputs give empty containers, not nil")
	}
}

func TestExecutiveSummaryFallbacks(t *testing.T) {
	// A prose reply that failed normalization still surfaces via "raw".
	strategy := &StageOutcome{
		ToolResults: map[string][]interface{}{
			"generate_executive_summary": {map[string]interface{}{"raw": "All signs point up.", "parse_error": true}},
		},
	}
	if got := executiveSummary(strategy); got != "All signs point up." {
		t.Fatalf("raw fallback failed: %q", got)
	}
	// Latest invocation wins when the skill ran twice.
	strategy.ToolResults["generate_executive_summary"] = append(
		strategy.ToolResults["generate_executive_summary"],
		map[string]interface{}{"executive_summary": "Revised: hold."},
	)
	if got := executiveSummary(strategy); got != "Revised: hold." {
		t.Fatalf("latest result should win: %q", got)
	}
}
