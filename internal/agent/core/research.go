package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/marketscout/tools/web_search/models"
)

// Search record categories. Downstream stages group records by provenance.
const (
	CategoryOverview   = "overview"
	CategoryNews       = "news"
	CategoryFinancial  = "financial"
	CategoryMarketData = "market_data"
	CategoryMarketNews = "market_news"
)

func (sc *StageContext) searchMax() int {
	if sc.SearchMax > 0 {
		return sc.SearchMax
	}
	return 10
}

// recordsFrom converts provider results into tagged records and registers
// them on the stage context.
func recordsFrom(sc *StageContext, results []models.Result, category string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		rec := map[string]interface{}{
			"title":    r.Title,
			"url":      r.URL,
			"snippet":  r.Snippet,
			"category": category,
		}
		if r.Date != "" {
			rec["date"] = r.Date
		}
		if r.Source != "" {
			rec["source"] = r.Source
		}
		out = append(out, rec)
		sc.SearchResults = append(sc.SearchResults, rec)
	}
	return out
}

// errorRecord is the degraded shape for one failed sub-search inside a
// fan-out. Partial failure of one sub-search never discards its siblings.
func errorRecord(source string, err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error(), "source": source}
}

// ResearchCapabilities returns the search roster for the research stage.
func ResearchCapabilities() []Capability {
	return []Capability{
		{
			Name:        "search_web",
			Description: "Search the web for general information",
			ArgsHint:    "search query",
			Run: func(ctx context.Context, sc *StageContext, input string) (interface{}, error) {
				results, err := sc.Searcher.Discover(ctx, input, sc.searchMax())
				sc.Telemetry.RecordSearch("search_web", err == nil)
				if err != nil {
					return nil, fmt.Errorf("web search %q: %w", input, err)
				}
				return map[string]interface{}{
					"query":    input,
					"category": CategoryOverview,
					"results":  recordsFrom(sc, results, CategoryOverview),
				}, nil
			},
		},
		{
			Name:        "search_news",
			Description: "Search for recent news articles",
			ArgsHint:    "search query",
			Run: func(ctx context.Context, sc *StageContext, input string) (interface{}, error) {
				results, err := sc.Searcher.DiscoverNews(ctx, input, sc.searchMax())
				sc.Telemetry.RecordSearch("search_news", err == nil)
				if err != nil {
					return nil, fmt.Errorf("news search %q: %w", input, err)
				}
				return map[string]interface{}{
					"query":    input,
					"category": CategoryNews,
					"results":  recordsFrom(sc, results, CategoryNews),
				}, nil
			},
		},
		{
			Name:        "search_company",
			Description: "Company overview, recent news and financials",
			ArgsHint:    "company name",
			Run:         searchCompany,
		},
		{
			Name:        "search_market",
			Description: "Market size, growth and industry news, optionally 'industry | topic'",
			ArgsHint:    "market query",
			Run:         searchMarket,
		},
	}
}

// searchCompany fans out into overview, news and financial sub-searches.
// Each sub-search degrades to an error record on failure so the others
// still land.
func searchCompany(ctx context.Context, sc *StageContext, company string) (interface{}, error) {
	out := map[string]interface{}{"company": company}
	failures := 0

	if results, err := sc.Searcher.Discover(ctx, fmt.Sprintf("%s company overview business model", company), sc.searchMax()); err != nil {
		out[CategoryOverview] = errorRecord("search_company/overview", err)
		failures++
	} else {
		out[CategoryOverview] = recordsFrom(sc, results, CategoryOverview)
	}

	if results, err := sc.Searcher.DiscoverNews(ctx, fmt.Sprintf("%s latest news", company), sc.searchMax()); err != nil {
		out[CategoryNews] = errorRecord("search_company/news", err)
		failures++
	} else {
		out[CategoryNews] = recordsFrom(sc, results, CategoryNews)
	}

	if results, err := sc.Searcher.Discover(ctx, fmt.Sprintf("%s revenue financials market share", company), sc.searchMax()); err != nil {
		out[CategoryFinancial] = errorRecord("search_company/financial", err)
		failures++
	} else {
		out[CategoryFinancial] = recordsFrom(sc, results, CategoryFinancial)
	}

	sc.Telemetry.RecordSearch("search_company", failures < 3)
	if failures == 3 {
		return nil, fmt.Errorf("company search %q: all sub-searches failed", company)
	}
	return out, nil
}

// searchMarket fans out into market data and market news. The input may be
// "industry | topic"; the part before the pipe scopes the query.
func searchMarket(ctx context.Context, sc *StageContext, input string) (interface{}, error) {
	industry, topic := input, ""
	if idx := strings.Index(input, "|"); idx >= 0 {
		industry = strings.TrimSpace(input[:idx])
		topic = strings.TrimSpace(input[idx+1:])
	}
	query := industry
	if topic != "" {
		query = industry + " " + topic
	}

	out := map[string]interface{}{"industry": industry}
	failures := 0

	if results, err := sc.Searcher.Discover(ctx, fmt.Sprintf("%s market size growth statistics", query), sc.searchMax()); err != nil {
		out[CategoryMarketData] = errorRecord("search_market/data", err)
		failures++
	} else {
		out[CategoryMarketData] = recordsFrom(sc, results, CategoryMarketData)
	}

	if results, err := sc.Searcher.DiscoverNews(ctx, fmt.Sprintf("%s industry trends", query), sc.searchMax()); err != nil {
		out[CategoryMarketNews] = errorRecord("search_market/news", err)
		failures++
	} else {
		out[CategoryMarketNews] = recordsFrom(sc, results, CategoryMarketNews)
	}

	sc.Telemetry.RecordSearch("search_market", failures < 2)
	if failures == 2 {
		return nil, fmt.Errorf("market search %q: all sub-searches failed", input)
	}
	return out, nil
}

// researchInstructions builds the stage instruction pair for the given
// research type.
func researchInstructions(state *WorkflowState) (system, task string) {
	system = "You are a market research data gatherer. Use the search tools to collect factual, current information. Gather data from multiple angles before finishing. When done, summarize what you found and where the data is strongest or thinnest."

	var b strings.Builder
	fmt.Fprintf(&b, "Research request: %s\n", state.Query)
	switch state.ResearchType {
	case MarketOverview:
		b.WriteString("Focus: overall market landscape. Collect market size, growth figures, key players and recent industry news.\n")
	case CompetitorAnalysis:
		b.WriteString("Focus: competitive landscape. Collect positioning, financials and recent moves for each named competitor.\n")
	case TrendAnalysis:
		b.WriteString("Focus: emerging trends. Collect recent news, statistics and signals of change in the space.\n")
	case FullReport:
		b.WriteString("Focus: comprehensive coverage. Collect market data, competitor information and trend signals.\n")
	}
	if state.Company != "" {
		fmt.Fprintf(&b, "Primary company: %s\n", state.Company)
	}
	if len(state.Competitors) > 0 {
		fmt.Fprintf(&b, "Competitors of interest: %s\n", strings.Join(state.Competitors, ", "))
	}
	if state.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", state.Industry)
	}
	return system, b.String()
}

// finishResearchOutcome applies research-specific bookkeeping after the
// reasoning loop returns. A research run that called search tools but
// gathered zero usable records is a failed stage: downstream stages would
// be analyzing nothing but error markers.
func finishResearchOutcome(sc *StageContext, outcome *StageOutcome) {
	outcome.Searches = len(outcome.ToolsInvoked)
	outcome.Records = len(sc.SearchResults)
	outcome.SearchRecords = sc.SearchResults
	if outcome.Error != "" {
		return
	}
	if len(outcome.ToolsInvoked) > 0 && len(sc.SearchResults) == 0 {
		outcome.Error = firstErrorMessage(outcome.ToolResults)
		if outcome.Error == "" {
			outcome.Error = "no search results gathered"
		}
	}
}

// firstErrorMessage digs the first error marker out of accumulated tool
// results, in no particular tool order.
func firstErrorMessage(toolResults map[string][]interface{}) string {
	for _, results := range toolResults {
		for _, r := range results {
			m, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			if msg, ok := m["error"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return ""
}
