package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/marketscout/config"
	"github.com/mohammad-safakhou/marketscout/internal/agent/core"
	"github.com/mohammad-safakhou/marketscout/internal/agent/telemetry"
	srv "github.com/mohammad-safakhou/marketscout/internal/server"
	"github.com/mohammad-safakhou/marketscout/tools/web_search"
)

func main() {
	var root = &cobra.Command{Use: "marketscout"}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return srv.Run(cfg)
		},
	}

	var researchType string
	var company string
	var competitors string
	var industry string
	var research = &cobra.Command{
		Use:   "research [query]",
		Short: "Run one market research workflow and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			rt, err := core.ParseResearchType(researchType)
			if err != nil {
				return err
			}
			llm, err := core.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			provider := web_search.SerperProvider
			apiKey := cfg.Search.SerperAPIKey
			if cfg.Search.Provider == "brave" {
				provider = web_search.BraveProvider
				apiKey = cfg.Search.BraveAPIKey
			}
			searcher, err := web_search.NewWebSearcher(provider, apiKey)
			if err != nil {
				return err
			}
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			orch := core.NewOrchestrator(llm, searcher, tele)
			orch.Research = core.StageConfig{MaxTurns: cfg.Agents.ResearchMaxTurns, Model: cfg.LLM.Routing.Research}
			orch.Analysis = core.StageConfig{MaxTurns: cfg.Agents.AnalysisMaxTurns, Model: cfg.LLM.Routing.Analysis}
			orch.Strategy = core.StageConfig{MaxTurns: cfg.Agents.StrategyMaxTurns, Model: cfg.LLM.Routing.Strategy}
			orch.SearchMax = cfg.Search.MaxResults

			req := core.ResearchRequest{
				Query:        strings.Join(args, " "),
				ResearchType: rt,
				Company:      company,
				Industry:     industry,
			}
			if competitors != "" {
				for _, c := range strings.Split(competitors, ",") {
					if c = strings.TrimSpace(c); c != "" {
						req.Competitors = append(req.Competitors, c)
					}
				}
			}

			env := orch.Execute(context.Background(), req, nil)
			out, err := json.MarshalIndent(env, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if env.Status != core.StatusCompleted {
				return fmt.Errorf("research failed: %s", env.Error)
			}
			return nil
		},
	}
	research.Flags().StringVar(&researchType, "type", string(core.MarketOverview), "research type (market_overview, competitor_analysis, trend_analysis, full_report)")
	research.Flags().StringVar(&company, "company", "", "primary company")
	research.Flags().StringVar(&competitors, "competitors", "", "comma-separated competitor names")
	research.Flags().StringVar(&industry, "industry", "", "industry")

	root.AddCommand(serve, research)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
