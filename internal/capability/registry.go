package capability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ToolCard represents registry metadata for a stage capability.
type ToolCard struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	AgentType   string                 `json:"agent_type"` // research, analysis or strategy
	InputSchema map[string]interface{} `json:"input_schema"`
	Checksum    string                 `json:"checksum"`
}

// queryInput is the shared single-argument schema: every capability takes one
// free-form string the reasoning loop fills in.
func queryInput(desc string) map[string]interface{} {
	return map[string]interface{}{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]interface{}{
			"input": map[string]interface{}{"type": "string", "description": desc},
		},
		"required": []interface{}{"input"},
	}
}

// DefaultToolCards returns the built-in capability roster for all three stages.
func DefaultToolCards() []ToolCard {
	card := func(name, agent, desc, arg string) ToolCard {
		return ToolCard{Name: name, Version: "v1", Description: desc, AgentType: agent, InputSchema: queryInput(arg)}
	}
	return []ToolCard{
		card("search_web", "research", "Search the web for general information", "search query"),
		card("search_news", "research", "Search for recent news articles", "search query"),
		card("search_company", "research", "Company overview, news and financials", "company name"),
		card("search_market", "research", "Market and industry data, optionally 'industry | topic'", "market query"),

		card("analyze_market_size", "analysis", "Extract market size and growth data", "market or topic"),
		card("analyze_market_segments", "analysis", "Identify market segments", "market to segment"),
		card("analyze_competitive_landscape", "analysis", "Map key players and positions", "market or industry"),
		card("perform_swot_analysis", "analysis", "Strengths/weaknesses/opportunities/threats", "company or topic"),
		card("identify_trends", "analysis", "Identify emerging trends", "industry or topic"),
		card("extract_key_statistics", "analysis", "Extract concrete statistics", "what to look for"),

		card("generate_strategic_recommendations", "strategy", "Actionable recommendations", "focus area"),
		card("assess_risks", "strategy", "Risks with mitigation strategies", "risk context"),
		card("identify_opportunities", "strategy", "Growth and improvement opportunities", "opportunity context"),
		card("create_action_plan", "strategy", "Phased implementation roadmap", "objective"),
		card("generate_executive_summary", "strategy", "Executive-level findings summary", "summary context"),
		card("competitive_response_strategy", "strategy", "Responses to competitive threats", "competitive context"),
	}
}

// Registry holds validated ToolCards keyed by capability name.
type Registry struct {
	tools map[string]ToolCard
}

// ErrToolMissing indicates a required capability is not registered.
var ErrToolMissing = fmt.Errorf("required tool missing")

// NewRegistry validates ToolCards and ensures every required capability exists.
func NewRegistry(cards []ToolCard, required []string) (*Registry, error) {
	reg := &Registry{tools: make(map[string]ToolCard)}
	for _, tc := range cards {
		if err := ValidateToolCard(tc); err != nil {
			return nil, fmt.Errorf("tool %s@%s invalid: %w", tc.Name, tc.Version, err)
		}
		if tc.Checksum != "" {
			if err := VerifyChecksum(tc); err != nil {
				return nil, fmt.Errorf("tool %s@%s checksum invalid: %w", tc.Name, tc.Version, err)
			}
		}
		existing, ok := reg.tools[tc.Name]
		if !ok || versionGreater(tc.Version, existing.Version) {
			reg.tools[tc.Name] = tc
		}
	}
	for _, r := range required {
		if _, ok := reg.tools[r]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, r)
		}
	}
	return reg, nil
}

// Tool returns the ToolCard for a capability name.
func (r *Registry) Tool(name string) (ToolCard, bool) {
	if r == nil {
		return ToolCard{}, false
	}
	tc, ok := r.tools[name]
	return tc, ok
}

// ByAgent returns the cards for one stage, sorted by name.
func (r *Registry) ByAgent(agentType string) []ToolCard {
	if r == nil {
		return nil
	}
	var out []ToolCard
	for _, tc := range r.tools {
		if tc.AgentType == agentType {
			out = append(out, tc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateToolCard checks structural validity of a card.
func ValidateToolCard(tc ToolCard) error {
	if strings.TrimSpace(tc.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(tc.AgentType) == "" {
		return fmt.Errorf("agent_type is required")
	}
	if tc.InputSchema == nil {
		return fmt.Errorf("input_schema is required")
	}
	if t, ok := tc.InputSchema["type"]; ok {
		if _, isStr := t.(string); !isStr {
			return fmt.Errorf("input_schema type must be a string")
		}
	}
	return nil
}

// ComputeChecksum returns a deterministic hash of the ToolCard payload.
func ComputeChecksum(tc ToolCard) (string, error) {
	payload := map[string]interface{}{
		"name":         tc.Name,
		"version":      tc.Version,
		"description":  tc.Description,
		"agent_type":   tc.AgentType,
		"input_schema": tc.InputSchema,
	}
	normalized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum validates the card's stored checksum.
func VerifyChecksum(tc ToolCard) error {
	expected, err := ComputeChecksum(tc)
	if err != nil {
		return err
	}
	if expected != tc.Checksum {
		return fmt.Errorf("checksum mismatch")
	}
	return nil
}

func versionGreater(a, b string) bool {
	if a == b {
		return false
	}
	return compareVersions(splitVersion(a), splitVersion(b)) > 0
}

func splitVersion(v string) []int {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		fmt.Sscanf(p, "%d", &out[i])
	}
	return out
}

func compareVersions(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai, bi := 0, 0
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		if ai > bi {
			return 1
		}
		if ai < bi {
			return -1
		}
	}
	return 0
}
