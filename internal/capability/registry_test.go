package capability

import (
	"strings"
	"testing"
)

func TestDefaultToolCardsValidate(t *testing.T) {
	cards := DefaultToolCards()
	if len(cards) != 16 {
		t.Fatalf("expected 16 cards, got %d", len(cards))
	}
	for _, tc := range cards {
		if err := ValidateToolCard(tc); err != nil {
			t.Fatalf("card %s invalid: %v", tc.Name, err)
		}
	}
}

func TestRegistryByAgent(t *testing.T) {
	reg, err := NewRegistry(DefaultToolCards(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(reg.ByAgent("research")); got != 4 {
		t.Fatalf("expected 4 research tools, got %d", got)
	}
	if got := len(reg.ByAgent("analysis")); got != 6 {
		t.Fatalf("expected 6 analysis tools, got %d", got)
	}
	if got := len(reg.ByAgent("strategy")); got != 6 {
		t.Fatalf("expected 6 strategy tools, got %d", got)
	}
	// Sorted by name.
	research := reg.ByAgent("research")
	for i := 1; i < len(research); i++ {
		if research[i-1].Name > research[i].Name {
			t.Fatalf("roster not sorted: %s > %s", research[i-1].Name, research[i].Name)
		}
	}
}

func TestRegistryRequiredMissing(t *testing.T) {
	_, err := NewRegistry(DefaultToolCards(), []string{"search_web", "does_not_exist"})
	if err == nil || !strings.Contains(err.Error(), "does_not_exist") {
		t.Fatalf("expected missing-tool error, got %v", err)
	}
}

func TestRegistryVersionPreference(t *testing.T) {
	cards := []ToolCard{
		{Name: "search_web", Version: "v1", AgentType: "research", InputSchema: queryInput("q")},
		{Name: "search_web", Version: "v2", AgentType: "research", InputSchema: queryInput("q")},
	}
	reg, err := NewRegistry(cards, nil)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := reg.Tool("search_web")
	if !ok || tc.Version != "v2" {
		t.Fatalf("expected v2 preferred, got %+v", tc)
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	tc := DefaultToolCards()[0]
	sum, err := ComputeChecksum(tc)
	if err != nil {
		t.Fatal(err)
	}
	tc.Checksum = sum
	if err := VerifyChecksum(tc); err != nil {
		t.Fatalf("checksum round trip failed: %v", err)
	}
	tc.Description = "tampered"
	if err := VerifyChecksum(tc); err == nil {
		t.Fatal("tampered card must fail verification")
	}
}
