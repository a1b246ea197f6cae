package core

import (
	"encoding/json"
	"testing"
)

func TestNormalizeBareJSON(t *testing.T) {
	out := Normalize(`{"market_size": "12B", "growth": 0.14}`)
	if out["market_size"] != "12B" {
		t.Fatalf("expected market_size field, got %v", out)
	}
	if _, ok := out["parse_error"]; ok {
		t.Fatalf("valid JSON must not carry parse_error: %v", out)
	}
}

func TestNormalizeFencedJSON(t *testing.T) {
	raw := "```json\n{\"trends\": [\"AI\", \"edge\"]}\n```"
	out := Normalize(raw)
	trends, ok := out["trends"].([]interface{})
	if !ok || len(trends) != 2 {
		t.Fatalf("expected trends array, got %v", out)
	}
}

func TestNormalizeFenceWithoutTag(t *testing.T) {
	raw := "```\n{\"ok\": true}\n```"
	out := Normalize(raw)
	if out["ok"] != true {
		t.Fatalf("expected ok=true, got %v", out)
	}
}

func TestNormalizeProseFallback(t *testing.T) {
	raw := "The market looks strong this quarter."
	out := Normalize(raw)
	if out["raw"] != raw {
		t.Fatalf("prose must be preserved verbatim, got %v", out)
	}
	if out["parse_error"] != true {
		t.Fatalf("prose must carry parse_error, got %v", out)
	}
}

func TestNormalizeTopLevelArray(t *testing.T) {
	out := Normalize(`[1, 2, 3]`)
	data, ok := out["data"].([]interface{})
	if !ok || len(data) != 3 {
		t.Fatalf("expected wrapped array, got %v", out)
	}
}

func TestNormalizeNoInformationLoss(t *testing.T) {
	// Anything that fails to parse must round-trip byte-for-byte under "raw".
	inputs := []string{
		"plain text",
		"{broken json",
		"```json\nnot json either\n```",
		"",
	}
	for _, in := range inputs {
		out := Normalize(in)
		if out["parse_error"] != true {
			t.Fatalf("input %q: expected parse_error", in)
		}
		if out["raw"] != in {
			t.Fatalf("input %q: raw mismatch, got %q", in, out["raw"])
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := "```json\n{\"a\": 1, \"b\": [true, null]}\n```"
	a, _ := json.Marshal(Normalize(raw))
	b, _ := json.Marshal(Normalize(raw))
	if string(a) != string(b) {
		t.Fatalf("normalization must be deterministic: %s vs %s", a, b)
	}
}
