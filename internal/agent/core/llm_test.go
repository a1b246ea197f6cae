package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammad-safakhou/marketscout/config"
)

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Providers: map[string]config.LLMProvider{
			"openai": {
				Type:    "openai",
				APIKey:  "sk-test",
				BaseURL: baseURL,
				Models: map[string]config.LLMModel{
					"gpt-4o-mini": {
						Name:            "gpt-4o-mini",
						APIName:         "gpt-4o-mini",
						MaxTokens:       4096,
						CostPer1K:       0.00015,
						CostPer1KOutput: 0.0006,
					},
				},
			},
		},
	}
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization header missing")
		}
		var body struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body.Model != "gpt-4o-mini" || len(body.Messages) != 2 {
			t.Errorf("request shape wrong: %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"ok\": true}"}}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7}
		}`))
	}))
	defer srv.Close()

	p, err := NewLLMProvider(testLLMConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	text, inTok, outTok, err := p.CompleteWithTokens(context.Background(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hello"},
	}, "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	if text != `{"ok": true}` {
		t.Fatalf("unexpected content: %q", text)
	}
	if inTok != 42 || outTok != 7 {
		t.Fatalf("token usage wrong: %d/%d", inTok, outTok)
	}
}

func TestOpenAIProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	defer srv.Close()

	p, err := NewLLMProvider(testLLMConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error from api failure")
	}
}

func TestNewLLMProviderRequiresKey(t *testing.T) {
	cfg := testLLMConfig("")
	provider := cfg.Providers["openai"]
	provider.APIKey = ""
	cfg.Providers["openai"] = provider
	if _, err := NewLLMProvider(cfg); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCalculateCost(t *testing.T) {
	p, err := NewLLMProvider(testLLMConfig("http://unused"))
	if err != nil {
		t.Fatal(err)
	}
	cost := p.CalculateCost(1000, 1000, "gpt-4o-mini")
	if cost != 0.00015+0.0006 {
		t.Fatalf("cost wrong: %f", cost)
	}
	if p.CalculateCost(1000, 1000, "unknown") != 0 {
		t.Fatal("unknown model must cost zero")
	}
}
