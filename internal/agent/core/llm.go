package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/mohammad-safakhou/marketscout/config"
)

// OpenAIProvider talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	models  map[string]config.LLMModel
}

// NewLLMProvider builds the provider selected by config. Only the
// OpenAI-compatible type exists today; the routing layer keys models by
// their configured name.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	pc, ok := cfg.Providers["openai"]
	if !ok {
		return nil, fmt.Errorf("no openai provider configured")
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("openai provider has no api key")
	}
	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		apiKey:  pc.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		models:  pc.Models,
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete generates a response for an ordered message sequence.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, model string) (string, error) {
	text, _, _, err := p.CompleteWithTokens(ctx, messages, model)
	return text, err
}

// CompleteWithTokens generates a response and returns prompt/completion
// token counts.
func (p *OpenAIProvider) CompleteWithTokens(ctx context.Context, messages []Message, model string) (string, int64, int64, error) {
	mc, apiName := p.modelConfig(model)

	reqBody := chatRequest{
		Model:       apiName,
		Messages:    messages,
		MaxTokens:   mc.MaxTokens,
		Temperature: mc.Temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, 0, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("chat completion call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, fmt.Errorf("reading chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, 0, fmt.Errorf("decoding chat response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", 0, 0, fmt.Errorf("chat completion failed (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("chat completion failed with status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, nil
}

// GetAvailableModels returns the configured model names, sorted.
func (p *OpenAIProvider) GetAvailableModels() []string {
	names := make([]string, 0, len(p.models))
	for name := range p.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CalculateCost prices a call from the per-1K token rates in config.
// Unknown models cost zero.
func (p *OpenAIProvider) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	mc, ok := p.models[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*mc.CostPer1K + float64(outputTokens)/1000*mc.CostPer1KOutput
}

// modelConfig resolves the configured model entry; unknown names pass
// through so the API name defaults to the routing token itself.
func (p *OpenAIProvider) modelConfig(model string) (config.LLMModel, string) {
	if mc, ok := p.models[model]; ok {
		apiName := mc.APIName
		if apiName == "" {
			apiName = model
		}
		return mc, apiName
	}
	return config.LLMModel{}, model
}
