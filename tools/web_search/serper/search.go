package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/marketscout/tools/web_search/models"
	"github.com/mohammad-safakhou/marketscout/utils"
)

type Search struct {
	ApiKey string
	Client *http.Client
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

func (s Search) baseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://google.serper.dev"
}

func (s Search) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://serper.dev/ docs
	raw, err := s.post(ctx, s.baseURL()+"/search", q, k)
	if err != nil {
		return nil, err
	}
	var out []models.Result
	if items, ok := raw["organic"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.Result{
				Title: utils.Str(m["title"]), URL: utils.Str(m["link"]), Snippet: utils.Str(m["snippet"]),
			})
		}
	}
	return out, nil
}

func (s Search) DiscoverNews(ctx context.Context, q string, k int) ([]models.Result, error) {
	raw, err := s.post(ctx, s.baseURL()+"/news", q, k)
	if err != nil {
		return nil, err
	}
	var out []models.Result
	if items, ok := raw["news"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.Result{
				Title: utils.Str(m["title"]), URL: utils.Str(m["link"]), Snippet: utils.Str(m["snippet"]),
				Date: utils.Str(m["date"]), Source: utils.Str(m["source"]),
			})
		}
	}
	return out, nil
}

func (s Search) post(ctx context.Context, endpoint, q string, k int) (map[string]any, error) {
	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
