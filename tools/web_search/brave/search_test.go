package brave

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverParsesWebResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("subscription token missing")
		}
		if r.URL.Path != "/res/v1/web/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"web": {"results": [
				{"title": "EV report", "url": "https://example.com/1", "description": "Market is $500B"}
			]}
		}`))
	}))
	defer srv.Close()

	s := Search{ApiKey: "brave-key", BaseURL: srv.URL}
	results, err := s.Discover(context.Background(), "electric vehicles", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Snippet != "Market is $500B" {
		t.Fatalf("description not mapped to snippet: %+v", results[0])
	}
}

func TestDiscoverNewsMapsAgeAndHostname(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/res/v1/news/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "EV news", "url": "https://example.com/n1", "description": "Today",
				 "age": "2 hours ago", "meta_url": {"hostname": "example.com"}}
			]
		}`))
	}))
	defer srv.Close()

	s := Search{ApiKey: "brave-key", BaseURL: srv.URL}
	results, err := s.DiscoverNews(context.Background(), "electric vehicles", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Date != "2 hours ago" || results[0].Source != "example.com" {
		t.Fatalf("age/hostname not mapped: %+v", results[0])
	}
}
