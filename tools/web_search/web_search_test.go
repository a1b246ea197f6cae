package web_search

import (
	"context"
	"testing"
	"time"

	"github.com/mohammad-safakhou/marketscout/tools/web_search/models"
)

func init() {
	// Keep the shared limiter out of the way for tests.
	SetMinInterval(time.Millisecond)
}

func TestNewWebSearcherProviders(t *testing.T) {
	if _, err := NewWebSearcher(SerperProvider, "k"); err != nil {
		t.Fatalf("serper: %v", err)
	}
	if _, err := NewWebSearcher(BraveProvider, "k"); err != nil {
		t.Fatalf("brave: %v", err)
	}
	if _, err := NewWebSearcher(Provider("duckduckgo"), "k"); err != ErrUnsupportedProvider {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

// countingSearcher returns empty until a call threshold, then results.
type countingSearcher struct {
	calls      int
	emptyUntil int
}

func (c *countingSearcher) Discover(_ context.Context, _ string, _ int) ([]models.Result, error) {
	c.calls++
	if c.calls <= c.emptyUntil {
		return nil, nil
	}
	return []models.Result{{Title: "hit"}}, nil
}

func (c *countingSearcher) DiscoverNews(ctx context.Context, q string, k int) ([]models.Result, error) {
	return c.Discover(ctx, q, k)
}

func TestThrottledRetriesOnceOnEmpty(t *testing.T) {
	inner := &countingSearcher{emptyUntil: 1}
	tr := &throttled{inner: inner}
	out, err := tr.Discover(context.Background(), "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", inner.calls)
	}
	if len(out) != 1 {
		t.Fatalf("retry result dropped: %v", out)
	}
}

func TestThrottledGivesUpAfterOneRetry(t *testing.T) {
	inner := &countingSearcher{emptyUntil: 10}
	tr := &throttled{inner: inner}
	out, err := tr.Discover(context.Background(), "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", inner.calls)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}
