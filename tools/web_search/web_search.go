package web_search

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/marketscout/tools/web_search/brave"
	"github.com/mohammad-safakhou/marketscout/tools/web_search/models"
	"github.com/mohammad-safakhou/marketscout/tools/web_search/serper"
	"golang.org/x/time/rate"
)

// WebSearcher is the boundary every search provider implements. Both verticals
// return the same record shape so callers never branch on provider.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
	DiscoverNews(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

// limiter is process-wide: the provider quota is shared across every workflow
// run in this process, so throttling must not be per-run.
var limiter = rate.NewLimiter(rate.Every(1500*time.Millisecond), 1)

// SetMinInterval adjusts the process-wide minimum delay between search calls.
func SetMinInterval(d time.Duration) {
	if d > 0 {
		limiter.SetLimit(rate.Every(d))
	}
}

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return &throttled{inner: serper.Search{ApiKey: apiKey}}, nil
	case BraveProvider:
		return &throttled{inner: brave.Search{ApiKey: apiKey}}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// throttled enforces the shared rate limit and retries once when a provider
// answers with zero results, which in practice is how both APIs surface
// transient throttling.
type throttled struct {
	inner WebSearcher
}

func (t *throttled) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	return t.call(ctx, q, k, t.inner.Discover)
}

func (t *throttled) DiscoverNews(ctx context.Context, q string, k int) ([]models.Result, error) {
	return t.call(ctx, q, k, t.inner.DiscoverNews)
}

func (t *throttled) call(ctx context.Context, q string, k int, fn func(context.Context, string, int) ([]models.Result, error)) ([]models.Result, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := fn(ctx, q, k)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		return out, nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return fn(ctx, q, k)
}
