package enrich

import (
	"context"
	"errors"
	"time"

	"osintdeck/internal/cache"
	"osintdeck/internal/logger"
	"osintdeck/internal/metrics"
)

// Source fetches one kind of enrichment for an identifier.
// A nil result with a nil error means the source has nothing to say.
type Source[T any] interface {
	Fetch(ctx context.Context, id string) (*T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, id string) (*T, error)

func (f SourceFunc[T]) Fetch(ctx context.Context, id string) (*T, error) {
	return f(ctx, id)
}

// WithFallback serves mock whenever live fails or is not configured.
func WithFallback[T any](provider Provider, live, mock Source[T]) Source[T] {
	return SourceFunc[T](func(ctx context.Context, id string) (*T, error) {
		out, err := live.Fetch(ctx, id)
		if err == nil && out != nil {
			return out, nil
		}
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			logger.Enrich.Warn().Err(err).Str("provider", string(provider)).Msg("live lookup failed, using mock")
		}
		started := time.Now()
		out, err = mock.Fetch(ctx, id)
		metrics.ObserveEnrichment(string(provider), "mock", started)
		return out, err
	})
}

// Cached memoizes successful non-nil results of src for ttl.
func Cached[T any](c *cache.Cache, module, fn string, ttl time.Duration, src Source[T]) Source[T] {
	if c == nil {
		return src
	}
	return SourceFunc[T](func(ctx context.Context, id string) (*T, error) {
		key := cache.Key(module, fn, id)
		if v, ok := c.Get(key); ok {
			if out, ok := v.(*T); ok {
				metrics.ObserveEnrichment(module, "cache_hit", time.Now())
				return out, nil
			}
		}
		out, err := src.Fetch(ctx, id)
		if err == nil && out != nil {
			c.Set(key, out, ttl)
		}
		return out, err
	})
}

func observe(p Provider, outcome string, started time.Time) {
	metrics.ObserveEnrichment(string(p), outcome, started)
}
