package factor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const defaultFetchConcurrency = 8

// Fetcher bounds the fan-out of independent reads against the data sources
type Fetcher struct {
	concurrency int
	limiter     *rate.Limiter
}

// NewFetcher creates a Fetcher running at most concurrency reads at once.
// A positive ratePerSecond additionally throttles how fast reads start.
func NewFetcher(concurrency int, ratePerSecond float64) *Fetcher {
	if concurrency < 1 {
		concurrency = defaultFetchConcurrency
	}
	f := &Fetcher{concurrency: concurrency}
	if ratePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), max(1, int(ratePerSecond)))
	}
	return f
}

// FetchAll runs fn once per distinct key. It is all-or-nothing: the first failure cancels
// the reads still in flight and is returned, otherwise every result is keyed by its input.
func FetchAll[T any](ctx context.Context, f *Fetcher, keys []string, fn func(ctx context.Context, key string) (T, error)) (map[string]T, error) {
	if f == nil {
		f = NewFetcher(defaultFetchConcurrency, 0)
	}

	distinct := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			distinct = append(distinct, k)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	results := make([]T, len(distinct))
	for i, key := range distinct {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if f.limiter != nil {
				if err := f.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			v, err := fn(gctx, key)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", key, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]T, len(distinct))
	for i, k := range distinct {
		out[k] = results[i]
	}
	return out, nil
}
