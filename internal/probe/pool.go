package probe

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/iptvforge/iptv-forge/internal/aggregate"
	"github.com/iptvforge/iptv-forge/internal/httpclient"
	"github.com/iptvforge/iptv-forge/internal/safeurl"
)

// PoolOptions tunes RunPool. Zero values get safe defaults.
type PoolOptions struct {
	Concurrency int
	// Limiter caps the global probe request rate. nil = unlimited.
	Limiter *rate.Limiter
	// Cache persists results across runs. nil = probe everything.
	Cache Cache
	// HostSem additionally bounds concurrent probes per upstream host.
	// nil = no per-host cap.
	HostSem *httpclient.HostSemaphore
}

// PoolStats counts what the pool did.
type PoolStats struct {
	Probed    int
	CacheHits int
	OK        int
	Rejected  int
}

// RunPool probes every unique candidate URL across all sets through a
// bounded worker pool and returns results keyed by URL. A URL shared by
// several channels is probed once. Tasks are independent: one probe's
// failure or timeout never cancels its siblings, and no completion order
// is guaranteed. The synchronized accumulator is the only shared state.
func RunPool(ctx context.Context, sets []aggregate.CandidateSet, prober Prober, opts PoolOptions) (map[string]Result, PoolStats) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 24
	}

	seen := make(map[string]bool)
	var urls []string
	for _, set := range sets {
		for _, u := range set.URLs {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}

	results := make(map[string]Result, len(urls))
	var stats PoolStats
	var mu sync.Mutex

	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				results[u] = Result{URL: u, Reject: RejectTimeout}
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			if opts.Cache != nil {
				if cached, ok := opts.Cache.Lookup(u); ok {
					mu.Lock()
					results[u] = cached
					stats.CacheHits++
					if cached.OK() {
						stats.OK++
					} else {
						stats.Rejected++
					}
					mu.Unlock()
					return
				}
			}
			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(ctx); err != nil {
					mu.Lock()
					results[u] = Result{URL: u, Reject: RejectTimeout}
					mu.Unlock()
					return
				}
			}
			if opts.HostSem != nil && safeurl.IsHTTPOrHTTPS(u) {
				release := opts.HostSem.Acquire(u)
				defer release()
			}

			res := prober.Probe(ctx, u)
			if opts.Cache != nil {
				opts.Cache.Store(res)
			}
			mu.Lock()
			results[u] = res
			stats.Probed++
			if res.OK() {
				stats.OK++
			} else {
				stats.Rejected++
			}
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	return results, stats
}
