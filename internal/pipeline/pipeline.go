// Package pipeline sequences a full acquisition run: template load, source
// fetch, parse, aggregate, probe, rank, render. Stages are hard barriers;
// each consumes only the finished output of the one before it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/iptvforge/iptv-forge/internal/aggregate"
	"github.com/iptvforge/iptv-forge/internal/config"
	"github.com/iptvforge/iptv-forge/internal/fetcher"
	"github.com/iptvforge/iptv-forge/internal/httpclient"
	"github.com/iptvforge/iptv-forge/internal/metrics"
	"github.com/iptvforge/iptv-forge/internal/playlist"
	"github.com/iptvforge/iptv-forge/internal/probe"
	"github.com/iptvforge/iptv-forge/internal/rank"
	"github.com/iptvforge/iptv-forge/internal/render"
	"github.com/iptvforge/iptv-forge/internal/template"
)

// Structural failures. Any of these aborts the run before the output
// artifacts are touched, so a previously published playlist survives.
var (
	ErrAllSourcesFailed = errors.New("pipeline: every source endpoint failed")
	ErrNoRecords        = errors.New("pipeline: no records parsed from any source")
	ErrFilterEmptied    = errors.New("pipeline: template filter removed every record")
	ErrNoSurvivors      = errors.New("pipeline: no candidate survived probing")
)

// Status is the run verdict.
type Status int

const (
	StatusSuccess Status = iota // all sources fetched, every channel has candidates
	StatusPartial               // output published, but some sources or channels degraded
	StatusFailed                // structural failure, nothing published
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial"
	default:
		return "failed"
	}
}

// Summary aggregates per-stage stats for the run report.
type Summary struct {
	Status   Status
	Fetch    fetcher.Stats
	Merge    aggregate.Stats
	Pool     probe.PoolStats
	Rank     rank.Stats
	Duration time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("status=%s | %s | %s | probed=%d cache_hits=%d ok=%d rejected=%d | %s | dur=%s",
		s.Status, s.Fetch, s.Merge,
		s.Pool.Probed, s.Pool.CacheHits, s.Pool.OK, s.Pool.Rejected,
		s.Rank, s.Duration.Round(time.Millisecond))
}

// Options carries the optional collaborators. Zero values mean: build the
// fetcher and prober from the config, no cache, no rate limit.
type Options struct {
	Fetcher *fetcher.Fetcher
	Prober  probe.Prober
	Cache   probe.Cache
}

// Pipeline is a single-run orchestrator. Build one per run.
type Pipeline struct {
	cfg     *config.Config
	fetch   *fetcher.Fetcher
	prober  probe.Prober
	cache   probe.Cache
	limiter *rate.Limiter
}

// New wires a Pipeline from config. Collaborators given in opts win over
// config-derived ones.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, prober: opts.Prober, cache: opts.Cache}

	p.fetch = opts.Fetcher
	if p.fetch == nil {
		f, err := fetcher.New(fetcher.Options{
			Timeout:     cfg.RequestTimeout,
			RetryTimes:  cfg.RetryTimes,
			RetryDelay:  cfg.RetryDelay,
			Concurrency: cfg.FetchConcurrency,
			ProxyURL:    cfg.ProxyURL,
		})
		if err != nil {
			return nil, err
		}
		p.fetch = f
	}
	if p.prober == nil {
		switch cfg.ProbeStrategy {
		case "decode":
			p.prober = probe.NewDecodeProber(cfg.FFmpegPath, cfg.DecodeTimeout, cfg.MinScore)
		default:
			client, err := httpclient.New(cfg.RequestTimeout, cfg.ProxyURL)
			if err != nil {
				return nil, err
			}
			p.prober = probe.NewThroughputProber(client, cfg.RequestTimeout, cfg.ProbeByteBudget, cfg.MinScore)
		}
	}
	if cfg.ProbeRateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRateLimit), 1)
	}
	return p, nil
}

// Run executes the pipeline. On a structural failure it returns the sentinel
// (possibly wrapped) and a Summary with StatusFailed; the output directory
// is left exactly as it was.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary
	sum.Status = StatusFailed

	tpl, err := loadTemplate(p.cfg.TemplatePath)
	if err != nil {
		return p.finish(sum, start), err
	}

	results, fetchStats := p.fetch.FetchAll(ctx, p.cfg.Sources)
	sum.Fetch = fetchStats
	metrics.SourcesFetched.WithLabelValues("ok").Add(float64(fetchStats.OK))
	metrics.SourcesFetched.WithLabelValues("failed").Add(float64(fetchStats.Failed))
	log.Printf("pipeline: fetch done: %s", fetchStats)
	if fetchStats.OK == 0 {
		return p.finish(sum, start), ErrAllSourcesFailed
	}

	records := parseAll(results)
	if len(records) == 0 {
		return p.finish(sum, start), ErrNoRecords
	}

	sets, mergeStats := aggregate.Merge(records, tpl)
	sum.Merge = mergeStats
	log.Printf("pipeline: aggregate done: %s", mergeStats)
	if len(sets) == 0 {
		return p.finish(sum, start), ErrFilterEmptied
	}

	poolResults, poolStats := probe.RunPool(ctx, sets, p.prober, probe.PoolOptions{
		Concurrency: p.cfg.ProbeConcurrency,
		Limiter:     p.limiter,
		Cache:       p.cache,
		HostSem:     httpclient.GlobalHostSem,
	})
	sum.Pool = poolStats
	metrics.ProbesTotal.WithLabelValues("ok").Add(float64(poolStats.OK))
	metrics.ProbesTotal.WithLabelValues("rejected").Add(float64(poolStats.Rejected))
	metrics.ProbesTotal.WithLabelValues("cache_hit").Add(float64(poolStats.CacheHits))
	log.Printf("pipeline: probe done: probed=%d cache_hits=%d ok=%d rejected=%d",
		poolStats.Probed, poolStats.CacheHits, poolStats.OK, poolStats.Rejected)

	ranked, rankStats := rank.Build(sets, poolResults, tpl, p.cfg.MaxSourcesPerChannel)
	sum.Rank = rankStats
	log.Printf("pipeline: rank done: %s", rankStats)
	if rankStats.Kept == 0 {
		return p.finish(sum, start), ErrNoSurvivors
	}

	docs := render.Render(ranked, tpl)
	if err := render.Write(docs, p.cfg.OutputDir); err != nil {
		return p.finish(sum, start), err
	}
	metrics.ChannelsEmitted.Set(float64(rankStats.Channels - rankStats.EmptyChannels))
	metrics.CandidatesEmitted.Set(float64(rankStats.Kept))

	if fetchStats.Failed > 0 || rankStats.EmptyChannels > 0 {
		sum.Status = StatusPartial
	} else {
		sum.Status = StatusSuccess
	}
	return p.finish(sum, start), nil
}

func (p *Pipeline) finish(sum Summary, start time.Time) Summary {
	sum.Duration = time.Since(start)
	metrics.RunDuration.Set(sum.Duration.Seconds())
	return sum
}

func loadTemplate(path string) (*template.Template, error) {
	if path == "" {
		return nil, nil
	}
	tpl, err := template.Load(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load template: %w", err)
	}
	log.Printf("pipeline: template loaded: %d channels", tpl.Len())
	return tpl, nil
}

// parseAll parses every successful fetch. Bodies with a content hash already
// seen this run are skipped; two endpoints serving identical text add
// nothing but parse work.
func parseAll(results []fetcher.Result) []playlist.Record {
	var records []playlist.Record
	seen := make(map[string]string)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		if prev, dup := seen[r.ContentHash]; dup {
			log.Printf("pipeline: %s serves the same body as %s; skipping", r.Source.URL, prev)
			continue
		}
		seen[r.ContentHash] = r.Source.URL

		recs, err := playlist.Parse(r.Body, dialectFor(r.Source.Kind))
		if err != nil {
			log.Printf("pipeline: parse %s: %v", r.Source.URL, err)
			continue
		}
		metrics.RecordsParsed.WithLabelValues(string(r.Source.Kind)).Add(float64(len(recs)))
		log.Printf("pipeline: parsed %d records from %s", len(recs), r.Source.URL)
		records = append(records, recs...)
	}
	return records
}

func dialectFor(kind config.SourceKind) playlist.Dialect {
	switch kind {
	case config.KindTxt:
		return playlist.DialectTxt
	case config.KindM3U:
		return playlist.DialectM3U
	default:
		return playlist.DialectAuto
	}
}
