// Command iptv-forge: one-shot playlist build (run), or the fetch / probe
// stages separately for diagnosis.
//
//	run    Full pipeline: fetch sources, parse, merge, probe, rank, publish tv.txt + tv.m3u
//	fetch  Fetch and parse configured sources, report record counts without probing or publishing
//	probe  Probe explicit stream URLs and print their scores
//	prune  Delete expired entries from the probe cache
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iptvforge/iptv-forge/internal/config"
	"github.com/iptvforge/iptv-forge/internal/fetcher"
	"github.com/iptvforge/iptv-forge/internal/httpclient"
	"github.com/iptvforge/iptv-forge/internal/metrics"
	"github.com/iptvforge/iptv-forge/internal/pipeline"
	"github.com/iptvforge/iptv-forge/internal/playlist"
	"github.com/iptvforge/iptv-forge/internal/probe"
	"github.com/iptvforge/iptv-forge/internal/probecache"
)

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[iptv-forge] ")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runConfig := runCmd.String("config", "", "YAML config path (default: IPTV_FORGE_CONFIG or iptv-forge.yaml)")
	runOutput := runCmd.String("output", "", "Output directory (default: IPTV_FORGE_OUTPUT_DIR or .)")
	runTemplate := runCmd.String("template", "", "Channel template path (default: IPTV_FORGE_TEMPLATE; empty = keep everything)")
	runStrategy := runCmd.String("strategy", "", "Probe strategy: throughput or decode (default: from config)")
	runSources := runCmd.String("sources", "", "Comma-separated source URLs, each optionally suffixed =txt or =m3u (overrides config)")

	fetchCmd := flag.NewFlagSet("fetch", flag.ExitOnError)
	fetchConfig := fetchCmd.String("config", "", "YAML config path")
	fetchSources := fetchCmd.String("sources", "", "Comma-separated source URLs (overrides config)")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeConfig := probeCmd.String("config", "", "YAML config path")
	probeStrategy := probeCmd.String("strategy", "", "Probe strategy: throughput or decode")
	probeTimeout := probeCmd.Duration("timeout", 0, "Timeout per URL (default: from config)")

	pruneCmd := flag.NewFlagSet("prune", flag.ExitOnError)
	pruneConfig := pruneCmd.String("config", "", "YAML config path")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|fetch|probe|prune> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  run    Build and publish tv.txt + tv.m3u from the configured sources\n")
		fmt.Fprintf(os.Stderr, "  fetch  Fetch and parse sources, report record counts (no probing, no output)\n")
		fmt.Fprintf(os.Stderr, "  probe  Probe the given stream URLs and print scores (e.g. probe http://a/x.m3u8)\n")
		fmt.Fprintf(os.Stderr, "  prune  Delete expired probe cache entries\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		_ = runCmd.Parse(os.Args[2:])
		cfg := loadConfig(*runConfig)
		if *runOutput != "" {
			cfg.OutputDir = *runOutput
		}
		if *runTemplate != "" {
			cfg.TemplatePath = *runTemplate
		}
		if *runStrategy != "" {
			cfg.ProbeStrategy = *runStrategy
		}
		applySourcesFlag(cfg, *runSources)
		if len(cfg.Sources) == 0 {
			log.Print("No sources configured (set sources in YAML, IPTV_FORGE_SOURCES, or -sources)")
			os.Exit(1)
		}

		if cfg.MetricsAddr != "" {
			go func() {
				log.Printf("Metrics on %s/metrics", cfg.MetricsAddr)
				if err := metrics.Serve(cfg.MetricsAddr); err != nil {
					log.Printf("Metrics listener: %v", err)
				}
			}()
		}

		var opts pipeline.Options
		if cfg.CachePath != "" {
			cache, err := probecache.Open(cfg.CachePath, cfg.CacheTTL)
			if err != nil {
				log.Printf("Open probe cache %s: %v; continuing without cache", cfg.CachePath, err)
			} else {
				defer cache.Close()
				opts.Cache = cache
			}
		}

		p, err := pipeline.New(cfg, opts)
		if err != nil {
			log.Printf("Setup failed: %v", err)
			os.Exit(1)
		}
		sum, err := p.Run(ctx)
		if err != nil {
			log.Printf("Run failed: %v", err)
			log.Printf("Summary: %s", sum)
			os.Exit(1)
		}
		log.Printf("Summary: %s", sum)

	case "fetch":
		_ = fetchCmd.Parse(os.Args[2:])
		cfg := loadConfig(*fetchConfig)
		applySourcesFlag(cfg, *fetchSources)
		if len(cfg.Sources) == 0 {
			log.Print("No sources configured")
			os.Exit(1)
		}
		f, err := fetcher.New(fetcher.Options{
			Timeout:     cfg.RequestTimeout,
			RetryTimes:  cfg.RetryTimes,
			RetryDelay:  cfg.RetryDelay,
			Concurrency: cfg.FetchConcurrency,
			ProxyURL:    cfg.ProxyURL,
		})
		if err != nil {
			log.Printf("Setup failed: %v", err)
			os.Exit(1)
		}
		results, stats := f.FetchAll(ctx, cfg.Sources)
		for _, r := range results {
			if !r.OK() {
				fmt.Printf("FAIL  %s  (%v)\n", r.Source.URL, r.Err)
				continue
			}
			recs, err := playlist.Parse(r.Body, playlist.Dialect(r.Source.Kind))
			if err != nil {
				fmt.Printf("FAIL  %s  (%v)\n", r.Source.URL, err)
				continue
			}
			fmt.Printf("OK    %s  %d bytes, %d records\n", r.Source.URL, len(r.Body), len(recs))
		}
		log.Printf("Fetch: %s", stats)
		if stats.OK == 0 {
			os.Exit(1)
		}

	case "probe":
		_ = probeCmd.Parse(os.Args[2:])
		urls := probeCmd.Args()
		if len(urls) == 0 {
			fmt.Fprintf(os.Stderr, "Usage: %s probe [flags] <url> [url...]\n", os.Args[0])
			os.Exit(1)
		}
		cfg := loadConfig(*probeConfig)
		if *probeStrategy != "" {
			cfg.ProbeStrategy = *probeStrategy
		}
		timeout := cfg.RequestTimeout
		if *probeTimeout > 0 {
			timeout = *probeTimeout
		}
		var prober probe.Prober
		if cfg.ProbeStrategy == "decode" {
			prober = probe.NewDecodeProber(cfg.FFmpegPath, timeout, cfg.MinScore)
		} else {
			client, err := httpclient.New(timeout, cfg.ProxyURL)
			if err != nil {
				log.Printf("Setup failed: %v", err)
				os.Exit(1)
			}
			prober = probe.NewThroughputProber(client, timeout, cfg.ProbeByteBudget, cfg.MinScore)
		}
		failed := 0
		for _, u := range urls {
			start := time.Now()
			res := prober.Probe(ctx, u)
			if res.OK() {
				fmt.Printf("OK    %-60s score=%.1f (%s)\n", u, res.Score, time.Since(start).Round(time.Millisecond))
			} else {
				failed++
				fmt.Printf("FAIL  %-60s %s\n", u, res.Reject)
			}
		}
		if failed == len(urls) {
			os.Exit(1)
		}

	case "prune":
		_ = pruneCmd.Parse(os.Args[2:])
		cfg := loadConfig(*pruneConfig)
		if cfg.CachePath == "" {
			log.Print("No cachePath configured; nothing to prune")
			os.Exit(1)
		}
		cache, err := probecache.Open(cfg.CachePath, cfg.CacheTTL)
		if err != nil {
			log.Printf("Open probe cache: %v", err)
			os.Exit(1)
		}
		defer cache.Close()
		n, err := cache.Prune()
		if err != nil {
			log.Printf("Prune failed: %v", err)
			os.Exit(1)
		}
		log.Printf("Pruned %d expired entries from %s", n, cfg.CachePath)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q (want run, fetch, probe or prune)\n", os.Args[1])
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		path = os.Getenv("IPTV_FORGE_CONFIG")
	}
	if path == "" {
		path = "iptv-forge.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("Config: %v", err)
		os.Exit(1)
	}
	return cfg
}

func applySourcesFlag(cfg *config.Config, sources string) {
	s := strings.TrimSpace(sources)
	if s == "" {
		return
	}
	cfg.Sources = config.ParseSourceList(s)
}
