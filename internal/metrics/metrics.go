// Package metrics exposes pipeline counters over Prometheus. The registry
// is process-wide; the HTTP listener is optional and only started when an
// address is configured.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SourcesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iptvforge",
		Name:      "sources_fetched_total",
		Help:      "Source endpoints fetched, by outcome.",
	}, []string{"outcome"})

	RecordsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iptvforge",
		Name:      "records_parsed_total",
		Help:      "Playlist records parsed, by dialect.",
	}, []string{"dialect"})

	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iptvforge",
		Name:      "probes_total",
		Help:      "Candidate probes, by outcome (ok, rejected, cache_hit).",
	}, []string{"outcome"})

	ChannelsEmitted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "iptvforge",
		Name:      "channels_emitted",
		Help:      "Channels in the last published playlist.",
	})

	CandidatesEmitted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "iptvforge",
		Name:      "candidates_emitted",
		Help:      "Candidate URLs in the last published playlist.",
	})

	RunDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "iptvforge",
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last pipeline run.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve blocks serving /metrics on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
