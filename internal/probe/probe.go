// Package probe tests candidate stream URLs for liveness and quality.
// Two interchangeable strategies implement the Prober interface: a
// throughput probe (bytes-per-second over a bounded read) and a decode
// probe (ffmpeg real-time speed multiplier). The rest of the pipeline is
// agnostic to which is active.
package probe

import "context"

// RejectReason classifies why a candidate produced no score.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectUnsupported   RejectReason = "unsupported_scheme"
	RejectNetwork       RejectReason = "network_error"
	RejectBadStatus     RejectReason = "bad_status"
	RejectContentType   RejectReason = "wrong_content_type"
	RejectZeroBytes     RejectReason = "zero_bytes"
	RejectTimeout       RejectReason = "timeout"
	RejectDecodeFailed  RejectReason = "decode_failed"
	RejectNoMultiplier  RejectReason = "no_multiplier"
	RejectBelowMinScore RejectReason = "below_min_score"
)

// Result is the outcome of probing one URL. A rejected result carries no
// score and never flows into ranking.
type Result struct {
	URL    string
	Score  float64
	Reject RejectReason
}

// OK reports whether the probe produced a usable score.
func (r Result) OK() bool { return r.Reject == RejectNone }

// Prober tests one candidate URL. Implementations must honor ctx
// cancellation and bound their own per-request time.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}

// Cache is an optional persistent store of probe results, keyed by URL.
// A hit that is still fresh skips the network entirely.
type Cache interface {
	Lookup(url string) (Result, bool)
	Store(res Result)
}
