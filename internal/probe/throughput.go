package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iptvforge/iptv-forge/internal/httpclient"
	"github.com/iptvforge/iptv-forge/internal/safeurl"
)

// ThroughputProber opens a streaming GET, reads up to ByteBudget bytes and
// scores the candidate by measured bytes-per-second.
type ThroughputProber struct {
	Client     *http.Client
	Timeout    time.Duration
	ByteBudget int64
	MinScore   float64 // bytes/sec; 0 disables the floor
}

// NewThroughputProber applies defaults. client may be nil.
func NewThroughputProber(client *http.Client, timeout time.Duration, byteBudget int64, minScore float64) *ThroughputProber {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if client == nil {
		client = httpclient.WithTimeout(timeout)
	}
	if byteBudget <= 0 {
		byteBudget = 512 << 10
	}
	return &ThroughputProber{Client: client, Timeout: timeout, ByteBudget: byteBudget, MinScore: minScore}
}

// streamContentTypes are accepted Content-Type substrings. An absent header
// is tolerated; plenty of stream servers never set one.
var streamContentTypes = []string{
	"mpegurl",
	"mp2t",
	"video/",
	"audio/",
	"application/octet-stream",
	"flv",
}

func (p *ThroughputProber) Probe(ctx context.Context, streamURL string) Result {
	res := Result{URL: streamURL}
	if !safeurl.IsHTTPOrHTTPS(streamURL) {
		// rtmp/rtsp candidates need the decode strategy.
		res.Reject = RejectUnsupported
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		res.Reject = RejectNetwork
		return res
	}
	req.Header.Set("User-Agent", "iptv-forge/1.0")

	start := time.Now()
	resp, err := p.Client.Do(req)
	if err != nil {
		res.Reject = classifyNetErr(err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		res.Reject = RejectBadStatus
		return res
	}
	if !acceptableContentType(resp.Header.Get("Content-Type"), streamURL) {
		res.Reject = RejectContentType
		return res
	}

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, p.ByteBudget))
	elapsed := time.Since(start)
	if n == 0 {
		if err != nil && ctx.Err() != nil {
			res.Reject = RejectTimeout
			return res
		}
		res.Reject = RejectZeroBytes
		return res
	}
	// A short read after some bytes arrived still measures: slow or
	// truncated streams score low and lose the ranking on their own.
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	res.Score = float64(n) / elapsed.Seconds()
	if p.MinScore > 0 && res.Score < p.MinScore {
		res.Score = 0
		res.Reject = RejectBelowMinScore
	}
	return res
}

func acceptableContentType(ct, streamURL string) bool {
	lower := strings.ToLower(ct)
	if lower == "" {
		return true
	}
	for _, want := range streamContentTypes {
		if strings.Contains(lower, want) {
			return true
		}
	}
	// Playlist served as text: accept when the URL itself says m3u8.
	if strings.Contains(lower, "text/") && strings.Contains(strings.ToLower(streamURL), ".m3u") {
		return true
	}
	return false
}

func classifyNetErr(err error) RejectReason {
	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "timeout") ||
		strings.Contains(err.Error(), "deadline") {
		return RejectTimeout
	}
	return RejectNetwork
}
