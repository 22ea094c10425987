// Package fetcher retrieves raw playlist text from every configured source
// endpoint. Endpoints are fetched through a bounded worker pool; each one
// runs its own retry state machine with linear backoff, a one-shot
// TLS-to-plaintext downgrade and a one-shot proxy bypass. One endpoint's
// failure never blocks the others.
package fetcher

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/iptvforge/iptv-forge/internal/config"
	"github.com/iptvforge/iptv-forge/internal/httpclient"
)

const maxBodySize = 64 << 20 // 64 MiB cap per playlist document

// Options drives a Fetcher. Zero values are replaced with safe defaults.
type Options struct {
	Timeout     time.Duration
	RetryTimes  int // retries after the first attempt
	RetryDelay  time.Duration
	Concurrency int
	ProxyURL    string
	Client      *http.Client // overrides ProxyURL when set; used by tests
}

// Result is the terminal outcome for one endpoint: retries collapse into a
// single Result.
type Result struct {
	Source      config.Source
	Body        []byte
	ContentHash string
	FetchedAt   time.Time
	Attempts    int
	Downgraded  bool // TLS downgrade to plaintext was applied
	Bypassed    bool // proxy bypass was applied
	Err         error
}

// OK reports whether the endpoint yielded a body.
func (r Result) OK() bool { return r.Err == nil }

// Stats summarises a FetchAll run.
type Stats struct {
	Total    int
	OK       int
	Failed   int
	Duration time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("sources=%d ok=%d failed=%d dur=%s",
		s.Total, s.OK, s.Failed, s.Duration.Round(time.Millisecond))
}

// Fetcher fans out over source endpoints. Create once per run.
type Fetcher struct {
	opts   Options
	client *http.Client
}

// New builds a Fetcher. Returns an error only for an unusable proxy URL.
func New(opts Options) (*Fetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryTimes < 0 {
		opts.RetryTimes = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	client := opts.Client
	if client == nil {
		var err error
		client, err = httpclient.New(opts.Timeout, opts.ProxyURL)
		if err != nil {
			return nil, err
		}
	}
	return &Fetcher{opts: opts, client: client}, nil
}

// FetchAll fetches every source concurrently and returns one Result per
// endpoint, in input order. The run as a whole succeeds if at least one
// endpoint does; the caller decides what partial failure means.
func (f *Fetcher) FetchAll(ctx context.Context, sources []config.Source) ([]Result, Stats) {
	start := time.Now()
	results := make([]Result, len(sources))

	sem := make(chan struct{}, f.opts.Concurrency)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src config.Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = f.fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	var stats Stats
	stats.Total = len(sources)
	for _, r := range results {
		if r.OK() {
			stats.OK++
		} else {
			stats.Failed++
			log.Printf("fetch[src]: %s unavailable after %d attempt(s): %v", r.Source.URL, r.Attempts, r.Err)
		}
	}
	stats.Duration = time.Since(start)
	return results, stats
}

// fetchState is the per-endpoint retry machine. The transitions are
// explicit so backoff timing and the one-shot fallbacks stay testable.
type fetchState int

const (
	stateAttempting fetchState = iota
	stateBackingOff
	stateExhausted
)

func (f *Fetcher) fetchOne(ctx context.Context, src config.Source) Result {
	res := Result{Source: src}
	client := f.client
	target := src.URL

	var lastErr error
	state := stateAttempting
	retries := 0
	for state != stateExhausted {
		switch state {
		case stateBackingOff:
			select {
			case <-time.After(f.opts.RetryDelay * time.Duration(retries)):
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			}
			state = stateAttempting

		case stateAttempting:
			res.Attempts++
			body, err := f.get(ctx, client, target)
			if err == nil {
				res.Body = body
				res.ContentHash = contentHash(body)
				res.FetchedAt = time.Now()
				res.Err = nil
				return res
			}
			lastErr = err

			// One-shot TLS downgrade, only for this endpoint: broken cert
			// chains retry without verification, protocol failures (the
			// server speaks plaintext on 443) retry over http.
			if !res.Downgraded && isTLSError(err) {
				res.Downgraded = true
				if isCertError(err) {
					client = httpclient.InsecureTLS(client)
					log.Printf("fetch[src]: %s: certificate failure (%v); retrying without verification", src.URL, err)
					continue
				}
				if strings.HasPrefix(target, "https://") {
					target = "http://" + strings.TrimPrefix(target, "https://")
					log.Printf("fetch[src]: %s: TLS failure (%v); retrying over plaintext", src.URL, err)
					continue
				}
			}
			// One-shot proxy bypass.
			if !res.Bypassed && isProxyError(err) {
				client = httpclient.NoProxy(client)
				res.Bypassed = true
				log.Printf("fetch[src]: %s: proxy failure (%v); retrying direct", src.URL, err)
				continue
			}
			if !isRetryable(err) || retries >= f.opts.RetryTimes {
				state = stateExhausted
				continue
			}
			retries++
			state = stateBackingOff
		}
	}
	res.Err = lastErr
	return res
}

// get performs a single GET, decoding gzip or brotli response bodies.
func (f *Fetcher) get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "iptv-forge/1.0")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp.StatusCode)
	}

	var body io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	case "br":
		body = brotli.NewReader(resp.Body)
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return data, nil
}

type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", int(e))
}

// isRetryable classifies transient failures: network errors, timeouts, 5xx
// and 429. Other HTTP statuses (4xx) are terminal.
func isRetryable(err error) bool {
	var se statusError
	if errors.As(err, &se) {
		return int(se) >= 500 || int(se) == http.StatusTooManyRequests
	}
	if isTLSError(err) {
		return false
	}
	// Everything else from the transport (refused, reset, timeout, DNS) is
	// worth another try.
	return true
}

func isTLSError(err error) bool {
	var rhErr tls.RecordHeaderError
	if errors.As(err, &rhErr) {
		return true
	}
	if isCertError(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}

// isCertError reports a verification failure, as opposed to a protocol one.
func isCertError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unkErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invErr x509.CertificateInvalidError
	if errors.As(err, &unkErr) || errors.As(err, &hostErr) || errors.As(err, &invErr) {
		return true
	}
	return strings.Contains(err.Error(), "x509:")
}

// isProxyError detects failures at the proxy hop. The transport prefixes
// CONNECT failures with "proxyconnect".
func isProxyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "proxyconnect") || strings.Contains(msg, "socks connect")
}

func contentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:8])
}
