package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		},
	}
}

// Default returns the shared tuned HTTP client used by fetcher and prober.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same transport as Default (or a copy).
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// New builds a client for the given timeout and proxy URL. proxyURL may be
// empty (direct, but honoring HTTP_PROXY env), an http(s):// proxy, or a
// socks5:// proxy resolved through golang.org/x/net/proxy.
func New(timeout time.Duration, proxyURL string) (*http.Client, error) {
	t := baseTransport()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("httpclient: bad proxy url %q: %w", proxyURL, err)
		}
		switch u.Scheme {
		case "http", "https":
			t.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("httpclient: socks proxy %q: %w", proxyURL, err)
			}
			t.Proxy = nil
			if cd, ok := d.(proxy.ContextDialer); ok {
				t.DialContext = cd.DialContext
			} else {
				t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return d.Dial(network, addr)
				}
			}
		default:
			return nil, fmt.Errorf("httpclient: unsupported proxy scheme %q", u.Scheme)
		}
	}
	return &http.Client{Timeout: timeout, Transport: t}, nil
}

// NoProxy returns a copy of client that dials upstream directly, ignoring any
// proxy configuration (transport-level and environment). Used by the fetcher's
// one-shot proxy-bypass retry.
func NoProxy(client *http.Client) *http.Client {
	t, ok := client.Transport.(*http.Transport)
	if !ok {
		t = baseTransport()
	} else {
		t = t.Clone()
	}
	t.Proxy = nil
	t.DialContext = nil
	return &http.Client{Timeout: client.Timeout, Transport: t}
}

// InsecureTLS returns a copy of client that skips TLS certificate
// verification. Only used by the fetcher's last-resort downgrade path for
// endpoints whose certificate chain is broken; never the default.
func InsecureTLS(client *http.Client) *http.Client {
	t, ok := client.Transport.(*http.Transport)
	if !ok {
		t = baseTransport()
	} else {
		t = t.Clone()
	}
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{}
	} else {
		t.TLSClientConfig = t.TLSClientConfig.Clone()
	}
	t.TLSClientConfig.InsecureSkipVerify = true
	return &http.Client{Timeout: client.Timeout, Transport: t}
}

func baseTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
}
