package safeurl

import (
	"net/url"
	"strings"
)

// streamSchemes are the URL schemes accepted for channel candidates.
// file://, ftp:// and friends are rejected to avoid SSRF / local file access.
var streamSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"rtmp":  true,
	"rtsp":  true,
	"rtp":   true,
	"mms":   true,
}

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// IsStreamURL returns true if u is a valid absolute URL with a recognized
// streaming scheme (http, https, rtmp, rtsp, rtp, mms).
func IsStreamURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return streamSchemes[strings.ToLower(parsed.Scheme)] && parsed.Host != ""
}

// HasStreamScheme is a cheap prefix check used by line parsers before paying
// for a full URL parse. It reports whether s begins with a recognized scheme
// followed by "://".
func HasStreamScheme(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return false
	}
	return streamSchemes[strings.ToLower(s[:i])]
}
