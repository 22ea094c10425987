package safeurl

import "testing"

func TestIsStreamURL(t *testing.T) {
	tests := []struct {
		u    string
		want bool
	}{
		{"http://example.com/live.m3u8", true},
		{"https://example.com/tv", true},
		{"rtmp://example.com/app/stream", true},
		{"rtsp://10.0.0.1/ch1", true},
		{"RTP://224.0.0.1:5000", true},
		{"mms://example.com/ch", true},
		{"file:///etc/passwd", false},
		{"ftp://example.com/x", false},
		{"not a url", false},
		{"", false},
		{"http://", false},
	}
	for _, tt := range tests {
		if got := IsStreamURL(tt.u); got != tt.want {
			t.Errorf("IsStreamURL(%q) = %v, want %v", tt.u, got, tt.want)
		}
	}
}

func TestHasStreamScheme(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"http://x", true},
		{"HTTPS://x", true},
		{"rtsp://x", true},
		{"gopher://x", false},
		{"CCTV1,http://x", false},
		{"://x", false},
	}
	for _, tt := range tests {
		if got := HasStreamScheme(tt.s); got != tt.want {
			t.Errorf("HasStreamScheme(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}
