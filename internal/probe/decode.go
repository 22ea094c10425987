package probe

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DecodeProber scores a candidate by actually decoding it: ffmpeg reads the
// stream for a bounded duration and its progress output reports the
// real-time speed multiplier (speed=1.02x). A healthy live stream decodes
// at >= 1x; a starved one falls below.
type DecodeProber struct {
	FFmpegPath string
	Timeout    time.Duration
	MinScore   float64 // minimum acceptable multiplier; 0 disables the floor

	// runCommand is swapped in tests to avoid requiring ffmpeg.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewDecodeProber applies defaults. ffmpegPath may be "" for PATH lookup.
func NewDecodeProber(ffmpegPath string, timeout time.Duration, minScore float64) *DecodeProber {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &DecodeProber{
		FFmpegPath: ffmpegPath,
		Timeout:    timeout,
		MinScore:   minScore,
		runCommand: runFFmpeg,
	}
}

func runFFmpeg(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = nil
	return cmd.Output()
}

func (p *DecodeProber) Probe(ctx context.Context, streamURL string) Result {
	res := Result{URL: streamURL}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// Decode a few seconds of the stream, discard frames, stream progress
	// key=value lines to stdout.
	decodeFor := p.Timeout / 2
	if decodeFor < time.Second {
		decodeFor = time.Second
	}
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-v", "error",
		"-i", streamURL,
		"-t", strconv.Itoa(int(decodeFor.Seconds())),
		"-f", "null",
		"-progress", "pipe:1",
		"-",
	}
	run := p.runCommand
	if run == nil {
		run = runFFmpeg
	}
	out, err := run(ctx, p.FFmpegPath, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.Reject = RejectTimeout
			return res
		}
		res.Reject = RejectDecodeFailed
		return res
	}

	speed, ok := parseSpeed(string(out))
	if !ok {
		res.Reject = RejectNoMultiplier
		return res
	}
	if p.MinScore > 0 && speed < p.MinScore {
		res.Reject = RejectBelowMinScore
		return res
	}
	res.Score = speed
	return res
}

// parseSpeed extracts the last reported "speed=<n>x" value from ffmpeg
// progress output. Returns ok=false when no parseable value appears.
func parseSpeed(out string) (float64, bool) {
	var last float64
	var found bool
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "speed=") {
			continue
		}
		v := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(line, "speed=")), "x")
		if v == "" || v == "N/A" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		last = f
		found = true
	}
	return last, found
}
