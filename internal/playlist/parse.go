// Package playlist converts raw playlist text into normalized
// channel→URL records and renders the ranked result back out in both
// supported dialects.
package playlist

import (
	"bufio"
	"bytes"
	"errors"
	"strings"

	"github.com/iptvforge/iptv-forge/internal/safeurl"
)

const (
	// M3USignature is the extended-markup file signature.
	M3USignature = "#EXTM3U"

	maxLineSize = 1 << 20 // 1 MiB per line
)

// ErrBinaryInput is returned when the document is not text. Malformed text
// lines never produce an error; they are skipped at line granularity.
var ErrBinaryInput = errors.New("playlist: input is not text")

// Record is the atomic parse output: one candidate URL for one channel.
type Record struct {
	Channel string
	URL     string
}

// Dialect names a playlist text format.
type Dialect string

const (
	DialectAuto Dialect = "auto"
	DialectTxt  Dialect = "txt"
	DialectM3U  Dialect = "m3u"
)

// Parse converts raw playlist text into records. dialect may be DialectAuto
// to sniff the M3U signature. The only error condition is non-text input;
// malformed lines are discarded silently.
func Parse(data []byte, dialect Dialect) ([]Record, error) {
	if bytes.IndexByte(data, 0x00) >= 0 {
		return nil, ErrBinaryInput
	}
	if dialect == DialectAuto || dialect == "" {
		if bytes.HasPrefix(bytes.TrimLeft(data, "\xef\xbb\xbf \t\r\n"), []byte(M3USignature)) {
			dialect = DialectM3U
		} else {
			dialect = DialectTxt
		}
	}
	switch dialect {
	case DialectM3U:
		return parseM3U(data), nil
	default:
		return parseTxt(data), nil
	}
}

// parseM3U scans extended-markup text. An #EXTINF metadata line carries the
// channel name; the next URL line is paired with it, after which the pending
// name is cleared — every URL needs its own preceding metadata line.
func parseM3U(data []byte) []Record {
	var out []Record
	var pending string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(nil, maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF") {
			pending = extinfName(line)
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if pending != "" && safeurl.HasStreamScheme(line) && safeurl.IsStreamURL(line) {
			out = append(out, Record{Channel: pending, URL: line})
		}
		pending = ""
	}
	return out
}

// extinfName extracts the channel name from an #EXTINF line: the tvg-name
// attribute when present, otherwise the display name after the first comma.
func extinfName(line string) string {
	if v, ok := extinfAttr(line, "tvg-name"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if i := strings.IndexByte(line, ','); i >= 0 && i+1 < len(line) {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}

// extinfAttr pulls a quoted key="value" attribute out of an #EXTINF line.
func extinfAttr(line, key string) (string, bool) {
	needle := key + `="`
	i := strings.Index(line, needle)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(needle):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

// sepStrategy is one named delimited-text parsing strategy: split on the
// first occurrence of sep, require the right side to be a stream URL.
// Strategies are tried in fixed priority order; each returns a definite
// match-or-no-match result.
type sepStrategy struct {
	name string
	sep  byte
}

var txtStrategies = []sepStrategy{
	{name: "comma", sep: ','},
	{name: "pipe", sep: '|'},
	{name: "semicolon", sep: ';'},
}

func (s sepStrategy) match(line string) (Record, bool) {
	i := strings.IndexByte(line, s.sep)
	if i < 0 {
		return Record{}, false
	}
	name := strings.TrimSpace(line[:i])
	rhs := strings.TrimSpace(line[i+1:])
	if name == "" || !safeurl.HasStreamScheme(rhs) || !safeurl.IsStreamURL(rhs) {
		return Record{}, false
	}
	return Record{Channel: name, URL: rhs}, true
}

// parseTxt scans delimited text. Non-comment, non-blank lines are tried
// against each separator strategy in order; lines matching none are dropped.
func parseTxt(data []byte) []Record {
	var out []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(nil, maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, strat := range txtStrategies {
			if rec, ok := strat.match(line); ok {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}
