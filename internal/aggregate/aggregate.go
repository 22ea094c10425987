// Package aggregate merges parsed playlist records from every source into
// per-channel candidate sets: template filtering, mirror deduplication and
// grouping in discovery order.
package aggregate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/iptvforge/iptv-forge/internal/playlist"
	"github.com/iptvforge/iptv-forge/internal/template"
)

// CandidateSet holds one channel and its surviving unique candidate URLs in
// source-discovery order. Frozen before probing; no cap is applied here.
type CandidateSet struct {
	Channel string
	URLs    []string
}

// Stats counts what happened during a Merge.
type Stats struct {
	Records    int // input records
	Filtered   int // dropped by template filtering
	Duplicates int // dropped by (channel, canonical URL) dedup
	Invalid    int // dropped because the URL does not canonicalize
	Channels   int // surviving channels
}

func (s Stats) String() string {
	return fmt.Sprintf("records=%d filtered=%d dup=%d invalid=%d channels=%d",
		s.Records, s.Filtered, s.Duplicates, s.Invalid, s.Channels)
}

// CanonicalURL reduces raw to its dedup form: scheme and host lower-cased,
// query and fragment stripped, path kept as-is. Mirrors of the same stream
// resource (same path, differing query strings) collapse to one key.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("aggregate: not an absolute url: %q", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// Merge combines records from all sources into candidate sets. When tpl is
// non-nil, records whose channel is absent from the template are dropped.
// Dedup key is (channel, canonical URL); the first occurrence wins and its
// original textual form is the one kept. Running Merge twice over the same
// input yields identical output.
func Merge(records []playlist.Record, tpl *template.Template) ([]CandidateSet, Stats) {
	var stats Stats
	stats.Records = len(records)

	seen := make(map[string]bool, len(records))
	order := make([]string, 0)
	byChannel := make(map[string][]string)

	for _, rec := range records {
		if !tpl.Has(rec.Channel) {
			stats.Filtered++
			continue
		}
		canon, err := CanonicalURL(rec.URL)
		if err != nil {
			stats.Invalid++
			continue
		}
		key := rec.Channel + "\x00" + canon
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true
		if _, ok := byChannel[rec.Channel]; !ok {
			order = append(order, rec.Channel)
		}
		byChannel[rec.Channel] = append(byChannel[rec.Channel], rec.URL)
	}

	out := make([]CandidateSet, 0, len(order))
	for _, ch := range order {
		out = append(out, CandidateSet{Channel: ch, URLs: byChannel[ch]})
	}
	stats.Channels = len(out)
	return out, stats
}
