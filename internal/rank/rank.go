// Package rank reduces probe results into the final per-channel candidate
// lists: scoreless candidates dropped, the rest sorted by score and capped.
package rank

import (
	"fmt"
	"sort"

	"github.com/iptvforge/iptv-forge/internal/aggregate"
	"github.com/iptvforge/iptv-forge/internal/probe"
	"github.com/iptvforge/iptv-forge/internal/template"
)

// Candidate is one surviving URL with its probe score.
type Candidate struct {
	URL   string
	Score float64
}

// RankedChannel is the final record the output generator consumes.
// Candidates are sorted descending by score and truncated to the cap; a
// channel whose every candidate was rejected keeps an empty list so the
// summary can report it instead of losing it silently.
type RankedChannel struct {
	Channel    string
	Category   string
	Candidates []Candidate
}

// Stats counts ranking outcomes.
type Stats struct {
	Channels       int
	EmptyChannels  int // all candidates rejected
	Kept           int
	DroppedNoScore int
	DroppedByCap   int
}

func (s Stats) String() string {
	return fmt.Sprintf("channels=%d empty=%d kept=%d no_score=%d capped=%d",
		s.Channels, s.EmptyChannels, s.Kept, s.DroppedNoScore, s.DroppedByCap)
}

// Build ranks every channel's candidates. maxPerChannel <= 0 means no cap.
// Sorting is stable: candidates with equal scores keep discovery order.
func Build(sets []aggregate.CandidateSet, results map[string]probe.Result, tpl *template.Template, maxPerChannel int) ([]RankedChannel, Stats) {
	var stats Stats
	out := make([]RankedChannel, 0, len(sets))
	for _, set := range sets {
		rc := RankedChannel{
			Channel:  set.Channel,
			Category: tpl.Category(set.Channel),
		}
		for _, u := range set.URLs {
			res, ok := results[u]
			if !ok || !res.OK() {
				stats.DroppedNoScore++
				continue
			}
			rc.Candidates = append(rc.Candidates, Candidate{URL: u, Score: res.Score})
		}
		sort.SliceStable(rc.Candidates, func(i, j int) bool {
			return rc.Candidates[i].Score > rc.Candidates[j].Score
		})
		if maxPerChannel > 0 && len(rc.Candidates) > maxPerChannel {
			stats.DroppedByCap += len(rc.Candidates) - maxPerChannel
			rc.Candidates = rc.Candidates[:maxPerChannel]
		}
		if len(rc.Candidates) == 0 {
			stats.EmptyChannels++
		}
		stats.Kept += len(rc.Candidates)
		out = append(out, rc)
	}
	stats.Channels = len(out)
	return out, stats
}
