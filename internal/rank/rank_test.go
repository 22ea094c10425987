package rank

import (
	"strings"
	"testing"

	"github.com/iptvforge/iptv-forge/internal/aggregate"
	"github.com/iptvforge/iptv-forge/internal/probe"
	"github.com/iptvforge/iptv-forge/internal/template"
)

func results(scores map[string]float64, rejected ...string) map[string]probe.Result {
	m := make(map[string]probe.Result)
	for u, s := range scores {
		m[u] = probe.Result{URL: u, Score: s}
	}
	for _, u := range rejected {
		m[u] = probe.Result{URL: u, Reject: probe.RejectNetwork}
	}
	return m
}

func TestBuildSortsDescending(t *testing.T) {
	sets := []aggregate.CandidateSet{
		{Channel: "CCTV1", URLs: []string{"http://slow/1", "http://fast/1", "http://mid/1"}},
	}
	res := results(map[string]float64{
		"http://slow/1": 10,
		"http://fast/1": 900,
		"http://mid/1":  50,
	})
	ranked, stats := Build(sets, res, nil, 8)
	got := ranked[0].Candidates
	if len(got) != 3 {
		t.Fatalf("candidates = %d, want 3", len(got))
	}
	for i := 0; i+1 < len(got); i++ {
		if got[i].Score < got[i+1].Score {
			t.Errorf("scores not descending at %d: %f < %f", i, got[i].Score, got[i+1].Score)
		}
	}
	if got[0].URL != "http://fast/1" {
		t.Errorf("best = %s, want http://fast/1", got[0].URL)
	}
	if stats.Kept != 3 {
		t.Errorf("Kept = %d, want 3", stats.Kept)
	}
}

func TestBuildStableTies(t *testing.T) {
	sets := []aggregate.CandidateSet{
		{Channel: "A", URLs: []string{"http://first/1", "http://second/1", "http://third/1"}},
	}
	res := results(map[string]float64{
		"http://first/1":  5,
		"http://second/1": 5,
		"http://third/1":  5,
	})
	ranked, _ := Build(sets, res, nil, 8)
	got := ranked[0].Candidates
	want := []string{"http://first/1", "http://second/1", "http://third/1"}
	for i, w := range want {
		if got[i].URL != w {
			t.Errorf("tie order broken at %d: %s, want %s", i, got[i].URL, w)
		}
	}
}

func TestBuildCapInvariant(t *testing.T) {
	urls := []string{"http://u/1", "http://u/2", "http://u/3", "http://u/4", "http://u/5"}
	scores := make(map[string]float64)
	for i, u := range urls {
		scores[u] = float64(i)
	}
	sets := []aggregate.CandidateSet{{Channel: "A", URLs: urls}}
	for _, cap := range []int{1, 2, 3, 8} {
		ranked, stats := Build(sets, results(scores), nil, cap)
		if got := len(ranked[0].Candidates); got > cap {
			t.Errorf("cap %d: got %d candidates", cap, got)
		}
		if cap < len(urls) && stats.DroppedByCap != len(urls)-cap {
			t.Errorf("cap %d: DroppedByCap = %d, want %d", cap, stats.DroppedByCap, len(urls)-cap)
		}
	}
}

func TestBuildDropsRejected(t *testing.T) {
	sets := []aggregate.CandidateSet{
		{Channel: "CCTV1", URLs: []string{"http://a.example/x.m3u8", "http://b.example/y.m3u8"}},
	}
	res := results(map[string]float64{"http://a.example/x.m3u8": 500}, "http://b.example/y.m3u8")
	ranked, stats := Build(sets, res, nil, 8)
	if len(ranked[0].Candidates) != 1 || ranked[0].Candidates[0].URL != "http://a.example/x.m3u8" {
		t.Fatalf("candidates = %+v, want only a.example", ranked[0].Candidates)
	}
	if stats.DroppedNoScore != 1 {
		t.Errorf("DroppedNoScore = %d, want 1", stats.DroppedNoScore)
	}
}

func TestBuildEmptyChannelRecorded(t *testing.T) {
	sets := []aggregate.CandidateSet{
		{Channel: "Dead", URLs: []string{"http://dead/1"}},
	}
	ranked, stats := Build(sets, results(nil, "http://dead/1"), nil, 8)
	if len(ranked) != 1 || len(ranked[0].Candidates) != 0 {
		t.Fatalf("ranked = %+v, want one empty channel", ranked)
	}
	if stats.EmptyChannels != 1 {
		t.Errorf("EmptyChannels = %d, want 1", stats.EmptyChannels)
	}
}

func TestBuildCategoryFromTemplate(t *testing.T) {
	tpl, err := template.Parse(strings.NewReader("央视,#genre#\nCCTV1\n"))
	if err != nil {
		t.Fatal(err)
	}
	sets := []aggregate.CandidateSet{{Channel: "CCTV1", URLs: []string{"http://a/1"}}}
	ranked, _ := Build(sets, results(map[string]float64{"http://a/1": 1}), tpl, 8)
	if ranked[0].Category != "央视" {
		t.Errorf("Category = %q, want 央视", ranked[0].Category)
	}
}
