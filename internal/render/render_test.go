package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iptvforge/iptv-forge/internal/rank"
	"github.com/iptvforge/iptv-forge/internal/template"
)

func mustTemplate(t *testing.T, doc string) *template.Template {
	t.Helper()
	tpl, err := template.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	return tpl
}

func TestRenderTemplateOrder(t *testing.T) {
	tpl := mustTemplate(t, "央视,#genre#\nA\nB\nC\n")
	// Discovery order deliberately scrambled.
	ranked := []rank.RankedChannel{
		{Channel: "C", Category: "央视", Candidates: []rank.Candidate{{URL: "http://c/1", Score: 1}}},
		{Channel: "A", Category: "央视", Candidates: []rank.Candidate{{URL: "http://a/1", Score: 1}}},
		{Channel: "B", Category: "央视", Candidates: []rank.Candidate{{URL: "http://b/1", Score: 1}}},
	}
	docs := Render(ranked, tpl)
	txt := string(docs.Txt)
	ia, ib, ic := strings.Index(txt, "A,"), strings.Index(txt, "B,"), strings.Index(txt, "C,")
	if !(ia < ib && ib < ic) {
		t.Errorf("template order not preserved:\n%s", txt)
	}
	if !strings.HasPrefix(txt, "央视,#genre#\n") {
		t.Errorf("missing category header:\n%s", txt)
	}
}

func TestRenderCategoryHeadersOnce(t *testing.T) {
	tpl := mustTemplate(t, "央视,#genre#\nA\n卫视,#genre#\nB\n")
	ranked := []rank.RankedChannel{
		{Channel: "A", Category: "央视", Candidates: []rank.Candidate{{URL: "http://a/1", Score: 2}, {URL: "http://a/2", Score: 1}}},
		{Channel: "B", Category: "卫视", Candidates: []rank.Candidate{{URL: "http://b/1", Score: 1}}},
	}
	docs := Render(ranked, tpl)
	txt := string(docs.Txt)
	if strings.Count(txt, "央视,#genre#") != 1 || strings.Count(txt, "卫视,#genre#") != 1 {
		t.Errorf("each category header must appear exactly once:\n%s", txt)
	}
	if strings.Count(txt, "A,http://") != 2 {
		t.Errorf("want one line per candidate:\n%s", txt)
	}
}

func TestRenderM3UFormat(t *testing.T) {
	ranked := []rank.RankedChannel{
		{Channel: "CCTV1", Category: "央视", Candidates: []rank.Candidate{{URL: "http://a/1.m3u8", Score: 9}}},
	}
	docs := Render(ranked, nil)
	m3u := string(docs.M3U)
	if !strings.HasPrefix(m3u, "#EXTM3U\n") {
		t.Errorf("missing signature:\n%s", m3u)
	}
	if !strings.Contains(m3u, "#CATEGORY:央视\n") {
		t.Errorf("missing category metadata line:\n%s", m3u)
	}
	if !strings.Contains(m3u, "#EXTINF:-1 group-title=\"央视\",CCTV1\nhttp://a/1.m3u8\n") {
		t.Errorf("metadata line must immediately precede URL line:\n%s", m3u)
	}
}

func TestRenderSkipsEmptyAndOrdersExtras(t *testing.T) {
	tpl := mustTemplate(t, "央视,#genre#\nA\n")
	ranked := []rank.RankedChannel{
		{Channel: "Zeta", Candidates: []rank.Candidate{{URL: "http://z/1", Score: 1}}},
		{Channel: "A", Category: "央视", Candidates: []rank.Candidate{{URL: "http://a/1", Score: 1}}},
		{Channel: "Dead", Category: "央视"}, // no candidates
		{Channel: "Beta", Candidates: []rank.Candidate{{URL: "http://b/1", Score: 1}}},
	}
	docs := Render(ranked, tpl)
	txt := string(docs.Txt)
	if strings.Contains(txt, "Dead") {
		t.Errorf("empty channel must be skipped:\n%s", txt)
	}
	// Uncategorized channels land in the catch-all, last, sorted by name.
	iA := strings.Index(txt, "A,")
	iOther := strings.Index(txt, CatchAllCategory+",#genre#")
	iBeta := strings.Index(txt, "Beta,")
	iZeta := strings.Index(txt, "Zeta,")
	if !(iA < iOther && iOther < iBeta && iBeta < iZeta) {
		t.Errorf("catch-all ordering wrong:\n%s", txt)
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	docs := Docs{Txt: []byte("a,http://x/1\n"), M3U: []byte("#EXTM3U\n")}
	if err := Write(docs, dir); err != nil {
		t.Fatal(err)
	}
	txt, err := os.ReadFile(filepath.Join(dir, TxtFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(txt) != "a,http://x/1\n" {
		t.Errorf("txt content = %q", txt)
	}
	if _, err := os.Stat(filepath.Join(dir, M3UFileName)); err != nil {
		t.Fatal(err)
	}
	// No temp droppings left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestWriteFailureKeepsPriorOutput(t *testing.T) {
	dir := t.TempDir()
	prior := Docs{Txt: []byte("old\n"), M3U: []byte("#EXTM3U\nold\n")}
	if err := Write(prior, dir); err != nil {
		t.Fatal(err)
	}
	// A directory where a file should go makes the rename fail.
	blocked := filepath.Join(dir, "blocked")
	if err := os.MkdirAll(filepath.Join(blocked, TxtFileName), 0755); err != nil {
		t.Fatal(err)
	}
	if err := Write(Docs{Txt: []byte("new\n"), M3U: []byte("new\n")}, blocked); err == nil {
		t.Fatal("expected write failure")
	}
	// Prior artifacts in the good dir are untouched.
	txt, err := os.ReadFile(filepath.Join(dir, TxtFileName))
	if err != nil || string(txt) != "old\n" {
		t.Errorf("prior output damaged: %q err=%v", txt, err)
	}
}
