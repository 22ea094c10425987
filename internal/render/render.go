// Package render turns ranked channels into the two published playlist
// documents (delimited text and extended M3U) and commits them atomically.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iptvforge/iptv-forge/internal/playlist"
	"github.com/iptvforge/iptv-forge/internal/rank"
	"github.com/iptvforge/iptv-forge/internal/template"
)

const (
	// TxtFileName and M3UFileName are the published artifact names.
	TxtFileName = "tv.txt"
	M3UFileName = "tv.m3u"

	// CatchAllCategory collects channels without a template category.
	// Always emitted last.
	CatchAllCategory = "Other"

	genreSuffix = ",#genre#"
)

// Docs holds both fully rendered documents. Building them in memory first
// keeps the write step all-or-nothing.
type Docs struct {
	Txt []byte
	M3U []byte
}

// Render produces both documents from the ranked table. Channels with no
// surviving candidates are skipped. Iteration order: template order for
// channels the template lists, then the remainder sorted by name; channels
// without a category are deferred to the catch-all section at the end.
func Render(ranked []rank.RankedChannel, tpl *template.Template) Docs {
	ordered := orderChannels(ranked, tpl)

	var txt, m3u strings.Builder
	m3u.WriteString(playlist.M3USignature + "\n")

	emitted := make(map[string]bool)
	current := ""
	for _, rc := range ordered {
		cat := rc.Category
		if cat == "" {
			cat = CatchAllCategory
		}
		if cat != current && !emitted[cat] {
			if txt.Len() > 0 {
				txt.WriteString("\n")
			}
			txt.WriteString(cat + genreSuffix + "\n")
			m3u.WriteString("#CATEGORY:" + cat + "\n")
			emitted[cat] = true
			current = cat
		}
		for _, cand := range rc.Candidates {
			txt.WriteString(rc.Channel + "," + cand.URL + "\n")
			fmt.Fprintf(&m3u, "#EXTINF:-1 group-title=%q,%s\n%s\n", cat, rc.Channel, cand.URL)
		}
	}
	return Docs{Txt: []byte(txt.String()), M3U: []byte(m3u.String())}
}

// orderChannels applies the output iteration order and drops empty channels.
func orderChannels(ranked []rank.RankedChannel, tpl *template.Template) []rank.RankedChannel {
	var inTemplate, extra, uncategorized []rank.RankedChannel
	for _, rc := range ranked {
		if len(rc.Candidates) == 0 {
			continue
		}
		switch {
		case rc.Category == "":
			uncategorized = append(uncategorized, rc)
		case tpl.Position(rc.Channel) >= 0:
			inTemplate = append(inTemplate, rc)
		default:
			extra = append(extra, rc)
		}
	}
	sort.SliceStable(inTemplate, func(i, j int) bool {
		return tpl.Position(inTemplate[i].Channel) < tpl.Position(inTemplate[j].Channel)
	})
	sort.SliceStable(extra, func(i, j int) bool {
		return extra[i].Channel < extra[j].Channel
	})
	sort.SliceStable(uncategorized, func(i, j int) bool {
		return uncategorized[i].Channel < uncategorized[j].Channel
	})
	out := make([]rank.RankedChannel, 0, len(inTemplate)+len(extra)+len(uncategorized))
	out = append(out, inTemplate...)
	out = append(out, extra...)
	out = append(out, uncategorized...)
	return out
}

// Write commits both documents to dir atomically: each is written to a temp
// file and renamed into place only after both temp writes succeed. Any
// failure removes the temp files and leaves prior artifacts untouched.
func Write(docs Docs, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("render: mkdir %s: %w", dir, err)
	}
	txtTmp, err := writeTemp(dir, ".tv-*.txt.tmp", docs.Txt)
	if err != nil {
		return err
	}
	m3uTmp, err := writeTemp(dir, ".tv-*.m3u.tmp", docs.M3U)
	if err != nil {
		os.Remove(txtTmp)
		return err
	}
	if err := os.Rename(txtTmp, filepath.Join(dir, TxtFileName)); err != nil {
		os.Remove(txtTmp)
		os.Remove(m3uTmp)
		return fmt.Errorf("render: finalize %s: %w", TxtFileName, err)
	}
	if err := os.Rename(m3uTmp, filepath.Join(dir, M3UFileName)); err != nil {
		os.Remove(m3uTmp)
		return fmt.Errorf("render: finalize %s: %w", M3UFileName, err)
	}
	return nil
}

func writeTemp(dir, pattern string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("render: create temp: %w", err)
	}
	name := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(name)
		if writeErr != nil {
			return "", fmt.Errorf("render: write temp: %w", writeErr)
		}
		return "", fmt.Errorf("render: close temp: %w", closeErr)
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("render: chmod temp: %w", err)
	}
	return name, nil
}
