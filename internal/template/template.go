// Package template loads the reference channel list that drives output
// filtering, ordering and category grouping. The document format is the
// common IPTV listing dialect: a line containing the literal marker
// "#genre#" opens a category (category name = text before the marker),
// every other non-blank, non-comment line names one channel (text before
// the first comma).
package template

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const genreMarker = "#genre#"

// Entry is one channel slot in the template, in document order.
type Entry struct {
	Channel  string
	Category string
}

// Template is the parsed reference list. Immutable once built.
type Template struct {
	entries  []Entry
	index    map[string]int // channel -> position in entries
	category map[string]string
}

// Load reads and parses the template document at path.
func Load(path string) (*Template, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("template: open %s: %w", path, err)
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("template: parse %s: %w", path, err)
	}
	return t, nil
}

// Parse reads a template document from r. Duplicate channel names keep the
// first occurrence; later duplicates are ignored so output order stays stable.
func Parse(r io.Reader) (*Template, error) {
	t := &Template{
		index:    make(map[string]int),
		category: make(map[string]string),
	}
	var category string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if i := strings.Index(line, genreMarker); i >= 0 {
			category = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line[:i]), ","))
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		name := line
		if i := strings.Index(line, ","); i >= 0 {
			name = strings.TrimSpace(line[:i])
		}
		if name == "" {
			continue
		}
		if _, dup := t.index[name]; dup {
			continue
		}
		t.index[name] = len(t.entries)
		t.entries = append(t.entries, Entry{Channel: name, Category: category})
		t.category[name] = category
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// Len returns the number of channels listed.
func (t *Template) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Has reports whether channel appears in the template. A nil template
// matches everything (no filtering).
func (t *Template) Has(channel string) bool {
	if t == nil {
		return true
	}
	_, ok := t.index[channel]
	return ok
}

// Category returns the category assigned to channel, or "" when the channel
// is absent (or the template is nil).
func (t *Template) Category(channel string) string {
	if t == nil {
		return ""
	}
	return t.category[channel]
}

// Position returns channel's document-order index, or -1 when absent.
func (t *Template) Position(channel string) int {
	if t == nil {
		return -1
	}
	if i, ok := t.index[channel]; ok {
		return i
	}
	return -1
}

// Entries returns the channels in document order. Callers must not mutate
// the returned slice.
func (t *Template) Entries() []Entry {
	if t == nil {
		return nil
	}
	return t.entries
}
