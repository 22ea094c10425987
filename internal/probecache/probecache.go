// Package probecache persists probe results in a small sqlite database so
// repeated runs skip re-probing streams verified recently. A cache entry is
// honored only while younger than the configured TTL.
package probecache

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/iptvforge/iptv-forge/internal/probe"
)

const schema = `
CREATE TABLE IF NOT EXISTS probe_results (
	url        TEXT PRIMARY KEY,
	score      REAL NOT NULL,
	reject     TEXT NOT NULL,
	checked_at INTEGER NOT NULL
);
`

// Cache is a sqlite-backed probe.Cache. Safe for concurrent use; database/sql
// serializes access to the single connection pool.
type Cache struct {
	db  *sql.DB
	ttl time.Duration

	now func() time.Time // swapped in tests
}

// Open creates or opens the cache database at path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("probecache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("probecache: init schema: %w", err)
	}
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Lookup returns the cached result for url when one exists and is still
// fresh. Database errors degrade to a cache miss.
func (c *Cache) Lookup(url string) (probe.Result, bool) {
	row := sq.Select("score", "reject", "checked_at").
		From("probe_results").
		Where(sq.Eq{"url": url}).
		RunWith(c.db).
		QueryRow()

	var score float64
	var reject string
	var checkedAt int64
	if err := row.Scan(&score, &reject, &checkedAt); err != nil {
		if err != sql.ErrNoRows {
			log.Printf("probecache: lookup %s: %v", url, err)
		}
		return probe.Result{}, false
	}
	if c.now().Sub(time.Unix(checkedAt, 0)) > c.ttl {
		return probe.Result{}, false
	}
	return probe.Result{URL: url, Score: score, Reject: probe.RejectReason(reject)}, true
}

// Store upserts res. Write errors are logged, never fatal: the cache is an
// optimization, not a source of truth.
func (c *Cache) Store(res probe.Result) {
	_, err := sq.Insert("probe_results").
		Columns("url", "score", "reject", "checked_at").
		Values(res.URL, res.Score, string(res.Reject), c.now().Unix()).
		Suffix("ON CONFLICT(url) DO UPDATE SET score=excluded.score, reject=excluded.reject, checked_at=excluded.checked_at").
		RunWith(c.db).
		Exec()
	if err != nil {
		log.Printf("probecache: store %s: %v", res.URL, err)
	}
}

// Prune deletes entries older than the TTL. Called once per run to keep the
// file from growing without bound.
func (c *Cache) Prune() (int64, error) {
	cutoff := c.now().Add(-c.ttl).Unix()
	res, err := sq.Delete("probe_results").
		Where(sq.Lt{"checked_at": cutoff}).
		RunWith(c.db).
		Exec()
	if err != nil {
		return 0, fmt.Errorf("probecache: prune: %w", err)
	}
	return res.RowsAffected()
}
