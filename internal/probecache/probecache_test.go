package probecache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/iptvforge/iptv-forge/internal/probe"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "probe.db"), ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStoreAndLookup(t *testing.T) {
	c := openTestCache(t, time.Hour)
	c.Store(probe.Result{URL: "http://a.example/s", Score: 123.5})
	c.Store(probe.Result{URL: "http://b.example/s", Reject: probe.RejectZeroBytes})

	got, ok := c.Lookup("http://a.example/s")
	if !ok || got.Score != 123.5 || !got.OK() {
		t.Fatalf("lookup a = %+v ok=%v", got, ok)
	}
	got, ok = c.Lookup("http://b.example/s")
	if !ok || got.Reject != probe.RejectZeroBytes {
		t.Fatalf("lookup b = %+v ok=%v", got, ok)
	}
	if _, ok := c.Lookup("http://missing.example/s"); ok {
		t.Error("missing URL must be a miss")
	}
}

func TestUpsertOverwrites(t *testing.T) {
	c := openTestCache(t, time.Hour)
	c.Store(probe.Result{URL: "http://a.example/s", Reject: probe.RejectNetwork})
	c.Store(probe.Result{URL: "http://a.example/s", Score: 55})
	got, ok := c.Lookup("http://a.example/s")
	if !ok || !got.OK() || got.Score != 55 {
		t.Fatalf("lookup after upsert = %+v ok=%v", got, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := openTestCache(t, time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Store(probe.Result{URL: "http://a.example/s", Score: 1})

	c.now = func() time.Time { return base.Add(30 * time.Minute) }
	if _, ok := c.Lookup("http://a.example/s"); !ok {
		t.Error("entry should still be fresh at 30m")
	}
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok := c.Lookup("http://a.example/s"); ok {
		t.Error("entry should be expired at 2h")
	}
}

func TestPrune(t *testing.T) {
	c := openTestCache(t, time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base.Add(-2 * time.Hour) }
	c.Store(probe.Result{URL: "http://old.example/s", Score: 1})
	c.now = func() time.Time { return base }
	c.Store(probe.Result{URL: "http://new.example/s", Score: 1})

	n, err := c.Prune()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
	if _, ok := c.Lookup("http://new.example/s"); !ok {
		t.Error("fresh entry must survive prune")
	}
}
