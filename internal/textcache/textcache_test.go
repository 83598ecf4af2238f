package textcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSchemaVersion(t *testing.T) {
	c := testCache(t)
	v, err := c.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion = %d, want 2", v)
	}
}

func TestSetGetText(t *testing.T) {
	c := testCache(t)

	if _, ok, _ := c.GetText("f1"); ok {
		t.Error("expected no text before SetText")
	}

	if err := c.SetText("hello world", "f1", time.Now()); err != nil {
		t.Fatalf("SetText: %v", err)
	}

	text, ok, err := c.GetText("f1")
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if !ok || text != "hello world" {
		t.Errorf("GetText = %q, %v; want %q, true", text, ok, "hello world")
	}

	// Upsert replaces wholesale.
	if err := c.SetText("replaced entirely", "f1", time.Now()); err != nil {
		t.Fatalf("SetText upsert: %v", err)
	}
	text, _, _ = c.GetText("f1")
	if text != "replaced entirely" {
		t.Errorf("after upsert GetText = %q", text)
	}

	// The FTS side must follow the upsert: the old tokens are gone.
	ids, err := c.SearchFrameIDs("hello", 10)
	if err != nil {
		t.Fatalf("SearchFrameIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("stale fts rows matched after upsert: %v", ids)
	}
}

func TestSearchRankedAndPruned(t *testing.T) {
	c := testCache(t)

	if err := c.SetText("hello world", "f1", time.Now()); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if err := c.SetText("goodbye moon", "f2", time.Now()); err != nil {
		t.Fatalf("SetText: %v", err)
	}

	ids, err := c.SearchFrameIDs("hello", 10)
	if err != nil {
		t.Fatalf("SearchFrameIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "f1" {
		t.Fatalf("search hits = %v, want [f1]", ids)
	}

	if err := c.Prune(map[string]struct{}{}); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	ids, err = c.SearchFrameIDs("hello", 10)
	if err != nil {
		t.Fatalf("SearchFrameIDs after prune: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("search after prune-all = %v, want empty", ids)
	}
}

func TestSearchRecencyTiebreak(t *testing.T) {
	c := testCache(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	// Same text, so equal relevance: newer frame must rank first.
	c.SetText("meeting notes budget", "older", base)
	c.SetText("meeting notes budget", "newer", base.Add(time.Hour))

	ids, err := c.SearchFrameIDs("budget", 10)
	if err != nil {
		t.Fatalf("SearchFrameIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "newer" {
		t.Errorf("hits = %v, want newer first", ids)
	}
}

func TestSearchSubstringFallback(t *testing.T) {
	c := testCache(t)
	c.SetText("Error: ECONNREFUSED at proxy.go:42", "f1", time.Now())

	// Token search misses the partial term, the substring scan catches it.
	ids, err := c.SearchFrameIDs("CONNREF", 10)
	if err != nil {
		t.Fatalf("SearchFrameIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "f1" {
		t.Errorf("substring fallback hits = %v, want [f1]", ids)
	}

	// Punctuation-only queries skip FTS entirely and still must not error.
	if _, err := c.SearchFrameIDs(`"(((`, 10); err != nil {
		t.Errorf("punctuation query: %v", err)
	}
}

func TestSearchLimit(t *testing.T) {
	c := testCache(t)
	for i := 0; i < 20; i++ {
		c.SetText("terminal output listing", fmt.Sprintf("f%d", i), time.Now())
	}
	ids, err := c.SearchFrameIDs("terminal", 5)
	if err != nil {
		t.Fatalf("SearchFrameIDs: %v", err)
	}
	if len(ids) != 5 {
		t.Errorf("got %d hits, want 5", len(ids))
	}
}

func TestCachedFrameIDs(t *testing.T) {
	c := testCache(t)
	c.SetText("a", "f1", time.Now())
	c.SetText("b", "f3", time.Now())

	cached, err := c.CachedFrameIDs([]string{"f1", "f2", "f3", "f4"})
	if err != nil {
		t.Fatalf("CachedFrameIDs: %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("cached = %v, want f1 and f3", cached)
	}
	if _, ok := cached["f1"]; !ok {
		t.Error("f1 missing from cached set")
	}
	if _, ok := cached["f2"]; ok {
		t.Error("f2 should not be cached")
	}
}

func TestCachedFrameIDsChunked(t *testing.T) {
	c := testCache(t)
	var ids []string
	for i := 0; i < idChunkSize+50; i++ {
		id := fmt.Sprintf("f%d", i)
		ids = append(ids, id)
		if i%2 == 0 {
			c.SetText("x", id, time.Now())
		}
	}
	cached, err := c.CachedFrameIDs(ids)
	if err != nil {
		t.Fatalf("CachedFrameIDs: %v", err)
	}
	want := (idChunkSize + 50 + 1) / 2
	if len(cached) != want {
		t.Errorf("cached %d ids, want %d", len(cached), want)
	}
}

func TestPruneKeepsListedIDs(t *testing.T) {
	c := testCache(t)
	c.SetText("keep me", "f1", time.Now())
	c.SetText("drop me", "f2", time.Now())

	if err := c.Prune(map[string]struct{}{"f1": {}}); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	if _, ok, _ := c.GetText("f1"); !ok {
		t.Error("f1 should survive prune")
	}
	if _, ok, _ := c.GetText("f2"); ok {
		t.Error("f2 should be pruned")
	}
	if ids, _ := c.SearchFrameIDs("drop", 10); len(ids) != 0 {
		t.Errorf("pruned frame still searchable: %v", ids)
	}
}

func TestClear(t *testing.T) {
	c := testCache(t)
	c.SetText("anything", "f1", time.Now())

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := c.IndexedCount()
	if err != nil {
		t.Fatalf("IndexedCount: %v", err)
	}
	if n != 0 {
		t.Errorf("IndexedCount = %d after Clear, want 0", n)
	}
}

func TestLegacyImport(t *testing.T) {
	dir := t.TempDir()
	dump := map[string]string{
		"old1": "ancient meeting notes",
		"old2": "ancient browser session",
	}
	data, _ := json.Marshal(dump)
	if err := os.WriteFile(filepath.Join(dir, legacyDumpName), data, 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(filepath.Join(dir, "text.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	n, _ := c.IndexedCount()
	if n != 2 {
		t.Fatalf("imported %d rows, want 2", n)
	}

	ids, err := c.SearchFrameIDs("ancient", 10)
	if err != nil {
		t.Fatalf("SearchFrameIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("search over imported rows = %v, want both", ids)
	}

	// Imported rows carry the sentinel timestamp and sort behind new rows.
	c.SetText("ancient but fresh", "new1", time.Now())
	ids, _ = c.SearchFrameIDs("ancient", 10)
	if len(ids) == 0 || ids[0] != "new1" {
		t.Errorf("fresh row should outrank sentinel-timestamp imports: %v", ids)
	}
}

func TestLegacyImportSkippedWhenPopulated(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "text.db")

	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c.SetText("existing", "f1", time.Now())
	c.Close()

	// A dump appearing later must not be imported into a populated index.
	data, _ := json.Marshal(map[string]string{"old1": "stale"})
	os.WriteFile(filepath.Join(dir, legacyDumpName), data, 0644)

	c2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	if _, ok, _ := c2.GetText("old1"); ok {
		t.Error("legacy dump imported into a non-empty index")
	}
}
