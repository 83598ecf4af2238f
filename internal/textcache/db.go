// Package textcache stores recognized frame text durably and serves
// full-text search over it. Primary rows live in frame_text, keyed by frame
// ID; a separate FTS5 table carries the token index. Upserts replace both
// rows wholesale so the two can never drift.
package textcache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Cache wraps a sql.DB connection to the text-search SQLite database.
type Cache struct {
	*sql.DB
	Path string
}

// Open opens (or creates) the text cache at the given path, configures
// pragmas, runs migrations, and imports a legacy flat dump if this is the
// first run against an empty index.
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	c := &Cache{DB: sqlDB, Path: path}
	if err := c.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := c.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := c.importLegacy(filepath.Join(dir, legacyDumpName)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("legacy import: %w", err)
	}
	return c, nil
}

// OpenMemory opens an in-memory text cache for testing.
func OpenMemory() (*Cache, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every pooled connection would get its own empty in-memory database;
	// pin the pool to one so all callers share the same tables.
	sqlDB.SetMaxOpenConns(1)

	c := &Cache{DB: sqlDB, Path: ":memory:"}
	if err := c.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := c.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *Cache) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := c.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}
