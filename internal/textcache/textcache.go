package textcache

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// idChunkSize bounds IN-clause length for bulk ID queries.
const idChunkSize = 500

// SetText upserts the recognized text for a frame. Both the primary row and
// the full-text entry are replaced wholesale; there are no incremental
// posting updates to drift out of sync.
func (c *Cache) SetText(text, frameID string, capturedAt time.Time) error {
	tx, err := c.Begin()
	if err != nil {
		return fmt.Errorf("begin set text: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM frame_text WHERE frame_id = ?", frameID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete old text: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM frame_text_fts WHERE frame_id = ?", frameID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete old fts row: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO frame_text (frame_id, captured_at, text) VALUES (?, ?, ?)",
		frameID, capturedAt.UnixMilli(), text,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert text: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO frame_text_fts (frame_id, text) VALUES (?, ?)",
		frameID, text,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert fts row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set text: %w", err)
	}
	return nil
}

// GetText returns the cached text for a frame, or "", false when the frame
// has not been indexed.
func (c *Cache) GetText(frameID string) (string, bool, error) {
	var text string
	err := c.QueryRow("SELECT text FROM frame_text WHERE frame_id = ?", frameID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get text: %w", err)
	}
	return text, true, nil
}

// HasCachedText reports whether a frame has been indexed.
func (c *Cache) HasCachedText(frameID string) (bool, error) {
	_, ok, err := c.GetText(frameID)
	return ok, err
}

// CachedFrameIDs returns the subset of ids that are already indexed.
// Queries are chunked to bound statement size for large histories.
func (c *Cache) CachedFrameIDs(ids []string) (map[string]struct{}, error) {
	cached := make(map[string]struct{})
	for start := 0; start < len(ids); start += idChunkSize {
		end := start + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := c.Query(
			"SELECT frame_id FROM frame_text WHERE frame_id IN ("+placeholders+")", args...,
		)
		if err != nil {
			return nil, fmt.Errorf("cached frame ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan frame id: %w", err)
			}
			cached[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("cached frame ids rows: %w", err)
		}
		rows.Close()
	}
	return cached, nil
}

// Prune deletes every row whose frame ID is not in keeping. Both tables are
// cleaned in one transaction.
func (c *Cache) Prune(keeping map[string]struct{}) error {
	rows, err := c.Query("SELECT frame_id FROM frame_text")
	if err != nil {
		return fmt.Errorf("list frame ids: %w", err)
	}
	var victims []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan frame id: %w", err)
		}
		if _, keep := keeping[id]; !keep {
			victims = append(victims, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("list frame ids rows: %w", err)
	}
	rows.Close()

	if len(victims) == 0 {
		return nil
	}

	tx, err := c.Begin()
	if err != nil {
		return fmt.Errorf("begin prune: %w", err)
	}
	for start := 0; start < len(victims); start += idChunkSize {
		end := start + idChunkSize
		if end > len(victims) {
			end = len(victims)
		}
		chunk := victims[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		if _, err := tx.Exec("DELETE FROM frame_text WHERE frame_id IN ("+placeholders+")", args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("prune primary rows: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM frame_text_fts WHERE frame_id IN ("+placeholders+")", args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("prune fts rows: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prune: %w", err)
	}
	return nil
}

// Clear removes all rows from both tables.
func (c *Cache) Clear() error {
	tx, err := c.Begin()
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM frame_text"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear primary: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM frame_text_fts"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear fts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// IndexedCount returns how many frames currently have cached text.
func (c *Cache) IndexedCount() (int, error) {
	var n int
	err := c.QueryRow("SELECT COUNT(*) FROM frame_text").Scan(&n)
	return n, err
}
