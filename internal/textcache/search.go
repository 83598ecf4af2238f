package textcache

import (
	"fmt"
	"log"
	"strings"
	"unicode"
)

// SearchFrameIDs returns the frame IDs matching query, best match first.
// The ranked FTS5 pass orders by relevance with recency as the tiebreak.
// A query FTS5 cannot use — no indexable tokens, or a structured match with
// zero hits — degrades to a case-insensitive substring scan of the primary
// table ordered by recency. Both paths are capped at limit.
func (c *Cache) SearchFrameIDs(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	match := ftsMatchExpr(query)
	if match != "" {
		ids, err := c.searchFTS(match, limit)
		if err != nil {
			// Malformed-query class errors degrade to the substring scan.
			log.Printf("textcache: fts query failed, using substring fallback: %v", err)
		} else if len(ids) > 0 {
			return ids, nil
		}
	}

	return c.searchSubstring(query, limit)
}

func (c *Cache) searchFTS(match string, limit int) ([]string, error) {
	rows, err := c.Query(`
		SELECT f.frame_id
		FROM frame_text_fts f
		JOIN frame_text t ON t.frame_id = f.frame_id
		WHERE frame_text_fts MATCH ?
		ORDER BY bm25(frame_text_fts), t.captured_at DESC
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *Cache) searchSubstring(query string, limit int) ([]string, error) {
	rows, err := c.Query(`
		SELECT frame_id
		FROM frame_text
		WHERE instr(lower(text), lower(?)) > 0
		ORDER BY captured_at DESC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan substring hit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ftsMatchExpr tokenizes a raw user query into a safe FTS5 MATCH expression:
// each alphanumeric run becomes a quoted term, terms are ANDed. Returns ""
// when the query holds nothing indexable (punctuation only), which signals
// the caller to skip straight to the substring fallback.
func ftsMatchExpr(query string) string {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		return ""
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " ")
}
