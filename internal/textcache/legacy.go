package textcache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// legacyDumpName is the flat frame-id -> text dump older builds wrote
// instead of a database.
const legacyDumpName = "textcache.json"

// legacyTimestamp tags imported rows. The original capture times are not
// recoverable from the flat dump, so imported text sorts behind everything
// captured since.
var legacyTimestamp = time.UnixMilli(0)

// importLegacy performs the one-time migration from the legacy flat dump.
// It runs only when the index is empty; once any row exists the dump is
// ignored for good. A missing dump is the normal case.
func (c *Cache) importLegacy(path string) error {
	n, err := c.IndexedCount()
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy dump: %w", err)
	}

	var dump map[string]string
	if err := json.Unmarshal(data, &dump); err != nil {
		// A corrupt dump must not stop the cache from opening.
		log.Printf("textcache: legacy dump unreadable, skipping import: %v", err)
		return nil
	}

	imported := 0
	for frameID, text := range dump {
		if frameID == "" || text == "" {
			continue
		}
		if err := c.SetText(text, frameID, legacyTimestamp); err != nil {
			log.Printf("textcache: import legacy row %s: %v", frameID, err)
			continue
		}
		imported++
	}
	if imported > 0 {
		log.Printf("textcache: imported %d rows from legacy dump", imported)
	}
	return nil
}
