package framestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// manifestVersion is bumped when the on-disk manifest layout changes.
// loadManifest refuses versions newer than it understands; older versions
// get migrated in place on the next save.
const manifestVersion = 1

const manifestName = "manifest.json"

// FrameRecord is the durable metadata for one retained frame. Exactly one
// record exists per frame; the pixel data lives only in the files it names.
type FrameRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Hash      uint64    `json:"hash"`
	ImageFile string    `json:"image_file"`
	ThumbFile string    `json:"thumb_file,omitempty"`
	ByteSize  int64     `json:"byte_size"`
}

// manifest is the wholesale-rewritten index of all FrameRecords.
type manifest struct {
	Version    int           `json:"version"`
	ModifiedAt time.Time     `json:"modified_at"`
	Frames     []FrameRecord `json:"frames"`
}

// loadManifest reads the manifest document from dir. A missing file is not
// an error: the store starts empty.
func loadManifest(dir string) (*manifest, error) {
	path := filepath.Join(dir, manifestName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &manifest{Version: manifestVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version > manifestVersion {
		return nil, fmt.Errorf("manifest version %d newer than supported %d", m.Version, manifestVersion)
	}
	m.Version = manifestVersion
	return &m, nil
}

// saveManifest rewrites the manifest atomically: the document is written to
// a temp file in the same directory and renamed over the old one, so a crash
// mid-write leaves the previous manifest intact.
func saveManifest(dir string, m *manifest) error {
	m.Version = manifestVersion
	m.ModifiedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(dir, manifestName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
