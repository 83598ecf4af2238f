// Package framestore persists captured frames to disk: one full JPEG and one
// thumbnail JPEG per frame under images/, indexed by a single versioned
// manifest document. It is the only package that touches image files.
//
// Manifest writes are batched. Mutations mark the manifest dirty and start a
// deferred save; crossing a pending-mutation threshold saves immediately.
// Worst-case loss after a crash is bounded to the save delay or the
// threshold, whichever trips first. FlushManifest forces a save and is
// called on shutdown.
package framestore

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	imagesDirName = "images"

	// Manifest batching bounds.
	saveDelay      = 5 * time.Second
	flushThreshold = 25
)

// SaveOptions control how a frame is encoded on disk. Values are swapped
// wholesale by the orchestrator in response to power/thermal signals.
type SaveOptions struct {
	Quality        int  // JPEG quality, 1-100
	Thumbnail      bool // also write a downscaled thumbnail file
	ThumbnailWidth int
}

// DefaultSaveOptions is the full-power encoding profile.
var DefaultSaveOptions = SaveOptions{
	Quality:        72,
	Thumbnail:      true,
	ThumbnailWidth: 320,
}

// ErrNotFound is returned when a frame ID has no record or backing file.
var ErrNotFound = fmt.Errorf("frame not found")

// Store is the durable frame store. All methods are safe for concurrent
// use; the live capture path and the background indexer both call in.
type Store struct {
	root      string
	imagesDir string

	mu        sync.Mutex
	records   map[string]FrameRecord
	dirty     bool
	pending   int
	saveTimer *time.Timer
	closed    bool
}

// Open opens (or creates) the frame store rooted at dir and loads the
// manifest wholesale.
func Open(dir string) (*Store, error) {
	imagesDir := filepath.Join(dir, imagesDirName)
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}

	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}

	records := make(map[string]FrameRecord, len(m.Frames))
	for _, r := range m.Frames {
		records[r.ID] = r
	}

	return &Store{
		root:      dir,
		imagesDir: imagesDir,
		records:   records,
	}, nil
}

// SaveFrame encodes img (plus an optional thumbnail) to disk and appends a
// FrameRecord to the manifest. The record is added only after every file
// write succeeded, so a failure never leaves a partial manifest entry.
func (s *Store) SaveFrame(img image.Image, ts time.Time, hash uint64, opts SaveOptions) (FrameRecord, error) {
	id := uuid.NewString()

	full, err := encodeJPEG(img, opts.Quality)
	if err != nil {
		return FrameRecord{}, fmt.Errorf("encode frame: %w", err)
	}

	var thumb []byte
	if opts.Thumbnail {
		thumb, err = encodeJPEG(scaleToWidth(img, opts.ThumbnailWidth), opts.Quality)
		if err != nil {
			return FrameRecord{}, fmt.Errorf("encode thumbnail: %w", err)
		}
	}

	rec := FrameRecord{
		ID:        id,
		Timestamp: ts,
		Hash:      hash,
		ImageFile: id + ".jpg",
		ByteSize:  int64(len(full) + len(thumb)),
	}

	if err := os.WriteFile(filepath.Join(s.imagesDir, rec.ImageFile), full, 0644); err != nil {
		return FrameRecord{}, fmt.Errorf("write frame file: %w", err)
	}
	if thumb != nil {
		rec.ThumbFile = id + "_thumb.jpg"
		if err := os.WriteFile(filepath.Join(s.imagesDir, rec.ThumbFile), thumb, 0644); err != nil {
			// Keep the store consistent: no record may point at a missing file.
			os.Remove(filepath.Join(s.imagesDir, rec.ImageFile))
			return FrameRecord{}, fmt.Errorf("write thumbnail file: %w", err)
		}
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.markDirtyLocked()
	s.mu.Unlock()

	return rec, nil
}

// LoadFullImage decodes the full image for id. Returns ErrNotFound when the
// record or its file is missing.
func (s *Store) LoadFullImage(id string) (image.Image, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.imagesDir, rec.ImageFile))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open frame file: %w", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", id, err)
	}
	return img, nil
}

// LoadThumbnail returns the thumbnail for id, preferring the cached file and
// regenerating from the full image when it is missing. A regenerated
// thumbnail is persisted opportunistically for the next call. Never fails
// the caller: any error yields nil.
func (s *Store) LoadThumbnail(id string) image.Image {
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if rec.ThumbFile != "" {
		if img := decodeFile(filepath.Join(s.imagesDir, rec.ThumbFile)); img != nil {
			return img
		}
	}

	// Regenerate from the full image.
	full, err := s.LoadFullImage(id)
	if err != nil {
		return nil
	}
	thumbImg := scaleToWidth(full, DefaultSaveOptions.ThumbnailWidth)

	data, err := encodeJPEG(thumbImg, DefaultSaveOptions.Quality)
	if err != nil {
		return thumbImg
	}
	thumbFile := id + "_thumb.jpg"
	if err := os.WriteFile(filepath.Join(s.imagesDir, thumbFile), data, 0644); err != nil {
		log.Printf("framestore: persist regenerated thumbnail %s: %v", id, err)
		return thumbImg
	}

	s.mu.Lock()
	if cur, ok := s.records[id]; ok {
		cur.ThumbFile = thumbFile
		cur.ByteSize += int64(len(data))
		s.records[id] = cur
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	return thumbImg
}

// PruneFrames deletes the files and manifest records for ids. File deletion
// is best-effort: a missing file is not an error.
func (s *Store) PruneFrames(ids []string) {
	s.mu.Lock()
	var victims []FrameRecord
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			victims = append(victims, rec)
			delete(s.records, id)
		}
	}
	if len(victims) > 0 {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	for _, rec := range victims {
		removeQuiet(filepath.Join(s.imagesDir, rec.ImageFile))
		if rec.ThumbFile != "" {
			removeQuiet(filepath.Join(s.imagesDir, rec.ThumbFile))
		}
	}
}

// CleanupOrphans reconciles the manifest with the images directory: records
// whose full-image file vanished are dropped, files no record references are
// deleted. Startup-only. Inconsistencies are resolved, never fatal.
func (s *Store) CleanupOrphans() (droppedRecords, deletedFiles int) {
	s.mu.Lock()
	referenced := make(map[string]bool, len(s.records)*2)
	for id, rec := range s.records {
		if _, err := os.Stat(filepath.Join(s.imagesDir, rec.ImageFile)); os.IsNotExist(err) {
			delete(s.records, id)
			droppedRecords++
			continue
		}
		referenced[rec.ImageFile] = true
		if rec.ThumbFile != "" {
			referenced[rec.ThumbFile] = true
		}
	}
	if droppedRecords > 0 {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.imagesDir)
	if err != nil {
		log.Printf("framestore: scan images dir: %v", err)
		return droppedRecords, 0
	}
	for _, e := range entries {
		if e.IsDir() || referenced[e.Name()] {
			continue
		}
		removeQuiet(filepath.Join(s.imagesDir, e.Name()))
		deletedFiles++
	}

	if droppedRecords > 0 || deletedFiles > 0 {
		log.Printf("framestore: startup repair dropped %d records, deleted %d files", droppedRecords, deletedFiles)
	}
	return droppedRecords, deletedFiles
}

// Records returns all FrameRecords sorted by timestamp ascending.
func (s *Store) Records() []FrameRecord {
	s.mu.Lock()
	out := make([]FrameRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// TotalStorageSize sums the recorded byte sizes. No disk scan.
func (s *Store) TotalStorageSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, r := range s.records {
		total += r.ByteSize
	}
	return total
}

// FlushManifest forces an immediate manifest save if anything is pending.
func (s *Store) FlushManifest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Clear deletes every frame file and resets the manifest.
func (s *Store) Clear() error {
	s.mu.Lock()
	records := s.records
	s.records = make(map[string]FrameRecord)
	s.dirty = true
	s.pending = 0
	err := s.saveLocked()
	s.mu.Unlock()

	for _, rec := range records {
		removeQuiet(filepath.Join(s.imagesDir, rec.ImageFile))
		if rec.ThumbFile != "" {
			removeQuiet(filepath.Join(s.imagesDir, rec.ThumbFile))
		}
	}
	return err
}

// Close flushes the manifest and cancels the save timer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	return s.saveLocked()
}

// markDirtyLocked records a pending mutation and schedules the deferred
// save, or saves immediately once enough mutations pile up. Callers hold mu.
func (s *Store) markDirtyLocked() {
	s.dirty = true
	s.pending++

	if s.pending >= flushThreshold {
		if err := s.saveLocked(); err != nil {
			log.Printf("framestore: threshold save: %v", err)
		}
		return
	}

	if s.saveTimer == nil && !s.closed {
		s.saveTimer = time.AfterFunc(saveDelay, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.saveTimer = nil
			if err := s.saveLocked(); err != nil {
				log.Printf("framestore: deferred save: %v", err)
			}
		})
	}
}

// saveLocked rewrites the manifest if dirty. Callers hold mu.
func (s *Store) saveLocked() error {
	if !s.dirty {
		return nil
	}

	m := &manifest{Frames: make([]FrameRecord, 0, len(s.records))}
	for _, r := range s.records {
		m.Frames = append(m.Frames, r)
	}
	sort.Slice(m.Frames, func(i, j int) bool {
		return m.Frames[i].Timestamp.Before(m.Frames[j].Timestamp)
	})

	if err := saveManifest(s.root, m); err != nil {
		return err
	}
	s.dirty = false
	s.pending = 0
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	return nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultSaveOptions.Quality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scaleToWidth downscales img to the given width preserving aspect ratio.
// Images already at or below the width are returned as-is.
func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func decodeFile(path string) image.Image {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil
	}
	return img
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("framestore: remove %s: %v", path, err)
	}
}
