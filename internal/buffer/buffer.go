// Package buffer orchestrates the rolling screen history: it owns the
// in-memory ordered frame index, suppresses near-duplicate captures,
// persists accepted frames, thins old history under the retention policy,
// and feeds the background text-indexing worker.
//
// All mutable state is serialized through one mutex. CPU-heavy work —
// hashing, JPEG encode/decode, OCR — runs outside it, on the caller's
// goroutine or the indexing worker, so ingestion and reads stay responsive.
package buffer

import (
	"image"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/lazypower/backscroll/internal/framestore"
	"github.com/lazypower/backscroll/internal/ocr"
	"github.com/lazypower/backscroll/internal/phash"
	"github.com/lazypower/backscroll/internal/retention"
	"github.com/lazypower/backscroll/internal/textcache"
)

// pruneInterval throttles how often AddFrame may kick off a prune pass.
const pruneInterval = 30 * time.Second

// Frame is the lightweight in-memory handle for one retained capture.
// Pixel data lives only on disk. Immutable after creation.
type Frame struct {
	ID        string
	Timestamp time.Time
	Hash      uint64
}

// Buffer is the orchestrator. A single capture producer calls AddFrame;
// readers call GetFrames/GetFilteredFrames concurrently; one background
// worker indexes text. Safe for concurrent use.
type Buffer struct {
	store  *framestore.Store
	texts  *textcache.Cache
	engine ocr.Engine
	tiers  []retention.Tier

	mu          sync.Mutex
	frames      []Frame // ascending by timestamp
	lastStored  *Frame
	policy      Policy
	blackCheck  bool
	prunePaused bool
	lastPrune   time.Time

	// Indexing queue, oldest first; the worker drains from the tail
	// (newest first). See indexer.go.
	queue         []Frame
	workerRunning bool
	workerGen     int
}

// New builds the orchestrator over its stores: loads all frame records
// sorted by timestamp, runs the store's startup repair, and prunes the text
// cache down to the IDs that survived.
func New(store *framestore.Store, texts *textcache.Cache, engine ocr.Engine, policy Policy) (*Buffer, error) {
	store.CleanupOrphans()

	records := store.Records()
	frames := make([]Frame, 0, len(records))
	valid := make(map[string]struct{}, len(records))
	for _, r := range records {
		frames = append(frames, Frame{ID: r.ID, Timestamp: r.Timestamp, Hash: r.Hash})
		valid[r.ID] = struct{}{}
	}

	if err := texts.Prune(valid); err != nil {
		// Index rows for vanished frames degrade search a little; they do
		// not block startup.
		log.Printf("buffer: text cache startup prune: %v", err)
	}

	b := &Buffer{
		store:     store,
		texts:     texts,
		engine:    engine,
		tiers:     retention.DefaultTiers,
		frames:    frames,
		policy:    policy,
		lastPrune: time.Now(),
	}
	if n := len(frames); n > 0 {
		b.lastStored = &frames[n-1]
	}
	return b, nil
}

// AddFrame runs one capture through the ingest path: optional black-frame
// short-circuit, duplicate suppression, persistence, in-memory insertion,
// index enqueue, and a throttled prune pass. Returns the stored Frame, or
// nil when the capture was suppressed.
//
// Hashing and encoding happen on the caller's goroutine, outside the lock.
func (b *Buffer) AddFrame(img image.Image, ts time.Time) (*Frame, error) {
	b.mu.Lock()
	blackCheck := b.blackCheck
	b.mu.Unlock()

	if blackCheck && phash.IsBlack(img) {
		return nil, nil
	}

	return b.addHashed(img, phash.Compute(img), ts)
}

// addHashed is the ingest path after hashing. Split out so the duplicate
// suppression and insertion logic can be exercised with known hash values.
func (b *Buffer) addHashed(img image.Image, hash uint64, ts time.Time) (*Frame, error) {
	b.mu.Lock()
	accept := b.shouldStoreLocked(hash, ts)
	opts := b.policy.Save
	b.mu.Unlock()
	if !accept {
		return nil, nil
	}

	rec, err := b.store.SaveFrame(img, ts, hash, opts)
	if err != nil {
		// This frame is lost; nothing else was touched.
		return nil, err
	}

	frame := Frame{ID: rec.ID, Timestamp: rec.Timestamp, Hash: rec.Hash}

	b.mu.Lock()
	b.insertLocked(frame)
	b.lastStored = &frame
	b.enqueueIndexLocked(frame)
	runPrune := b.shouldPruneLocked(ts)
	b.mu.Unlock()

	if runPrune {
		b.prunePass(time.Now())
	}
	return &frame, nil
}

// shouldStoreLocked applies duplicate suppression: always store when no
// prior frame is known or the minimum spacing has elapsed; otherwise only a
// hash that moved past the threshold is worth keeping.
func (b *Buffer) shouldStoreLocked(hash uint64, ts time.Time) bool {
	if b.lastStored == nil {
		return true
	}
	if ts.Sub(b.lastStored.Timestamp) >= b.policy.MinimumSpacing {
		return true
	}
	return phash.Distance(hash, b.lastStored.Hash) > b.policy.HashThreshold
}

// insertLocked places f into the sorted list by binary search. Capture
// timestamps can arrive out of order when hashing overlaps; insertion
// position, not arrival order, decides placement.
func (b *Buffer) insertLocked(f Frame) {
	i := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].Timestamp.After(f.Timestamp)
	})
	b.frames = append(b.frames, Frame{})
	copy(b.frames[i+1:], b.frames[i:])
	b.frames[i] = f
}

// GetFrames returns a snapshot of the full in-memory history, ascending by
// timestamp.
func (b *Buffer) GetFrames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// GetFilteredFrames re-filters the history for display, independent of what
// was physically persisted. Frames younger than the always-keep window are
// always shown; recent frames pass at the looser threshold, older frames at
// the stricter one.
func (b *Buffer) GetFilteredFrames() []Frame {
	now := time.Now()

	b.mu.Lock()
	frames := make([]Frame, len(b.frames))
	copy(frames, b.frames)
	p := b.policy
	b.mu.Unlock()

	var out []Frame
	var lastShown *Frame
	for i := range frames {
		f := frames[i]
		age := now.Sub(f.Timestamp)

		show := false
		switch {
		case age <= p.AlwaysKeepWindow:
			show = true
		case lastShown == nil:
			show = true
		case age <= p.RecentWindow:
			show = phash.Distance(f.Hash, lastShown.Hash) > p.RecentThreshold
		default:
			show = phash.Distance(f.Hash, lastShown.Hash) > p.OlderThreshold
		}

		if show {
			out = append(out, f)
			lastShown = &frames[i]
		}
	}
	return out
}

// FrameCount returns the number of frames currently held.
func (b *Buffer) FrameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// SetBlackFrameCheck toggles the screen-off short-circuit. The caller
// enables it for windows where black captures are expected (display asleep,
// session locked) so true screen-off frames never enter the history.
func (b *Buffer) SetBlackFrameCheck(enabled bool) {
	b.mu.Lock()
	b.blackCheck = enabled
	b.mu.Unlock()
}

// SetPrunePaused pauses or resumes retention pruning. Paused while a
// browsing UI is open so a frame the user is looking at is never removed
// out from under them.
func (b *Buffer) SetPrunePaused(paused bool) {
	b.mu.Lock()
	b.prunePaused = paused
	b.mu.Unlock()
}

// SetPolicy swaps the active policy. Disabling indexing (or setting queue
// depth to 0) cancels the worker and drains the queue; shrinking the depth
// drops the oldest queued entries.
func (b *Buffer) SetPolicy(p Policy) {
	b.mu.Lock()
	b.policy = p
	b.applyIndexPolicyLocked()
	b.mu.Unlock()
}

// Policy returns the active policy.
func (b *Buffer) Policy() Policy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy
}

func (b *Buffer) shouldPruneLocked(now time.Time) bool {
	if b.prunePaused || now.Sub(b.lastPrune) < pruneInterval {
		return false
	}
	b.lastPrune = now
	return true
}

// PruneNow runs a retention pass immediately, ignoring the throttle (but
// not the pause flag).
func (b *Buffer) PruneNow() int {
	b.mu.Lock()
	paused := b.prunePaused
	b.lastPrune = time.Now()
	b.mu.Unlock()
	if paused {
		return 0
	}
	return b.prunePass(time.Now())
}

// prunePass delegates the decision to the retention policy, then removes
// the victims from disk, the in-memory list, the indexing queue, and the
// text cache. Returns the number of frames pruned.
func (b *Buffer) prunePass(now time.Time) int {
	b.mu.Lock()
	candidates := make([]retention.Frame, len(b.frames))
	for i, f := range b.frames {
		candidates[i] = retention.Frame{ID: f.ID, Timestamp: f.Timestamp}
	}
	tiers := b.tiers
	b.mu.Unlock()

	doomed := retention.FramesToPrune(candidates, now, tiers)
	if len(doomed) == 0 {
		return 0
	}

	b.mu.Lock()
	kept := b.frames[:0]
	keeping := make(map[string]struct{})
	var victims []string
	for _, f := range b.frames {
		if _, gone := doomed[f.ID]; gone {
			victims = append(victims, f.ID)
			continue
		}
		kept = append(kept, f)
		keeping[f.ID] = struct{}{}
	}
	b.frames = kept

	queued := b.queue[:0]
	for _, f := range b.queue {
		if _, gone := doomed[f.ID]; !gone {
			queued = append(queued, f)
		}
	}
	b.queue = queued
	b.mu.Unlock()

	b.store.PruneFrames(victims)
	if err := b.texts.Prune(keeping); err != nil {
		log.Printf("buffer: prune text cache: %v", err)
	}

	log.Printf("buffer: pruned %d frames, %d kept", len(victims), len(keeping))
	return len(victims)
}

// Clear cancels indexing and empties every store plus the in-memory state.
func (b *Buffer) Clear() error {
	b.mu.Lock()
	b.workerGen++ // cancels any running worker
	b.queue = nil
	b.frames = nil
	b.lastStored = nil
	b.mu.Unlock()

	if err := b.store.Clear(); err != nil {
		return err
	}
	return b.texts.Clear()
}

// Close flushes the frame manifest. The indexing worker, if running, exits
// on its own once its generation is cancelled.
func (b *Buffer) Close() error {
	b.mu.Lock()
	b.workerGen++
	b.queue = nil
	b.mu.Unlock()
	return b.store.FlushManifest()
}
