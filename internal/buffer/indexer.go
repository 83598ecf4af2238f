package buffer

import (
	"context"
	"log"
	"time"
)

// The indexing worker is a single goroutine that drains the queue newest
// first and exits when the queue runs dry. It is restarted by the producer
// side on the next enqueue rather than spinning on an empty queue. A
// generation counter cancels it: Clear and policy changes bump the
// generation, and a worker whose generation is stale exits at its next
// loop check without touching the queue.

// enqueueIndexLocked queues a frame for text extraction and starts the
// worker if none is running. Overflow drops the oldest-enqueued entries
// first. Callers hold mu.
func (b *Buffer) enqueueIndexLocked(f Frame) {
	p := b.policy
	if b.engine == nil || !p.OCREnabled || p.OCRQueueDepth <= 0 {
		return
	}

	b.queue = append(b.queue, f)
	if over := len(b.queue) - p.OCRQueueDepth; over > 0 {
		b.queue = append(b.queue[:0], b.queue[over:]...)
	}

	if !b.workerRunning {
		b.workerRunning = true
		go b.indexLoop(b.workerGen)
	}
}

// applyIndexPolicyLocked reconciles the queue and worker with a freshly
// applied policy. Disabled indexing (or depth 0) cancels the worker and
// drains the queue; a shrunken depth drops the oldest entries.
func (b *Buffer) applyIndexPolicyLocked() {
	p := b.policy
	if !p.OCREnabled || p.OCRQueueDepth <= 0 {
		b.workerGen++
		b.queue = nil
		return
	}
	if over := len(b.queue) - p.OCRQueueDepth; over > 0 {
		b.queue = append(b.queue[:0], b.queue[over:]...)
	}
}

// indexLoop is the worker body. The empty-queue check and the
// workerRunning reset happen in one critical section, so an enqueue racing
// with worker exit either lands before the check (and gets processed) or
// observes workerRunning == false and starts a fresh worker. No wakeup is
// lost either way.
func (b *Buffer) indexLoop(gen int) {
	ctx := context.Background()

	for {
		b.mu.Lock()
		if gen != b.workerGen || !b.policy.OCREnabled || b.policy.OCRQueueDepth <= 0 || len(b.queue) == 0 {
			b.workerRunning = false
			b.mu.Unlock()
			return
		}
		f := b.queue[len(b.queue)-1]
		b.queue = b.queue[:len(b.queue)-1]
		maxAge := b.policy.OCRMaxAge
		delay := b.policy.OCRInterval
		b.mu.Unlock()

		b.indexFrame(ctx, f, maxAge)

		if delay > 0 {
			time.Sleep(delay)
		}
	}
}

// indexFrame runs one frame through the OCR collaborator. A failed attempt
// is dropped, not retried: the frame stays unindexed and search degrades
// gracefully.
func (b *Buffer) indexFrame(ctx context.Context, f Frame, maxAge time.Duration) {
	if maxAge > 0 && time.Since(f.Timestamp) > maxAge {
		return
	}
	if cached, err := b.texts.HasCachedText(f.ID); err != nil {
		log.Printf("buffer: index check %s: %v", f.ID, err)
		return
	} else if cached {
		return
	}

	img, err := b.store.LoadFullImage(f.ID)
	if err != nil {
		// Pruned between enqueue and processing, or unreadable; skip.
		return
	}

	start := time.Now()
	text, err := b.engine.ExtractText(ctx, img)
	if err != nil {
		log.Printf("buffer: ocr %s failed, frame stays unindexed: %v", f.ID, err)
		return
	}

	if err := b.texts.SetText(text, f.ID, f.Timestamp); err != nil {
		log.Printf("buffer: store text %s: %v", f.ID, err)
		return
	}

	log.Printf("buffer: indexed %s in %v (lag %v)", f.ID, time.Since(start).Round(time.Millisecond), time.Since(f.Timestamp).Round(time.Millisecond))
}

// QueuedForIndexing returns the current indexing backlog size.
func (b *Buffer) QueuedForIndexing() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
