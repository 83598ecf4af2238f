package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/backscroll/internal/framestore"
)

// maxIngestBytes caps an uploaded capture. Screen captures compress well;
// anything past this is a misbehaving producer.
const maxIngestBytes = 64 << 20

// frameJSON is the wire form of a frame handle. The hash travels as hex:
// a uint64 does not survive JSON number precision.
type frameJSON struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
}

func (s *Server) handleIngestFrame(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode image: %v", err))
		return
	}

	ts := time.Now()
	if raw := r.URL.Query().Get("ts"); raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		} else if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			ts = parsed
		} else {
			writeError(w, http.StatusBadRequest, "ts must be unix millis or RFC3339")
			return
		}
	}

	frame, err := s.buf.AddFrame(img, ts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if frame == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "suppressed"})
		return
	}

	writeJSON(w, http.StatusCreated, frameJSON{
		ID:        frame.ID,
		Timestamp: frame.Timestamp,
		Hash:      fmt.Sprintf("%016x", frame.Hash),
	})
}

func (s *Server) handleListFrames(w http.ResponseWriter, r *http.Request) {
	filtered := r.URL.Query().Get("filtered") == "true" || r.URL.Query().Get("filtered") == "1"

	frames := s.buf.GetFrames()
	if filtered {
		frames = s.buf.GetFilteredFrames()
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n < len(frames) {
			frames = frames[len(frames)-n:] // newest n
		}
	}

	out := make([]frameJSON, len(frames))
	for i, f := range frames {
		out[i] = frameJSON{ID: f.ID, Timestamp: f.Timestamp, Hash: fmt.Sprintf("%016x", f.Hash)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"frames": out})
}

func (s *Server) handleFrameImage(w http.ResponseWriter, r *http.Request) {
	frameID := chi.URLParam(r, "frameID")

	img, err := s.store.LoadFullImage(frameID)
	if err == framestore.ErrNotFound {
		writeError(w, http.StatusNotFound, "frame not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
}

// handleFrameThumbnail never 404s: a missing or unreadable thumbnail is
// served as the "removed" placeholder so a browsing grid keeps its layout.
func (s *Server) handleFrameThumbnail(w http.ResponseWriter, r *http.Request) {
	frameID := chi.URLParam(r, "frameID")

	img := s.store.LoadThumbnail(frameID)
	if img == nil {
		img = placeholderThumb()
	}

	w.Header().Set("Content-Type", "image/jpeg")
	jpeg.Encode(w, img, &jpeg.Options{Quality: 80})
}

func (s *Server) handleFrameText(w http.ResponseWriter, r *http.Request) {
	frameID := chi.URLParam(r, "frameID")

	text, ok, err := s.texts.GetText(frameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"frame_id": frameID,
		"indexed":  ok,
		"text":     text,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ids, err := s.texts.SearchFrameIDs(query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Attach timestamps for frames still in the live history.
	known := make(map[string]time.Time)
	for _, f := range s.buf.GetFrames() {
		known[f.ID] = f.Timestamp
	}

	type hit struct {
		FrameID   string     `json:"frame_id"`
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}
	hits := make([]hit, len(ids))
	for i, id := range ids {
		hits[i] = hit{FrameID: id}
		if ts, ok := known[id]; ok {
			t := ts
			hits[i].Timestamp = &t
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "hits": hits})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	indexed, err := s.texts.IndexedCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"frames":        s.buf.FrameCount(),
		"storage_bytes": s.store.TotalStorageSize(),
		"indexed":       indexed,
		"index_backlog": s.buf.QueuedForIndexing(),
	})
}

// handleSetPolicy applies a pushed policy update. The host computes these
// from power/thermal/idle state; only the fields present in the body change.
func (s *Server) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SaveQuality     *int   `json:"save_quality"`
		Thumbnails      *bool  `json:"thumbnails"`
		MinimumSpacing  *int64 `json:"minimum_spacing_ms"`
		HashThreshold   *int   `json:"hash_threshold"`
		OCREnabled      *bool  `json:"ocr_enabled"`
		OCRInterval     *int64 `json:"ocr_interval_ms"`
		OCRQueueDepth   *int   `json:"ocr_queue_depth"`
		OCRMaxAge       *int64 `json:"ocr_max_age_ms"`
		RecentThreshold *int   `json:"recent_threshold"`
		OlderThreshold  *int   `json:"older_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	p := s.buf.Policy()
	if req.SaveQuality != nil {
		p.Save.Quality = *req.SaveQuality
	}
	if req.Thumbnails != nil {
		p.Save.Thumbnail = *req.Thumbnails
	}
	if req.MinimumSpacing != nil {
		p.MinimumSpacing = time.Duration(*req.MinimumSpacing) * time.Millisecond
	}
	if req.HashThreshold != nil {
		p.HashThreshold = *req.HashThreshold
	}
	if req.OCREnabled != nil {
		p.OCREnabled = *req.OCREnabled
	}
	if req.OCRInterval != nil {
		p.OCRInterval = time.Duration(*req.OCRInterval) * time.Millisecond
	}
	if req.OCRQueueDepth != nil {
		p.OCRQueueDepth = *req.OCRQueueDepth
	}
	if req.OCRMaxAge != nil {
		p.OCRMaxAge = time.Duration(*req.OCRMaxAge) * time.Millisecond
	}
	if req.RecentThreshold != nil {
		p.RecentThreshold = *req.RecentThreshold
	}
	if req.OlderThreshold != nil {
		p.OlderThreshold = *req.OlderThreshold
	}
	s.buf.SetPolicy(p)

	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (s *Server) handlePrunePause(w http.ResponseWriter, r *http.Request) {
	s.buf.SetPrunePaused(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handlePruneResume(w http.ResponseWriter, r *http.Request) {
	s.buf.SetPrunePaused(false)
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (s *Server) handleBlackCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.buf.SetBlackFrameCheck(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "enabled": req.Enabled})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.buf.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// placeholderThumb is the flat "removed" tile shown where a thumbnail
// cannot be produced.
func placeholderThumb() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 160, 90))
	gray := color.RGBA{R: 48, G: 48, B: 52, A: 255}
	for y := 0; y < 90; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, gray)
		}
	}
	return img
}
