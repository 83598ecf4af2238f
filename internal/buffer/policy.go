package buffer

import (
	"time"

	"github.com/lazypower/backscroll/internal/framestore"
)

// Policy is the full set of tunables the orchestrator runs under. Values
// are immutable once applied; the caller swaps whole policies in response
// to power/thermal/idle signals via SetPolicy. The core applies them but
// never senses power state itself.
type Policy struct {
	// Save controls on-disk encoding.
	Save framestore.SaveOptions

	// Duplicate suppression: a frame arriving within MinimumSpacing of the
	// last stored frame is persisted only when its hash differs from the
	// last stored hash by more than HashThreshold bits. Once the spacing
	// has elapsed the frame is always persisted.
	MinimumSpacing time.Duration
	HashThreshold  int

	// Display re-filter. Independent from the persistence thresholds:
	// frames younger than AlwaysKeepWindow are always shown, frames inside
	// RecentWindow use the looser RecentThreshold so fast text changes stay
	// visible, older frames use the stricter OlderThreshold.
	AlwaysKeepWindow time.Duration
	RecentWindow     time.Duration
	RecentThreshold  int
	OlderThreshold   int

	// Background text indexing. A queue depth of 0 disables indexing and
	// drains any queued work.
	OCREnabled    bool
	OCRInterval   time.Duration
	OCRQueueDepth int
	OCRMaxAge     time.Duration
}

// DefaultPolicy is the full-power profile.
func DefaultPolicy() Policy {
	return Policy{
		Save:             framestore.DefaultSaveOptions,
		MinimumSpacing:   60 * time.Second,
		HashThreshold:    4,
		AlwaysKeepWindow: 5 * time.Second,
		RecentWindow:     60 * time.Second,
		RecentThreshold:  2,
		OlderThreshold:   6,
		OCREnabled:       true,
		OCRInterval:      250 * time.Millisecond,
		OCRQueueDepth:    64,
		OCRMaxAge:        15 * time.Minute,
	}
}
