// Package retention decides which frames of a rolling screen history to
// evict. Frames are thinned by age: recent history is kept dense, older
// history sparse, and anything past the last tier expires outright.
package retention

import (
	"sort"
	"time"
)

// Frame is the minimal view of a capture the pruning decision needs.
type Frame struct {
	ID        string
	Timestamp time.Time
}

// Tier is one age band of the retention policy. Frames whose age is at most
// MaxAge (and greater than the previous tier's MaxAge) are kept only if they
// fall at least Spacing after the previous kept frame in the same tier.
// Spacing 0 keeps everything in the band.
type Tier struct {
	MaxAge  time.Duration
	Spacing time.Duration
}

// DefaultTiers is the shipped density policy: everything for 5 minutes, one
// frame per 5s up to 15 minutes, one per 30s up to a day, nothing older.
var DefaultTiers = []Tier{
	{MaxAge: 5 * time.Minute, Spacing: 0},
	{MaxAge: 15 * time.Minute, Spacing: 5 * time.Second},
	{MaxAge: 24 * time.Hour, Spacing: 30 * time.Second},
}

// FramesToPrune returns the IDs to evict at the given instant. Pure: the
// result is recomputed from scratch on every call, so a list that arrived
// out of order or was pruned inconsistently before self-heals here.
//
// Frames are walked in ascending timestamp order. Each frame maps to the
// first tier whose MaxAge covers its age; no tier means expired. Within a
// tier the frame is kept only if it lands at least the tier's spacing after
// the last frame kept in that tier — a time rule, so irregular capture
// intervals still thin out correctly.
func FramesToPrune(frames []Frame, now time.Time, tiers []Tier) map[string]struct{} {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}

	sorted := make([]Frame, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	prune := make(map[string]struct{})
	lastKept := make([]time.Time, len(tiers))

	for _, f := range sorted {
		age := now.Sub(f.Timestamp)

		tier := -1
		for i, t := range tiers {
			if age <= t.MaxAge {
				tier = i
				break
			}
		}
		if tier < 0 {
			prune[f.ID] = struct{}{}
			continue
		}

		spacing := tiers[tier].Spacing
		if spacing > 0 && !lastKept[tier].IsZero() &&
			f.Timestamp.Sub(lastKept[tier]) < spacing {
			prune[f.ID] = struct{}{}
			continue
		}
		lastKept[tier] = f.Timestamp
	}

	return prune
}
