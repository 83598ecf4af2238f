package retention

import (
	"fmt"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func frameAt(id string, offset time.Duration) Frame {
	return Frame{ID: id, Timestamp: t0.Add(offset)}
}

func TestKeepAllWithinFirstTier(t *testing.T) {
	var frames []Frame
	for i := 0; i < 100; i++ {
		frames = append(frames, frameAt(fmt.Sprintf("f%d", i), time.Duration(i)*time.Second))
	}
	now := t0.Add(3 * time.Minute)

	prune := FramesToPrune(frames, now, DefaultTiers)
	if len(prune) != 0 {
		t.Errorf("pruned %d frames inside keep-all window, want 0", len(prune))
	}
}

func TestExpiredBeyondLastTier(t *testing.T) {
	frames := []Frame{
		frameAt("old", 0),
		frameAt("fresh", 25 * time.Hour),
	}
	now := t0.Add(25*time.Hour + time.Minute)

	prune := FramesToPrune(frames, now, DefaultTiers)
	if _, ok := prune["old"]; !ok {
		t.Error("frame older than the last tier should be pruned")
	}
	if _, ok := prune["fresh"]; ok {
		t.Error("fresh frame should survive")
	}
}

func TestTierSpacingIrregularArrivals(t *testing.T) {
	// Irregular gaps inside the 5s-spacing tier: 0s, 1s, 4s, 6s, 7s, 13s.
	offsets := []time.Duration{0, time.Second, 4 * time.Second, 6 * time.Second, 7 * time.Second, 13 * time.Second}
	var frames []Frame
	for i, off := range offsets {
		frames = append(frames, frameAt(fmt.Sprintf("f%d", i), off))
	}
	// 10 minutes later: every frame is in the 5m-15m tier (spacing 5s).
	now := t0.Add(10 * time.Minute)

	prune := FramesToPrune(frames, now, DefaultTiers)

	// Walk: keep f0 (0s), drop f1 (1s), drop f2 (4s), keep f3 (6s),
	// drop f4 (7s), keep f5 (13s).
	wantKept := map[string]bool{"f0": true, "f3": true, "f5": true}
	for _, f := range frames {
		_, pruned := prune[f.ID]
		if wantKept[f.ID] == pruned {
			t.Errorf("%s: pruned=%v, want kept=%v", f.ID, pruned, wantKept[f.ID])
		}
	}

	// No two kept frames closer than the tier spacing.
	var lastKept time.Time
	for _, f := range frames {
		if _, pruned := prune[f.ID]; pruned {
			continue
		}
		if !lastKept.IsZero() && f.Timestamp.Sub(lastKept) < 5*time.Second {
			t.Errorf("kept frames %v apart, want >= 5s", f.Timestamp.Sub(lastKept))
		}
		lastKept = f.Timestamp
	}
}

func TestPruneMonotonicOverTime(t *testing.T) {
	var frames []Frame
	for i := 0; i < 200; i++ {
		frames = append(frames, frameAt(fmt.Sprintf("f%d", i), time.Duration(i)*7*time.Second))
	}

	t1 := t0.Add(30 * time.Minute)
	t2 := t0.Add(6 * time.Hour)

	pruneEarly := FramesToPrune(frames, t1, DefaultTiers)
	pruneLate := FramesToPrune(frames, t2, DefaultTiers)

	for id := range pruneEarly {
		if _, ok := pruneLate[id]; !ok {
			t.Errorf("%s pruned at t1 but kept at t2; prune set must grow over time", id)
		}
	}
}

func TestSpacingMathAgainstTierTable(t *testing.T) {
	// 50 frames 2s apart, evaluated 20 minutes after the first: ages span
	// ~18.4m to 20m, all inside the 15m-24h tier (spacing 30s). Keeping one
	// frame per 30s over a 98s span keeps offsets 0s, 30s, 60s, 90s.
	var frames []Frame
	for i := 0; i < 50; i++ {
		frames = append(frames, frameAt(fmt.Sprintf("f%d", i), time.Duration(i)*2*time.Second))
	}
	now := t0.Add(20 * time.Minute)

	prune := FramesToPrune(frames, now, DefaultTiers)

	survivors := len(frames) - len(prune)
	if survivors != 4 {
		t.Errorf("survivors = %d, want 4 (spacing math over the tier table)", survivors)
	}
	for _, id := range []string{"f0", "f15", "f30", "f45"} {
		if _, pruned := prune[id]; pruned {
			t.Errorf("%s should survive 30s-spacing thinning", id)
		}
	}
}

func TestOutOfOrderInputSelfHeals(t *testing.T) {
	// Same frames in reverse arrival order must produce the same decision.
	var asc, desc []Frame
	for i := 0; i < 40; i++ {
		f := frameAt(fmt.Sprintf("f%d", i), time.Duration(i)*3*time.Second)
		asc = append(asc, f)
	}
	for i := len(asc) - 1; i >= 0; i-- {
		desc = append(desc, asc[i])
	}
	now := t0.Add(12 * time.Minute)

	a := FramesToPrune(asc, now, DefaultTiers)
	b := FramesToPrune(desc, now, DefaultTiers)
	if len(a) != len(b) {
		t.Fatalf("prune sets differ by arrival order: %d vs %d", len(a), len(b))
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			t.Errorf("%s pruned for ascending input only", id)
		}
	}
}
