package timeline

import (
	"math"
	"testing"
)

func scenesFor(t *testing.T, spans ...[2]float64) []Scene {
	t.Helper()
	out := make([]Scene, len(spans))
	for i, sp := range spans {
		out[i] = Scene{ID: string(rune('A' + i)), Start: sp[0], End: sp[1]}
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRemoveScene_ClosesGap(t *testing.T) {
	scenes := scenesFor(t, [2]float64{0, 4}, [2]float64{4, 9}, [2]float64{9, 13})

	removed, out, ok := RemoveScene(scenes, "B")
	if !ok {
		t.Fatal("RemoveScene() ok = false")
	}
	if !approx(removed.Duration(), 5) {
		t.Errorf("removed duration = %.3f, want 5", removed.Duration())
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if !approx(out[0].Start, 0) || !approx(out[0].End, 4) {
		t.Errorf("scene A = [%.3f, %.3f), want [0, 4)", out[0].Start, out[0].End)
	}
	if !approx(out[1].Start, 4) || !approx(out[1].End, 8) {
		t.Errorf("scene C = [%.3f, %.3f), want [4, 8)", out[1].Start, out[1].End)
	}
	if err := CheckContiguous(out, 8); err != nil {
		t.Errorf("CheckContiguous() error = %v", err)
	}
}

func TestRemoveScene_UnknownID(t *testing.T) {
	scenes := scenesFor(t, [2]float64{0, 4})
	if _, _, ok := RemoveScene(scenes, "nope"); ok {
		t.Error("RemoveScene() ok = true for unknown id")
	}
}

func TestRemoveScene_ShiftIsExactDuration(t *testing.T) {
	// Deleting a scene of duration d shifts every subsequent scene by -d.
	scenes := scenesFor(t, [2]float64{0, 2.5}, [2]float64{2.5, 6}, [2]float64{6, 10}, [2]float64{10, 11})

	removed, out, _ := RemoveScene(scenes, "B")
	d := removed.Duration()
	if !approx(out[1].Start, 6-d) || !approx(out[1].End, 10-d) {
		t.Errorf("scene C = [%.3f, %.3f), want [%.3f, %.3f)", out[1].Start, out[1].End, 6-d, 10-d)
	}
	if !approx(out[2].Start, 10-d) || !approx(out[2].End, 11-d) {
		t.Errorf("scene D = [%.3f, %.3f), want [%.3f, %.3f)", out[2].Start, out[2].End, 10-d, 11-d)
	}
}

func TestInsertScene_SplitsContainingScene(t *testing.T) {
	// Insert a 3s clip at t=5 into a 10s single-scene project: the scene is
	// split at the pivot into [0,5) and a new tail, and the original [5,10)
	// region now occupies [8,13).
	scenes := []Scene{{ID: "orig", Start: 0, End: 10, ThumbnailPath: "thumb.jpg"}}
	newScene := Scene{ID: "new", Start: 5, End: 8}

	out := InsertScene(scenes, newScene, "tail")
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if out[0].ID != "orig" || !approx(out[0].Start, 0) || !approx(out[0].End, 5) {
		t.Errorf("head = %s [%.3f, %.3f), want orig [0, 5)", out[0].ID, out[0].Start, out[0].End)
	}
	if out[1].ID != "new" || !approx(out[1].Start, 5) || !approx(out[1].End, 8) {
		t.Errorf("inserted = %s [%.3f, %.3f), want new [5, 8)", out[1].ID, out[1].Start, out[1].End)
	}
	if out[2].ID != "tail" || !approx(out[2].Start, 8) || !approx(out[2].End, 13) {
		t.Errorf("tail = %s [%.3f, %.3f), want tail [8, 13)", out[2].ID, out[2].Start, out[2].End)
	}
	if out[2].ThumbnailPath != "" {
		t.Errorf("tail kept the split scene's thumbnail %q", out[2].ThumbnailPath)
	}
	if err := CheckContiguous(out, 13); err != nil {
		t.Errorf("CheckContiguous() error = %v", err)
	}
}

func TestInsertScene_ShiftsLaterScenes(t *testing.T) {
	scenes := scenesFor(t, [2]float64{0, 5}, [2]float64{5, 10})
	newScene := Scene{ID: "new", Start: 5, End: 8}

	out := InsertScene(scenes, newScene, "unused")
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if !approx(out[1].Start, 5) || !approx(out[1].End, 8) {
		t.Errorf("inserted = [%.3f, %.3f), want [5, 8)", out[1].Start, out[1].End)
	}
	if !approx(out[2].Start, 8) || !approx(out[2].End, 13) {
		t.Errorf("shifted = [%.3f, %.3f), want [8, 13)", out[2].Start, out[2].End)
	}
	if err := CheckContiguous(out, 13); err != nil {
		t.Errorf("CheckContiguous() error = %v", err)
	}
}

func TestInsertScene_AtTimelineEnd(t *testing.T) {
	scenes := scenesFor(t, [2]float64{0, 5})
	out := InsertScene(scenes, Scene{ID: "new", Start: 5, End: 9}, "unused")
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if err := CheckContiguous(out, 9); err != nil {
		t.Errorf("CheckContiguous() error = %v", err)
	}
}

func TestResizeScene_GrowsAndShifts(t *testing.T) {
	// Replace scene B (originally [4,9), 5s) with footage probed at 6s:
	// B becomes [4,10) and everything after shifts by +1.
	scenes := scenesFor(t, [2]float64{0, 4}, [2]float64{4, 9}, [2]float64{9, 12})

	out, delta, ok := ResizeScene(scenes, "B", 6)
	if !ok {
		t.Fatal("ResizeScene() ok = false")
	}
	if !approx(delta, 1) {
		t.Errorf("delta = %.3f, want 1", delta)
	}
	if !approx(out[1].Start, 4) || !approx(out[1].End, 10) {
		t.Errorf("scene B = [%.3f, %.3f), want [4, 10)", out[1].Start, out[1].End)
	}
	if !approx(out[2].Start, 10) || !approx(out[2].End, 13) {
		t.Errorf("scene C = [%.3f, %.3f), want [10, 13)", out[2].Start, out[2].End)
	}
	if err := CheckContiguous(out, 13); err != nil {
		t.Errorf("CheckContiguous() error = %v", err)
	}
}

func TestResizeScene_ZeroDelta(t *testing.T) {
	scenes := scenesFor(t, [2]float64{0, 4}, [2]float64{4, 9})

	out, delta, _ := ResizeScene(scenes, "A", 4)
	if !approx(delta, 0) {
		t.Errorf("delta = %.3f, want 0", delta)
	}
	if !approx(out[1].Start, 4) || !approx(out[1].End, 9) {
		t.Errorf("scene B moved on zero-delta resize: [%.3f, %.3f)", out[1].Start, out[1].End)
	}
}

func TestDeleteThenInsertRestoresDuration(t *testing.T) {
	// Round trip: delete then insert the same duration at the same position
	// restores the original total duration.
	scenes := scenesFor(t, [2]float64{0, 4}, [2]float64{4, 9}, [2]float64{9, 13})

	removed, afterDelete, _ := RemoveScene(scenes, "B")
	reinserted := InsertScene(afterDelete, Scene{ID: "B2", Start: removed.Start, End: removed.End}, "unused")

	if err := CheckContiguous(reinserted, 13); err != nil {
		t.Errorf("CheckContiguous() error = %v", err)
	}
	total := 0.0
	for _, s := range reinserted {
		total += s.Duration()
	}
	if !approx(total, 13) {
		t.Errorf("total duration = %.3f, want 13", total)
	}
}

func TestCloseToDuration_AbsorbsDrift(t *testing.T) {
	scenes := scenesFor(t, [2]float64{0, 4}, [2]float64{4, 8})

	out := CloseToDuration(scenes, 8.04)
	if !approx(out[1].End, 8.04) {
		t.Errorf("last scene end = %.3f, want 8.04", out[1].End)
	}
	if err := CheckContiguous(out, 8.04); err != nil {
		t.Errorf("CheckContiguous() error = %v", err)
	}
}

func TestShiftSegments_Rules(t *testing.T) {
	segments := []TranscriptSegment{
		{ID: "s1", Start: 0, End: 2, Text: "before"},
		{ID: "s2", Start: 3, End: 5, Text: "straddles"},
		{ID: "s3", Start: 6, End: 8, Text: "after", Words: []Word{{Text: "after", Start: 6.2, End: 7.1}}},
	}

	// Edit spans [4, 6) with delta -2 (a 2s cut).
	out := ShiftSegments(segments, 4, 6, -2)

	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (straddler dropped)", len(out))
	}
	if out[0].ID != "s1" || !approx(out[0].Start, 0) || !approx(out[0].End, 2) {
		t.Errorf("segment before pivot changed: %+v", out[0])
	}
	if out[1].ID != "s3" || !approx(out[1].Start, 4) || !approx(out[1].End, 6) {
		t.Errorf("segment after edit = [%.3f, %.3f), want [4, 6)", out[1].Start, out[1].End)
	}
	if !approx(out[1].Words[0].Start, 4.2) || !approx(out[1].Words[0].End, 5.1) {
		t.Errorf("word timing = [%.3f, %.3f), want [4.2, 5.1)", out[1].Words[0].Start, out[1].Words[0].End)
	}
}

func TestShiftSegments_UnchangedTextIsIdentical(t *testing.T) {
	segments := []TranscriptSegment{
		{ID: "s1", Start: 0, End: 2, Text: "  spaced text  "},
	}
	out := ShiftSegments(segments, 5, 7, 3)
	if out[0].Text != segments[0].Text {
		t.Errorf("text changed for untouched segment: %q", out[0].Text)
	}
}

func TestCheckContiguous_DetectsGap(t *testing.T) {
	scenes := scenesFor(t, [2]float64{0, 4}, [2]float64{5, 9})
	if err := CheckContiguous(scenes, 9); err == nil {
		t.Error("CheckContiguous() should detect gap")
	}
}

func TestCheckFramesInScenes(t *testing.T) {
	scenes := []Scene{{ID: "a", Start: 0, End: 4}, {ID: "b", Start: 4, End: 8}}
	frames := []Frame{
		{ID: "f1", Time: 0.5, SceneID: "a"},
		{ID: "f2", Time: 4.0, SceneID: "b"},
		{ID: "f3", Time: 7.5, SceneID: "b"},
	}
	if err := CheckFramesInScenes(frames, scenes); err != nil {
		t.Errorf("CheckFramesInScenes() error = %v", err)
	}

	bad := []Frame{{ID: "f4", Time: 4.0, SceneID: "a"}} // end is exclusive
	if err := CheckFramesInScenes(bad, scenes); err == nil {
		t.Error("CheckFramesInScenes() should reject frame at scene end")
	}
}
