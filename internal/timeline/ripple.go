package timeline

import (
	"sort"
	"strings"
)

// The ripple rules: entities wholly before the edit's pivot keep their
// timestamps, entities at or after the edit's original end shift by the net
// duration delta, and the affected region itself is rewritten. The pivot is
// always the original start of the edited interval.

// RemoveScene drops the scene with the given id and closes the gap by
// shifting every subsequent scene backward by the removed duration.
// The removed scene is returned; ok is false when the id is unknown.
func RemoveScene(scenes []Scene, sceneID string) (removed Scene, out []Scene, ok bool) {
	idx := -1
	for i, s := range scenes {
		if s.ID == sceneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Scene{}, nil, false
	}

	removed = scenes[idx]
	d := removed.Duration()
	out = make([]Scene, 0, len(scenes)-1)
	for i, s := range scenes {
		if i == idx {
			continue
		}
		if i > idx {
			s.Start -= d
			s.End -= d
		}
		out = append(out, s)
	}
	return removed, out, true
}

// InsertScene splices newScene in at its start time. Scenes wholly after the
// insert point shift forward by the new scene's duration. When the insert
// point falls strictly inside an existing scene, that scene is split at the
// pivot: it keeps its id for the head and the shifted tail becomes a new
// scene under tailID.
func InsertScene(scenes []Scene, newScene Scene, tailID string) []Scene {
	d := newScene.Duration()
	t := newScene.Start
	out := make([]Scene, 0, len(scenes)+2)
	for _, s := range scenes {
		switch {
		case s.End <= t+Epsilon:
			out = append(out, s)
		case s.Start >= t-Epsilon:
			s.Start += d
			s.End += d
			out = append(out, s)
		default:
			head := s
			head.End = t
			tail := s
			tail.ID = tailID
			tail.ThumbnailPath = ""
			tail.ThumbnailToken = ""
			tail.Start = t + d
			tail.End = s.End + d
			out = append(out, head, tail)
		}
	}
	out = append(out, newScene)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// ResizeScene sets a scene's length to newLen, keeping its start, and shifts
// every subsequent scene by the resulting delta. Returns the delta.
func ResizeScene(scenes []Scene, sceneID string, newLen float64) ([]Scene, float64, bool) {
	idx := -1
	for i, s := range scenes {
		if s.ID == sceneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, 0, false
	}

	delta := newLen - scenes[idx].Duration()
	out := make([]Scene, len(scenes))
	copy(out, scenes)
	out[idx].End = out[idx].Start + newLen
	for i := idx + 1; i < len(out); i++ {
		out[i].Start += delta
		out[i].End += delta
	}
	return out, delta, true
}

// CloseToDuration absorbs encoder drift by pinning the last scene's end to
// the newly probed authoritative duration. Arithmetic scene times can drift
// from the re-encoded file by fractions of a second; the probed duration is
// the only trusted value.
func CloseToDuration(scenes []Scene, duration float64) []Scene {
	if len(scenes) == 0 {
		return scenes
	}
	out := make([]Scene, len(scenes))
	copy(out, scenes)
	last := &out[len(out)-1]
	if duration > last.Start+Epsilon {
		last.End = duration
	}
	return out
}

// ShiftSegments applies the ripple rule to transcript segments for an edit
// spanning [pivot, editEnd) in the original timebase with net delta:
// segments ending at or before the pivot are unchanged, segments starting at
// or after the edit's end shift by delta (word timings included), and
// segments straddling the edited region are dropped, since their content is
// no longer well-defined against the new media.
func ShiftSegments(segments []TranscriptSegment, pivot, editEnd, delta float64) []TranscriptSegment {
	out := make([]TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		switch {
		case seg.End <= pivot+Epsilon:
			out = append(out, seg)
		case seg.Start >= editEnd-Epsilon:
			shifted := seg
			shifted.Start += delta
			shifted.End += delta
			if len(seg.Words) > 0 {
				shifted.Words = make([]Word, len(seg.Words))
				for i, w := range seg.Words {
					w.Start += delta
					w.End += delta
					shifted.Words[i] = w
				}
			}
			out = append(out, shifted)
		default:
			// straddles the edited region: dropped
		}
	}
	return out
}

// JoinText rebuilds the full transcript string from segment texts.
func JoinText(segments []TranscriptSegment) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = strings.TrimSpace(seg.Text)
	}
	return strings.Join(parts, " ")
}
