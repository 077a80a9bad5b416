// Package timeline holds the persisted project model and the ripple
// arithmetic that keeps scenes, frames, and transcript segments consistent
// with the authoritative media file after duration-changing edits.
package timeline

import (
	"fmt"
	"math"
	"time"
)

// Epsilon is the tolerance used when comparing timeline positions. Splice
// boundaries below this length are degenerate and skipped.
const Epsilon = 0.01

// Background describes a scene's replaced background.
type Background struct {
	Kind  string `json:"kind"` // "color" or "image"
	Value string `json:"value"`
}

// Scene is a contiguous half-open interval [Start, End) of the project's
// current media, treated as an editable unit. IDs stay stable across edits
// unless the scene is newly created.
type Scene struct {
	ID             string      `json:"id"`
	Start          float64     `json:"start"`
	End            float64     `json:"end"`
	ThumbnailPath  string      `json:"thumbnail_path,omitempty"`
	ThumbnailToken string      `json:"thumbnail_token,omitempty"`
	Background     *Background `json:"background,omitempty"`
}

func (s Scene) Duration() float64 {
	return s.End - s.Start
}

// Contains reports whether t falls inside the scene's half-open interval.
func (s Scene) Contains(t float64) bool {
	return t >= s.Start && t < s.End
}

// Frame is one filmstrip image sampled from the current media.
type Frame struct {
	ID           string  `json:"id"`
	Time         float64 `json:"time"`
	Path         string  `json:"path"`
	SceneID      string  `json:"scene_id,omitempty"`
	RebuildToken string  `json:"rebuild_token,omitempty"`
}

// Word carries word-level sub-timing within a transcript segment.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptSegment is one time-aligned span of transcribed speech.
type TranscriptSegment struct {
	ID      string  `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
	Words   []Word  `json:"words,omitempty"`
}

// Project is the root aggregate: the single source of truth for one editing
// session. It is mutated only by whole-value replacement and persisted by
// whole-file replacement, never patched in place.
type Project struct {
	ID             string              `json:"id"`
	FileName       string              `json:"file_name"`
	MediaPath      string              `json:"media_path"` // file name relative to the upload dir
	Duration       float64             `json:"duration"`
	Revision       int64               `json:"revision"`
	Scenes         []Scene             `json:"scenes"`
	Frames         []Frame             `json:"frames"`
	Segments       []TranscriptSegment `json:"transcript_segments"`
	FullTranscript string              `json:"full_transcript,omitempty"`
	Language       string              `json:"language,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// SceneIndex returns the position of a scene by id, or -1.
func (p *Project) SceneIndex(sceneID string) int {
	for i, s := range p.Scenes {
		if s.ID == sceneID {
			return i
		}
	}
	return -1
}

// SceneByID returns the scene with the given id, or nil.
func (p *Project) SceneByID(sceneID string) *Scene {
	if i := p.SceneIndex(sceneID); i >= 0 {
		return &p.Scenes[i]
	}
	return nil
}

// Clone returns a deep copy of the project. Mutating operations work on a
// clone and persist it whole, so a failed operation never leaves a
// half-updated record behind.
func (p *Project) Clone() *Project {
	cp := *p
	cp.Scenes = make([]Scene, len(p.Scenes))
	for i, s := range p.Scenes {
		cp.Scenes[i] = s
		if s.Background != nil {
			bg := *s.Background
			cp.Scenes[i].Background = &bg
		}
	}
	cp.Frames = append([]Frame(nil), p.Frames...)
	cp.Segments = make([]TranscriptSegment, len(p.Segments))
	for i, seg := range p.Segments {
		cp.Segments[i] = seg
		cp.Segments[i].Words = append([]Word(nil), seg.Words...)
	}
	return &cp
}

// CheckContiguous verifies that scenes tile [0, duration) without gaps or
// overlaps. Returns nil for an empty scene list over zero duration.
func CheckContiguous(scenes []Scene, duration float64) error {
	if len(scenes) == 0 {
		if duration > Epsilon {
			return fmt.Errorf("no scenes covering %.3fs of media", duration)
		}
		return nil
	}
	if math.Abs(scenes[0].Start) > Epsilon {
		return fmt.Errorf("first scene starts at %.3f, want 0", scenes[0].Start)
	}
	for i := 0; i < len(scenes)-1; i++ {
		if math.Abs(scenes[i].End-scenes[i+1].Start) > Epsilon {
			return fmt.Errorf("gap between scene %d (end %.3f) and scene %d (start %.3f)",
				i, scenes[i].End, i+1, scenes[i+1].Start)
		}
	}
	last := scenes[len(scenes)-1]
	if math.Abs(last.End-duration) > Epsilon {
		return fmt.Errorf("last scene ends at %.3f, media duration is %.3f", last.End, duration)
	}
	return nil
}

// CheckFramesInScenes verifies that every frame with an owning scene lies
// inside that scene's half-open interval.
func CheckFramesInScenes(frames []Frame, scenes []Scene) error {
	byID := make(map[string]Scene, len(scenes))
	for _, s := range scenes {
		byID[s.ID] = s
	}
	for _, f := range frames {
		if f.SceneID == "" {
			continue
		}
		s, ok := byID[f.SceneID]
		if !ok {
			return fmt.Errorf("frame %s references unknown scene %s", f.ID, f.SceneID)
		}
		if f.Time < s.Start-Epsilon || f.Time >= s.End {
			return fmt.Errorf("frame %s at %.3f outside scene %s [%.3f, %.3f)",
				f.ID, f.Time, f.SceneID, s.Start, s.End)
		}
	}
	return nil
}
