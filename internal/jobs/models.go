// Package jobs runs background-replacement processing as a two-phase
// protocol: a subprocess renders the replacement footage into an isolated
// work directory (phase one), and the caller later merges the result into
// the timeline and discards the job (phase two). Jobs left unmerged past
// their TTL are reaped along with their work directories.
package jobs

import "time"

// Job is one completed phase-one processing run awaiting merge or discard.
type Job struct {
	ID              string
	ProjectID       string
	SceneID         string
	BackgroundKind  string
	BackgroundValue string
	ProcessedPath   string
	WorkDir         string
	SceneStart      float64
	SceneEnd        float64
	CreatedAt       time.Time
}

// SceneDuration is the length of the processed scene in seconds.
func (j *Job) SceneDuration() float64 {
	return j.SceneEnd - j.SceneStart
}
