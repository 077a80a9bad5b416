// Package transcript keeps a project's transcript aligned with its media
// after timeline mutations. The cheap path shifts segment timings
// arithmetically; the accurate path re-transcribes the new media and falls
// back to shifting when transcription is unavailable or fails.
package transcript

import (
	"context"
	"log/slog"

	"github.com/clipforge/clipforge/internal/timeline"
)

// Result is one full transcription of a media file.
type Result struct {
	Text     string
	Language string
	Segments []timeline.TranscriptSegment
}

// Transcriber produces timed transcript segments for a media file.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (*Result, error)
}

// Resynchronizer applies one of two strategies after an edit.
type Resynchronizer struct {
	transcriber Transcriber // nil disables re-transcription
	logger      *slog.Logger
}

func NewResynchronizer(transcriber Transcriber, logger *slog.Logger) *Resynchronizer {
	return &Resynchronizer{transcriber: transcriber, logger: logger}
}

// Resync updates p.Segments and p.FullTranscript for an edit that spanned
// [pivot, editEnd) in the old timebase with net duration change delta.
// When retranscribe is set and a transcriber is configured, the new media is
// transcribed from scratch; any transcription failure degrades to the shift
// strategy rather than failing the edit.
func (r *Resynchronizer) Resync(ctx context.Context, p *timeline.Project, mediaPath string, pivot, editEnd, delta float64, retranscribe bool) {
	shifted := timeline.ShiftSegments(p.Segments, pivot, editEnd, delta)

	if retranscribe && r.transcriber != nil {
		fresh, err := r.transcriber.Transcribe(ctx, mediaPath)
		if err != nil {
			r.logger.Warn("re-transcription failed, falling back to timing shift",
				"project_id", p.ID, "error", err)
		} else {
			r.logger.Info("transcript re-transcribed",
				"project_id", p.ID, "segments", len(fresh.Segments), "language", fresh.Language)
			applyResult(p, fresh)
			return
		}
	}

	p.Segments = shifted
	p.FullTranscript = timeline.JoinText(shifted)
}

// applyResult installs a full transcription on the project. The provider's
// own full text is preferred over re-joining segment texts.
func applyResult(p *timeline.Project, res *Result) {
	p.Segments = res.Segments
	p.Language = res.Language
	if res.Text != "" {
		p.FullTranscript = res.Text
	} else {
		p.FullTranscript = timeline.JoinText(res.Segments)
	}
}
