// Package captions renders project transcripts as SubRip subtitles and
// offers LLM-assisted caption rewriting.
package captions

import (
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/timeline"
)

// RenderSRT serialises transcript segments as a SubRip file. Cue numbering
// is 1-based and empty segments are skipped.
func RenderSRT(segments []timeline.TranscriptSegment) string {
	var b strings.Builder
	cue := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cue++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			cue, formatSRTTime(seg.Start), formatSRTTime(seg.End), text)
	}
	return b.String()
}

// formatSRTTime renders seconds as HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
