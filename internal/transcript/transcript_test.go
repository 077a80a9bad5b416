package transcript

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/clipforge/clipforge/internal/timeline"
)

type fakeTranscriber struct {
	result *Result
	err    error
	calls  int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func project() *timeline.Project {
	return &timeline.Project{
		ID: "p",
		Segments: []timeline.TranscriptSegment{
			{ID: "s1", Start: 0, End: 2, Text: "hello"},
			{ID: "s2", Start: 6, End: 8, Text: "world"},
		},
	}
}

func TestResync_ShiftOnly(t *testing.T) {
	p := project()
	r := NewResynchronizer(nil, discard())

	// 2s cut spanning [3, 5).
	r.Resync(context.Background(), p, "media.mp4", 3, 5, -2, false)

	if len(p.Segments) != 2 {
		t.Fatalf("len(segments) = %d, want 2", len(p.Segments))
	}
	if math.Abs(p.Segments[1].Start-4) > 1e-9 {
		t.Errorf("shifted start = %v, want 4", p.Segments[1].Start)
	}
	if p.FullTranscript != "hello world" {
		t.Errorf("FullTranscript = %q", p.FullTranscript)
	}
}

func TestResync_RetranscribeReplacesSegments(t *testing.T) {
	p := project()
	fake := &fakeTranscriber{result: &Result{
		Text:     "fresh transcript",
		Language: "en",
		Segments: []timeline.TranscriptSegment{
			{ID: "n1", Start: 0, End: 5, Text: "fresh transcript"},
		},
	}}
	r := NewResynchronizer(fake, discard())

	r.Resync(context.Background(), p, "media.mp4", 3, 5, -2, true)

	if fake.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", fake.calls)
	}
	if len(p.Segments) != 1 || p.Segments[0].ID != "n1" {
		t.Errorf("segments = %+v, want fresh transcript", p.Segments)
	}
	if p.FullTranscript != "fresh transcript" {
		t.Errorf("FullTranscript = %q", p.FullTranscript)
	}
	if p.Language != "en" {
		t.Errorf("Language = %q, want en", p.Language)
	}
}

func TestApplyResult_JoinsSegmentsWhenTextMissing(t *testing.T) {
	p := project()
	applyResult(p, &Result{
		Language: "de",
		Segments: []timeline.TranscriptSegment{
			{ID: "n1", Start: 0, End: 1, Text: " guten "},
			{ID: "n2", Start: 1, End: 2, Text: "tag"},
		},
	})
	if p.FullTranscript != "guten tag" {
		t.Errorf("FullTranscript = %q, want joined segment texts", p.FullTranscript)
	}
	if p.Language != "de" {
		t.Errorf("Language = %q, want de", p.Language)
	}
}

func TestResync_RetranscribeFailureFallsBackToShift(t *testing.T) {
	p := project()
	fake := &fakeTranscriber{err: errors.New("api down")}
	r := NewResynchronizer(fake, discard())

	r.Resync(context.Background(), p, "media.mp4", 3, 5, -2, true)

	if fake.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", fake.calls)
	}
	if len(p.Segments) != 2 {
		t.Fatalf("len(segments) = %d, want 2 (shift fallback)", len(p.Segments))
	}
	if math.Abs(p.Segments[1].Start-4) > 1e-9 {
		t.Errorf("fallback shifted start = %v, want 4", p.Segments[1].Start)
	}
}

func TestResync_NoTranscriberIgnoresRetranscribe(t *testing.T) {
	p := project()
	r := NewResynchronizer(nil, discard())

	r.Resync(context.Background(), p, "media.mp4", 3, 5, -2, true)

	if len(p.Segments) != 2 {
		t.Errorf("len(segments) = %d, want 2", len(p.Segments))
	}
}

func TestWordsWithin(t *testing.T) {
	words := []timeline.Word{
		{Text: "a", Start: 0.1, End: 0.4},
		{Text: "b", Start: 1.2, End: 1.6},
		{Text: "c", Start: 2.5, End: 2.9},
	}
	got := wordsWithin(words, 1.0, 2.0)
	if len(got) != 1 || got[0].Text != "b" {
		t.Errorf("wordsWithin() = %+v, want only b", got)
	}
}
