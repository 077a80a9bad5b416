package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clipforge/clipforge/internal/timeline"
)

// WhisperTranscriber transcribes media through the OpenAI audio API with
// segment and word level timestamps.
type WhisperTranscriber struct {
	client  *openai.Client
	timeout time.Duration // per-call deadline, 0 disables
	logger  *slog.Logger
}

func NewWhisperTranscriber(apiKey string, timeout time.Duration, logger *slog.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{client: openai.NewClient(apiKey), timeout: timeout, logger: logger}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, mediaPath string) (*Result, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: mediaPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	words := make([]timeline.Word, len(resp.Words))
	for i, rw := range resp.Words {
		words[i] = timeline.Word{Text: rw.Word, Start: rw.Start, End: rw.End}
	}

	segments := make([]timeline.TranscriptSegment, len(resp.Segments))
	for i, rs := range resp.Segments {
		segments[i] = timeline.TranscriptSegment{
			ID:    fmt.Sprintf("seg-%d", rs.ID),
			Start: rs.Start,
			End:   rs.End,
			Text:  rs.Text,
			Words: wordsWithin(words, rs.Start, rs.End),
		}
	}

	w.logger.Debug("transcription complete",
		"segments", len(segments), "words", len(words), "language", resp.Language)
	return &Result{Text: resp.Text, Language: resp.Language, Segments: segments}, nil
}

// wordsWithin selects the word timings that fall inside a segment's span.
// Whisper reports words globally, not per segment.
func wordsWithin(words []timeline.Word, start, end float64) []timeline.Word {
	var out []timeline.Word
	for _, w := range words {
		if w.Start >= start-timeline.Epsilon && w.Start < end-timeline.Epsilon {
			out = append(out, w)
		}
	}
	return out
}
