package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// epsilon is the tolerance for interval arithmetic. Edits narrower than this
// are treated as empty.
const epsilon = 0.01

// ErrInvalidRange is returned when an edit interval falls outside the media
// or would leave nothing behind.
var ErrInvalidRange = errors.New("invalid edit interval")

// ReplaceMode selects how audio is handled when a region of the source is
// replaced with substitute footage.
type ReplaceMode int

const (
	// ReplaceSyncAudio keeps the source's full audio track and swaps video
	// only. The substitute is trimmed to exactly the replaced interval so
	// the original audio stays in sync.
	ReplaceSyncAudio ReplaceMode = iota
	// ReplaceFreeform splices the substitute with its own audio and lets
	// the total duration change.
	ReplaceFreeform
)

// DeleteInterval removes [start, end) from src and writes the re-joined
// media to out. Both remaining pieces are re-encoded so the cut is
// frame-accurate regardless of keyframe placement.
func (r *Runner) DeleteInterval(ctx context.Context, src string, start, end float64, out string) error {
	if err := requireFile(src); err != nil {
		return err
	}
	probe, err := r.Probe(ctx, src)
	if err != nil {
		return err
	}
	if err := validateInterval(start, end, probe.Duration); err != nil {
		return err
	}
	if start < epsilon && end > probe.Duration-epsilon {
		return fmt.Errorf("%w: cannot delete entire media", ErrInvalidRange)
	}

	scratch, err := os.MkdirTemp(filepath.Dir(out), "splice-*")
	if err != nil {
		return fmt.Errorf("cannot create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	var parts []string
	if start > epsilon {
		before := filepath.Join(scratch, "before.mp4")
		if err := r.extractSegment(ctx, src, 0, start, before, true); err != nil {
			return fmt.Errorf("extracting leading segment: %w", err)
		}
		parts = append(parts, before)
	}
	if end < probe.Duration-epsilon {
		after := filepath.Join(scratch, "after.mp4")
		if err := r.extractTail(ctx, src, end, after, true); err != nil {
			return fmt.Errorf("extracting trailing segment: %w", err)
		}
		parts = append(parts, after)
	}

	return r.concat(ctx, parts, out, scratch, probe.HasAudio)
}

// InsertAt splices clip into src at the given position and writes the result
// to out. The clip is rescaled to the source geometry first; a silent audio
// track is synthesised when the clip has none so the concat stays valid.
func (r *Runner) InsertAt(ctx context.Context, src, clip string, at float64, out string) error {
	if err := requireFile(src); err != nil {
		return err
	}
	if err := requireFile(clip); err != nil {
		return err
	}
	probe, err := r.Probe(ctx, src)
	if err != nil {
		return err
	}
	if at < -epsilon || at > probe.Duration+epsilon {
		return fmt.Errorf("%w: insert point %.3f outside [0, %.3f]", ErrInvalidRange, at, probe.Duration)
	}

	scratch, err := os.MkdirTemp(filepath.Dir(out), "splice-*")
	if err != nil {
		return fmt.Errorf("cannot create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	normClip := filepath.Join(scratch, "clip.mp4")
	if err := r.normalizeClip(ctx, clip, probe.Width, probe.Height, 0, true, normClip); err != nil {
		return fmt.Errorf("normalising clip: %w", err)
	}

	var parts []string
	if at > epsilon {
		before := filepath.Join(scratch, "before.mp4")
		if err := r.extractSegment(ctx, src, 0, at, before, true); err != nil {
			return fmt.Errorf("extracting leading segment: %w", err)
		}
		parts = append(parts, before)
	}
	parts = append(parts, normClip)
	if at < probe.Duration-epsilon {
		after := filepath.Join(scratch, "after.mp4")
		if err := r.extractTail(ctx, src, at, after, true); err != nil {
			return fmt.Errorf("extracting trailing segment: %w", err)
		}
		parts = append(parts, after)
	}

	return r.concat(ctx, parts, out, scratch, true)
}

// ReplaceInterval substitutes [start, end) of src with clip and writes the
// result to out. ReplaceSyncAudio trims the clip to the interval and carries
// the source audio across unchanged; ReplaceFreeform keeps the clip whole,
// audio included, so the duration may change.
func (r *Runner) ReplaceInterval(ctx context.Context, src, clip string, start, end float64, mode ReplaceMode, out string) error {
	if err := requireFile(src); err != nil {
		return err
	}
	if err := requireFile(clip); err != nil {
		return err
	}
	probe, err := r.Probe(ctx, src)
	if err != nil {
		return err
	}
	if err := validateInterval(start, end, probe.Duration); err != nil {
		return err
	}

	scratch, err := os.MkdirTemp(filepath.Dir(out), "splice-*")
	if err != nil {
		return fmt.Errorf("cannot create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if mode == ReplaceSyncAudio && probe.HasAudio {
		return r.replaceSyncAudio(ctx, src, clip, start, end, probe, out, scratch)
	}
	return r.replaceFreeform(ctx, src, clip, start, end, probe, out, scratch)
}

// replaceSyncAudio swaps video only: the substitute is trimmed to exactly
// the replaced interval, the video track is rebuilt by concatenation, and
// the original audio is remuxed over it.
func (r *Runner) replaceSyncAudio(ctx context.Context, src, clip string, start, end float64, probe *ProbeResult, out, scratch string) error {
	// The source may carry Opus or Vorbis audio (webm/mkv uploads), which
	// cannot be stream-copied into an ADTS file, so the lift re-encodes.
	audio := filepath.Join(scratch, "audio.aac")
	if err := r.run(ctx, audioLiftArgs(src, audio)...); err != nil {
		return fmt.Errorf("lifting audio track: %w", err)
	}

	normClip := filepath.Join(scratch, "clip.mp4")
	if err := r.normalizeClip(ctx, clip, probe.Width, probe.Height, end-start, false, normClip); err != nil {
		return fmt.Errorf("normalising clip: %w", err)
	}

	var parts []string
	if start > epsilon {
		before := filepath.Join(scratch, "before.mp4")
		if err := r.extractSegment(ctx, src, 0, start, before, false); err != nil {
			return fmt.Errorf("extracting leading segment: %w", err)
		}
		parts = append(parts, before)
	}
	parts = append(parts, normClip)
	if end < probe.Duration-epsilon {
		after := filepath.Join(scratch, "after.mp4")
		if err := r.extractTail(ctx, src, end, after, false); err != nil {
			return fmt.Errorf("extracting trailing segment: %w", err)
		}
		parts = append(parts, after)
	}

	silent := filepath.Join(scratch, "video.mp4")
	if err := r.concat(ctx, parts, silent, scratch, false); err != nil {
		return err
	}

	// Remux the untouched audio over the rebuilt video track.
	return r.run(ctx,
		"-y",
		"-i", silent,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-vsync", "cfr",
		"-async", "1",
		"-max_muxing_queue_size", "1024",
		"-shortest",
		"-movflags", "+faststart",
		out,
	)
}

// replaceFreeform splices the substitute with its own audio track. The
// substitute keeps its full length, so the output duration generally differs
// from the source.
func (r *Runner) replaceFreeform(ctx context.Context, src, clip string, start, end float64, probe *ProbeResult, out, scratch string) error {
	normClip := filepath.Join(scratch, "clip.mp4")
	if err := r.normalizeClip(ctx, clip, probe.Width, probe.Height, 0, true, normClip); err != nil {
		return fmt.Errorf("normalising clip: %w", err)
	}

	var parts []string
	if start > epsilon {
		before := filepath.Join(scratch, "before.mp4")
		if err := r.extractSegment(ctx, src, 0, start, before, true); err != nil {
			return fmt.Errorf("extracting leading segment: %w", err)
		}
		parts = append(parts, before)
	}
	parts = append(parts, normClip)
	if end < probe.Duration-epsilon {
		after := filepath.Join(scratch, "after.mp4")
		if err := r.extractTail(ctx, src, end, after, true); err != nil {
			return fmt.Errorf("extracting trailing segment: %w", err)
		}
		parts = append(parts, after)
	}

	return r.concat(ctx, parts, out, scratch, true)
}

// extractSegment re-encodes [start, start+dur) of src to out. withAudio
// controls whether the audio track is carried.
func (r *Runner) extractSegment(ctx context.Context, src string, start, dur float64, out string, withAudio bool) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(dur),
		"-i", src,
	}
	args = append(args, segmentCodecArgs(withAudio)...)
	args = append(args, out)
	return r.run(ctx, args...)
}

// extractTail re-encodes [start, end-of-media) of src to out.
func (r *Runner) extractTail(ctx context.Context, src string, start float64, out string, withAudio bool) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
	}
	args = append(args, segmentCodecArgs(withAudio)...)
	args = append(args, out)
	return r.run(ctx, args...)
}

// audioLiftArgs extracts the full audio track to an ADTS AAC file.
func audioLiftArgs(src, out string) []string {
	return []string{"-y", "-i", src, "-vn", "-c:a", "aac", "-b:a", "192k", out}
}

func segmentCodecArgs(withAudio bool) []string {
	args := []string{
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
	}
	if withAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	return append(args, "-movflags", "+faststart")
}

// normalizeClip rescales a substitute clip to the source geometry and
// re-encodes it. limitDur > 0 trims the clip to exactly that length.
// When keepAudio is set and the clip has no audio stream, a silent stereo
// track is synthesised so downstream concatenation sees uniform streams.
func (r *Runner) normalizeClip(ctx context.Context, clip string, width, height int, limitDur float64, keepAudio bool, out string) error {
	probe, err := r.Probe(ctx, clip)
	if err != nil {
		return err
	}

	args := []string{"-y", "-i", clip}

	synthSilence := keepAudio && !probe.HasAudio
	if synthSilence {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=48000")
	}
	if limitDur > 0 {
		args = append(args, "-t", formatSeconds(limitDur))
	}
	args = append(args,
		"-vf", fmt.Sprintf("scale=%d:%d,setsar=1", width, height),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
	)
	switch {
	case synthSilence:
		args = append(args,
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
		)
	case keepAudio:
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	default:
		args = append(args, "-an")
	}
	args = append(args, "-movflags", "+faststart", out)
	return r.run(ctx, args...)
}

// concat joins pre-encoded parts with the concat demuxer, re-encoding with a
// dense keyframe cadence so any later cut point lands near a keyframe.
func (r *Runner) concat(ctx context.Context, parts []string, out, scratch string, withAudio bool) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: nothing to join", ErrInvalidRange)
	}

	list := filepath.Join(scratch, "concat.txt")
	var b strings.Builder
	for _, p := range parts {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	if err := os.WriteFile(list, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("cannot write concat list: %w", err)
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-g", "30",
		"-keyint_min", "30",
		"-sc_threshold", "0",
		"-force_key_frames", "expr:gte(t,n_forced*1)",
	}
	if withAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-movflags", "+faststart", out)
	return r.run(ctx, args...)
}

// Remux copies all streams into a fresh container with the moov atom up
// front, the final step before a file is handed out for download.
func (r *Runner) Remux(ctx context.Context, src, out string) error {
	if err := requireFile(src); err != nil {
		return err
	}
	return r.runWith(ctx, r.timeouts.Export, "-y", "-i", src, "-c", "copy", "-movflags", "+faststart", out)
}

// ExportSpec selects optional export transformations. A zero spec means a
// plain stream-copy remux.
type ExportSpec struct {
	Width        int
	Height       int
	SubtitlePath string // SRT to burn into the video
}

// Export renders src to out, rescaling and burning subtitles as requested.
func (r *Runner) Export(ctx context.Context, src, out string, spec ExportSpec) error {
	if err := requireFile(src); err != nil {
		return err
	}
	if spec.Width == 0 && spec.SubtitlePath == "" {
		return r.Remux(ctx, src, out)
	}

	var filters []string
	if spec.Width > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d,setsar=1", spec.Width, spec.Height))
	}
	if spec.SubtitlePath != "" {
		filters = append(filters, "subtitles="+escapeFilterPath(spec.SubtitlePath))
	}

	return r.runWith(ctx, r.timeouts.Export,
		"-y",
		"-i", src,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		out,
	)
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter argument,
// where ':' and '\'' are metacharacters.
func escapeFilterPath(p string) string {
	return strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`).Replace(p)
}

func validateInterval(start, end, duration float64) error {
	if start < -epsilon || end > duration+epsilon || end-start < epsilon {
		return fmt.Errorf("%w: [%.3f, %.3f) against duration %.3f", ErrInvalidRange, start, end, duration)
	}
	return nil
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
