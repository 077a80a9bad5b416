package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// FrameInterval is the sampling period for preview frames.
	FrameInterval = 0.5

	frameWidth  = 120
	frameHeight = 68

	thumbWidth  = 320
	thumbHeight = 180
)

// FrameFile is one extracted preview frame with its timeline position.
type FrameFile struct {
	Path string
	Time float64
}

// ExtractFrames samples [start, start+dur) of src at FrameInterval and
// writes numbered JPEGs into dir. Returned frames are ordered by time, each
// stamped with its absolute timeline position.
func (r *Runner) ExtractFrames(ctx context.Context, src string, start, dur float64, dir string) ([]FrameFile, error) {
	if err := requireFile(src); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create frame dir: %w", err)
	}

	pattern := filepath.Join(dir, "frame_%04d.jpg")
	err := r.run(ctx,
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(dur),
		"-i", src,
		"-vf", fmt.Sprintf("fps=1/%g", FrameInterval),
		"-q:v", "3",
		"-s", fmt.Sprintf("%dx%d", frameWidth, frameHeight),
		pattern,
	)
	if err != nil {
		return nil, err
	}

	entries, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("cannot list extracted frames: %w", err)
	}
	sort.Strings(entries)

	frames := make([]FrameFile, 0, len(entries))
	for i, p := range entries {
		frames = append(frames, FrameFile{
			Path: p,
			Time: start + float64(i)*FrameInterval,
		})
	}
	return frames, nil
}

// ExtractThumbnail grabs a single 320x180 JPEG at the given position.
func (r *Runner) ExtractThumbnail(ctx context.Context, src string, at float64, out string) error {
	if err := requireFile(src); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("cannot create thumbnail dir: %w", err)
	}
	return r.run(ctx,
		"-y",
		"-ss", formatSeconds(at),
		"-i", src,
		"-vframes", "1",
		"-q:v", "3",
		"-s", fmt.Sprintf("%dx%d", thumbWidth, thumbHeight),
		out,
	)
}
