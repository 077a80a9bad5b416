package media

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// sceneThreshold is the minimum scene-change score accepted as a boundary.
const sceneThreshold = 0.35

// minSceneGap discards detected boundaries closer than this to the previous
// one, so micro-cuts do not produce sub-half-second scenes.
const minSceneGap = 0.5

// Interval is a half-open [Start, End) span on the media timeline.
type Interval struct {
	Start float64
	End   float64
}

var ptsTimeRe = regexp.MustCompile(`pts_time:([0-9]+\.?[0-9]*)`)

// DetectScenes finds scene boundaries by running ffmpeg's scene-change
// filter and parsing showinfo timestamps off stderr as they stream in.
// The result always covers [0, duration) contiguously; when detection fails
// or finds nothing the whole file becomes a single scene.
func (r *Runner) DetectScenes(ctx context.Context, path string, duration float64) ([]Interval, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Splice)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffmpeg,
		"-i", path,
		"-vf", fmt.Sprintf(`select=gt(scene\,%g),showinfo`, sceneThreshold),
		"-f", "null",
		"-",
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("cannot open stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cannot start scene detection: %w", err)
	}

	// showinfo emits very long lines; give the scanner room.
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var boundaries []float64
	for scanner.Scan() {
		m := ptsTimeRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		t, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		boundaries = append(boundaries, t)
	}

	if err := cmd.Wait(); err != nil {
		// Detection is best-effort: fall back to a single scene rather than
		// failing the whole ingest.
		r.logger.Warn("scene detection failed, using single scene", "path", path, "error", err)
		return []Interval{{Start: 0, End: duration}}, nil
	}
	r.logger.Debug("scene detection finished",
		"path", path,
		"boundaries", len(boundaries),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return buildScenes(boundaries, duration), nil
}

// buildScenes turns raw boundary timestamps into contiguous intervals over
// [0, duration), dropping boundaries that would produce scenes shorter than
// minSceneGap.
func buildScenes(boundaries []float64, duration float64) []Interval {
	cuts := []float64{0}
	for _, b := range boundaries {
		if b <= cuts[len(cuts)-1]+minSceneGap {
			continue
		}
		if b >= duration-minSceneGap {
			break
		}
		cuts = append(cuts, b)
	}

	scenes := make([]Interval, 0, len(cuts))
	for i, c := range cuts {
		end := duration
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		scenes = append(scenes, Interval{Start: c, End: end})
	}
	return scenes
}
