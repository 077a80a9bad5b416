package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

// ProbeResult describes a media file as reported by ffprobe. Duration is the
// container duration in seconds and is the authoritative value for timeline
// arithmetic.
type ProbeResult struct {
	Duration float64
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
	Format   string
}

// ffprobe JSON shapes. Numeric fields arrive as strings.
type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe inspects a media file and returns its duration and stream geometry.
func (r *Runner) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Probe)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w probing %s", ErrToolTimeout, path)
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ToolError{Tool: "ffprobe", ExitCode: exitCode, Stderr: stderrBuf.String()}
	}
	r.logger.Debug("ffprobe succeeded", "path", path, "duration_ms", time.Since(start).Milliseconds())

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return nil, fmt.Errorf("ffprobe reported no usable duration (%q)", out.Format.Duration)
	}

	result := &ProbeResult{Duration: duration, Format: out.Format.FormatName}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			result.HasVideo = true
			if result.Width == 0 {
				result.Width = s.Width
				result.Height = s.Height
			}
		case "audio":
			result.HasAudio = true
		}
	}
	return result, nil
}
