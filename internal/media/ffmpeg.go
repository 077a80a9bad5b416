// Package media wraps ffmpeg/ffprobe subprocess execution: probing stream
// geometry, frame-accurate splicing, scene detection, and frame extraction.
// Every invocation is bounded by a timeout and keeps only a tail of stderr
// for diagnostics.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// diagnosticLimit bounds the stderr text carried inside error messages.
const diagnosticLimit = 512

// ErrMediaNotFound is returned before any subprocess starts when an input
// file is missing or unreadable.
var ErrMediaNotFound = errors.New("media file not found")

// ErrToolTimeout marks a subprocess that was forcibly terminated after
// exceeding its deadline.
var ErrToolTimeout = errors.New("media tool timed out")

// ToolError carries a failed subprocess's exit status and stderr tail.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, truncate(e.Stderr, diagnosticLimit))
}

// Timeouts holds the per-stage subprocess ceilings. Probing is near-instant,
// splice stages are bounded by re-encode speed, and a full export may legally
// run much longer than any single splice stage.
type Timeouts struct {
	Probe  time.Duration
	Splice time.Duration
	Export time.Duration
}

// withDefaults fills unset ceilings.
func (t Timeouts) withDefaults() Timeouts {
	if t.Probe <= 0 {
		t.Probe = 30 * time.Second
	}
	if t.Splice <= 0 {
		t.Splice = 10 * time.Minute
	}
	if t.Export <= 0 {
		t.Export = 30 * time.Minute
	}
	return t
}

// Runner executes ffmpeg and ffprobe commands. It is the single
// implementation of the media tooling contract used throughout the server.
type Runner struct {
	ffmpeg   string
	ffprobe  string
	timeouts Timeouts
	logger   *slog.Logger
}

// NewRunner resolves the ffmpeg and ffprobe binaries on PATH.
func NewRunner(timeouts Timeouts, logger *slog.Logger) (*Runner, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg on PATH: %w", err)
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffprobe on PATH: %w", err)
	}

	timeouts = timeouts.withDefaults()
	logger.Info("media runner initialised",
		"ffmpeg", ffmpeg, "ffprobe", ffprobe,
		"probe_timeout", timeouts.Probe, "splice_timeout", timeouts.Splice, "export_timeout", timeouts.Export)

	return &Runner{ffmpeg: ffmpeg, ffprobe: ffprobe, timeouts: timeouts, logger: logger}, nil
}

// requireFile fails fast before any subprocess is started.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrMediaNotFound, path)
	}
	return nil
}

// run executes ffmpeg under the splice-stage ceiling. stdout is discarded:
// every command writes its result to an output file.
func (r *Runner) run(ctx context.Context, args ...string) error {
	return r.runWith(ctx, r.timeouts.Splice, args...)
}

func (r *Runner) runWith(ctx context.Context, timeout time.Duration, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.ffmpeg, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	r.logger.Debug("executing ffmpeg", "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			r.logger.Warn("ffmpeg timed out", "after", elapsed, "args", args)
			return fmt.Errorf("%w after %s", ErrToolTimeout, elapsed.Round(time.Second))
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		toolErr := &ToolError{Tool: "ffmpeg", ExitCode: exitCode, Stderr: stderrBuf.String()}
		r.logger.Warn("ffmpeg failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), diagnosticLimit),
		)
		return toolErr
	}

	r.logger.Debug("ffmpeg succeeded", "duration_ms", elapsed.Milliseconds())
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
