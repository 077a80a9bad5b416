package jobs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// Worker subprocess defaults.
const (
	similarityThreshold = 0.05
	useFastModel        = true

	baseTimeout      = 2 * time.Minute
	timeoutPerSecond = 30 * time.Second
	maxTimeout       = 10 * time.Minute
)

// ErrWorkerTimeout marks a processing run killed for exceeding its deadline.
var ErrWorkerTimeout = errors.New("worker timed out")

// workerRequest is the single JSON document written to the worker's stdin.
type workerRequest struct {
	InputVideo          string  `json:"input_video"`
	SceneStart          float64 `json:"scene_start"`
	SceneEnd            float64 `json:"scene_end"`
	OutputVideo         string  `json:"output_video"`
	BackgroundType      string  `json:"background_type"`
	BackgroundValue     string  `json:"background_value"`
	FramesDir           string  `json:"frames_dir"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	ProcessingFPS       int     `json:"processing_fps"`
	UseFastModel        bool    `json:"use_fast_model"`
}

// workerResult is the single JSON document the worker writes to stdout.
type workerResult struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	ProcessedFrames int    `json:"processed_frames"`
}

// processingFPS picks the segmentation sampling rate by scene length:
// short scenes afford denser processing.
func processingFPS(sceneDur float64) int {
	switch {
	case sceneDur <= 1.5:
		return 8
	case sceneDur <= 4:
		return 10
	default:
		return 12
	}
}

// workerTimeout scales the deadline with scene length, capped at maxTimeout.
func workerTimeout(sceneDur float64) time.Duration {
	t := baseTimeout + time.Duration(sceneDur*float64(timeoutPerSecond))
	if t > maxTimeout {
		t = maxTimeout
	}
	return t
}

// Worker launches the external processing subprocess.
type Worker struct {
	python string
	script string
	logger *slog.Logger
}

func NewWorker(python, script string, logger *slog.Logger) *Worker {
	return &Worker{python: python, script: script, logger: logger}
}

// Run executes one processing request: the request is written to stdin, the
// result is read from stdout, and stderr is streamed into the log line by
// line while the subprocess runs.
func (w *Worker) Run(ctx context.Context, req workerRequest) (*workerResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("cannot encode worker request: %w", err)
	}

	timeout := workerTimeout(req.SceneEnd - req.SceneStart)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, w.python, w.script)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("cannot open worker stderr: %w", err)
	}

	w.logger.Info("worker starting",
		"scene_start", req.SceneStart,
		"scene_end", req.SceneEnd,
		"fps", req.ProcessingFPS,
		"timeout", timeout,
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cannot start worker: %w", err)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 16*1024), 256*1024)
		for scanner.Scan() {
			w.logger.Debug("worker stderr", "line", scanner.Text())
		}
	}()

	waitErr := cmd.Wait()
	<-drained
	elapsed := time.Since(start)

	if waitErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			w.logger.Warn("worker timed out", "after", elapsed)
			return nil, fmt.Errorf("%w after %s", ErrWorkerTimeout, elapsed.Round(time.Second))
		}
		return nil, fmt.Errorf("worker failed: %w", waitErr)
	}

	result, err := parseWorkerResult(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("worker reported failure: %s", result.Error)
	}

	w.logger.Info("worker finished",
		"processed_frames", result.ProcessedFrames,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// parseWorkerResult decodes the result document, tolerating stray output
// after it. Multiple documents keep the last one.
func parseWorkerResult(stdout []byte) (*workerResult, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(stdout)))
	var result *workerResult
	for {
		var r workerResult
		if err := dec.Decode(&r); err == io.EOF {
			break
		} else if err != nil {
			if result != nil {
				break
			}
			return nil, fmt.Errorf("cannot parse worker result: %w", err)
		}
		result = &r
	}
	if result == nil {
		return nil, fmt.Errorf("worker produced no result")
	}
	return result, nil
}
