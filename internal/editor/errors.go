// Package editor orchestrates timeline mutations: every operation follows
// the same shape of validate, lock, splice, probe, ripple, resync, rebuild,
// persist. The project record is only ever replaced whole, after the new
// media file exists, so a failure at any step leaves the previous state
// fully intact.
package editor

import (
	"errors"
	"fmt"

	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/timeline"
)

// The operation error taxonomy. HTTP handlers map these to status codes;
// everything else is a 500.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrToolFailure  = errors.New("external tool failure")
	ErrTimeout      = errors.New("operation timed out")
	ErrBusy         = errors.New("project has a mutation in progress")
)

// classify folds lower-layer sentinels into the taxonomy. Errors already in
// the taxonomy and unrecognised errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrToolFailure), errors.Is(err, ErrTimeout), errors.Is(err, ErrBusy):
		return err
	case errors.Is(err, timeline.ErrProjectNotFound),
		errors.Is(err, media.ErrMediaNotFound),
		errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, jobs.ErrJobExpired):
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	case errors.Is(err, media.ErrInvalidRange):
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	case errors.Is(err, media.ErrToolTimeout), errors.Is(err, jobs.ErrWorkerTimeout):
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}
	var toolErr *media.ToolError
	if errors.As(err, &toolErr) {
		return fmt.Errorf("%w: %s", ErrToolFailure, err)
	}
	return err
}
