package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/timeline"
)

// DefaultTTL is how long a completed job stays mergeable before it is
// considered abandoned.
const DefaultTTL = time.Hour

// ErrJobExpired is returned when a job exists but has outlived its TTL.
var ErrJobExpired = errors.New("job expired")

// Manager coordinates the two phases: Process renders a replacement and
// records the job; Take hands the result to the merge step; Discard and
// ReapExpired clean up.
type Manager struct {
	repo    *Repository
	worker  *Worker
	tempDir string
	ttl     time.Duration
	logger  *slog.Logger

	now func() time.Time // test seam
}

func NewManager(repo *Repository, worker *Worker, tempDir string, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		repo:    repo,
		worker:  worker,
		tempDir: tempDir,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Process runs phase one: render replacement footage for one scene into a
// fresh work directory and record the job. Nothing touches the project's
// media or record here; a failed or timed-out run leaves no job behind.
func (m *Manager) Process(ctx context.Context, projectID, mediaPath string, scene timeline.Scene, bg timeline.Background) (*Job, error) {
	jobID := uuid.NewString()
	workDir := filepath.Join(m.tempDir, "jobs", jobID)
	if err := os.MkdirAll(filepath.Join(workDir, "frames"), 0755); err != nil {
		return nil, fmt.Errorf("cannot create job work dir: %w", err)
	}

	outputPath := filepath.Join(workDir, "processed.mp4")
	req := workerRequest{
		InputVideo:          mediaPath,
		SceneStart:          scene.Start,
		SceneEnd:            scene.End,
		OutputVideo:         outputPath,
		BackgroundType:      bg.Kind,
		BackgroundValue:     bg.Value,
		FramesDir:           filepath.Join(workDir, "frames"),
		SimilarityThreshold: similarityThreshold,
		ProcessingFPS:       processingFPS(scene.Duration()),
		UseFastModel:        useFastModel,
	}

	if _, err := m.worker.Run(ctx, req); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	if _, err := os.Stat(outputPath); err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("worker reported success but produced no output: %w", err)
	}

	job := &Job{
		ID:              jobID,
		ProjectID:       projectID,
		SceneID:         scene.ID,
		BackgroundKind:  bg.Kind,
		BackgroundValue: bg.Value,
		ProcessedPath:   outputPath,
		WorkDir:         workDir,
		SceneStart:      scene.Start,
		SceneEnd:        scene.End,
		CreatedAt:       m.now().UTC(),
	}
	if err := m.repo.Insert(ctx, job); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	m.logger.Info("processing job completed",
		"job_id", jobID, "project_id", projectID, "scene_id", scene.ID)
	return job, nil
}

// Take fetches a job for merging, verifying it is still within its TTL and
// its processed output still exists on disk.
func (m *Manager) Take(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if m.now().Sub(job.CreatedAt) > m.ttl {
		return nil, fmt.Errorf("%w: %s", ErrJobExpired, jobID)
	}
	if _, err := os.Stat(job.ProcessedPath); err != nil {
		return nil, fmt.Errorf("%w: processed output missing for %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// Discard removes a job's record and work directory.
func (m *Manager) Discard(ctx context.Context, jobID string) error {
	job, err := m.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, jobID); err != nil {
		return err
	}
	if err := os.RemoveAll(job.WorkDir); err != nil {
		m.logger.Warn("cannot remove job work dir", "job_id", jobID, "error", err)
	}
	return nil
}

// ReapExpired discards every job past its TTL. Returns how many were reaped.
func (m *Manager) ReapExpired(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.ttl)
	expired, err := m.repo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, job := range expired {
		if err := m.repo.Delete(ctx, job.ID); err != nil && !errors.Is(err, ErrJobNotFound) {
			return 0, err
		}
		if err := os.RemoveAll(job.WorkDir); err != nil {
			m.logger.Warn("cannot remove expired work dir", "job_id", job.ID, "error", err)
		}
		m.logger.Info("reaped expired job", "job_id", job.ID, "age", m.now().Sub(job.CreatedAt))
	}
	return len(expired), nil
}

// RunReaper reaps expired jobs on the given interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.ReapExpired(ctx); err != nil {
				m.logger.Error("job reaper pass failed", "error", err)
			}
		}
	}
}
