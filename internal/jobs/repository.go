package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrJobNotFound is returned when no row exists for a job id.
var ErrJobNotFound = errors.New("job not found")

// Repository persists job rows in sqlite.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, project_id, scene_id, background_kind, background_value,
			processed_path, work_dir, scene_start, scene_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ProjectID, j.SceneID, j.BackgroundKind, j.BackgroundValue,
		j.ProcessedPath, j.WorkDir, j.SceneStart, j.SceneEnd,
		j.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, scene_id, background_kind, background_value,
			processed_path, work_dir, scene_start, scene_end, created_at
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// ListOlderThan returns jobs created before the cutoff, oldest first.
func (r *Repository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, scene_id, background_kind, background_value,
			processed_path, work_dir, scene_start, scene_end, created_at
		FROM jobs WHERE created_at < ? ORDER BY created_at`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var createdAt string
	err := row.Scan(&j.ID, &j.ProjectID, &j.SceneID, &j.BackgroundKind, &j.BackgroundValue,
		&j.ProcessedPath, &j.WorkDir, &j.SceneStart, &j.SceneEnd, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job timestamp %q: %w", createdAt, err)
	}
	return &j, nil
}
