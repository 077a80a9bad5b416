package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrProjectNotFound is returned when no record exists for a project id.
var ErrProjectNotFound = errors.New("project not found")

// Store persists project records as JSON files under a single directory,
// one file per project. Writes are atomic: the record is written to a temp
// file in the same directory and renamed over the old one, so readers never
// observe a torn record.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create project dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory holding project records and media.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) recordPath(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid project id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Load reads a project record. Returns ErrProjectNotFound when absent.
func (s *Store) Load(id string) (*Project, error) {
	path, err := s.recordPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("cannot read project record: %w", err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cannot parse project record %s: %w", id, err)
	}
	return &p, nil
}

// Save persists the project by whole-file replacement, bumping the revision
// and updated timestamp. The caller's value is updated in place.
func (s *Store) Save(p *Project) error {
	path, err := s.recordPath(p.ID)
	if err != nil {
		return err
	}

	p.Revision++
	p.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal project %s: %w", p.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, p.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot write project record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot close temp record: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot replace project record: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("project saved", "project_id", p.ID, "revision", p.Revision)
	}
	return nil
}

// List loads every project record in the directory, skipping files that are
// not valid records.
func (s *Store) List() ([]*Project, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list project dir: %w", err)
	}

	var out []*Project
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".json")]
		p, err := s.Load(id)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping unreadable project record", "file", e.Name(), "error", err)
			}
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes a project record. Removing a missing record is not an
// error.
func (s *Store) Delete(id string) error {
	path, err := s.recordPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot delete project record: %w", err)
	}
	return nil
}

// MediaPath resolves a project-relative media file name to an absolute path.
func (s *Store) MediaPath(name string) string {
	return filepath.Join(s.dir, name)
}
